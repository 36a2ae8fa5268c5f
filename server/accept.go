/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

//go:build linux

package server

import (
	"net"

	loglvl "github.com/nabbar/golib/logger/level"
	"golang.org/x/sys/unix"

	"github.com/nabbar/evhttp/evloop"
	"github.com/nabbar/evhttp/transport"
)

// onAccept drains one accepted socket per firing of the listening source.
func (o *srv) onAccept(r evloop.Ready) {
	if !o.IsListening() {
		return
	}

	if r.Failed {
		// error condition on the listening socket: the server is broken
		o.fireError(ErrorSocketListen.Error(nil))
		o.Unlisten()
		return
	}

	o.m.RLock()
	lfd := o.lfd
	o.m.RUnlock()

	fd, sa, e := unix.Accept4(lfd, unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK)

	switch e {
	case nil:
	case unix.EAGAIN, unix.EWOULDBLOCK, unix.EINTR, unix.ECONNABORTED:
		// transient, wait for the next firing
		return
	default:
		o.fireError(e)
		return
	}

	adr := sockaddrTCP(sa)

	fct := o.factory()
	if fct == nil {
		_ = unix.Close(fd)
		o.fireInfo(StateRejected, adr.String())
		return
	}

	cin := fct(o, adr)
	if cin == nil {
		// embedder refusal is a soft rejection: drop the socket, keep
		// listening
		_ = unix.Close(fd)
		o.fireInfo(StateRejected, adr.String())
		return
	}

	c, ok := cin.(*conn)
	if !ok || c.IsOpen() {
		_ = unix.Close(fd)
		o.fireError(ErrorParamEmpty.Error(nil))
		o.fireInfo(StateRejected, adr.String())
		return
	}

	c.adr = adr

	// peer text form is recorded only when bound to a named port
	if len(o.Port()) > 0 && adr != nil {
		c.ips = adr.IP.String()
	}

	var ses transport.Session

	if o.sec {
		s, err := o.fss(fd, o.crd)
		if err != nil || s == nil {
			_ = unix.Close(fd)
			o.fireError(ErrorSessionInit.Error(err))
			o.fireInfo(StateRejected, adr.String())
			return
		}
		ses = s
	}

	c.arm(o, fd, ses)
	o.opn.Add(1)

	o.fireInfo(StateAccepted, adr.String())

	if o.sec {
		o.fireInfo(StateHandshake, adr.String())
	}

	o.logEntry(loglvl.DebugLevel, "connection accepted").
		FieldAdd("remote", adr.String()).
		Check(loglvl.NilLevel)
}

// sockaddrTCP decodes an accepted peer address.
func sockaddrTCP(sa unix.Sockaddr) *net.TCPAddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]), Port: a.Port, Zone: zoneName(a.ZoneId)}
	}

	return &net.TCPAddr{}
}

func zoneName(id uint32) string {
	if id == 0 {
		return ""
	}

	if ifi, e := net.InterfaceByIndex(int(id)); e == nil {
		return ifi.Name
	}

	return ""
}

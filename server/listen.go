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
	"strconv"

	liberr "github.com/nabbar/golib/errors"
	loglvl "github.com/nabbar/golib/logger/level"
	"golang.org/x/sys/unix"

	"github.com/nabbar/evhttp/evloop"
)

// Listen opens, configures, binds and arms an IPv4 listening socket.
func (o *srv) Listen(port int) (int, liberr.Error) {
	if o.IsListening() {
		return -1, ErrorServerListening.Error(nil)
	}

	fd, e := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if e != nil {
		return -1, ErrorSocketCreate.Error(e)
	}

	if e = o.setListenOptions(fd); e != nil {
		_ = unix.Close(fd)
		return -1, ErrorSocketOption.Error(e)
	}

	sa := &unix.SockaddrInet4{Port: port}

	if e = unix.Bind(fd, sa); e != nil {
		_ = unix.Close(fd)
		return -1, ErrorSocketBind.Error(e)
	}

	r, err := o.ListenFD(fd)
	if err != nil {
		_ = unix.Close(fd)
		return -1, err
	}

	o.m.Lock()
	o.prt = strconv.Itoa(port)
	o.m.Unlock()

	o.logEntry(loglvl.InfoLevel, "server listening").Check(loglvl.NilLevel)
	return r, nil
}

// setListenOptions applies the listen-time socket options: address reuse,
// keepalive, linger off, Nagle disabled.
func (o *srv) setListenOptions(fd int) error {
	if e := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); e != nil {
		return e
	}

	if e := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); e != nil {
		return e
	}

	if e := unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{Onoff: 0, Linger: 0}); e != nil {
		return e
	}

	// responses are flushed promptly; per-response Nagle toggling is a
	// known future refinement
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

// ListenFD starts accepting over an already bound descriptor. The loop is
// not started here: arm the server, then run the loop.
func (o *srv) ListenFD(fd int) (int, liberr.Error) {
	if o.IsListening() {
		return -1, ErrorServerListening.Error(nil)
	} else if fd < 0 {
		return -1, ErrorParamEmpty.Error(nil)
	}

	if e := unix.Listen(fd, o.cfg.backlog()); e != nil {
		return -1, ErrorSocketListen.Error(e)
	}

	if e := unix.SetNonblock(fd, true); e != nil {
		return -1, ErrorSocketOption.Error(e)
	}

	o.m.Lock()
	o.lfd = fd
	o.m.Unlock()

	o.src.Set(fd, evloop.WantRead)
	o.src.Start()
	o.lsn.Store(true)

	return fd, nil
}

// Unlisten stops accepting and closes the listening descriptor, leaving
// open connections undisturbed.
func (o *srv) Unlisten() {
	if !o.lsn.CompareAndSwap(true, false) {
		return
	}

	o.src.Stop()

	o.m.Lock()
	if o.lfd >= 0 {
		_ = unix.Close(o.lfd)
		o.lfd = -1
	}
	o.prt = ""
	o.m.Unlock()

	o.logEntry(loglvl.InfoLevel, "server unlisten").Check(loglvl.NilLevel)
}

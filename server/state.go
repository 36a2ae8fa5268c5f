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
	loglvl "github.com/nabbar/golib/logger/level"
	"golang.org/x/sys/unix"

	"github.com/nabbar/evhttp/buffer"
	"github.com/nabbar/evhttp/evloop"
	"github.com/nabbar/evhttp/transport"
)

// arm wires an accepted descriptor into the connection and starts its
// event sources: the handshake source for a secure server, the read source
// otherwise, plus the idle timer. Runs on the loop goroutine from the
// acceptor.
func (o *conn) arm(own *srv, fd int, ses transport.Session) {
	o.own = own
	o.fd = fd

	if ses != nil {
		o.ses = ses
		o.trp = ses
	} else {
		o.trp = transport.NewPlain(fd)
	}

	if o.prv == nil {
		o.prv = own.prv
	}

	lop := own.lop

	o.srcRd = lop.NewIO(o.onReadable)
	o.srcRd.Set(fd, evloop.WantRead)

	o.srcWr = lop.NewIO(o.onWritable)
	o.srcWr.Set(fd, evloop.WantWrite)

	o.srcHs = lop.NewIO(o.onHandshake)
	o.srcHs.Set(fd, evloop.WantRead|evloop.WantWrite)

	o.srcTm = lop.NewTimer(o.onTimeout)

	// a connection created without its own period uses the server's
	tmo := o.tmo
	if tmo <= 0 {
		tmo = own.cfg.timeout().Time()
	}
	o.srcTm.Set(tmo)

	if o.ses != nil {
		o.stt = csHandshake
	} else {
		o.stt = csActive
	}

	// publishes the wiring done above
	o.opn.Store(true)

	if o.stt == csHandshake {
		o.srcHs.Start()
	} else {
		o.srcRd.Start()
	}

	o.srcTm.Start()
}

// ResetTimeout restarts the idle period in full.
func (o *conn) ResetTimeout() {
	if o.opn.Load() {
		o.srcTm.Again()
	}
}

// Write stores buf in the outbound slot and arms the write source. One
// buffer at most is in flight; a second submission is refused without
// perturbing the first. During the handshake the buffer is held and the
// write source armed on completion.
func (o *conn) Write(buf *buffer.Buffer) bool {
	if !o.opn.Load() || buf == nil || buf.Len() < 1 {
		return false
	}

	if o.out != nil || o.srcWr.IsActive() {
		return false
	}

	buf.Rewind()
	o.out = buf

	if o.stt == csActive {
		o.srcWr.Start()
	}

	return true
}

// Close performs the ordered teardown: disarm all four sources, release
// the session, close the descriptor, notify, then run the final release
// hook. Only the first call acts.
func (o *conn) Close() {
	if !o.opn.CompareAndSwap(true, false) {
		return
	}

	o.stt = csClosed

	o.srcRd.Release()
	o.srcWr.Release()
	o.srcHs.Release()
	o.srcTm.Stop()

	if o.ses != nil {
		_ = o.ses.Close()
	}

	if o.fd >= 0 {
		_ = unix.Close(o.fd)
		o.fd = -1
	}

	// a buffer caught in flight is released on close
	if b := o.out; b != nil {
		o.out = nil
		b.Release()
	}

	if o.own != nil {
		o.own.opn.Add(-1)
		o.own.fireInfo(StateClosed, o.remote())
	}

	if o.fCls != nil {
		o.fCls(o)
	}

	if o.fFre != nil {
		f := o.fFre
		o.fFre = nil
		f(o)
	}
}

// onTimeout consults the embedder before closing an idle connection.
func (o *conn) onTimeout() {
	if !o.opn.Load() {
		return
	}

	if o.fTmo != nil && o.fTmo(o) == TimeoutAgain {
		o.ResetTimeout()
		return
	}

	if o.own != nil {
		o.own.fireInfo(StateTimeout, o.remote())
	}

	o.Close()
}

// onHandshake advances the secure session handshake, flipping the source
// polarity to the direction the record layer awaits.
func (o *conn) onHandshake(r evloop.Ready) {
	if !o.opn.Load() || o.ses == nil {
		return
	}

	if r.Failed {
		o.Close()
		return
	}

	done, err := o.ses.Handshake()

	if err != nil {
		if !transport.IsWouldBlock(err) {
			o.fail(err)
			return
		}

		if o.ses.Direction() == transport.NeedWrite {
			o.srcHs.Set(o.fd, evloop.WantWrite)
		} else {
			o.srcHs.Set(o.fd, evloop.WantRead)
		}

		o.srcHs.Start()
		return
	}

	if !done {
		return
	}

	o.ResetTimeout()
	o.srcHs.Stop()

	o.stt = csActive
	o.srcRd.Start()

	// a write queued during the handshake drains now
	if o.out != nil {
		o.srcWr.Start()
	}

	if o.own != nil {
		o.own.fireInfo(StateActive, o.remote())
	}
}

// onReadable pulls bytes from the transport into a provided region and
// feeds them to the parser.
func (o *conn) onReadable(r evloop.Ready) {
	if !o.opn.Load() {
		return
	}

	if r.Failed {
		o.Close()
		return
	}

	o.doRead()
}

func (o *conn) doRead() {
	var buf *buffer.Buffer

	if o.prv != nil {
		buf = o.prv.Get()
	}

	if buf == nil {
		// provider refusal is back-pressure, fatal for this connection
		o.Close()
		return
	}

	n, err := o.trp.Recv(buf.Bytes())

	if err != nil {
		buf.Release()

		if transport.IsWouldBlock(err) {
			if o.ses != nil && o.ses.Direction() == transport.NeedWrite {
				// record read awaiting socket writability
				o.srcWr.Start()
			}
			return
		}

		if transport.IsEOF(err) {
			o.Close()
			return
		}

		o.fail(err)
		return
	}

	o.ResetTimeout()

	if o.prs != nil {
		o.prs.Execute(buf.Bytes()[:n])
	}

	buf.Release()

	if o.prs != nil && o.prs.HasError() {
		// parse error drops the client without a response
		o.Close()
	}
}

// onWritable drains the outbound slot. A firing with an empty slot exists
// only to unblock a cross-direction record read and is routed there.
func (o *conn) onWritable(r evloop.Ready) {
	if !o.opn.Load() {
		return
	}

	if r.Failed {
		o.Close()
		return
	}

	if o.out == nil {
		o.srcWr.Stop()
		o.doRead()
		return
	}

	n, err := o.trp.Send(o.out.Pending())

	if err != nil {
		if transport.IsWouldBlock(err) {
			if o.ses != nil && o.ses.Direction() == transport.NeedRead {
				// record write awaiting socket readability
				o.srcWr.Stop()
			}
			return
		}

		o.fail(err)
		return
	}

	if n < 1 {
		return
	}

	o.ResetTimeout()
	o.out.Advance(n)

	if o.out.Done() {
		o.srcWr.Stop()

		b := o.out
		o.out = nil
		b.Release()
	}
}

// fail reports a connection-fatal error then closes. No notification is
// attempted toward the peer.
func (o *conn) fail(err error) {
	if o.own != nil {
		o.own.fireError(err)
		o.own.logEntry(loglvl.DebugLevel, "closing connection").
			FieldAdd("remote", o.remote()).
			ErrorAdd(true, err).
			Check(loglvl.NilLevel)
	}

	o.Close()
}

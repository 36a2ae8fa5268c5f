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
	"sync/atomic"
	"time"

	libdur "github.com/nabbar/golib/duration"

	"github.com/nabbar/evhttp/buffer"
	"github.com/nabbar/evhttp/evloop"
	"github.com/nabbar/evhttp/parser"
	"github.com/nabbar/evhttp/transport"
)

// TimeoutAction is the verdict of the idle timeout callback.
type TimeoutAction uint8

const (
	// TimeoutStop lets the idle connection close.
	TimeoutStop TimeoutAction = iota

	// TimeoutAgain vetoes the expiry and restarts the idle period.
	TimeoutAgain
)

// FuncTimeout is consulted on idle expiry. Absent callback means stop.
type FuncTimeout func(c Connection) TimeoutAction

// FuncClose is notified after the connection closed.
type FuncClose func(c Connection)

// FuncFree is the final release hook: the engine's last observable action
// on a closed connection.
type FuncFree func(c Connection)

// Connection is one accepted socket driven by the event loop through the
// handshake, active and closed stages of its life.
//
// All callbacks registered on a connection run on the loop goroutine. A
// callback may call Close and Write on the connection it receives.
type Connection interface {
	// Close tears the connection down: disarms every event source, closes
	// the session and the descriptor, then notifies. Idempotent; only the
	// first call acts.
	Close()

	// ResetTimeout restarts the idle period in full.
	ResetTimeout()

	// Write submits buf for draining. It reports false, leaving any
	// buffer in flight undisturbed, when a drain is already pending. At
	// most one buffer is in flight per connection; flow control above
	// that is the embedder's concern.
	Write(buf *buffer.Buffer) bool

	IsOpen() bool

	// IsWriting reports whether an outbound buffer is in flight.
	IsWriting() bool

	// Fd returns the connection descriptor, or -1 before accept wiring
	// and after close.
	Fd() int

	// IP returns the peer address text, filled only when the server was
	// bound to a named port.
	IP() string

	// Remote returns the peer address.
	Remote() *net.TCPAddr

	// Server returns the owning server. A connection belongs to exactly
	// one server for its entire life.
	Server() Server

	// Timeout returns the idle period the connection was created with.
	Timeout() time.Duration

	RegisterFuncTimeout(f FuncTimeout)
	RegisterFuncClose(f FuncClose)
	RegisterFuncFree(f FuncFree)

	// RegisterProvider installs the inbound buffer provider. Without one
	// the engine uses a shared pooled provider.
	RegisterProvider(p buffer.Provider)

	// RegisterParser installs the request parser fed by received bytes.
	RegisterParser(p parser.Parser)

	// SetTag stores an opaque embedder value on the connection.
	SetTag(t any)
	Tag() any
}

type connState uint8

const (
	csIdle connState = iota
	csHandshake
	csActive
	csClosed
)

type conn struct {
	fd  int
	adr *net.TCPAddr
	ips string
	own *srv
	tmo time.Duration
	stt connState
	opn atomic.Bool

	srcRd evloop.IOSource
	srcWr evloop.IOSource
	srcHs evloop.IOSource
	srcTm evloop.TimerSource

	trp transport.Transport
	ses transport.Session

	out *buffer.Buffer
	prv buffer.Provider
	prs parser.Parser

	fTmo FuncTimeout
	fCls FuncClose
	fFre FuncFree

	tag any
}

// NewConnection allocates a connection with the given idle timeout. It
// must be returned from the server's connection factory, with the
// embedder's callbacks registered, before the engine wires and arms it.
func NewConnection(timeout libdur.Duration) Connection {
	return &conn{
		fd:  -1,
		tmo: timeout.Time(),
		stt: csIdle,
	}
}

func (o *conn) IsOpen() bool {
	return o.opn.Load()
}

// IsWriting is loop-thread state, meaningful from callbacks only.
func (o *conn) IsWriting() bool {
	return o.IsOpen() && o.out != nil
}

func (o *conn) Fd() int {
	return o.fd
}

func (o *conn) IP() string {
	// the open flag publishes the accept-time wiring
	if !o.opn.Load() {
		return ""
	}

	return o.ips
}

func (o *conn) Remote() *net.TCPAddr {
	return o.adr
}

func (o *conn) Server() Server {
	if o.own == nil {
		return nil
	}

	return o.own
}

func (o *conn) Timeout() time.Duration {
	return o.tmo
}

func (o *conn) RegisterFuncTimeout(f FuncTimeout) {
	o.fTmo = f
}

func (o *conn) RegisterFuncClose(f FuncClose) {
	o.fCls = f
}

func (o *conn) RegisterFuncFree(f FuncFree) {
	o.fFre = f
}

func (o *conn) RegisterProvider(p buffer.Provider) {
	o.prv = p
}

func (o *conn) RegisterParser(p parser.Parser) {
	o.prs = p
}

func (o *conn) SetTag(t any) {
	o.tag = t
}

func (o *conn) Tag() any {
	return o.tag
}

func (o *conn) remote() string {
	if o.adr != nil {
		return o.adr.String()
	}

	return ""
}

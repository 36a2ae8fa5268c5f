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
	"context"
	"net"

	libatm "github.com/nabbar/golib/atomic"
	libctx "github.com/nabbar/golib/context"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	montps "github.com/nabbar/golib/monitor/types"
	libver "github.com/nabbar/golib/version"

	"github.com/nabbar/evhttp/buffer"
	"github.com/nabbar/evhttp/evloop"
	"github.com/nabbar/evhttp/secure"
)

// ConnState labels the lifecycle notifications delivered to the info
// callback.
type ConnState uint8

const (
	StateAccepted ConnState = iota
	StateHandshake
	StateActive
	StateTimeout
	StateRejected
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateHandshake:
		return "handshake"
	case StateActive:
		return "active"
	case StateTimeout:
		return "timeout"
	case StateRejected:
		return "rejected"
	case StateClosed:
		return "closed"
	}

	return "unknown"
}

// FuncNewConnection allocates the connection object for one accepted
// socket. The returned value must come from NewConnection, with the
// embedder's callbacks registered on it; returning nil rejects the
// accepted socket, which the engine closes.
type FuncNewConnection func(s Server, remote *net.TCPAddr) Connection

// FuncError fans engine errors out to the embedder.
type FuncError func(e ...error)

// FuncInfo delivers connection lifecycle notifications.
type FuncInfo func(st ConnState, remote string)

// Server is the accept-side of the engine: one listening socket whose
// readiness is multiplexed on the event loop, handing accepted sockets to
// the embedder's connection factory.
type Server interface {
	// Listen opens an IPv4 stream socket bound to port, applies the
	// listen-time socket options and arms the accept source. It returns
	// the listening descriptor.
	Listen(port int) (int, liberr.Error)

	// ListenFD arms the accept source over an already bound descriptor.
	// It returns the descriptor.
	ListenFD(fd int) (int, liberr.Error)

	// Unlisten stops accepting and closes the listening descriptor. Open
	// connections are left untouched.
	Unlisten()

	IsListening() bool

	// Port returns the decimal form of the bound port, or the empty
	// string when the server was bound through ListenFD or is idle.
	Port() string

	IsSecure() bool

	// Loop exposes the loop driving this server and its connections.
	Loop() evloop.Loop

	// OpenConnections counts connections accepted by this server and not
	// yet closed.
	OpenConnections() int64

	RegisterFuncNewConnection(f FuncNewConnection)
	RegisterFuncError(f FuncError)
	RegisterFuncInfo(f FuncInfo)
	RegisterLogger(f liblog.FuncLog)

	// Monitor exposes the server health through the monitoring stack.
	Monitor(vrs libver.Version) (montps.Monitor, error)
	MonitorName() string
	HealthCheck(ctx context.Context) error

	// Close unlistens. Open connections are the embedder's to close.
	Close() error
}

// New returns a plain server bound to the given loop.
func New(lop evloop.Loop, cfg Config) (Server, liberr.Error) {
	if lop == nil {
		return nil, ErrorParamEmpty.Error(nil)
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := newServer(lop, cfg)
	return o, nil
}

// NewSecure returns a server whose accepted connections handshake through
// sessions produced by fct with the given credentials.
func NewSecure(lop evloop.Loop, cfg Config, crd secure.Credentials, fct secure.FuncSession) (Server, liberr.Error) {
	if lop == nil || crd == nil || fct == nil {
		return nil, ErrorParamEmpty.Error(nil)
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := newServer(lop, cfg)
	o.sec = true
	o.crd = crd
	o.fss = fct

	return o, nil
}

func newServer(lop evloop.Loop, cfg Config) *srv {
	o := &srv{
		lop: lop,
		cfg: cfg,
		lfd: -1,
		ctx: libctx.New[string](cfg.context),
		prv: buffer.NewPool(cfg.BufferSize),
		lsn: libatm.NewValue[bool](),
		fNew: libatm.NewValue[FuncNewConnection](),
		fErr: libatm.NewValue[FuncError](),
		fInf: libatm.NewValue[FuncInfo](),
		log: libatm.NewValue[liblog.FuncLog](),
	}

	o.src = lop.NewIO(o.onAccept)
	return o
}

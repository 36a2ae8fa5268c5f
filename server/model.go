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
	"sync"
	"sync/atomic"

	libatm "github.com/nabbar/golib/atomic"
	libctx "github.com/nabbar/golib/context"
	liblog "github.com/nabbar/golib/logger"
	logent "github.com/nabbar/golib/logger/entry"
	loglvl "github.com/nabbar/golib/logger/level"

	"github.com/nabbar/evhttp/buffer"
	"github.com/nabbar/evhttp/evloop"
	"github.com/nabbar/evhttp/secure"
)

type srv struct {
	m sync.RWMutex

	lop evloop.Loop
	cfg Config
	ctx libctx.Config[string]

	lfd int
	prt string
	src evloop.IOSource
	lsn libatm.Value[bool]

	sec bool
	crd secure.Credentials
	fss secure.FuncSession
	prv buffer.Provider

	opn atomic.Int64

	fNew libatm.Value[FuncNewConnection]
	fErr libatm.Value[FuncError]
	fInf libatm.Value[FuncInfo]
	log  libatm.Value[liblog.FuncLog]
}

func (o *srv) Loop() evloop.Loop {
	return o.lop
}

func (o *srv) IsSecure() bool {
	return o.sec
}

func (o *srv) IsListening() bool {
	return o.lsn.Load()
}

func (o *srv) Port() string {
	o.m.RLock()
	defer o.m.RUnlock()
	return o.prt
}

func (o *srv) OpenConnections() int64 {
	return o.opn.Load()
}

func (o *srv) RegisterFuncNewConnection(f FuncNewConnection) {
	o.fNew.Store(f)
}

func (o *srv) RegisterFuncError(f FuncError) {
	o.fErr.Store(f)
}

func (o *srv) RegisterFuncInfo(f FuncInfo) {
	o.fInf.Store(f)
}

func (o *srv) RegisterLogger(f liblog.FuncLog) {
	o.log.Store(f)
}

func (o *srv) Close() error {
	o.Unlisten()
	return nil
}

func (o *srv) logger() liblog.Logger {
	if f := o.log.Load(); f == nil {
		return liblog.GetDefault()
	} else if l := f(); l == nil {
		return liblog.GetDefault()
	} else {
		return l
	}
}

func (o *srv) logEntry(lvl loglvl.Level, msg string) logent.Entry {
	return o.logger().Entry(lvl, msg).FieldAdd("bind", o.Port())
}

// fireError fans errors out to the embedder callback and the logger.
func (o *srv) fireError(e ...error) {
	if len(e) < 1 {
		return
	}

	if f := o.fErr.Load(); f != nil {
		f(e...)
	}

	o.logEntry(loglvl.ErrorLevel, "server error").ErrorAdd(true, e...).Check(loglvl.NilLevel)
}

// fireInfo delivers one lifecycle notification.
func (o *srv) fireInfo(st ConnState, remote string) {
	if f := o.fInf.Load(); f != nil {
		f(st, remote)
	}
}

func (o *srv) factory() FuncNewConnection {
	return o.fNew.Load()
}

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

package evloop

type ioSource struct {
	tok uint64
	lop *loop
	fd  int
	wnt Want
	act bool
	fct FuncIOEvent
}

func (o *ioSource) Set(fd int, want Want) {
	o.lop.m.Lock()

	if o.act {
		o.lop.m.Unlock()
		o.Stop()
		o.lop.m.Lock()
	}

	o.fd = fd
	o.wnt = want
	o.lop.m.Unlock()
}

func (o *ioSource) Fd() int {
	o.lop.m.Lock()
	defer o.lop.m.Unlock()
	return o.fd
}

func (o *ioSource) Want() Want {
	o.lop.m.Lock()
	defer o.lop.m.Unlock()
	return o.wnt
}

func (o *ioSource) IsActive() bool {
	o.lop.m.Lock()
	defer o.lop.m.Unlock()
	return o.act
}

func (o *ioSource) Start() {
	o.lop.m.Lock()
	if o.act || o.fd < 0 {
		o.lop.m.Unlock()
		return
	}
	o.act = true
	o.lop.m.Unlock()

	o.lop.attach(o)
}

func (o *ioSource) Stop() {
	o.lop.m.Lock()
	if !o.act {
		o.lop.m.Unlock()
		return
	}
	o.act = false
	o.lop.m.Unlock()

	o.lop.detach(o)
}

func (o *ioSource) Release() {
	o.Stop()

	o.lop.m.Lock()
	delete(o.lop.ios, o.tok)
	o.lop.m.Unlock()
}

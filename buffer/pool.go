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

package buffer

import "sync"

type pool struct {
	siz int
	pol sync.Pool
}

func (o *pool) alloc() any {
	b := &Buffer{reg: make([]byte, o.siz)}
	b.rls = func(_ *Buffer) {
		o.Put(b)
	}

	return b
}

func (o *pool) Get() *Buffer {
	b := o.pol.Get().(*Buffer)
	b.cur = 0

	// served regions keep their hook so Release recycles them
	if b.rls == nil {
		b.rls = func(_ *Buffer) {
			o.Put(b)
		}
	}

	return b
}

func (o *pool) Put(b *Buffer) {
	if b == nil || len(b.reg) != o.siz {
		return
	}

	b.cur = 0
	b.Tag = nil
	o.pol.Put(b)
}

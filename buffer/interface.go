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

// Package buffer holds the byte region descriptor exchanged between the
// connection engine and its embedder, and a pooled provider for inbound
// read regions.
//
// A Buffer wraps a contiguous region with a private progress cursor, an
// optional release hook invoked exactly once when the engine is done with
// the region, and an opaque embedder tag. Embedders hand populated buffers
// to the engine for draining; the engine advances the cursor across partial
// transport operations and releases the buffer on completion or on
// connection close.
package buffer

import (
	libsiz "github.com/nabbar/golib/size"
)

// DefaultSize is the region size served by the default provider, one
// maximal TCP window.
const DefaultSize = libsiz.SizeKilo * 64

// FuncRelease is the hook invoked when the engine will no longer touch the
// buffer.
type FuncRelease func(b *Buffer)

// Provider serves inbound read regions to a connection. Get returning nil
// signals back-pressure: the engine tears the connection down rather than
// queueing.
type Provider interface {
	Get() *Buffer
	Put(b *Buffer)
}

// New returns a buffer over p with no release hook.
func New(p []byte) *Buffer {
	return &Buffer{reg: p}
}

// NewRelease returns a buffer over p whose release hook is fct.
func NewRelease(p []byte, fct FuncRelease) *Buffer {
	return &Buffer{reg: p, rls: fct}
}

// NewPool returns a Provider backed by a recycling pool serving regions of
// the given size, or DefaultSize when siz is zero. Buffers served by the
// pool return to it through their release hook.
func NewPool(siz libsiz.Size) Provider {
	if siz < 1 {
		siz = DefaultSize
	}

	p := &pool{siz: siz.Int()}
	p.pol.New = p.alloc

	return p
}

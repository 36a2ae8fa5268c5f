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

// Buffer is a contiguous byte region with a private progress cursor.
// The embedder populates the region; the engine advances the cursor.
type Buffer struct {
	reg []byte
	cur int
	rls FuncRelease

	// Tag is an opaque embedder slot, never touched by the engine.
	Tag any
}

// Bytes returns the whole region.
func (o *Buffer) Bytes() []byte {
	return o.reg
}

// Len returns the region length.
func (o *Buffer) Len() int {
	return len(o.reg)
}

// Pending returns the region part not yet consumed by the transport.
func (o *Buffer) Pending() []byte {
	return o.reg[o.cur:]
}

// Written returns the cursor position.
func (o *Buffer) Written() int {
	return o.cur
}

// Advance moves the cursor by n, clamped to the region length.
func (o *Buffer) Advance(n int) {
	if n < 0 {
		return
	}

	o.cur += n
	if o.cur > len(o.reg) {
		o.cur = len(o.reg)
	}
}

// Done reports whether the cursor reached the region length.
func (o *Buffer) Done() bool {
	return o.cur >= len(o.reg)
}

// Rewind resets the cursor to the region start.
func (o *Buffer) Rewind() {
	o.cur = 0
}

// Release invokes the release hook. It runs the hook at most once; later
// calls are no-ops.
func (o *Buffer) Release() {
	if o.rls == nil {
		return
	}

	f := o.rls
	o.rls = nil
	f(o)
}

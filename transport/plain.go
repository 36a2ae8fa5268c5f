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

package transport

import (
	"io"

	"golang.org/x/sys/unix"
)

type plain struct {
	fd int
}

// NewPlain returns the raw-socket shim over a non-blocking descriptor.
func NewPlain(fd int) Transport {
	return &plain{fd: fd}
}

func (o *plain) Send(p []byte) (int, error) {
	if o.fd < 0 {
		return 0, ErrClosed
	}

	n, e := unix.SendmsgN(o.fd, p, nil, nil, unix.MSG_NOSIGNAL)

	switch {
	case e == unix.EAGAIN, e == unix.EWOULDBLOCK, e == unix.EINTR:
		return 0, ErrWouldBlock
	case e != nil:
		return 0, e
	}

	return n, nil
}

func (o *plain) Recv(p []byte) (int, error) {
	if o.fd < 0 {
		return 0, ErrClosed
	}

	n, e := unix.Read(o.fd, p)

	switch {
	case e == unix.EAGAIN, e == unix.EWOULDBLOCK, e == unix.EINTR:
		return 0, ErrWouldBlock
	case e != nil:
		return 0, e
	case n == 0:
		// zero-byte read on a stream socket is peer shutdown
		return 0, io.EOF
	}

	return n, nil
}

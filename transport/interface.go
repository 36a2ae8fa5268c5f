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

// Package transport is the byte-level shim between the connection engine
// and the wire: non-blocking send and recv over either a raw socket or an
// encrypted session, with a uniform would-block signal.
//
// The plain variant maps the host's non-blocking socket calls; transient
// retry conditions surface as ErrWouldBlock and a zero-byte read as io.EOF.
// The secure variant is consumed through the Session interface: a record
// layer that additionally reports, when it would block, which readiness of
// the underlying socket it awaits. The awaited direction may invert
// relative to the logical call: a record read can require sending, a record
// write can require receiving.
package transport

import (
	"errors"
	"io"
)

var (
	// ErrWouldBlock reports a transient non-readiness: retry after the
	// relevant readiness fires.
	ErrWouldBlock = errors.New("transport: operation would block")

	// ErrClosed reports use of a transport whose descriptor is gone.
	ErrClosed = errors.New("transport: closed")
)

// Direction is the socket readiness a blocked secure operation awaits.
type Direction uint8

const (
	NeedRead Direction = iota
	NeedWrite
)

func (d Direction) String() string {
	if d == NeedWrite {
		return "need-write"
	}

	return "need-read"
}

// Transport moves bytes over the wire without blocking.
type Transport interface {
	// Send writes bytes from p, returning the count written. A zero count
	// comes with a non-nil error: ErrWouldBlock or a fatal one.
	Send(p []byte) (int, error)

	// Recv reads bytes into p, returning the count read. A zero count
	// comes with ErrWouldBlock, io.EOF on peer shutdown, or a fatal error.
	Recv(p []byte) (int, error)
}

// Session is the secure variant of the shim: a handshaking record layer
// over an underlying socket.
type Session interface {
	Transport

	// Handshake advances the handshake by at most one step. It reports
	// done on completion, ErrWouldBlock when the underlying socket is not
	// ready in the awaited direction, or a fatal error.
	Handshake() (done bool, err error)

	// Direction reports which socket readiness the last blocked operation
	// awaits. Meaningful only after ErrWouldBlock.
	Direction() Direction

	// Close releases the record layer state. It does not close the
	// underlying descriptor.
	Close() error
}

// IsWouldBlock reports whether err is the transient non-readiness signal.
func IsWouldBlock(err error) bool {
	return errors.Is(err, ErrWouldBlock)
}

// IsEOF reports whether err is a normal peer end-of-stream.
func IsEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// IsFatal reports whether err terminates the connection: any error that is
// neither transient nor nil.
func IsFatal(err error) bool {
	return err != nil && !IsWouldBlock(err)
}

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

// Package parser defines the incremental request parser collaborator the
// connection engine feeds received bytes into, and the event surface a
// parsed request exposes.
//
// The engine treats the parser as a byte-consuming state machine: bytes go
// in verbatim through Execute, the error flag is consulted after each feed,
// and a set error terminates the connection. Request objects are produced
// by an embedder-supplied factory each time a new message starts on the
// connection.
package parser

// Parser consumes request bytes incrementally.
type Parser interface {
	// Init resets the parser to the start of a fresh connection.
	Init()

	// Execute consumes p and returns the number of bytes consumed. A short
	// count happens only on error or pause.
	Execute(p []byte) int

	// HasError reports whether the byte stream was malformed. The flag is
	// permanent for the life of the parser instance.
	HasError() bool

	// Pause suspends consumption; Execute returns without consuming until
	// Resume.
	Pause()

	// Resume lifts a pause.
	Resume()

	IsPaused() bool
}

// FuncNewRequest produces the per-message event sink. Returning nil makes
// the parser consume and discard the message.
type FuncNewRequest func() Request

// Request is the event surface driven by the parser while one message is
// read from the wire.
type Request interface {
	// Method receives the request method token.
	Method(m string)

	// URI receives the request target as sent, fragment excluded.
	URI(u string)

	// Fragment receives the request target fragment, when present.
	Fragment(f string)

	// Path receives the path part of the request target.
	Path(p string)

	// Query receives the raw query string, when present.
	Query(q string)

	// Version receives the protocol major and minor version.
	Version(major, minor int)

	// Header receives one field name and value pair.
	Header(key, val string)

	// HeadersComplete signals the end of the header section.
	HeadersComplete()

	// Body receives one body chunk as read from the wire.
	Body(p []byte)

	// MessageComplete signals the end of the message.
	MessageComplete()
}

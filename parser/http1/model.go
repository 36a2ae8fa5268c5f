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

// Package http1 is the default incremental HTTP/1.x request parser fed by
// the connection engine. It consumes arbitrary byte slices across calls,
// delivers parse events to a per-message request object, and flags
// malformed input permanently. Request line and header section are parsed
// line-wise with a bounded accumulator; bodies are delivered as raw chunks
// for identity (Content-Length) and chunked transfer encodings. Pipelined
// messages in one feed are handled back to back.
package http1

import (
	"github.com/nabbar/evhttp/parser"
)

// MaxLineSize bounds one request or header line, accumulator included.
const MaxLineSize = 8192

type state uint8

const (
	stRequestLine state = iota
	stHeaderLine
	stBodyIdentity
	stChunkSize
	stChunkData
	stChunkDataEnd
	stTrailerLine
	stDead
)

type parse struct {
	fct parser.FuncNewRequest
	req parser.Request

	stt state
	acc []byte
	err bool
	pse bool

	// current message accounting
	vMj int   // protocol major
	vMn int   // protocol minor
	cLn int64 // declared content length, -1 when absent
	rem int64 // body or chunk bytes still expected
	chk bool  // chunked transfer encoding
	kpa bool  // keep-alive decision
	kpe bool  // connection header seen, overrides version default
	cnt int   // parsed messages count
}

// New returns an idle parser delivering events to requests produced by fct.
// A nil fct, or a nil request from it, parses and discards.
func New(fct parser.FuncNewRequest) Parser {
	o := &parse{fct: fct}
	o.Init()
	return o
}

func (o *parse) Init() {
	o.stt = stRequestLine
	o.acc = o.acc[:0]
	o.err = false
	o.pse = false
	o.req = nil
	o.cnt = 0
	o.resetMessage()
}

func (o *parse) resetMessage() {
	o.vMj = 0
	o.vMn = 0
	o.cLn = -1
	o.rem = 0
	o.chk = false
	o.kpa = false
	o.kpe = false
}

func (o *parse) HasError() bool {
	return o.err
}

func (o *parse) Pause() {
	o.pse = true
}

func (o *parse) Resume() {
	o.pse = false
}

func (o *parse) IsPaused() bool {
	return o.pse
}

func (o *parse) ShouldKeepAlive() bool {
	if o.kpe {
		return o.kpa
	}

	// 1.1 defaults on, 1.0 and before default off
	return o.vMj > 1 || (o.vMj == 1 && o.vMn >= 1)
}

func (o *parse) Messages() int {
	return o.cnt
}

func (o *parse) fail() int {
	o.stt = stDead
	o.err = true
	return 0
}

func (o *parse) Execute(p []byte) int {
	var n int

	for n < len(p) {
		if o.err || o.pse {
			return n
		}

		switch o.stt {
		case stDead:
			return n

		case stRequestLine, stHeaderLine, stChunkSize, stChunkDataEnd, stTrailerLine:
			i, ok := o.accLine(p[n:])
			n += i
			if !ok {
				return n
			}

			lin := o.acc
			o.acc = o.acc[:0]

			if !o.feedLine(lin) {
				return n
			}

		case stBodyIdentity:
			c := o.feedBody(p[n:])
			n += c

		case stChunkData:
			c := o.feedChunk(p[n:])
			n += c
		}
	}

	return n
}

// accLine appends bytes up to and including LF into the accumulator.
// It reports how many bytes were taken and whether a full line is held.
func (o *parse) accLine(p []byte) (int, bool) {
	for i, b := range p {
		o.acc = append(o.acc, b)

		if len(o.acc) > MaxLineSize {
			o.fail()
			return i, false
		}

		if b == '\n' {
			return i + 1, true
		}
	}

	return len(p), false
}

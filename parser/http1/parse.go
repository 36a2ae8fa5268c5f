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

package http1

import (
	"bytes"
	"strconv"
	"strings"
)

// feedLine processes one accumulated line for the line-oriented states.
// It reports false when the parser died on the line.
func (o *parse) feedLine(lin []byte) bool {
	lin = trimEOL(lin)

	switch o.stt {
	case stRequestLine:
		if len(lin) == 0 {
			// tolerated separator between pipelined messages
			return true
		}
		return o.onRequestLine(lin)

	case stHeaderLine:
		if len(lin) == 0 {
			return o.onHeadersComplete()
		}
		return o.onHeaderLine(lin)

	case stChunkSize:
		return o.onChunkSize(lin)

	case stChunkDataEnd:
		if len(lin) != 0 {
			o.fail()
			return false
		}
		o.stt = stChunkSize
		return true

	case stTrailerLine:
		if len(lin) == 0 {
			o.finishMessage()
		}
		return true
	}

	o.fail()
	return false
}

func (o *parse) onRequestLine(lin []byte) bool {
	o.resetMessage()

	if o.fct != nil {
		o.req = o.fct()
	}

	i := bytes.IndexByte(lin, ' ')
	j := bytes.LastIndexByte(lin, ' ')

	if i < 1 || j <= i+1 {
		o.fail()
		return false
	}

	mth := string(lin[:i])
	tgt := lin[i+1 : j]
	ver := lin[j+1:]

	if !o.parseVersion(ver) {
		o.fail()
		return false
	}

	if o.req != nil {
		o.req.Method(mth)
	}

	o.emitTarget(tgt)

	if o.req != nil {
		o.req.Version(o.vMj, o.vMn)
	}

	o.stt = stHeaderLine
	return true
}

func (o *parse) parseVersion(ver []byte) bool {
	const pfx = "HTTP/"

	if len(ver) < len(pfx)+3 || string(ver[:len(pfx)]) != pfx {
		return false
	}

	dot := bytes.IndexByte(ver[len(pfx):], '.')
	if dot < 1 {
		return false
	}

	mj, e := strconv.Atoi(string(ver[len(pfx) : len(pfx)+dot]))
	if e != nil {
		return false
	}

	mn, e := strconv.Atoi(string(ver[len(pfx)+dot+1:]))
	if e != nil {
		return false
	}

	o.vMj = mj
	o.vMn = mn
	return true
}

func (o *parse) emitTarget(tgt []byte) {
	var frg []byte

	if i := bytes.IndexByte(tgt, '#'); i >= 0 {
		frg = tgt[i+1:]
		tgt = tgt[:i]
	}

	if o.req == nil {
		return
	}

	o.req.URI(string(tgt))

	if frg != nil {
		o.req.Fragment(string(frg))
	}

	if i := bytes.IndexByte(tgt, '?'); i >= 0 {
		o.req.Path(string(tgt[:i]))
		o.req.Query(string(tgt[i+1:]))
	} else {
		o.req.Path(string(tgt))
	}
}

func (o *parse) onHeaderLine(lin []byte) bool {
	if lin[0] == ' ' || lin[0] == '\t' {
		// obsolete line folding is rejected
		o.fail()
		return false
	}

	i := bytes.IndexByte(lin, ':')
	if i < 1 {
		o.fail()
		return false
	}

	key := string(lin[:i])
	val := string(bytes.Trim(lin[i+1:], " \t"))

	if strings.ContainsAny(key, " \t") {
		o.fail()
		return false
	}

	if !o.accountHeader(key, val) {
		o.fail()
		return false
	}

	if o.req != nil {
		o.req.Header(key, val)
	}

	return true
}

// accountHeader tracks the fields driving framing and keep-alive.
func (o *parse) accountHeader(key, val string) bool {
	switch {
	case strings.EqualFold(key, "Content-Length"):
		n, e := strconv.ParseInt(val, 10, 64)
		if e != nil || n < 0 {
			return false
		}
		if o.cLn >= 0 && o.cLn != n {
			return false
		}
		o.cLn = n

	case strings.EqualFold(key, "Transfer-Encoding"):
		if strings.Contains(strings.ToLower(val), "chunked") {
			o.chk = true
		}

	case strings.EqualFold(key, "Connection"):
		switch {
		case strings.EqualFold(val, "close"):
			o.kpe = true
			o.kpa = false
		case strings.EqualFold(val, "keep-alive"):
			o.kpe = true
			o.kpa = true
		}
	}

	return true
}

func (o *parse) onHeadersComplete() bool {
	if o.req != nil {
		o.req.HeadersComplete()
	}

	switch {
	case o.chk:
		o.stt = stChunkSize

	case o.cLn > 0:
		o.rem = o.cLn
		o.stt = stBodyIdentity

	default:
		o.finishMessage()
	}

	return true
}

func (o *parse) onChunkSize(lin []byte) bool {
	if i := bytes.IndexByte(lin, ';'); i >= 0 {
		lin = lin[:i]
	}

	lin = bytes.Trim(lin, " \t")

	siz, e := strconv.ParseInt(string(lin), 16, 64)
	if e != nil || siz < 0 {
		o.fail()
		return false
	}

	if siz == 0 {
		o.stt = stTrailerLine
		return true
	}

	o.rem = siz
	o.stt = stChunkData
	return true
}

func (o *parse) feedBody(p []byte) int {
	c := int64(len(p))
	if c > o.rem {
		c = o.rem
	}

	if o.req != nil && c > 0 {
		o.req.Body(p[:c])
	}

	o.rem -= c

	if o.rem == 0 {
		o.finishMessage()
	}

	return int(c)
}

func (o *parse) feedChunk(p []byte) int {
	c := int64(len(p))
	if c > o.rem {
		c = o.rem
	}

	if o.req != nil && c > 0 {
		o.req.Body(p[:c])
	}

	o.rem -= c

	if o.rem == 0 {
		o.stt = stChunkDataEnd
	}

	return int(c)
}

func (o *parse) finishMessage() {
	if o.req != nil {
		o.req.MessageComplete()
	}

	o.cnt++
	o.req = nil
	o.stt = stRequestLine
}

func trimEOL(lin []byte) []byte {
	if n := len(lin); n > 0 && lin[n-1] == '\n' {
		lin = lin[:n-1]
	}

	if n := len(lin); n > 0 && lin[n-1] == '\r' {
		lin = lin[:n-1]
	}

	return lin
}

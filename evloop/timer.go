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

import "time"

type timerSource struct {
	lop *loop
	per time.Duration
	dln time.Time
	idx int
	act bool
	gen uint64
	fct FuncTimerEvent
}

func (o *timerSource) Set(period time.Duration) {
	o.lop.m.Lock()
	defer o.lop.m.Unlock()

	if !o.act {
		o.per = period
	}
}

func (o *timerSource) IsActive() bool {
	o.lop.m.Lock()
	defer o.lop.m.Unlock()
	return o.act
}

func (o *timerSource) Start() {
	o.lop.m.Lock()
	if o.act || o.per <= 0 {
		o.lop.m.Unlock()
		return
	}
	p := o.per
	o.lop.m.Unlock()

	o.lop.timerStart(o, time.Now().Add(p))
	o.lop.Wake()
}

func (o *timerSource) Again() {
	o.lop.m.Lock()
	p := o.per
	o.lop.m.Unlock()

	if p <= 0 {
		return
	}

	o.lop.timerStart(o, time.Now().Add(p))
	o.lop.Wake()
}

func (o *timerSource) Stop() {
	o.lop.m.Lock()
	if !o.act {
		o.lop.m.Unlock()
		return
	}
	o.gen++
	o.lop.m.Unlock()

	o.lop.timerStop(o)
}

// timerHeap orders armed timers by deadline. It keeps each entry's position
// in idx so Stop and Again can fix or remove in place.
type timerHeap []*timerSource

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool { return h[i].dln.Before(h[j].dln) }

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].idx = i
	h[j].idx = j
}

func (h *timerHeap) Push(x any) {
	s := x.(*timerSource)
	s.idx = len(*h)
	*h = append(*h, s)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	s.idx = -1
	*h = old[:n-1]
	return s
}

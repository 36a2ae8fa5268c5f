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

import (
	"container/heap"
	"context"
	"encoding/binary"
	"sync"
	"time"

	libatm "github.com/nabbar/golib/atomic"
	liberr "github.com/nabbar/golib/errors"
	"golang.org/x/sys/unix"
)

const sizeEventBatch = 128

type loop struct {
	m sync.Mutex

	pfd int // epoll instance
	wfd int // wakeup eventfd

	seq uint64
	ios map[uint64]*ioSource // source table, keyed by stable token
	fds map[int][]uint64     // active tokens per watched fd
	msk map[int]uint32       // current epoll interest per registered fd
	tmr timerHeap

	run libatm.Value[bool]
	stp libatm.Value[bool]
	cls libatm.Value[bool]
}

// New creates an idle loop. The caller owns it and must Close it.
func New() (Loop, liberr.Error) {
	p, e := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if e != nil {
		return nil, ErrorLoopCreate.Error(e)
	}

	w, e := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if e != nil {
		_ = unix.Close(p)
		return nil, ErrorLoopCreate.Error(e)
	}

	if e = unix.EpollCtl(p, unix.EPOLL_CTL_ADD, w, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(w),
	}); e != nil {
		_ = unix.Close(w)
		_ = unix.Close(p)
		return nil, ErrorLoopCreate.Error(e)
	}

	o := &loop{
		pfd: p,
		wfd: w,
		ios: make(map[uint64]*ioSource),
		fds: make(map[int][]uint64),
		msk: make(map[int]uint32),
		run: libatm.NewValue[bool](),
		stp: libatm.NewValue[bool](),
		cls: libatm.NewValue[bool](),
	}

	heap.Init(&o.tmr)
	return o, nil
}

func (o *loop) IsRunning() bool {
	return o.run.Load()
}

func (o *loop) Stop() {
	o.stp.Store(true)
	o.Wake()
}

func (o *loop) Wake() {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], 1)
	_, _ = unix.Write(o.wfd, b[:])
}

func (o *loop) Close() error {
	if o.cls.Load() {
		return nil
	}

	o.cls.Store(true)
	o.Stop()

	o.m.Lock()
	defer o.m.Unlock()

	if e := unix.Close(o.wfd); e != nil {
		return e
	}

	return unix.Close(o.pfd)
}

func (o *loop) NewIO(fct FuncIOEvent) IOSource {
	o.m.Lock()
	defer o.m.Unlock()

	o.seq++
	s := &ioSource{
		tok: o.seq,
		lop: o,
		fd:  -1,
		fct: fct,
	}

	o.ios[s.tok] = s
	return s
}

func (o *loop) NewTimer(fct FuncTimerEvent) TimerSource {
	return &timerSource{
		lop: o,
		idx: -1,
		fct: fct,
	}
}

func (o *loop) Run(ctx context.Context) liberr.Error {
	if o.cls.Load() {
		return ErrorLoopClosed.Error(nil)
	} else if !o.run.CompareAndSwap(false, true) {
		return ErrorLoopRunning.Error(nil)
	}

	defer o.run.Store(false)
	o.stp.Store(false)

	if ctx == nil {
		ctx = context.Background()
	}

	chn := make(chan struct{})
	defer close(chn)

	go func() {
		select {
		case <-ctx.Done():
			o.Stop()
		case <-chn:
		}
	}()

	var evt [sizeEventBatch]unix.EpollEvent

	for {
		if o.stp.Load() {
			return nil
		}

		n, e := unix.EpollWait(o.pfd, evt[:], o.waitTimeout())

		if e == unix.EINTR {
			continue
		} else if e != nil {
			if o.cls.Load() {
				return nil
			}
			return ErrorLoopWait.Error(e)
		}

		o.fireTimers(time.Now())

		for i := 0; i < n; i++ {
			fd := int(evt[i].Fd)

			if fd == o.wfd {
				o.drainWake()
				continue
			}

			o.fireIO(fd, evt[i].Events)
		}
	}
}

func (o *loop) drainWake() {
	var b [8]byte
	_, _ = unix.Read(o.wfd, b[:])
}

// waitTimeout returns the epoll timeout in milliseconds to the earliest
// armed timer deadline, or -1 when no timer is armed.
func (o *loop) waitTimeout() int {
	o.m.Lock()
	defer o.m.Unlock()

	if o.tmr.Len() < 1 {
		return -1
	}

	d := time.Until(o.tmr[0].dln)
	if d < 0 {
		return 0
	}

	// round up so a deadline is never polled before it elapses
	return int((d + time.Millisecond - 1) / time.Millisecond)
}

func (o *loop) fireTimers(now time.Time) {
	type fired struct {
		src *timerSource
		gen uint64
	}

	var due []fired

	o.m.Lock()
	for o.tmr.Len() > 0 && !o.tmr[0].dln.After(now) {
		t := heap.Pop(&o.tmr).(*timerSource)
		if t.per > 0 {
			t.dln = now.Add(t.per)
			heap.Push(&o.tmr, t)
		} else {
			t.act = false
		}
		due = append(due, fired{src: t, gen: t.gen})
	}
	o.m.Unlock()

	for _, f := range due {
		if f.src.fct == nil {
			continue
		}

		// a source stopped by an earlier callback of this batch is dropped
		o.m.Lock()
		ok := f.src.gen == f.gen
		o.m.Unlock()

		if ok {
			f.src.fct()
		}
	}
}

func (o *loop) fireIO(fd int, events uint32) {
	o.m.Lock()
	lst := make([]uint64, len(o.fds[fd]))
	copy(lst, o.fds[fd])
	o.m.Unlock()

	r := Ready{
		Readable: events&unix.EPOLLIN != 0,
		Writable: events&unix.EPOLLOUT != 0,
		Failed:   events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
	}

	for _, tok := range lst {
		o.m.Lock()
		s := o.ios[tok]

		if s == nil || !s.act || s.fd != fd {
			o.m.Unlock()
			continue
		}

		w := s.wnt
		o.m.Unlock()

		if r.Failed || (r.Readable && w&WantRead != 0) || (r.Writable && w&WantWrite != 0) {
			if s.fct != nil {
				s.fct(r)
			}
		}
	}
}

// attach records src as active on its fd and updates the epoll interest.
// Caller must not hold the loop lock.
func (o *loop) attach(src *ioSource) {
	o.m.Lock()
	defer o.m.Unlock()

	for _, tok := range o.fds[src.fd] {
		if tok == src.tok {
			return
		}
	}

	o.fds[src.fd] = append(o.fds[src.fd], src.tok)
	o.applyFd(src.fd)
}

// detach removes src from its fd and updates the epoll interest.
func (o *loop) detach(src *ioSource) {
	o.m.Lock()
	defer o.m.Unlock()

	lst := o.fds[src.fd]
	for i, tok := range lst {
		if tok == src.tok {
			o.fds[src.fd] = append(lst[:i], lst[i+1:]...)
			break
		}
	}

	if len(o.fds[src.fd]) < 1 {
		delete(o.fds, src.fd)
	}

	o.applyFd(src.fd)
}

// applyFd synchronizes the epoll registration of fd with the union of the
// interests of its active sources. Caller holds the loop lock. Control
// errors on a descriptor closed by the embedder are ignored: the kernel
// already dropped the registration.
func (o *loop) applyFd(fd int) {
	var msk uint32

	for _, tok := range o.fds[fd] {
		s := o.ios[tok]
		if s == nil {
			continue
		}

		if s.wnt&WantRead != 0 {
			msk |= unix.EPOLLIN
		}
		if s.wnt&WantWrite != 0 {
			msk |= unix.EPOLLOUT
		}
	}

	cur, reg := o.msk[fd]

	switch {
	case msk == 0 && reg:
		delete(o.msk, fd)
		_ = unix.EpollCtl(o.pfd, unix.EPOLL_CTL_DEL, fd, nil)

	case msk != 0 && !reg:
		o.msk[fd] = msk
		_ = unix.EpollCtl(o.pfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
			Events: msk,
			Fd:     int32(fd),
		})

	case msk != 0 && reg && msk != cur:
		o.msk[fd] = msk
		_ = unix.EpollCtl(o.pfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
			Events: msk,
			Fd:     int32(fd),
		})
	}
}

func (o *loop) timerStart(t *timerSource, dln time.Time) {
	o.m.Lock()
	defer o.m.Unlock()

	t.dln = dln

	if t.idx >= 0 {
		heap.Fix(&o.tmr, t.idx)
	} else {
		heap.Push(&o.tmr, t)
	}

	t.act = true
}

func (o *loop) timerStop(t *timerSource) {
	o.m.Lock()
	defer o.m.Unlock()

	if t.idx >= 0 {
		heap.Remove(&o.tmr, t.idx)
	}

	t.act = false
}

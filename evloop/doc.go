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

// Package evloop provides a single-threaded cooperative event loop multiplexing
// I/O readiness and timer expiry over one epoll instance.
//
// # Overview
//
// A Loop owns an epoll file descriptor and a wakeup eventfd, and drives any
// number of event sources from one goroutine. Sources come in two kinds:
// IOSource, firing when a file descriptor becomes readable or writable, and
// TimerSource, firing when a relative deadline elapses. Source callbacks run
// to completion on the loop goroutine; the loop never spawns goroutines on
// behalf of a source and never blocks inside a callback.
//
// # Design
//
// Sources are registered in a per-loop table under stable numeric tokens.
// The epoll payload carries only the file descriptor; dispatch resolves the
// interested sources through the table, so no source holds a raw pointer
// back into kernel-owned data. Several sources may watch the same file
// descriptor with different polarities: the loop maintains the union of
// their interests and adjusts the epoll registration as sources start and
// stop.
//
// Error conditions reported by the kernel (EPOLLERR, EPOLLHUP) are delivered
// through an independent flag of the readiness notification, never folded
// into the readable or writable direction.
//
// Timer expiry uses a monotonic min-heap; the epoll wait timeout is the
// distance to the earliest armed deadline. A periodic timer re-arms itself
// on expiry; Again re-arms the full period from now, mirroring the keep
// alive usage of connection idle timers.
//
// Arming and disarming a source from within any callback is the expected
// mode of operation. Once Stop on a source returns, its callback does not
// fire again, including for events already harvested in the current
// iteration.
package evloop

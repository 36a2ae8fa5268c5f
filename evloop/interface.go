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

package evloop

import (
	"context"
	"time"

	liberr "github.com/nabbar/golib/errors"
)

// Want is the readiness polarity an IOSource is armed for.
type Want uint8

const (
	WantRead Want = 1 << iota
	WantWrite
)

// Ready describes one readiness notification. Readable and Writable report
// direction; Failed reports an error condition on the descriptor and is
// independent of direction.
type Ready struct {
	Readable bool
	Writable bool
	Failed   bool
}

type FuncIOEvent func(r Ready)
type FuncTimerEvent func()

// IOSource is a registration for readiness of one file descriptor.
// A source fires only while started; Set may not be called on a started
// source.
type IOSource interface {
	// Set binds the source to a file descriptor with the wanted polarity.
	Set(fd int, want Want)

	// Fd returns the bound file descriptor, or -1 when unset.
	Fd() int

	// Want returns the armed polarity.
	Want() Want

	// Start arms the source on the loop.
	Start()

	// Stop disarms the source. After Stop returns the callback will not be
	// invoked again until the next Start.
	Stop()

	// Release stops the source and drops it from the loop table. The
	// source is unusable afterwards.
	Release()

	IsActive() bool
}

// TimerSource is a relative periodic timer. After expiry a timer with a non
// zero period is re-armed for another full period before its callback runs.
type TimerSource interface {
	// Set defines the timer period. May not be called on a started timer.
	Set(period time.Duration)

	Start()

	// Again re-arms the timer for a full period from now, starting it if
	// needed.
	Again()

	Stop()

	IsActive() bool
}

// Loop drives all registered sources from a single goroutine, the one
// calling Run. Source management is safe from any goroutine, including from
// source callbacks.
type Loop interface {
	// Run blocks and dispatches events until Stop, Close or context
	// cancellation. Only one Run may be active at a time.
	Run(ctx context.Context) liberr.Error

	// Stop makes the active Run return after the current iteration.
	Stop()

	// Wake forces the active Run out of its wait state.
	Wake()

	IsRunning() bool

	// NewIO creates an unarmed IO source dispatching to fct.
	NewIO(fct FuncIOEvent) IOSource

	// NewTimer creates an unarmed timer source dispatching to fct.
	NewTimer(fct FuncTimerEvent) TimerSource

	// Close stops the loop and releases its kernel resources. The loop is
	// unusable afterwards.
	Close() error
}

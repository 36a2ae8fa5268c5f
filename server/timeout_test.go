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

// timeout_test.go exercises the idle timer: close on expiry with no
// callback, the veto protocol restarting the full period, and the timer
// refresh on traffic.
package server_test

import (
	"time"

	libdur "github.com/nabbar/golib/duration"

	scksrv "github.com/nabbar/evhttp/server"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Idle Timeout", func() {
	var (
		lop cleanupLoop
		emb *embedder
		srv scksrv.Server
		prt int
	)

	BeforeEach(func() {
		lop.start()
		emb = newEmbedder()
		emb.timeout = libdur.ParseDuration(100 * time.Millisecond)
	})

	JustBeforeEach(func() {
		var err error
		srv, err = scksrv.New(lop.l, scksrv.Config{})
		Expect(err).ToNot(HaveOccurred())
		srv.RegisterFuncNewConnection(emb.factory)

		prt = getFreePort()
		_, lerr := srv.Listen(prt)
		Expect(lerr).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		if srv != nil {
			_ = srv.Close()
		}
		lop.stop()
	})

	Context("without a timeout callback", func() {
		It("should close the idle connection after the period", func() {
			con := dialServer(prt)
			defer func() { _ = con.Close() }()

			Eventually(srv.OpenConnections, 2*time.Second, 10*time.Millisecond).Should(Equal(int64(1)))

			// no traffic: the idle period elapses and the engine closes
			Eventually(emb.closed.Load, 2*time.Second, 10*time.Millisecond).Should(Equal(int32(1)))
			Eventually(emb.freed.Load, 2*time.Second, 10*time.Millisecond).Should(Equal(int32(1)))

			got := readAll(con, time.Second)
			Expect(got).To(BeEmpty())
		})
	})

	Context("with a vetoing callback", func() {
		BeforeEach(func() {
			emb.onTimeout = func(_ scksrv.Connection) scksrv.TimeoutAction {
				if emb.timedout.Load() <= 1 {
					return scksrv.TimeoutAgain
				}
				return scksrv.TimeoutStop
			}
		})

		It("should restart the period on veto and close on stop", func() {
			stt := time.Now()

			con := dialServer(prt)
			defer func() { _ = con.Close() }()

			Eventually(emb.closed.Load, 3*time.Second, 10*time.Millisecond).Should(Equal(int32(1)))

			// first expiry vetoed, second one closed: two consultations,
			// at least two full periods elapsed
			Expect(emb.timedout.Load()).To(Equal(int32(2)))
			Expect(time.Since(stt)).To(BeNumerically(">=", 200*time.Millisecond))
		})
	})

	Context("with traffic", func() {
		It("should refresh the period on byte movement", func() {
			con := dialServer(prt)
			defer func() { _ = con.Close() }()

			Eventually(srv.OpenConnections, 2*time.Second, 10*time.Millisecond).Should(Equal(int64(1)))

			// keep the connection busy across several idle periods with an
			// unfinished header section
			_, e := con.Write([]byte("GET / HTTP/1.1\r\n"))
			Expect(e).ToNot(HaveOccurred())

			for range [5]int{} {
				time.Sleep(60 * time.Millisecond)
				_, e = con.Write([]byte("X-Idle: refresh\r\n"))
				Expect(e).ToNot(HaveOccurred())
			}

			Expect(emb.closed.Load()).To(Equal(int32(0)))

			// silence lets it expire
			Eventually(emb.closed.Load, 2*time.Second, 10*time.Millisecond).Should(Equal(int32(1)))
		})
	})
})

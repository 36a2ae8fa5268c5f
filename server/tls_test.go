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

// tls_test.go drives the secure connection path with scripted sessions:
// handshake direction flips, the hold-then-drain of a write submitted
// during the handshake, session teardown on close, and rejection of the
// socket when the session factory fails.
package server_test

import (
	"sync/atomic"
	"time"

	sckbuf "github.com/nabbar/evhttp/buffer"
	sckscr "github.com/nabbar/evhttp/secure"
	scksrv "github.com/nabbar/evhttp/server"
	scktrp "github.com/nabbar/evhttp/transport"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Secure Connection Path", func() {
	var (
		lop cleanupLoop
		emb *embedder
		srv scksrv.Server
		prt int
	)

	BeforeEach(func() {
		lop.start()
		emb = newEmbedder()
		emb.respond = []byte(rspHello)
		emb.closeAfterWrite = true
	})

	AfterEach(func() {
		if srv != nil {
			_ = srv.Close()
		}
		lop.stop()
	})

	listenWith := func(fct sckscr.FuncSession) {
		var err error
		srv, err = scksrv.NewSecure(lop.l, scksrv.Config{}, dummyCreds{}, fct)
		Expect(err).ToNot(HaveOccurred())
		srv.RegisterFuncNewConnection(emb.factory)

		prt = getFreePort()
		_, lerr := srv.Listen(prt)
		Expect(lerr).ToNot(HaveOccurred())
	}

	Context("handshake direction flips", func() {
		It("should follow write then read demands before completing", func() {
			var ses atomic.Pointer[scriptSession]

			listenWith(func(fd int, _ sckscr.Credentials) (scktrp.Session, error) {
				s := newScriptSession(fd, []scktrp.Direction{scktrp.NeedWrite, scktrp.NeedRead}, 0)
				ses.Store(s)
				return s, nil
			})

			con := dialServer(prt)
			defer func() { _ = con.Close() }()

			// the need-read step holds until the client sends bytes; the
			// request doubles as the readiness trigger
			_, e := con.Write([]byte(reqHello))
			Expect(e).ToNot(HaveOccurred())

			got := readAll(con, 2*time.Second)
			Expect(string(got)).To(Equal(rspHello))

			s := ses.Load()
			Expect(s).ToNot(BeNil())

			// one step per demanded direction plus the completing one
			Expect(s.hsSteps.Load()).To(Equal(int32(3)))
			Expect(s.hsDone.Load()).To(BeTrue())
		})

		It("should not pull bytes from the record layer during the handshake", func() {
			var ses atomic.Pointer[scriptSession]

			listenWith(func(fd int, _ sckscr.Credentials) (scktrp.Session, error) {
				s := newScriptSession(fd, []scktrp.Direction{scktrp.NeedRead}, 0)
				s.onStep = func(_ int) {
					// the read and write paths never ran before this point
					Expect(s.rcvSeen.Load()).To(Equal(int32(0)))
				}
				ses.Store(s)
				return s, nil
			})

			con := dialServer(prt)
			defer func() { _ = con.Close() }()

			_, e := con.Write([]byte(reqHello))
			Expect(e).ToNot(HaveOccurred())

			got := readAll(con, 2*time.Second)
			Expect(string(got)).To(Equal(rspHello))

			Expect(ses.Load().rcvSeen.Load()).To(BeNumerically(">=", 1))
		})
	})

	Context("write during handshake", func() {
		It("should hold the buffer and drain it right after completion", func() {
			var (
				acc atomic.Bool
				rls atomic.Int32
			)

			pay := []byte("early bird")

			listenWith(func(fd int, _ sckscr.Credentials) (scktrp.Session, error) {
				s := newScriptSession(fd, []scktrp.Direction{scktrp.NeedRead}, 0)
				s.onStep = func(n int) {
					if n != 1 {
						return
					}

					// queue an outbound buffer while still handshaking
					c := emb.connAt(0)
					Expect(c).ToNot(BeNil())

					acc.Store(c.Write(sckbuf.NewRelease(pay, func(_ *sckbuf.Buffer) {
						rls.Add(1)
					})))
				}
				return s, nil
			})

			// no reply on message completion: the held buffer is the reply
			emb.respond = nil
			emb.closeAfterWrite = false

			con := dialServer(prt)
			defer func() { _ = con.Close() }()

			_, e := con.Write([]byte(reqHello))
			Expect(e).ToNot(HaveOccurred())

			got := readLen(con, len(pay), 2*time.Second)
			Expect(got).To(Equal(pay))

			Expect(acc.Load()).To(BeTrue())
			Eventually(rls.Load, 2*time.Second, 10*time.Millisecond).Should(Equal(int32(1)))
		})
	})

	Context("session lifecycle", func() {
		It("should close the session with the connection", func() {
			var ses atomic.Pointer[scriptSession]

			listenWith(func(fd int, _ sckscr.Credentials) (scktrp.Session, error) {
				s := newScriptSession(fd, nil, 0)
				ses.Store(s)
				return s, nil
			})

			con := dialServer(prt)
			defer func() { _ = con.Close() }()

			_, e := con.Write([]byte(reqHello))
			Expect(e).ToNot(HaveOccurred())

			_ = readAll(con, 2*time.Second)

			Eventually(emb.closed.Load, 2*time.Second, 10*time.Millisecond).Should(Equal(int32(1)))
			Eventually(func() int32 {
				return ses.Load().closed.Load()
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(int32(1)))
		})

		It("should reject the socket when the factory fails", func() {
			listenWith(func(_ int, _ sckscr.Credentials) (scktrp.Session, error) {
				return nil, scktrp.ErrClosed
			})

			con := dialServer(prt)
			defer func() { _ = con.Close() }()

			got := readAll(con, 2*time.Second)
			Expect(got).To(BeEmpty())
			Expect(srv.OpenConnections()).To(Equal(int64(0)))
			Expect(srv.IsListening()).To(BeTrue())
		})
	})
})

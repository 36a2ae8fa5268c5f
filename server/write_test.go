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

// write_test.go covers the single-slot write contract: serialization of
// submissions while a buffer is in flight, full drain of a large buffer
// across many partial sends, and the exactly-once release of the drained
// buffer.
package server_test

import (
	"bytes"
	"sync/atomic"
	"time"

	sckbuf "github.com/nabbar/evhttp/buffer"
	scksrv "github.com/nabbar/evhttp/server"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Connection Write", func() {
	var (
		lop cleanupLoop
		emb *embedder
		srv scksrv.Server
		prt int
	)

	BeforeEach(func() {
		lop.start()
		emb = newEmbedder()
	})

	AfterEach(func() {
		if srv != nil {
			_ = srv.Close()
		}
		lop.stop()
	})

	Context("write serialization", func() {
		It("should refuse a second submission while one is in flight", func() {
			var (
				first  atomic.Bool
				second atomic.Bool
			)

			pay := bytes.Repeat([]byte("a"), 256*1024)

			emb.onMessage = func(c scksrv.Connection) {
				first.Store(c.Write(sckbuf.New(pay)))
				second.Store(c.Write(sckbuf.New([]byte("late"))))
			}

			var err error
			srv, err = scksrv.New(lop.l, scksrv.Config{})
			Expect(err).ToNot(HaveOccurred())
			srv.RegisterFuncNewConnection(emb.factory)

			prt = getFreePort()
			_, lerr := srv.Listen(prt)
			Expect(lerr).ToNot(HaveOccurred())

			con := dialServer(prt)
			defer func() { _ = con.Close() }()

			_, e := con.Write([]byte(reqHello))
			Expect(e).ToNot(HaveOccurred())

			got := readLen(con, len(pay), 5*time.Second)

			Expect(first.Load()).To(BeTrue())
			Expect(second.Load()).To(BeFalse())

			// the in-flight buffer was not perturbed by the refusal
			Expect(got).To(Equal(pay))
		})
	})

	Context("partial drain", func() {
		It("should advance across capped sends until the release fires once", func() {
			pay := bytes.Repeat([]byte("x"), 1024*1024)
			rls := &atomic.Int32{}

			emb.onMessage = func(c scksrv.Connection) {
				ok := c.Write(sckbuf.NewRelease(pay, func(b *sckbuf.Buffer) {
					rls.Add(1)

					// the cursor reached the region length exactly
					Expect(b.Done()).To(BeTrue())
					Expect(b.Written()).To(Equal(len(pay)))

					c.Close()
				}))
				Expect(ok).To(BeTrue())
			}

			var err error
			srv, err = scksrv.NewSecure(lop.l, scksrv.Config{}, dummyCreds{}, cappedFactory(4096))
			Expect(err).ToNot(HaveOccurred())
			srv.RegisterFuncNewConnection(emb.factory)

			prt = getFreePort()
			_, lerr := srv.Listen(prt)
			Expect(lerr).ToNot(HaveOccurred())

			con := dialServer(prt)
			defer func() { _ = con.Close() }()

			_, e := con.Write([]byte(reqHello))
			Expect(e).ToNot(HaveOccurred())

			got := readLen(con, len(pay), 10*time.Second)
			Expect(bytes.Equal(got, pay)).To(BeTrue())

			Eventually(rls.Load, 2*time.Second, 10*time.Millisecond).Should(Equal(int32(1)))
			Consistently(rls.Load, 200*time.Millisecond, 20*time.Millisecond).Should(Equal(int32(1)))

			Eventually(emb.closed.Load, 2*time.Second, 10*time.Millisecond).Should(Equal(int32(1)))
		})
	})

	Context("close with a buffer in flight", func() {
		It("should release the caught buffer exactly once", func() {
			rls := &atomic.Int32{}
			pay := bytes.Repeat([]byte("y"), 4*1024*1024)

			emb.onMessage = func(c scksrv.Connection) {
				_ = c.Write(sckbuf.NewRelease(pay, func(_ *sckbuf.Buffer) {
					rls.Add(1)
				}))

				// closing right away catches the buffer in flight
				c.Close()
			}

			var err error
			srv, err = scksrv.New(lop.l, scksrv.Config{})
			Expect(err).ToNot(HaveOccurred())
			srv.RegisterFuncNewConnection(emb.factory)

			prt = getFreePort()
			_, lerr := srv.Listen(prt)
			Expect(lerr).ToNot(HaveOccurred())

			con := dialServer(prt)
			defer func() { _ = con.Close() }()

			_, e := con.Write([]byte(reqHello))
			Expect(e).ToNot(HaveOccurred())

			Eventually(rls.Load, 2*time.Second, 10*time.Millisecond).Should(Equal(int32(1)))
			Eventually(emb.closed.Load, 2*time.Second, 10*time.Millisecond).Should(Equal(int32(1)))
		})
	})
})

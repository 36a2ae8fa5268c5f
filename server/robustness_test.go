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

// robustness_test.go covers the failure edges: malformed requests dropped
// without any outbound byte, peer disconnect teardown, close idempotency
// from embedder callbacks, and back-pressure from the buffer provider.
package server_test

import (
	"time"

	sckbuf "github.com/nabbar/evhttp/buffer"
	scksrv "github.com/nabbar/evhttp/server"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// emptyProvider refuses every region request.
type emptyProvider struct{}

func (emptyProvider) Get() *sckbuf.Buffer  { return nil }
func (emptyProvider) Put(_ *sckbuf.Buffer) {}

var _ = Describe("Server Robustness", func() {
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

	Context("malformed request", func() {
		It("should drop the client without sending a byte", func() {
			con := dialServer(prt)
			defer func() { _ = con.Close() }()

			_, e := con.Write([]byte("total garbage\r\n\r\n"))
			Expect(e).ToNot(HaveOccurred())

			got := readAll(con, 2*time.Second)
			Expect(got).To(BeEmpty())

			Eventually(emb.closed.Load, 2*time.Second, 10*time.Millisecond).Should(Equal(int32(1)))
			Eventually(emb.freed.Load, 2*time.Second, 10*time.Millisecond).Should(Equal(int32(1)))
			Expect(emb.messages.Load()).To(Equal(int32(0)))
			Expect(emb.written.Load()).To(Equal(int32(0)))
		})
	})

	Context("peer disconnect", func() {
		It("should tear the connection down on end of stream", func() {
			con := dialServer(prt)

			Eventually(srv.OpenConnections, 2*time.Second, 10*time.Millisecond).Should(Equal(int64(1)))

			_ = con.Close()

			Eventually(srv.OpenConnections, 2*time.Second, 10*time.Millisecond).Should(Equal(int64(0)))
			Eventually(emb.closed.Load, 2*time.Second, 10*time.Millisecond).Should(Equal(int32(1)))
			Eventually(emb.freed.Load, 2*time.Second, 10*time.Millisecond).Should(Equal(int32(1)))
		})
	})

	Context("close idempotency", func() {
		It("should notify once for repeated closes", func() {
			emb.respond = nil
			emb.closeAfterWrite = false

			emb.onMessage = func(c scksrv.Connection) {
				c.Close()
				c.Close()
				c.Close()
			}

			con := dialServer(prt)
			defer func() { _ = con.Close() }()

			_, e := con.Write([]byte(reqHello))
			Expect(e).ToNot(HaveOccurred())

			Eventually(emb.closed.Load, 2*time.Second, 10*time.Millisecond).Should(Equal(int32(1)))
			Eventually(emb.freed.Load, 2*time.Second, 10*time.Millisecond).Should(Equal(int32(1)))
			Consistently(emb.closed.Load, 200*time.Millisecond, 20*time.Millisecond).Should(Equal(int32(1)))
		})
	})

	Context("provider back-pressure", func() {
		It("should treat a refused region as connection-fatal", func() {
			emb.onFactory = func(c scksrv.Connection) {
				c.RegisterProvider(emptyProvider{})
			}

			con := dialServer(prt)
			defer func() { _ = con.Close() }()

			_, e := con.Write([]byte(reqHello))
			Expect(e).ToNot(HaveOccurred())

			got := readAll(con, 2*time.Second)
			Expect(got).To(BeEmpty())

			Eventually(emb.closed.Load, 2*time.Second, 10*time.Millisecond).Should(Equal(int32(1)))
			Expect(srv.IsListening()).To(BeTrue())
		})
	})
})

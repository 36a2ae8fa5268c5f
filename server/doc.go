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

// Package server is the connection lifecycle engine of an embeddable
// event-driven HTTP/1.x server: a non-blocking acceptor and a
// per-connection I/O state machine multiplexed on a single event loop.
//
// # Overview
//
// A Server owns one listening socket whose readiness is an event source on
// the loop. Each firing accepts at most one socket and asks the embedder's
// connection factory for a Connection; the engine then wires the socket,
// the transport (raw or encrypted session), the inbound buffer provider
// and the request parser into it, and arms its event sources.
//
// A Connection coordinates four independent event sources for the life of
// the socket: read readiness, write readiness, handshake progress (secure
// servers) and the idle timer. While the connection is open, exactly one
// of the handshake and read sources is armed; the write source is armed
// when the single outbound buffer slot is occupied, except while a
// handshake holds a buffer submitted before its completion and while a
// secure record write waits for readability, and it is also armed with an
// empty slot while a secure record read waits for writability; the idle
// timer is armed from accept to close.
//
// # Data flow
//
// Bytes arrive on the socket, the transport delivers plaintext into a
// region obtained from the buffer provider, the region is fed verbatim to
// the request parser, and parser events reach the embedder. The embedder
// answers by handing one outbound buffer to Write; the engine drains it
// across write readiness firings and releases it when the cursor reaches
// the end.
//
// # Policy boundaries
//
// The engine owns no request handling policy and generates no responses.
// A parse error, a peer disconnect, a transport-fatal error or a buffer
// provider refusal all collapse to closing the connection without peer
// notification. Flow control beyond the single outbound slot belongs to
// the embedder, as does connection storage: the factory decides whether a
// socket is accepted, and the free hook is the engine's last observable
// action on a closed connection.
//
// # Threading
//
// Everything runs on the loop goroutine: acceptor, state machine and every
// embedder callback. Callbacks may freely call Close and Write on their
// connection; the engine re-examines state when the callback returns. No
// engine call blocks, and suspension happens only between event firings.
package server

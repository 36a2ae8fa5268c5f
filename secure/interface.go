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

// Package secure holds the credential material of a secure server and the
// factory surface through which the connection engine obtains encrypted
// sessions.
//
// The engine never constructs record layers itself: a secure server is
// given Credentials (a PEM certificate and private key pair) and a
// FuncSession factory producing a transport.Session per accepted
// descriptor. Credential loading failures are configuration errors
// surfaced to the lifecycle caller, never recovered inside the engine.
package secure

import (
	"crypto/tls"

	libtls "github.com/nabbar/golib/certificates"
	liberr "github.com/nabbar/golib/errors"

	"github.com/nabbar/evhttp/transport"
)

// Credentials is loaded certificate material for a secure server.
type Credentials interface {
	// Store exposes the underlying certificate store.
	Store() libtls.TLSConfig

	// TLS assembles a server-side TLS configuration from the store.
	TLS(serverName string) *tls.Config
}

// FuncSession builds the encrypted session over one accepted descriptor.
// The returned session must operate non-blocking: transient non-readiness
// surfaces as transport.ErrWouldBlock with a direction hint.
type FuncSession func(fd int, cred Credentials) (transport.Session, error)

// New loads a PEM encoded certificate and private key pair from files.
func New(certFile, keyFile string) (Credentials, liberr.Error) {
	if len(certFile) < 1 || len(keyFile) < 1 {
		return nil, ErrorParamEmpty.Error(nil)
	}

	s := libtls.New()

	if e := s.AddCertificatePairFile(keyFile, certFile); e != nil {
		return nil, ErrorCertificateLoad.Error(e)
	}

	return &creds{str: s}, nil
}

// NewPEM loads a certificate and private key pair from in-memory PEM.
func NewPEM(certPem, keyPem string) (Credentials, liberr.Error) {
	if len(certPem) < 1 || len(keyPem) < 1 {
		return nil, ErrorParamEmpty.Error(nil)
	}

	s := libtls.New()

	if e := s.AddCertificatePairString(keyPem, certPem); e != nil {
		return nil, ErrorCertificateLoad.Error(e)
	}

	return &creds{str: s}, nil
}

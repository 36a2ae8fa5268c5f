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

package server

import (
	"context"
	"fmt"
	"time"

	libval "github.com/go-playground/validator/v10"
	libdur "github.com/nabbar/golib/duration"
	liberr "github.com/nabbar/golib/errors"
	montps "github.com/nabbar/golib/monitor/types"
	libsiz "github.com/nabbar/golib/size"
)

const (
	// DefaultBacklog is the depth passed to listen.
	DefaultBacklog = 1024

	// DefaultTimeout is the idle period armed on accepted connections when
	// neither NewConnection nor Config.Timeout gives one.
	DefaultTimeout = libdur.Duration(30 * time.Second)
)

type Config struct {
	getParentContext func() context.Context

	// Timeout is the idle period of accepted connections whose
	// NewConnection period is zero. Any successful byte movement re-arms
	// it in full; on expiry the connection timeout callback is consulted
	// before close.
	Timeout libdur.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout" toml:"timeout"`

	// BufferSize is the inbound region size served by the default buffer
	// provider. Zero means one maximal TCP window.
	BufferSize libsiz.Size `mapstructure:"bufferSize" json:"bufferSize" yaml:"bufferSize" toml:"bufferSize"`

	// Backlog is the listen queue depth, bounded by the design constant
	// DefaultBacklog which is also the zero-value default.
	Backlog int `mapstructure:"backlog" json:"backlog" yaml:"backlog" toml:"backlog" validate:"gte=0,lte=1024"`

	// Monitor is the health monitoring configuration of this server.
	Monitor montps.Config `mapstructure:"monitor" json:"monitor" yaml:"monitor" toml:"monitor"`
}

// RegisterContext installs the parent context used by the monitor stack.
func (c *Config) RegisterContext(f func() context.Context) {
	c.getParentContext = f
}

func (c *Config) context() context.Context {
	if c.getParentContext != nil {
		if x := c.getParentContext(); x != nil {
			return x
		}
	}

	return context.Background()
}

func (c *Config) Clone() Config {
	return Config{
		getParentContext: c.getParentContext,
		Timeout:          c.Timeout,
		BufferSize:       c.BufferSize,
		Backlog:          c.Backlog,
		Monitor:          c.Monitor,
	}
}

func (c *Config) Validate() liberr.Error {
	err := ErrorValidatorError.Error(nil)

	if er := libval.New().Struct(c); er != nil {
		if e, ok := er.(*libval.InvalidValidationError); ok {
			err.Add(e)
		}

		for _, e := range er.(libval.ValidationErrors) {
			//nolint goerr113
			err.Add(fmt.Errorf("config field '%s' is not validated by constraint '%s'", e.StructNamespace(), e.ActualTag()))
		}
	}

	if err.HasParent() {
		return err
	}

	return nil
}

// timeout returns the effective idle period.
func (c *Config) timeout() libdur.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}

	return DefaultTimeout
}

// backlog returns the effective listen depth.
func (c *Config) backlog() int {
	if c.Backlog > 0 {
		return c.Backlog
	}

	return DefaultBacklog
}

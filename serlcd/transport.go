// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package serlcd

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
)

// ErrLatched is returned for writes suppressed because an earlier write
// failed while error latching is enabled.
var ErrLatched = errors.New("serlcd: transmission latched after bus error")

// Bus is the addressed write primitive frames are sent through.
//
// repeat requests that the transaction is continued (no STOP condition).
// Implementations that cannot do that may ignore it.
type Bus interface {
	Write(addr uint16, p []byte, repeat bool) error
}

// BusFunc adapts a plain function to Bus.
type BusFunc func(addr uint16, p []byte, repeat bool) error

// Write implements Bus.
func (f BusFunc) Write(addr uint16, p []byte, repeat bool) error {
	return f(addr, p, repeat)
}

// I2C returns a Bus writing through a periph I²C bus. Every Tx ends with a
// STOP condition so repeat is ignored.
func I2C(b i2c.Bus) Bus {
	return &i2cBus{b: b}
}

type i2cBus struct {
	b i2c.Bus
}

func (p *i2cBus) Write(addr uint16, w []byte, _ bool) error {
	return p.b.Tx(addr, w, nil)
}

func (p *i2cBus) String() string {
	return p.b.String()
}

// Transport performs addressed writes and keeps the outcome of the last one.
//
// With latching enabled, the first failure freezes the result and all
// further writes are skipped until Reset is called.
type Transport struct {
	mu    sync.Mutex
	bus   Bus
	latch bool
	err   error
	log   logrus.FieldLogger
}

// NewTransport returns a Transport with a clean transmission result. A nil
// logger selects logrus' standard logger.
func NewTransport(bus Bus, latch bool, log logrus.FieldLogger) *Transport {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Transport{bus: bus, latch: latch, log: log}
}

// Write sends p to addr and records the result.
func (t *Transport) Write(addr uint16, p []byte, repeat bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latch && t.err != nil {
		return fmt.Errorf("%w: %w", ErrLatched, t.err)
	}
	err := t.bus.Write(addr, p, repeat)
	t.err = err
	if err != nil {
		t.log.WithFields(logrus.Fields{
			"addr": fmt.Sprintf("%#02x", addr),
			"len":  len(p),
		}).WithError(err).Debug("serlcd: write failed")
		if t.latch {
			t.log.WithField("addr", fmt.Sprintf("%#02x", addr)).Warn("serlcd: bus error latched, further writes suppressed")
		}
	}
	return err
}

// Err returns the result of the last attempted write. nil means success.
func (t *Transport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Reset clears the transmission result and releases the latch.
func (t *Transport) Reset() {
	t.mu.Lock()
	t.err = nil
	t.mu.Unlock()
}

// Latching reports whether error latching is enabled.
func (t *Transport) Latching() bool {
	return t.latch
}

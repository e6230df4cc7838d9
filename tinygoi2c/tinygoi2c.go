// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package tinygoi2c drives a SerLCD from TinyGo, through any I²C peripheral
// implementing drivers.I2C (machine.I2C0 and friends).
package tinygoi2c

import (
	"github.com/GermanBionicSystems/lcd20x4/serlcd"
	"tinygo.org/x/drivers"
)

type bus struct {
	b drivers.I2C
}

// New returns a serlcd.Bus writing through b.
//
// The repeated start flag is ignored: TinyGo always ends a transaction with
// a stop condition.
func New(b drivers.I2C) serlcd.Bus {
	return &bus{b: b}
}

func (b *bus) Write(addr uint16, p []byte, repeat bool) error {
	return b.b.Tx(addr, p, nil)
}

func (b *bus) String() string {
	return "tinygo"
}

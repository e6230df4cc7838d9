// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package lcd20x4 is a container for the SparkFun SerLCD 20x4 driver and its
// tooling.
//
// The driver lives in serlcd. lcdsim emulates the display's firmware for
// tests and development without hardware, and tinygoi2c connects the driver
// to TinyGo I²C peripherals.
package lcd20x4

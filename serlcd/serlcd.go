// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package serlcd drives the SparkFun SerLCD (OpenLCD firmware) 20x4 RGB
// character display over I²C.
//
// The display interprets every received byte as text, except for two marker
// bytes. 0xfe starts a special command carrying one HD44780 instruction byte,
// 0x7c ('|') starts a setting command for the OpenLCD firmware (backlight,
// contrast, address, splash screen). Markers are honored anywhere in the
// stream, so text is remapped through a character table that never produces
// a marker. Every frame is followed by a settle delay before the next one is
// sent.
//
// Out of range positions are clamped and out of range fields are skipped;
// neither is reported as an error. Bus errors are returned and kept as the
// transmission result, see Dev.Err.
//
// Implements periph.io/x/conn/v3/display.TextDisplay.
package serlcd

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/i2c"
)

const (
	// DefaultI2CAddress is the factory address of the OpenLCD firmware.
	DefaultI2CAddress uint16 = 0x72

	// Rows is the number of display lines.
	Rows = 4
	// Cols is the number of characters per line.
	Cols = 20

	packageName = "serlcd"
)

const (
	settingMode byte = 0x7c
	cmdMode     byte = 0xfe

	entryModeSet   byte = 0x04
	displayControl byte = 0x08
	cursorShift    byte = 0x10
	setDDRAMAddr   byte = 0x80

	displayOn byte = 0x04
	cursorOn  byte = 0x02
	blinkOn   byte = 0x01

	setRGBCommand byte = 0x2b
	redBase       byte = 128
	greenBase     byte = 158
	blueBase      byte = 188
	// Backlight channels take 30 steps.
	backlightSteps = 29
)

const (
	specialDelay = 50 * time.Millisecond
	settingDelay = 10 * time.Millisecond
	valueDelay   = 50 * time.Millisecond
	textDelay    = 10 * time.Millisecond
)

// DDRAM address of the first character of each row.
var rowOffsets = [Rows]byte{0x00, 0x40, 0x14, 0x54}

var ErrNotImplemented = fmt.Errorf("%s: %w", packageName, display.ErrNotImplemented)

// ClearMode selects between clearing the display and moving the cursor home.
type ClearMode byte

const (
	ClearDisplay ClearMode = 0x01
	ReturnHome   ClearMode = 0x02
)

// EntryDirection is the direction the cursor moves after a character.
type EntryDirection byte

const (
	RightToLeft EntryDirection = 0x00
	LeftToRight EntryDirection = 0x02
)

// EntryShift enables shifting the display with every character written
// (autoscroll).
type EntryShift byte

const (
	EntryShiftDecrement EntryShift = 0x00
	EntryShiftIncrement EntryShift = 0x01
)

// ShiftTarget selects what CursorShift moves.
type ShiftTarget byte

const (
	MoveCursor  ShiftTarget = 0x00
	MoveDisplay ShiftTarget = 0x08
)

// ShiftDirection is the direction of CursorShift.
type ShiftDirection byte

const (
	ShiftLeft  ShiftDirection = 0x00
	ShiftRight ShiftDirection = 0x04
)

// Setting1 is a setting command without a value.
type Setting1 byte

const (
	ClearCommand          Setting1 = 0x2d
	EnableSystemMessages  Setting1 = 0x2e
	DisableSystemMessages Setting1 = 0x2f
	EnableSplash          Setting1 = 0x30
	DisableSplash         Setting1 = 0x31
	SaveSplash            Setting1 = 0x0a
)

// Setting2 is a setting command carrying one value byte. Both are stored in
// EEPROM by the firmware.
type Setting2 byte

const (
	ContrastCommand Setting2 = 0x18
	AddressCommand  Setting2 = 0x19
)

// Align is the alignment of text inside a field.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// Opts holds the configuration of a Dev.
type Opts struct {
	// Addr is the I²C address. 0 selects DefaultI2CAddress.
	Addr uint16
	// LatchErrors stops all writes after the first bus error, until Init.
	LatchErrors bool
	// Sleep waits for the settle delay after each frame. nil selects
	// time.Sleep.
	Sleep func(time.Duration)
	// Logger receives bus error reports. nil selects logrus' standard logger.
	Logger logrus.FieldLogger
}

// DefaultOpts is used when New is called with nil options.
var DefaultOpts = Opts{Addr: DefaultI2CAddress}

// Dev is a SerLCD display.
type Dev struct {
	t     *Transport
	addr  atomic.Uint32
	sleep func(time.Duration)
	name  string
}

func wrap(err error) error {
	if err == nil || strings.HasPrefix(err.Error(), packageName) {
		return err
	}
	return fmt.Errorf("%s: %w", packageName, err)
}

// New returns a display writing through bus. Nothing is sent until Init or
// another operation is called.
func New(bus Bus, opts *Opts) *Dev {
	if opts == nil {
		opts = &DefaultOpts
	}
	dev := &Dev{
		t:     NewTransport(bus, opts.LatchErrors, opts.Logger),
		sleep: opts.Sleep,
		name:  fmt.Sprintf("%v", bus),
	}
	if dev.sleep == nil {
		dev.sleep = time.Sleep
	}
	addr := opts.Addr
	if addr == 0 {
		addr = DefaultI2CAddress
	}
	dev.addr.Store(uint32(addr))
	return dev
}

// NewI2C returns a display on a periph I²C bus.
func NewI2C(b i2c.Bus, opts *Opts) *Dev {
	return New(I2C(b), opts)
}

// Init resets the transmission result and brings the display to a known
// state: display on, cursor and blink off, left to right entry without
// autoscroll, cleared. With resetSettings the backlight is set to white and
// the contrast to 0, both stored in EEPROM by the display.
func (dev *Dev) Init(resetSettings bool) error {
	dev.t.Reset()
	err := dev.SetDisplay(true, false, false)
	if err == nil {
		err = dev.EntryModeSet(LeftToRight, EntryShiftDecrement)
	}
	if err == nil && resetSettings {
		err = dev.SetBacklight(0xff, 0xff, 0xff)
		if err == nil {
			err = dev.SettingCommand2(ContrastCommand, 0)
		}
	}
	if err == nil {
		err = dev.ClearScreen(ClearDisplay)
	}
	return err
}

// Err returns the result of the last write. nil means it succeeded.
func (dev *Dev) Err() error {
	return dev.t.Err()
}

// Addr returns the I²C address frames are sent to.
func (dev *Dev) Addr() uint16 {
	return uint16(dev.addr.Load())
}

func (dev *Dev) send(p []byte, settle time.Duration) error {
	err := dev.t.Write(dev.Addr(), p, false)
	dev.sleep(settle)
	return wrap(err)
}

func (dev *Dev) specialCommand(cmd byte) error {
	return dev.send([]byte{cmdMode, cmd}, specialDelay)
}

// ClearScreen clears the display or moves the cursor home.
func (dev *Dev) ClearScreen(mode ClearMode) error {
	return dev.specialCommand(byte(mode))
}

// EntryModeSet sets the text direction and autoscroll.
func (dev *Dev) EntryModeSet(dir EntryDirection, shift EntryShift) error {
	return dev.specialCommand(entryModeSet | byte(dir) | byte(shift))
}

// SetDisplay switches display, cursor and blink. All three are always sent
// since the display state can't be read back.
func (dev *Dev) SetDisplay(on, cursor, blink bool) error {
	cmd := displayControl
	if on {
		cmd += displayOn
	}
	if cursor {
		cmd += cursorOn
	}
	if blink {
		cmd += blinkOn
	}
	return dev.specialCommand(cmd)
}

// CursorShift moves the cursor or the whole display count positions. count
// is clamped to [0, Cols-1]; one frame is sent per position.
func (dev *Dev) CursorShift(target ShiftTarget, dir ShiftDirection, count int) error {
	cmd := cursorShift | byte(target) | byte(dir)
	for range min(max(count, 0), Cols-1) {
		if err := dev.specialCommand(cmd); err != nil {
			return err
		}
	}
	return nil
}

// SetCursor moves the cursor to row, col. Out of range values are clamped.
func (dev *Dev) SetCursor(row, col int) error {
	row = min(max(row, 0), Rows-1)
	col = min(max(col, 0), Cols-1)
	return dev.specialCommand(setDDRAMAddr | (rowOffsets[row] + byte(col)))
}

// SetCursorWithDisplay moves the cursor and turns the display on with the
// given cursor and blink modes.
func (dev *Dev) SetCursorWithDisplay(row, col int, cursor, blink bool) error {
	if err := dev.SetCursor(row, col); err != nil {
		return err
	}
	return dev.SetDisplay(true, cursor, blink)
}

// SettingCommand1 sends a setting command without value.
func (dev *Dev) SettingCommand1(code Setting1) error {
	return dev.send([]byte{settingMode, byte(code)}, settingDelay)
}

// SettingCommand2 sends a setting command with one value, masked to 8 bits.
// After a successful AddressCommand the new address is used for all
// following frames.
func (dev *Dev) SettingCommand2(code Setting2, value int) error {
	v := byte(value & 0xff)
	err := dev.send([]byte{settingMode, byte(code), v}, valueDelay)
	if err == nil && code == AddressCommand {
		dev.addr.Store(uint32(v))
	}
	return err
}

// SetRGB sets the backlight color with the 0-255 RGB setting command.
func (dev *Dev) SetRGB(red, green, blue uint8) error {
	return dev.send([]byte{settingMode, setRGBCommand, red, green, blue}, valueDelay)
}

// SetBacklight sets the backlight color with one setting command per
// channel. Each channel is scaled to the firmware's 30 steps. The three
// frames go out in a single write.
func (dev *Dev) SetBacklight(red, green, blue uint8) error {
	return dev.send([]byte{
		settingMode, redBase + backlightLevel(red),
		settingMode, greenBase + backlightLevel(green),
		settingMode, blueBase + backlightLevel(blue),
	}, valueDelay)
}

// SetBacklightColor sets the backlight from a 0xRRGGBB value.
func (dev *Dev) SetBacklightColor(rgb uint32) error {
	return dev.SetBacklight(uint8(rgb>>16), uint8(rgb>>8), uint8(rgb))
}

func backlightLevel(v uint8) byte {
	return byte(int(v) * backlightSteps / 0xff)
}

// WriteText writes text at the cursor position. Only the first MaxText
// characters are sent.
func (dev *Dev) WriteText(text string) error {
	p := encodeText(text, MaxText)
	if len(p) == 0 {
		return nil
	}
	return dev.send(p, textDelay)
}

// WriteField writes text into the field of row from col to end inclusive,
// truncated or padded with spaces to the field width. A field that doesn't
// fit on the display is skipped.
func (dev *Dev) WriteField(row, col, end int, text string, align Align) error {
	width := end - col + 1
	if row < 0 || row > Rows-1 || col < 0 || col > Cols-1 || width < 0 || width > Cols {
		return nil
	}
	if err := dev.SetCursor(row, col); err != nil {
		return err
	}
	p := encodeText(text, width)
	if pad := width - len(p); pad > 0 {
		spaces := []byte(strings.Repeat(" ", pad))
		if align == AlignRight {
			p = append(spaces, p...)
		} else {
			p = append(p, spaces...)
		}
	}
	if len(p) == 0 {
		return nil
	}
	return dev.send(p, textDelay)
}

// Write remaps p as text and writes it. Long input is split into MaxText
// sized writes.
func (dev *Dev) Write(p []byte) (n int, err error) {
	s := string(p)
	for n < len(p) {
		chunk := make([]byte, 0, MaxText)
		next := n
		for next < len(s) && len(chunk) < MaxText {
			r, size := nextRune(s[next:])
			chunk = append(chunk, CharCode(r))
			next += size
		}
		if err = dev.send(chunk, textDelay); err != nil {
			return n, err
		}
		n = next
	}
	return n, nil
}

// WriteString writes text to the display.
func (dev *Dev) WriteString(text string) (n int, err error) {
	return dev.Write([]byte(text))
}

// AutoScroll enables or disables shifting the display on every character.
func (dev *Dev) AutoScroll(enabled bool) error {
	shift := EntryShiftDecrement
	if enabled {
		shift = EntryShiftIncrement
	}
	return dev.EntryModeSet(LeftToRight, shift)
}

// Clear clears the display and moves the cursor home.
func (dev *Dev) Clear() error {
	return dev.ClearScreen(ClearDisplay)
}

// Home moves the cursor home (MinRow(),MinCol())
func (dev *Dev) Home() error {
	return dev.ClearScreen(ReturnHome)
}

// Set the cursor mode. You can pass multiple arguments.
// Cursor(CursorOff, CursorUnderline)
//
// The display is switched on.
func (dev *Dev) Cursor(modes ...display.CursorMode) error {
	var cursor, blink bool
	for _, mode := range modes {
		switch mode {
		case display.CursorOff:
		case display.CursorUnderline:
			cursor = true
		case display.CursorBlock, display.CursorBlink:
			blink = true
		default:
			return wrap(display.ErrInvalidCommand)
		}
	}
	return dev.SetDisplay(true, cursor, blink)
}

// Display turns the display on or off. Cursor and blink are switched off.
func (dev *Dev) Display(on bool) error {
	return dev.SetDisplay(on, false, false)
}

// Move the cursor forward or backward.
func (dev *Dev) Move(dir display.CursorDirection) error {
	switch dir {
	case display.Backward:
		return dev.CursorShift(MoveCursor, ShiftLeft, 1)
	case display.Forward:
		return dev.CursorShift(MoveCursor, ShiftRight, 1)
	default:
		return ErrNotImplemented
	}
}

// MoveTo moves the cursor to an arbitrary position. Out of range values are
// clamped.
func (dev *Dev) MoveTo(row, col int) error {
	return dev.SetCursor(row, col)
}

// Return the number of columns the display supports
func (dev *Dev) Cols() int {
	return Cols
}

// Return the number of rows the display supports.
func (dev *Dev) Rows() int {
	return Rows
}

// Return the min column position.
func (dev *Dev) MinCol() int {
	return 0
}

// Return the min row position.
func (dev *Dev) MinRow() int {
	return 0
}

// Halt clears the display and turns it off.
func (dev *Dev) Halt() error {
	err := dev.Clear()
	if err == nil {
		err = dev.Display(false)
	}
	return err
}

func (dev *Dev) String() string {
	return fmt.Sprintf("SparkFun SerLCD %dx%d Display - %#02x on %s", Cols, Rows, dev.Addr(), dev.name)
}

// Set the backlight intensity with 0 being off, and 255 being maximum.
func (dev *Dev) Backlight(intensity display.Intensity) error {
	v := intensityByte(intensity)
	return dev.SetBacklight(v, v, v)
}

// Set the backlight color with 0 being off, and 255 being maximum intensity
// for each color.
func (dev *Dev) RGBBacklight(red, green, blue display.Intensity) error {
	return dev.SetBacklight(intensityByte(red), intensityByte(green), intensityByte(blue))
}

// Set the character contrast on the device. Writes to EEPROM, so this should
// be used sparingly. The default device Contrast is 40.
func (dev *Dev) Contrast(contrast display.Contrast) error {
	return dev.SettingCommand2(ContrastCommand, int(contrast))
}

func intensityByte(i display.Intensity) uint8 {
	if i < 0 {
		return 0
	}
	if i > 0xff {
		return 0xff
	}
	return uint8(i)
}

var _ display.TextDisplay = &Dev{}
var _ display.DisplayContrast = &Dev{}
var _ display.DisplayBacklight = &Dev{}
var _ display.DisplayRGBBacklight = &Dev{}
var _ conn.Resource = &Dev{}

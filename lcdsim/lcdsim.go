// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package lcdsim emulates a SparkFun SerLCD 20x4 (OpenLCD firmware) behind an
// i2c.Bus, and shows the result on the terminal (stdout) using ANSI color
// codes.
//
// Useful to develop display code without the hardware, and to verify the
// byte stream sent to the display end to end.
//
// The emulated HD44780 controller runs in 2 line mode: its display RAM has
// two lines of 40 characters. Rows 0 and 2 share the first line, rows 1 and 3
// the second, which is why the row base addresses are 0x00, 0x40, 0x14 and
// 0x54.
package lcdsim

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

const (
	// DefaultAddr is the factory I²C address.
	DefaultAddr uint16 = 0x72
	// Rows is the number of display rows.
	Rows = 4
	// Cols is the number of characters per row.
	Cols = 20

	lineLen         = 40
	defaultContrast = 40
	maxSpeed        = 400 * physic.KiloHertz
)

const (
	settingMode byte = 0x7c
	cmdMode     byte = 0xfe
)

// OpenLCD setting commands.
const (
	setClear          byte = 0x2d
	setContrast       byte = 0x18
	setAddress        byte = 0x19
	setRGB            byte = 0x2b
	setSystemMsgOn    byte = 0x2e
	setSystemMsgOff   byte = 0x2f
	setSplashOn       byte = 0x30
	setSplashOff      byte = 0x31
	setSaveSplash     byte = 0x0a
	setRedBase        byte = 128
	setGreenBase      byte = 158
	setBlueBase       byte = 188
)

const backlightSteps = 29

type decodeState int

const (
	stText decodeState = iota
	stSpecial
	stSetting
	stArgs
)

var errRead = errors.New("lcdsim: the display can't be read")

// Opts represents the options available for the emulator.
type Opts struct {
	// Addr is the I²C address the emulator answers to. 0 selects DefaultAddr.
	Addr uint16
	// Out receives Render output. nil selects a colorable stdout.
	Out io.Writer
	// Plain renders without ANSI colors. It is forced when Out is nil and
	// stdout isn't a terminal.
	Plain bool
	// Palette colors the backlight frame. nil selects ansi256.Default.
	Palette *ansi256.Palette
	// FontSize selects a Go Mono face of that size in points for Image. 0
	// selects the 7x13 bitmap face.
	FontSize float64
	// Logger receives decoded frames at trace level. nil selects logrus'
	// standard logger.
	Logger logrus.FieldLogger

	_ struct{}
}

// Dev is an emulated SerLCD display. It implements i2c.BusCloser.
type Dev struct {
	mu      sync.Mutex
	out     io.Writer
	plain   bool
	palette ansi256.Palette
	face    font.Face
	log     logrus.FieldLogger
	buf     bytes.Buffer

	addr     uint16
	ddram    [2][lineLen]byte
	ac       int
	shift    int
	inc      bool
	autoScr  bool
	on       bool
	cursor   bool
	blink    bool
	rgb      [3]byte
	contrast byte
	sysMsg   bool
	splashOn bool
	splash   []string

	state decodeState
	cmd   byte
	need  int
	args  []byte
}

// New returns an emulator in the power on state: display on, cleared, full
// white backlight.
func New(opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{}
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	d := &Dev{
		out:      opts.Out,
		plain:    opts.Plain,
		palette:  *p,
		log:      opts.Logger,
		addr:     opts.Addr,
		inc:      true,
		on:       true,
		rgb:      [3]byte{0xff, 0xff, 0xff},
		contrast: defaultContrast,
		sysMsg:   true,
		splashOn: true,
	}
	if d.out == nil {
		fd := os.Stdout.Fd()
		if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
			d.plain = true
		}
		d.out = colorable.NewColorableStdout()
	}
	if d.log == nil {
		d.log = logrus.StandardLogger()
	}
	if d.addr == 0 {
		d.addr = DefaultAddr
	}
	face, err := newFace(opts.FontSize)
	if err != nil {
		return nil, fmt.Errorf("lcdsim: %w", err)
	}
	d.face = face
	d.clear()
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("lcdsim(%#02x)", d.Addr())
}

// Tx implements i2c.Bus. Writes to another address fail like a missing
// device.
func (d *Dev) Tx(addr uint16, w, r []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if addr != d.addr {
		return fmt.Errorf("lcdsim: no device at address %#02x", addr)
	}
	if len(r) != 0 {
		return errRead
	}
	for _, b := range w {
		d.feed(b)
	}
	return nil
}

// SetSpeed implements i2c.Bus. The firmware supports up to 400kHz.
func (d *Dev) SetSpeed(f physic.Frequency) error {
	if f <= 0 || f > maxSpeed {
		return fmt.Errorf("lcdsim: invalid speed %s", f)
	}
	return nil
}

// Close implements i2c.BusCloser.
func (d *Dev) Close() error {
	return nil
}

// Halt resets the terminal colors.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.plain {
		return nil
	}
	_, err := io.WriteString(d.out, "\033[0m")
	return err
}

func (d *Dev) feed(b byte) {
	switch d.state {
	case stText:
		switch b {
		case cmdMode:
			d.state = stSpecial
		case settingMode:
			d.state = stSetting
		default:
			d.putChar(b)
		}
	case stSpecial:
		d.state = stText
		d.log.WithField("cmd", fmt.Sprintf("%#02x", b)).Trace("lcdsim: special command")
		d.instruction(b)
	case stSetting:
		d.state = stText
		switch b {
		case setContrast, setAddress:
			d.expect(b, 1)
		case setRGB:
			d.expect(b, 3)
		default:
			d.setting(b, nil)
		}
	case stArgs:
		d.args = append(d.args, b)
		if len(d.args) == d.need {
			d.state = stText
			d.setting(d.cmd, d.args)
		}
	}
}

func (d *Dev) expect(cmd byte, n int) {
	d.state = stArgs
	d.cmd = cmd
	d.need = n
	d.args = d.args[:0]
}

// instruction executes an HD44780 instruction byte.
func (d *Dev) instruction(b byte) {
	switch {
	case b&0x80 != 0:
		addr := int(b & 0x7f)
		line := 0
		if addr >= 0x40 {
			line = 1
			addr -= 0x40
		}
		d.ac = line*lineLen + addr%lineLen
	case b&0x40 != 0:
		// Custom characters aren't emulated.
	case b&0x20 != 0:
		// Function set is fixed by the firmware.
	case b&0x10 != 0:
		right := b&0x04 != 0
		if b&0x08 != 0 {
			if right {
				d.shift++
			} else {
				d.shift--
			}
		} else {
			d.advance(right)
		}
	case b&0x08 != 0:
		d.on = b&0x04 != 0
		d.cursor = b&0x02 != 0
		d.blink = b&0x01 != 0
	case b&0x04 != 0:
		d.inc = b&0x02 != 0
		d.autoScr = b&0x01 != 0
	case b&0x02 != 0:
		d.ac = 0
		d.shift = 0
	case b == 0x01:
		d.clear()
		d.inc = true
	}
}

func (d *Dev) setting(cmd byte, args []byte) {
	d.log.WithFields(logrus.Fields{
		"cmd":  fmt.Sprintf("%#02x", cmd),
		"args": args,
	}).Trace("lcdsim: setting command")
	switch {
	case cmd == setClear:
		d.clear()
	case cmd == setContrast:
		d.contrast = args[0]
	case cmd == setAddress:
		d.addr = uint16(args[0])
	case cmd == setRGB:
		copy(d.rgb[:], args)
	case cmd == setSystemMsgOn:
		d.sysMsg = true
	case cmd == setSystemMsgOff:
		d.sysMsg = false
	case cmd == setSplashOn:
		d.splashOn = true
	case cmd == setSplashOff:
		d.splashOn = false
	case cmd == setSaveSplash:
		d.splash = d.text()
	case cmd >= setRedBase && cmd < setGreenBase:
		d.rgb[0] = level(cmd - setRedBase)
	case cmd >= setGreenBase && cmd < setBlueBase:
		d.rgb[1] = level(cmd - setGreenBase)
	case cmd >= setBlueBase && cmd <= setBlueBase+backlightSteps:
		d.rgb[2] = level(cmd - setBlueBase)
	}
}

// level converts a backlight step to PWM duty.
func level(step byte) byte {
	return byte(int(step) * 0xff / backlightSteps)
}

func (d *Dev) clear() {
	for l := range d.ddram {
		for i := range d.ddram[l] {
			d.ddram[l][i] = ' '
		}
	}
	d.ac = 0
	d.shift = 0
}

func (d *Dev) putChar(b byte) {
	d.ddram[d.ac/lineLen][d.ac%lineLen] = b
	d.advance(d.inc)
	if d.autoScr {
		if d.inc {
			d.shift--
		} else {
			d.shift++
		}
	}
}

// advance moves the address counter, wrapping from one line to the other
// like the controller does.
func (d *Dev) advance(forward bool) {
	line, pos := d.ac/lineLen, d.ac%lineLen
	if forward {
		pos++
	} else {
		pos--
	}
	if pos == lineLen {
		pos = 0
		line ^= 1
	} else if pos < 0 {
		pos = lineLen - 1
		line ^= 1
	}
	d.ac = line*lineLen + pos
}

func mod(a, b int) int {
	return ((a % b) + b) % b
}

// cell returns the display RAM content shown at row, col.
func (d *Dev) cell(row, col int) byte {
	return d.ddram[row%2][mod(lineLen/2*(row/2)+col-d.shift, lineLen)]
}

func (d *Dev) text() []string {
	lines := make([]string, Rows)
	var sb strings.Builder
	for row := range Rows {
		sb.Reset()
		for col := range Cols {
			sb.WriteRune(Glyph(d.cell(row, col)))
		}
		lines[row] = sb.String()
	}
	return lines
}

func (d *Dev) cursorPos() (int, int, bool) {
	line, pos := d.ac/lineLen, d.ac%lineLen
	for row := line; row < Rows; row += 2 {
		col := mod(pos+d.shift-lineLen/2*(row/2), lineLen)
		if col < Cols {
			return row, col, true
		}
	}
	return 0, 0, false
}

// Text returns the characters shown on each row, as rendered by the font
// ROM, regardless of the display being on.
func (d *Dev) Text() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text()
}

// Line returns the characters shown on row.
func (d *Dev) Line(row int) string {
	if row < 0 || row >= Rows {
		return ""
	}
	return d.Text()[row]
}

// Raw returns the font ROM codes shown on row.
func (d *Dev) Raw(row int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if row < 0 || row >= Rows {
		return nil
	}
	p := make([]byte, Cols)
	for col := range p {
		p[col] = d.cell(row, col)
	}
	return p
}

// Cursor returns the visible cursor position. ok is false when the address
// counter points outside the visible window.
func (d *Dev) Cursor() (row, col int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursorPos()
}

// Addr returns the current I²C address.
func (d *Dev) Addr() uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

// Backlight returns the backlight color.
func (d *Dev) Backlight() color.NRGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	return color.NRGBA{d.rgb[0], d.rgb[1], d.rgb[2], 0xff}
}

// Contrast returns the contrast setting.
func (d *Dev) Contrast() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.contrast
}

// State is the display control and entry mode register content.
type State struct {
	DisplayOn      bool
	CursorOn       bool
	BlinkOn        bool
	LeftToRight    bool
	AutoScroll     bool
	Shift          int
	SystemMessages bool
	Splash         bool
}

// State returns the controller and firmware flags.
func (d *Dev) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return State{
		DisplayOn:      d.on,
		CursorOn:       d.cursor,
		BlinkOn:        d.blink,
		LeftToRight:    d.inc,
		AutoScroll:     d.autoScr,
		Shift:          d.shift,
		SystemMessages: d.sysMsg,
		Splash:         d.splashOn,
	}
}

// Splash returns the saved splash screen, nil if none was saved.
func (d *Dev) Splash() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.splash == nil {
		return nil
	}
	return append([]string(nil), d.splash...)
}

// Render draws the display on Out, framed by the backlight color.
func (d *Dev) Render() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	lines := d.text()
	if !d.on {
		for i := range lines {
			lines[i] = strings.Repeat(" ", Cols)
		}
	}
	d.buf.Reset()
	if d.plain {
		border := "+" + strings.Repeat("-", Cols) + "+\n"
		_, _ = d.buf.WriteString(border)
		for _, l := range lines {
			_, _ = fmt.Fprintf(&d.buf, "|%s|\n", l)
		}
		_, _ = d.buf.WriteString(border)
	} else {
		bl := d.palette.Block(color.NRGBA{d.rgb[0], d.rgb[1], d.rgb[2], 0xff})
		border := strings.Repeat(bl, Cols+2) + "\033[0m\n"
		_, _ = d.buf.WriteString(border)
		for _, l := range lines {
			_, _ = fmt.Fprintf(&d.buf, "%s\033[0m%s%s\033[0m\n", bl, l, bl)
		}
		_, _ = d.buf.WriteString(border)
	}
	_, err := d.buf.WriteTo(d.out)
	return err
}

var _ i2c.BusCloser = &Dev{}
var _ fmt.Stringer = &Dev{}

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package lcdsim

import (
	"bytes"
	"image/color"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"periph.io/x/conn/v3/physic"
)

func newDev(t *testing.T) (*Dev, *bytes.Buffer) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	out := &bytes.Buffer{}
	d, err := New(&Opts{Out: out, Plain: true, Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	return d, out
}

func tx(t *testing.T, d *Dev, w ...byte) {
	t.Helper()
	if err := d.Tx(DefaultAddr, w, nil); err != nil {
		t.Fatal(err)
	}
}

func blank() []string {
	return []string{
		strings.Repeat(" ", Cols),
		strings.Repeat(" ", Cols),
		strings.Repeat(" ", Cols),
		strings.Repeat(" ", Cols),
	}
}

func pad(s string) string {
	return s + strings.Repeat(" ", Cols-len([]rune(s)))
}

func TestPowerOn(t *testing.T) {
	d, _ := newDev(t)
	if diff := cmp.Diff(blank(), d.Text()); diff != "" {
		t.Errorf("Text() mismatch (-want +got):\n%s", diff)
	}
	want := State{DisplayOn: true, LeftToRight: true, SystemMessages: true, Splash: true}
	if diff := cmp.Diff(want, d.State()); diff != "" {
		t.Errorf("State() mismatch (-want +got):\n%s", diff)
	}
	if got := d.Backlight(); got != (color.NRGBA{0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("Backlight() = %v", got)
	}
	if d.Contrast() != defaultContrast {
		t.Errorf("Contrast() = %d", d.Contrast())
	}
	if d.Splash() != nil {
		t.Errorf("Splash() = %q", d.Splash())
	}
	if s := d.String(); s != "lcdsim(0x72)" {
		t.Errorf("String() = %q", s)
	}
}

func TestText(t *testing.T) {
	d, _ := newDev(t)
	tx(t, d, []byte("hello")...)
	tx(t, d, 0xfe, 0x80|0x40+3)
	tx(t, d, []byte("row 1")...)
	tx(t, d, 0xfe, 0x80|0x14+19)
	tx(t, d, 'x')
	tx(t, d, 0xfe, 0x80|0x54)
	tx(t, d, 0xe1, 0xef, 0xf5, 0xdf, 0xff, 0x01)
	want := []string{
		pad("hello"),
		pad("   row 1"),
		pad("                   x"),
		pad("äöü°█?"),
	}
	if diff := cmp.Diff(want, d.Text()); diff != "" {
		t.Errorf("Text() mismatch (-want +got):\n%s", diff)
	}
	if got := d.Raw(3)[:3]; !bytes.Equal(got, []byte{0xe1, 0xef, 0xf5}) {
		t.Errorf("Raw(3) = %#v", got)
	}
	if d.Raw(4) != nil || d.Line(-1) != "" {
		t.Error("out of range rows must be empty")
	}
}

func TestLineWrap(t *testing.T) {
	d, _ := newDev(t)
	// Row 0 continues on row 2, then on row 1.
	tx(t, d, []byte(strings.Repeat("a", 20)+strings.Repeat("b", 20)+"c")...)
	want := []string{
		strings.Repeat("a", 20),
		pad("c"),
		strings.Repeat("b", 20),
		blank()[3],
	}
	if diff := cmp.Diff(want, d.Text()); diff != "" {
		t.Errorf("Text() mismatch (-want +got):\n%s", diff)
	}
	row, col, ok := d.Cursor()
	if row != 1 || col != 1 || !ok {
		t.Errorf("Cursor() = %d, %d, %t", row, col, ok)
	}
}

func TestInstructions(t *testing.T) {
	d, _ := newDev(t)
	tx(t, d, []byte("abc")...)
	tx(t, d, 0xfe, 0x08|0x04|0x02|0x01)
	tx(t, d, 0xfe, 0x04)
	st := d.State()
	if !st.DisplayOn || !st.CursorOn || !st.BlinkOn || st.LeftToRight || st.AutoScroll {
		t.Errorf("State() = %+v", st)
	}
	tx(t, d, 'z')
	if got := d.Line(0); got != pad("abcz") {
		t.Errorf("Line(0) = %q", got)
	}
	if row, col, _ := d.Cursor(); row != 0 || col != 2 {
		t.Errorf("Cursor() = %d, %d", row, col)
	}

	tx(t, d, 0xfe, 0x02)
	if row, col, _ := d.Cursor(); row != 0 || col != 0 {
		t.Errorf("Cursor() after home = %d, %d", row, col)
	}
	tx(t, d, 0xfe, 0x10|0x04)
	tx(t, d, 0xfe, 0x10|0x04)
	tx(t, d, 0xfe, 0x10)
	if row, col, _ := d.Cursor(); row != 0 || col != 1 {
		t.Errorf("Cursor() after shifts = %d, %d", row, col)
	}

	tx(t, d, 0xfe, 0x10|0x08|0x04)
	if got := d.Line(0); got != pad(" abcz") {
		t.Errorf("Line(0) after display shift = %q", got)
	}
	if d.State().Shift != 1 {
		t.Errorf("Shift = %d", d.State().Shift)
	}
	tx(t, d, 0xfe, 0x10|0x08)
	if got := d.Line(0); got != pad("abcz") {
		t.Errorf("Line(0) after shift back = %q", got)
	}

	tx(t, d, 0xfe, 0x08)
	if d.State().DisplayOn {
		t.Error("display still on")
	}
	tx(t, d, 0xfe, 0x01)
	if diff := cmp.Diff(blank(), d.Text()); diff != "" {
		t.Errorf("Text() after clear mismatch (-want +got):\n%s", diff)
	}
	if !d.State().LeftToRight {
		t.Error("clear must restore increment mode")
	}
	// Custom characters and function set are ignored.
	tx(t, d, 0xfe, 0x40, 0xfe, 0x28)
	if diff := cmp.Diff(blank(), d.Text()); diff != "" {
		t.Errorf("Text() mismatch (-want +got):\n%s", diff)
	}
}

func TestAutoScroll(t *testing.T) {
	d, _ := newDev(t)
	tx(t, d, 0xfe, 0x80|19)
	tx(t, d, 0xfe, 0x04|0x02|0x01)
	tx(t, d, 'a', 'b')
	// The display moves left under a stationary cursor.
	if got := d.Line(0); got != strings.Repeat(" ", 17)+"ab " {
		t.Errorf("Line(0) = %q", got)
	}
	if d.State().Shift != -2 {
		t.Errorf("Shift = %d", d.State().Shift)
	}
}

func TestSettings(t *testing.T) {
	d, _ := newDev(t)
	tx(t, d, []byte("splash")...)
	tx(t, d, 0x7c, 0x0a)
	if diff := cmp.Diff([]string{pad("splash"), blank()[1], blank()[2], blank()[3]}, d.Splash()); diff != "" {
		t.Errorf("Splash() mismatch (-want +got):\n%s", diff)
	}
	tx(t, d, 0x7c, 0x2d)
	if diff := cmp.Diff(blank(), d.Text()); diff != "" {
		t.Errorf("Text() mismatch (-want +got):\n%s", diff)
	}
	tx(t, d, 0x7c, 0x2f, 0x7c, 0x31)
	if st := d.State(); st.SystemMessages || st.Splash {
		t.Errorf("State() = %+v", st)
	}
	tx(t, d, 0x7c, 0x2e, 0x7c, 0x30)
	if st := d.State(); !st.SystemMessages || !st.Splash {
		t.Errorf("State() = %+v", st)
	}

	tx(t, d, 0x7c, 0x18, 0x0a)
	if d.Contrast() != 10 {
		t.Errorf("Contrast() = %d", d.Contrast())
	}
	// Arguments that look like markers are data.
	tx(t, d, 0x7c, 0x2b, 0xfe, 0x7c)
	tx(t, d, 0x00)
	if got := d.Backlight(); got != (color.NRGBA{0xfe, 0x7c, 0x00, 0xff}) {
		t.Errorf("Backlight() = %v", got)
	}
	tx(t, d, 0x7c, 128, 0x7c, 158+29, 0x7c, 188+14)
	if got := d.Backlight(); got != (color.NRGBA{0x00, 0xff, 0x7b, 0xff}) {
		t.Errorf("Backlight() = %v", got)
	}
	if diff := cmp.Diff(blank(), d.Text()); diff != "" {
		t.Errorf("settings leaked text (-want +got):\n%s", diff)
	}
}

func TestAddress(t *testing.T) {
	d, _ := newDev(t)
	tx(t, d, 0x7c, 0x19, 0x73)
	if d.Addr() != 0x73 {
		t.Fatalf("Addr() = %#02x", d.Addr())
	}
	if err := d.Tx(DefaultAddr, []byte{'a'}, nil); err == nil {
		t.Error("expected an error at the old address")
	}
	if err := d.Tx(0x73, []byte{'a'}, nil); err != nil {
		t.Error(err)
	}
}

func TestBusErrors(t *testing.T) {
	d, _ := newDev(t)
	if err := d.Tx(DefaultAddr, nil, make([]byte, 1)); err == nil {
		t.Error("expected read error")
	}
	if err := d.SetSpeed(100 * physic.KiloHertz); err != nil {
		t.Error(err)
	}
	if err := d.SetSpeed(physic.MegaHertz); err == nil {
		t.Error("expected speed error")
	}
	if err := d.Close(); err != nil {
		t.Error(err)
	}
}

func TestRender(t *testing.T) {
	d, out := newDev(t)
	tx(t, d, []byte("Hi")...)
	if err := d.Render(); err != nil {
		t.Fatal(err)
	}
	border := "+" + strings.Repeat("-", Cols) + "+\n"
	want := border + "|" + pad("Hi") + "|\n"
	for range Rows - 1 {
		want += "|" + blank()[0] + "|\n"
	}
	want += border
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}

	out.Reset()
	tx(t, d, 0xfe, 0x08)
	if err := d.Render(); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.String(), "Hi") {
		t.Errorf("display off still renders text:\n%s", out.String())
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
}

func TestRenderANSI(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	out := &bytes.Buffer{}
	d, err := New(&Opts{Out: out, Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	tx(t, d, 0x7c, 0x2b, 0xff, 0, 0)
	if err := d.Render(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "\033[0m") {
		t.Errorf("missing reset sequence: %q", out.String())
	}
	out.Reset()
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if out.String() != "\033[0m" {
		t.Errorf("Halt() wrote %q", out.String())
	}
}

func TestImage(t *testing.T) {
	d, _ := newDev(t)
	tx(t, d, 0x7c, 0x2b, 0x10, 0x20, 0x30)
	tx(t, d, []byte("W")...)
	img := d.Image()
	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 != 0x10 || g>>8 != 0x20 || b>>8 != 0x30 {
		t.Errorf("background = %#x %#x %#x", r>>8, g>>8, b>>8)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 2*Margin || bounds.Dy() <= 2*Margin {
		t.Errorf("Bounds() = %v", bounds)
	}
	dark := false
	for y := Margin; y < Margin+13 && !dark; y++ {
		for x := Margin; x < Margin+7; x++ {
			if r, _, _, _ := img.At(x, y).RGBA(); r>>8 != 0x10 {
				dark = true
				break
			}
		}
	}
	if !dark {
		t.Error("the first cell has no ink")
	}
	var buf bytes.Buffer
	if err := d.EncodePNG(&buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("not a PNG stream")
	}
}

func TestTrueTypeFace(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	d, err := New(&Opts{Out: &bytes.Buffer{}, Plain: true, FontSize: 16, Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	small, _ := newDev(t)
	if d.Image().Bounds().Dx() <= small.Image().Bounds().Dx() {
		t.Error("a 16pt face must render wider than 7x13")
	}
}

func TestGlyph(t *testing.T) {
	tests := []struct {
		in   byte
		want rune
	}{
		{'A', 'A'},
		{' ', ' '},
		{'\\', '¥'},
		{0x7e, '→'},
		{0xe1, 'ä'},
		{0xdf, '°'},
		{0xff, '█'},
		{0x00, Unknown},
		{0x80, Unknown},
	}
	for _, tc := range tests {
		if got := Glyph(tc.in); got != tc.want {
			t.Errorf("Glyph(%#02x) = %q, expected %q", tc.in, got, tc.want)
		}
	}
}

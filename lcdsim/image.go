// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package lcdsim

import (
	"image"
	"io"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gomono"
)

// Margin is the border in pixels around the characters in Image.
const Margin = 8

func newFace(size float64) (font.Face, error) {
	if size <= 0 {
		return basicfont.Face7x13, nil
	}
	f, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(f, &truetype.Options{Size: size}), nil
}

// Image draws the display as seen through the glass: dark characters over
// the backlight color. The cursor is drawn as an underline when enabled.
func (d *Dev) Image() image.Image {
	return d.context().Image()
}

// EncodePNG writes Image as PNG to w.
func (d *Dev) EncodePNG(w io.Writer) error {
	return d.context().EncodePNG(w)
}

// SavePNG writes Image as PNG to the file at path.
func (d *Dev) SavePNG(path string) error {
	return d.context().SavePNG(path)
}

func (d *Dev) context() *gg.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.face.Metrics()
	cellH := float64(m.Height.Ceil())
	ascent := float64(m.Ascent.Ceil())
	dc := gg.NewContext(1, 1)
	dc.SetFontFace(d.face)
	cellW, _ := dc.MeasureString("W")
	w := int(cellW*Cols) + 2*Margin
	h := int(cellH*Rows) + 2*Margin

	dc = gg.NewContext(w, h)
	dc.SetFontFace(d.face)
	dc.SetRGB255(int(d.rgb[0]), int(d.rgb[1]), int(d.rgb[2]))
	dc.Clear()
	if !d.on {
		return dc
	}
	dc.SetRGB255(0x20, 0x20, 0x30)
	lines := d.text()
	for row, l := range lines {
		y := Margin + cellH*float64(row) + ascent
		for col, r := range []rune(l) {
			dc.DrawString(string(r), Margin+cellW*float64(col), y)
		}
	}
	if d.cursor {
		if row, col, ok := d.cursorPos(); ok {
			dc.DrawRectangle(Margin+cellW*float64(col), Margin+cellH*float64(row+1)-2, cellW, 2)
			dc.Fill()
		}
	}
	return dc
}

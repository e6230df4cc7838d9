// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package lcdsim

// Unknown is shown for font ROM codes without a glyph.
const Unknown = '?'

// romA00 holds the non ASCII part of the HD44780 A00 (Japanese) font ROM
// that a SerLCD can show.
var romA00 = map[byte]rune{
	0x5c: '¥',
	0x7e: '→',
	0x7f: '←',
	0xa0: ' ',
	0xa1: '。',
	0xa2: '「',
	0xa3: '」',
	0xa4: '、',
	0xa5: '・',
	0xb0: 'ー',
	0xc9: 'ノ',
	0xd8: 'リ',
	0xdf: '°',
	0xe0: 'α',
	0xe1: 'ä',
	0xe2: 'β',
	0xe3: 'ε',
	0xe4: 'µ',
	0xe5: 'σ',
	0xe6: 'ρ',
	0xe8: '√',
	0xee: 'ñ',
	0xef: 'ö',
	0xf2: 'θ',
	0xf3: '∞',
	0xf4: 'Ω',
	0xf5: 'ü',
	0xf6: 'Σ',
	0xf7: 'π',
	0xfd: '÷',
	0xff: '█',
}

// Glyph returns the character the font ROM draws for code b.
func Glyph(b byte) rune {
	if r, ok := romA00[b]; ok {
		return r
	}
	if b >= 0x20 && b < 0x7f {
		return rune(b)
	}
	return Unknown
}

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package serlcd

import "unicode/utf8"

// MaxText is the I²C receive buffer of the display. Longer writes lock the
// device up.
const MaxText = 32

// charCodes maps characters to glyphs of the display's font ROM. Several
// characters share a glyph: the ROM has no upper case umlauts.
var charCodes = map[rune]byte{
	rune(cmdMode):     0xd8,
	rune(settingMode): 0xc9,
	'\r':              0xa2,
	'\n':              0xa3,
	0xff:              0xf3,
	0x00:              0xf2,
	0x80:              0xe3,
	'ß':               0xe2,
	'ä':               0xe1,
	'ö':               0xef,
	'ü':               0xf5,
	'Ä':               0xe1,
	'Ö':               0xef,
	'Ü':               0xf5,
	'€':               0xe3,
	'µ':               0xe4,
	'°':               0xdf,
}

// CharCode returns the byte sent to the display for r. Runes above 0xff are
// truncated to their low byte. The result is never a command marker.
func CharCode(r rune) byte {
	if b, ok := charCodes[r]; ok {
		return b
	}
	b := byte(r)
	if b == cmdMode || b == settingMode {
		return charCodes[rune(b)]
	}
	return b
}

// encodeText remaps s, stopping after limit characters. limit < 0 means no
// limit.
func encodeText(s string, limit int) []byte {
	p := make([]byte, 0, len(s))
	for len(s) > 0 && (limit < 0 || len(p) < limit) {
		r, size := nextRune(s)
		p = append(p, CharCode(r))
		s = s[size:]
	}
	return p
}

// nextRune decodes the first character of s. Bytes that are not valid UTF-8
// are taken as Latin-1, so a raw 0xfe is escaped like U+00FE.
func nextRune(s string) (rune, int) {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && size == 1 {
		r = rune(s[0])
	}
	return r, size
}

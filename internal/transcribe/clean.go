// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcribe

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// droppedSymbols are BMP codepoints the providers like to sprinkle into
// music and reaction passages; they only add noise to substring matching.
var droppedSymbols = map[rune]struct{}{
	'🎼': {}, '♪': {}, '♫': {}, '♬': {}, '♭': {}, '♮': {}, '♯': {},
}

// CleanTranscript normalises provider output for keyword matching: NFKC
// fold (full-width latin, compatibility forms), then drop everything
// outside the BMP (emoji, rare CJK extensions the blacklists never carry)
// and the musical symbol set.
func CleanTranscript(text string) string {
	if text == "" {
		return ""
	}
	text = norm.NFKC.String(text)
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r > 0xFFFF {
			continue
		}
		if _, drop := droppedSymbols[r]; drop {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

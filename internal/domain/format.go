// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"fmt"
	"strings"
)

// Format is a show's release format, a fixed tagged enumeration with the
// explicit integer encodings mandated for the store's show.show_format
// column.
type Format uint8

const (
	FormatTV      Format = 1
	FormatTVShort Format = 2
	FormatMovie   Format = 3
	FormatSpecial Format = 4
	FormatOVA     Format = 5
	FormatONA     Format = 6
)

// FormatFromAnilist maps the Anilist GraphQL media format enum to a Format.
func FormatFromAnilist(s string) (Format, error) {
	switch strings.ToUpper(s) {
	case "TV":
		return FormatTV, nil
	case "TV_SHORT":
		return FormatTVShort, nil
	case "MOVIE":
		return FormatMovie, nil
	case "SPECIAL":
		return FormatSpecial, nil
	case "OVA":
		return FormatOVA, nil
	case "ONA":
		return FormatONA, nil
	default:
		return 0, fmt.Errorf("unknown anilist format %q", s)
	}
}

// FormatFromParenSpan maps the parenthesized-span vocabulary recognized by
// the show-name format regex, where "oad" is folded into OVA.
func FormatFromParenSpan(s string) (Format, bool) {
	switch strings.ToLower(s) {
	case "tv":
		return FormatTV, true
	case "movie":
		return FormatMovie, true
	case "ova", "oad":
		return FormatOVA, true
	case "ona":
		return FormatONA, true
	default:
		return 0, false
	}
}

// ToDB returns the store's INT2 encoding.
func (f Format) ToDB() int16 { return int16(f) }

// FormatFromDB decodes the store's INT2 encoding.
func FormatFromDB(v int16) (Format, error) {
	f := Format(v)
	switch f {
	case FormatTV, FormatTVShort, FormatMovie, FormatSpecial, FormatOVA, FormatONA:
		return f, nil
	default:
		return 0, fmt.Errorf("unknown format code %d", v)
	}
}

func (f Format) String() string {
	switch f {
	case FormatTV:
		return "TV"
	case FormatTVShort:
		return "TV Short"
	case FormatMovie:
		return "Movie"
	case FormatSpecial:
		return "Special"
	case FormatOVA:
		return "OVA"
	case FormatONA:
		return "ONA"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

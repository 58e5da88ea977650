// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package showdb

import (
	"regexp"
	"strconv"

	"github.com/magnets-moe/processor/internal/domain"
)

var (
	yearRe   = regexp.MustCompile(`\((\d{4})\)`)
	formatRe = regexp.MustCompile(`\((tv|movie|ova|ona|oad)\)`)

	// Season regex: ordinal-word "<N>(st|nd|rd|th) season", "season <N>",
	// "s<N>", and "(first|second|third) season", in priority order. Go's
	// RE2-backed regexp chooses the leftmost-starting match and, among
	// alternatives starting at the same position, the first alternative
	// that matches - a direct analogue of the original's alternation
	// priority.
	seasonRe = regexp.MustCompile(`\b(?:(\d+)(?:st|nd|rd|th)\s+season\b|season\s+(\d{1,5})\b|s(\d+)\b|(first|second|third)\s+season\b)`)
)

// ExtractYear removes the first `(YYYY)` span from s, returning the
// parsed year, the residual string, and whether a match was found.
func ExtractYear(s string) (year int, rest string, ok bool) {
	loc := yearRe.FindStringSubmatchIndex(s)
	if loc == nil {
		return 0, s, false
	}
	y, err := strconv.Atoi(s[loc[2]:loc[3]])
	if err != nil {
		return 0, s, false
	}
	return y, s[:loc[0]] + s[loc[1]:], true
}

// ExtractFormat removes the first `(tv|movie|ova|ona|oad)` span from s.
func ExtractFormat(s string) (format domain.Format, rest string, ok bool) {
	loc := formatRe.FindStringSubmatchIndex(s)
	if loc == nil {
		return 0, s, false
	}
	f, matched := domain.FormatFromParenSpan(s[loc[2]:loc[3]])
	if !matched {
		return 0, s, false
	}
	return f, s[:loc[0]] + s[loc[1]:], true
}

// ExtractSeason removes the rightmost (last non-overlapping) season span
// from s. Go's FindAllStringSubmatchIndex already returns every
// non-overlapping match left to right; taking the last entry is exactly
// the spec's mandated rightmost-match rule.
func ExtractSeason(s string) (season int, rest string, ok bool) {
	matches := seasonRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return 0, s, false
	}
	m := matches[len(matches)-1]

	switch {
	case m[2] >= 0: // ordinal digit group: "<N>(st|nd|rd|th) season"
		n, err := strconv.Atoi(s[m[2]:m[3]])
		if err != nil {
			return 0, s, false
		}
		season = n
	case m[4] >= 0: // "season <N>"
		n, err := strconv.Atoi(s[m[4]:m[5]])
		if err != nil {
			return 0, s, false
		}
		season = n
	case m[6] >= 0: // "s<N>"
		n, err := strconv.Atoi(s[m[6]:m[7]])
		if err != nil {
			return 0, s, false
		}
		season = n
	case m[8] >= 0: // first|second|third season
		switch s[m[8]:m[9]] {
		case "first":
			season = 1
		case "second":
			season = 2
		case "third":
			season = 3
		default:
			return 0, s, false
		}
	default:
		return 0, s, false
	}

	return season, s[:m[0]] + s[m[1]:], true
}

// SearchKey ASCII-lowercases s and keeps only [a-z0-9] bytes.
func SearchKey(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			out = append(out, c)
		}
	}
	return string(out)
}

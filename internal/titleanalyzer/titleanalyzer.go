// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package titleanalyzer turns a raw torrent/release title into a show
// match against a showdb.ShowDB (spec §4.D): normalize, split into
// blocks, isolate the name range, locate the episode span, and search
// the remaining pre-episode text, retrying along a fixed fallback chain
// when the first attempt is ambiguous.
package titleanalyzer

import (
	"fmt"
	"strings"

	"github.com/magnets-moe/processor/internal/matcher"
	"github.com/magnets-moe/processor/internal/showdb"
)

// FindShow matches title against db, returning the single show it
// identifies or an error describing why the match was ambiguous or
// absent.
func FindShow(db *showdb.ShowDB, title string) (*showdb.Show, error) {
	sep := findSeparator(title)
	normalized := normalizeTitle(title, sep)

	blocks := parseBlocks(normalized)
	nameRange := findNameRange(normalized, blocks)
	if len(nameRange) == 0 {
		return nil, fmt.Errorf("name range is empty")
	}

	ep, season, plainDigits := findEpisode(normalized, nameRange)
	preEpisodeRange := truncateBlocks(normalized, nameRange, ep)

	show, err := handlePreEpisodeRange(db, normalized, preEpisodeRange, season)
	if err != nil && plainDigits {
		// e.g. "Mob Psycho 100" - the plain digit run found by
		// findEpisode was actually part of the title, so retry with
		// the episode left in place.
		return handlePreEpisodeRange(db, normalized, nameRange, season)
	}
	return show, err
}

func handlePreEpisodeRange(db *showdb.ShowDB, normalizedTitle string, preEpisodeRange []Block, season *int) (*showdb.Show, error) {
	if len(preEpisodeRange) == 0 {
		return nil, fmt.Errorf("pre episode range is empty")
	}

	preEpisodeTitle := blocksToString(normalizedTitle, preEpisodeRange)
	preEpisodeTitle, meta := extractTitleMetadata(normalizedTitle, preEpisodeTitle)
	if season != nil {
		meta.Season = season
	}

	show, err := matcher.Search(db, preEpisodeTitle, meta)
	if err == nil {
		return show, nil
	}

	if pos := strings.IndexByte(preEpisodeTitle, '|'); pos >= 0 {
		if show2, err2 := matcher.Search(db, preEpisodeTitle[:pos], meta); err2 == nil {
			return show2, nil
		}
	}

	if len(preEpisodeRange) > 1 && preEpisodeRange[len(preEpisodeRange)-1].Delimiter != 0 {
		trimmedRange := preEpisodeRange[:len(preEpisodeRange)-1]
		trimmedTitle := blocksToString(normalizedTitle, trimmedRange)
		trimmedTitle, _ = extractTitleMetadata(normalizedTitle, trimmedTitle)
		return matcher.Search(db, trimmedTitle, meta)
	}

	return show, err
}

// extractTitleMetadata recovers the season and year tagged onto a
// title, preferring a match within preEpisodeTitle (removing the
// matched span) and falling back to a read-only match against the full
// normalized title when preEpisodeTitle carries none.
func extractTitleMetadata(normalizedTitle, preEpisodeTitle string) (string, matcher.Metadata) {
	rest := preEpisodeTitle
	var meta matcher.Metadata

	if s, r, ok := showdb.ExtractSeason(rest); ok {
		v := s
		meta.Season = &v
		rest = r
	} else if s, _, ok := showdb.ExtractSeason(normalizedTitle); ok {
		v := s
		meta.Season = &v
	}

	if y, r, ok := showdb.ExtractYear(rest); ok {
		v := y
		meta.Year = &v
		rest = r
	} else if y, _, ok := showdb.ExtractYear(normalizedTitle); ok {
		v := y
		meta.Year = &v
	}

	// Format is recovered for completeness with the original algorithm
	// but, like upstream, is not currently used to break ties.
	if _, r, ok := showdb.ExtractFormat(rest); ok {
		rest = r
	}

	return rest, meta
}

// findSeparator picks the word-boundary character a release-naming
// convention used: a literal space if present, otherwise whichever of
// '_' or '.' appears more often.
func findSeparator(title string) rune {
	numUnderscore, numDot := 0, 0
	for _, c := range title {
		switch c {
		case ' ':
			return ' '
		case '_':
			numUnderscore++
		case '.':
			numDot++
		}
	}
	if numUnderscore == 0 && numDot == 0 {
		return ' '
	}
	if numUnderscore >= numDot {
		return '_'
	}
	return '.'
}

// normalizeTitle ASCII-lowercases title and collapses every run of
// separator into a single space, trimming one trailing space.
func normalizeTitle(title string, separator rune) string {
	var b strings.Builder
	lastWasSpace := true
	for _, c := range title {
		if c == separator {
			if !lastWasSpace {
				b.WriteByte(' ')
				lastWasSpace = true
			}
			continue
		}
		b.WriteRune(toASCIILower(c))
		lastWasSpace = false
	}
	out := b.String()
	if lastWasSpace && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out
}

func toASCIILower(c rune) rune {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

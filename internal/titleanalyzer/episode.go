// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package titleanalyzer

import (
	"regexp"
	"strconv"
)

// episodeRef locates the episode span found by findEpisode: blockIdx
// indexes into the block slice it was found in, offset is the byte
// position within that block's text where the episode span begins.
type episodeRef struct {
	blockIdx int
	offset   int
}

var (
	episodeRe1 = regexp.MustCompile(`(^|[^a-z0-9])(ep(\.|isodes?)?\s*)?(\d+\s*~\s*\d+|-\s*\d+\s*-\s*\d+|\d+-\d+|0\d+\s*-\s*\d+|(s(?P<season>\d+)e|-\s*|(?P<plain>\d))\d+(\.\d)?\s*(v\d)?)\s*(end|final|oad)?[^a-z0-9]*$`)
	episodeRe2 = regexp.MustCompile(`(^|[^a-z0-9])ep(\.|isodes?)?\s*\d+(\s*(~|-)\s*\d+)?\s*(end|final|oad)?[^a-z0-9]*$`)
	episodeRe3 = regexp.MustCompile(`^[^a-z0-9]*\d+(\s*-\s*\d+)?[^a-z0-9]*$`)
)

var episodePatterns = []*regexp.Regexp{episodeRe1, episodeRe2, episodeRe3}

// findEpisode scans blocks from right to left, returning the position of
// the first (rightmost) episode-shaped span found, the season number it
// carries (only episodeRe1's "s<N>e" form names one), and whether the
// match used the bare "plain digits" alternative (e.g. "Mob Psycho 100").
func findEpisode(title string, blocks []Block) (ep *episodeRef, season *int, plainDigits bool) {
	for i := len(blocks) - 1; i >= 0; i-- {
		val := blocks[i].val(title)
		for _, re := range episodePatterns {
			m := re.FindStringSubmatchIndex(val)
			if m == nil {
				continue
			}
			if s, ok := namedSubmatch(re, m, val, "season"); ok {
				if n, err := strconv.Atoi(s); err == nil {
					season = &n
				}
			}
			_, plainDigits = namedSubmatch(re, m, val, "plain")
			return &episodeRef{blockIdx: i, offset: m[0]}, season, plainDigits
		}
	}
	return nil, nil, false
}

func namedSubmatch(re *regexp.Regexp, m []int, val, name string) (string, bool) {
	for i, n := range re.SubexpNames() {
		if n != name {
			continue
		}
		start, end := m[2*i], m[2*i+1]
		if start < 0 {
			return "", false
		}
		return val[start:end], true
	}
	return "", false
}

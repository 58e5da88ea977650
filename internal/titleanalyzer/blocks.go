// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package titleanalyzer

import "regexp"

// Block is a run of a normalized title delimited by top-level [..] or
// (..) groups, or the plain text between them. Start/End are byte
// offsets into the normalized title the block was parsed from.
type Block struct {
	Delimiter byte // 0, '[', or '('
	Start     int
	End       int
}

func (b Block) val(title string) string { return title[b.Start:b.End] }

func openingPair(c byte) byte {
	if c == ']' {
		return '['
	}
	return '('
}

// parseBlocks splits a normalized title into alternating plain-text and
// bracketed/parenthesized blocks. When the last completed block is plain
// text, it is reopened and extended to the end of the title (absorbing
// any unclosed bracket after it). When any
// block carries no alphanumeric content, filtering down to only the
// blocks that do.
func parseBlocks(title string) []Block {
	var blocks []Block
	cur := Block{Start: 0}

	pushBlock := func(stop int) {
		if cur.Start < stop {
			cur.End = stop
			blocks = append(blocks, cur)
			cur = Block{Start: stop}
		}
	}

	parenDepth := 0
	for i, c := range title {
		switch {
		case c == '[' || c == '(':
			if cur.Delimiter == 0 {
				pushBlock(i)
				cur.Delimiter = byte(c)
			}
			if cur.Delimiter == byte(c) {
				parenDepth++
			}
		case (c == ']' || c == ')') && cur.Delimiter == openingPair(byte(c)):
			parenDepth--
			if parenDepth == 0 {
				pushBlock(i + 1)
			}
		}
	}

	if len(blocks) > 0 {
		last := blocks[len(blocks)-1]
		if last.Delimiter == 0 {
			cur = last
			blocks = blocks[:len(blocks)-1]
		}
	}
	pushBlock(len(title))

	hasIrrelevant := false
	for _, b := range blocks {
		if isNotRelevant(b.val(title)) {
			hasIrrelevant = true
			break
		}
	}
	if !hasIrrelevant {
		return blocks
	}

	filtered := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if isRelevant(b.val(title)) {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

func isRelevant(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			return true
		}
	}
	return false
}

func isNotRelevant(s string) bool { return !isRelevant(s) }

var fileInfoRe = regexp.MustCompile(`\b(\.mkv|mkv|720p|360p|1080p|multiple subtitle|480p|aac|hevc|english dub|multi-?subs?|540p|10bit|10-bit|x265|av1|60pfs|dual-audio|x264)\b`)

// findNameRange walks blocks looking for the run that carries the show
// name, stopping once file-info tokens (resolution, codec, container,
// ...) are encountered, and dropping a trailing bracketed release-group
// tag.
func findNameRange(title string, blocks []Block) []Block {
	var matched []Block
	lastLen := -1

	for _, block := range blocks {
		if len(matched) == 0 && block.Delimiter != 0 {
			continue
		}
		val := block.val(title)
		loc := fileInfoRe.FindStringIndex(val)
		if loc != nil {
			fiStart := loc[0]
			if fiStart > 0 && block.Delimiter == 0 {
				lastLen = fiStart
				matched = append(matched, block)
			}
			if len(matched) > 0 {
				break
			}
			continue
		}
		matched = append(matched, block)
	}

	for len(matched) > 0 && matched[len(matched)-1].Delimiter == '[' {
		matched = matched[:len(matched)-1]
	}
	if len(matched) > 0 && lastLen >= 0 {
		last := &matched[len(matched)-1]
		last.End = last.Start + lastLen
	}
	return matched
}

// truncateBlocks cuts blocks at the episode position found by
// findEpisode, keeping the episode block's pre-episode text when it
// carries relevant content, or dropping it entirely when it is
// delimited or empty after truncation.
func truncateBlocks(title string, blocks []Block, ep *episodeRef) []Block {
	if ep == nil {
		return blocks
	}
	block := blocks[ep.blockIdx]
	if block.Delimiter != 0 {
		return blocks[:ep.blockIdx]
	}
	last := block
	last.End = last.Start + ep.offset
	if isNotRelevant(last.val(title)) {
		return blocks[:ep.blockIdx]
	}
	out := make([]Block, 0, ep.blockIdx+1)
	out = append(out, blocks[:ep.blockIdx]...)
	out = append(out, last)
	return out
}

func blocksToString(title string, blocks []Block) string {
	last := blocks[len(blocks)-1]
	return title[blocks[0].Start:last.End]
}

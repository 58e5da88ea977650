// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package matcher resolves a pre-episode show title (as isolated by
// internal/titleanalyzer) against a showdb.ShowDB: an exact search-key
// match first, falling back to the prefix heap, with season/year used
// to break ties among multiple exact candidates (spec §4.E).
package matcher

import (
	"fmt"

	"github.com/magnets-moe/processor/internal/showdb"
)

// Metadata is the (season, year) tie-break hint recovered from a title
// by the title analyzer. Nil fields mean "not present in the title".
type Metadata struct {
	Season *int
	Year   *int
}

// heapResultCap bounds how many prefix-heap hits get collected before
// giving up on finding a unique match; it only affects the error
// message's displayed count, since a unique match always has exactly 1
// result regardless of where the cap falls.
const heapResultCap = 10

// Search resolves title's search key against db: an exact match short
// circuits (breaking ties via meta when more than one show shares the
// key), otherwise the prefix heap's longest-match subtree is searched
// for a uniquely-identifying show.
func Search(db *showdb.ShowDB, title string, meta Metadata) (*showdb.Show, error) {
	key := showdb.SearchKey(title)

	idxs, ok := db.ExactMap[key]
	if !ok {
		return searchPrefix(db, key)
	}

	idxs = uniqueInts(idxs)
	if len(idxs) == 1 {
		return &db.Shows[idxs[0]], nil
	}
	return breakTie(db, idxs, meta)
}

func searchPrefix(db *showdb.ShowDB, key string) (*showdb.Show, error) {
	node := db.Heap.Find(key)
	results := uniqueInts(db.Heap.Iter(node))
	if len(results) > heapResultCap {
		results = results[:heapResultCap]
	}
	if len(results) == 1 {
		return &db.Shows[results[0]], nil
	}
	return nil, fmt.Errorf("found no perfect match, trie search returned %d+ results", len(results))
}

// breakTie narrows idxs (all sharing one exact search key) down to a
// single show using season, then year: shows matching both season and
// year win outright; otherwise a unique season match wins, then a
// unique year match, then - if no candidate matches the season - the
// untouched candidate list, and otherwise all the season matches. It
// errors unless exactly one show remains.
func breakTie(db *showdb.ShowDB, idxs []int, meta Metadata) (*showdb.Show, error) {
	var total, bySeason, byYear []int

	for _, idx := range idxs {
		show := db.Shows[idx]

		seasonMatches := false
		if meta.Season == nil {
			seasonMatches = len(show.Seasons) == 0
		} else {
			for _, s := range show.Seasons {
				if int(s) == *meta.Season {
					seasonMatches = true
					break
				}
			}
		}

		yearMatches := false
		if meta.Year != nil {
			for _, y := range show.Years {
				if int(y) == *meta.Year {
					yearMatches = true
					break
				}
			}
		}

		if seasonMatches {
			if yearMatches {
				total = append(total, idx)
			} else {
				bySeason = append(bySeason, idx)
			}
		}
		if yearMatches {
			byYear = append(byYear, idx)
		}
	}

	final := total
	if len(total) == 0 {
		switch {
		case len(bySeason) == 1:
			final = bySeason
		case len(byYear) == 1:
			final = byYear
		case len(bySeason) == 0:
			final = idxs
		default:
			final = bySeason
		}
	}

	if len(final) == 1 {
		return &db.Shows[final[0]], nil
	}
	return nil, fmt.Errorf("found %d perfect matches", len(final))
}

func uniqueInts(s []int) []int {
	seen := make(map[int]bool, len(s))
	out := make([]int, 0, len(s))
	for _, v := range s {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

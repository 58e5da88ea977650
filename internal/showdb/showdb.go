// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package showdb builds and serves the immutable, versioned snapshot of
// known shows used by the matcher (spec §4.C). A ShowDB is built once
// from a flat list of show inputs and never mutated afterward; the
// reconciliation driver builds a fresh ShowDB and swaps it into a
// Holder whenever the show catalog changes.
package showdb

import (
	"strings"
	"sync/atomic"

	"github.com/magnets-moe/processor/internal/arena"
	"github.com/magnets-moe/processor/internal/domain"
	"github.com/magnets-moe/processor/internal/heap"
)

// ShowInput is the flat, store-agnostic input to Build: one row per
// (show, name) pair, carrying that show's catalogue format and (if any)
// airing year alongside each name. Callers in internal/reconcile are
// responsible for mapping store rows into ShowInputs.
type ShowInput struct {
	ShowID    int64
	AnilistID int64
	Name      string

	// Format is the show's catalogue format (TV, Movie, OVA, ...) -
	// always present, seeded into Formats below independent of what any
	// individual name parses to.
	Format domain.Format
	// Year is the show's catalogue airing year, if the store has one
	// recorded (nil for shows with no known airing season yet).
	Year *uint16
}

// Show is one entry in a built ShowDB: the set of names it is known by
// (interned in the arena), plus whatever year/format/season tags were
// extracted from those names while building the search index.
type Show struct {
	ShowID    int64
	AnilistID int64
	Names     arena.Handle

	Years   []uint16
	Formats []domain.Format
	Seasons []domain.Season
}

// ShowDB is an immutable snapshot: a set of shows, the arena backing
// their names, an exact-match index from search key to show indexes,
// and a prefix heap over the same search keys for fallback lookups.
type ShowDB struct {
	Shows []Show
	Names *arena.Arena

	ExactMap map[string][]int
	Heap     *heap.Heap[int]
}

// Build constructs a ShowDB from a flat list of (show, name) rows. Rows
// for the same ShowID need not be contiguous; Build groups them.
func Build(inputs []ShowInput) *ShowDB {
	order := make([]int64, 0)
	byShow := make(map[int64]*showAccum)

	for _, in := range inputs {
		acc, ok := byShow[in.ShowID]
		if !ok {
			acc = &showAccum{anilistID: in.AnilistID, format: in.Format, year: in.Year}
			byShow[in.ShowID] = acc
			order = append(order, in.ShowID)
		}
		acc.names = append(acc.names, in.Name)
	}

	names := arena.New()
	shows := make([]Show, 0, len(order))
	heapItems := make([]heap.Item[int], 0, len(inputs))
	exactMap := make(map[string][]int)

	for _, showID := range order {
		acc := byShow[showID]
		showIdx := len(shows)

		// Seed from the catalogue row first, matching load_shows/build_db's
		// order in the original: every show always carries its catalogue
		// format (Formats is never empty), and its catalogue airing year
		// if one is recorded, before any per-name extraction runs. Season
		// has no catalogue-level equivalent here and is only ever derived
		// from names below.
		yearSet := map[uint16]bool{}
		if acc.year != nil {
			yearSet[*acc.year] = true
		}
		formatSet := map[domain.Format]bool{acc.format: true}
		seasonSet := map[domain.Season]bool{}

		for _, raw := range acc.names {
			lower := strings.ToLower(raw)
			names.Push(raw)

			rest := lower
			if y, r, ok := ExtractYear(rest); ok {
				yearSet[uint16(y)] = true
				rest = r
			}
			if f, r, ok := ExtractFormat(rest); ok {
				formatSet[f] = true
				rest = r
			}
			if s, r, ok := ExtractSeason(rest); ok {
				if sn, err := domain.SeasonFromDB(int16(s)); err == nil {
					seasonSet[sn] = true
				}
				rest = r
			}

			key := SearchKey(rest)
			if key == "" {
				continue
			}
			exactMap[key] = append(exactMap[key], showIdx)
			heapItems = append(heapItems, heap.Item[int]{Key: key, Payload: showIdx})
		}

		handle := names.FinishList()
		shows = append(shows, Show{
			ShowID:    showID,
			AnilistID: acc.anilistID,
			Names:     handle,
			Years:     sortedUint16Keys(yearSet),
			Formats:   sortedFormatKeys(formatSet),
			Seasons:   sortedSeasonKeys(seasonSet),
		})
	}

	return &ShowDB{
		Shows:    shows,
		Names:    names,
		ExactMap: exactMap,
		Heap:     heap.Build(heapItems),
	}
}

type showAccum struct {
	anilistID int64
	format    domain.Format
	year      *uint16
	names     []string
}

func sortedUint16Keys(m map[uint16]bool) []uint16 {
	out := make([]uint16, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	insertionSortUint16(out)
	return out
}

func sortedFormatKeys(m map[domain.Format]bool) []domain.Format {
	out := make([]domain.Format, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	insertionSortFormat(out)
	return out
}

func sortedSeasonKeys(m map[domain.Season]bool) []domain.Season {
	out := make([]domain.Season, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	insertionSortSeason(out)
	return out
}

func insertionSortUint16(s []uint16) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func insertionSortFormat(s []domain.Format) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func insertionSortSeason(s []domain.Season) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Holder publishes ShowDB snapshots for lock-free concurrent reads. The
// reconciliation driver calls Store after each rebuild; every other
// goroutine calls Load to get the current snapshot.
type Holder struct {
	v atomic.Pointer[ShowDB]
}

// NewHolder returns a Holder seeded with an empty ShowDB.
func NewHolder() *Holder {
	h := &Holder{}
	h.Store(Build(nil))
	return h
}

// Load returns the current snapshot. Safe for concurrent use.
func (h *Holder) Load() *ShowDB { return h.v.Load() }

// Store atomically publishes a new snapshot, discarding no in-flight
// readers of the previous one - they keep the *ShowDB they already
// loaded until they call Load again.
func (h *Holder) Store(db *ShowDB) { h.v.Store(db) }

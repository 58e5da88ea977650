// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reconcile

import (
	"context"
	"sync"
	"testing"

	"github.com/magnets-moe/processor/internal/nyaa"
	"github.com/magnets-moe/processor/internal/showdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHolder() *showdb.Holder {
	h := showdb.NewHolder()
	h.Store(showdb.Build([]showdb.ShowInput{
		{ShowID: 1, AnilistID: 101, Name: "Shigatsu wa Kimi no Uso"},
		{ShowID: 2, AnilistID: 202, Name: "Oreshura"},
	}))
	return h
}

type fakeTorrentStore struct {
	mu           sync.Mutex
	maxID        int64
	byNyaaID     map[int64]int64
	nextID       int64
	matches      map[int64]int64
	matchedFlag  map[int64]bool
	titles       map[int64]string // keyed by nyaa id
	mode         RematchMode
	refreshCalls int
	clearCalls   int
	releaseTags  map[int64]ReleaseTags
}

func newFakeTorrentStore(maxID int64) *fakeTorrentStore {
	return &fakeTorrentStore{
		maxID:       maxID,
		byNyaaID:    map[int64]int64{},
		matches:     map[int64]int64{},
		matchedFlag: map[int64]bool{},
		titles:      map[int64]string{},
		releaseTags: map[int64]ReleaseTags{},
	}
}

func (f *fakeTorrentStore) MaxNyaaID(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxID, nil
}

func (f *fakeTorrentStore) SetMaxNyaaID(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maxID = id
	return nil
}

func (f *fakeTorrentStore) InsertTorrent(_ context.Context, t nyaa.Torrent) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.byNyaaID[t.NyaaID]; ok {
		return id, false, nil
	}
	f.nextID++
	id := f.nextID
	f.byNyaaID[t.NyaaID] = id
	f.matchedFlag[id] = false
	return id, true, nil
}

func (f *fakeTorrentStore) InsertMatch(_ context.Context, torrentID, showID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches[torrentID] = showID
	f.matchedFlag[torrentID] = true
	return nil
}

func (f *fakeTorrentStore) SetReleaseTags(_ context.Context, torrentID int64, tags ReleaseTags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseTags[torrentID] = tags
	return nil
}

func (f *fakeTorrentStore) ClearAllMatches(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++
	f.matches = map[int64]int64{}
	for id := range f.matchedFlag {
		f.matchedFlag[id] = false
	}
	return nil
}

func (f *fakeTorrentStore) RefreshMatchedFlags(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	for id := range f.matchedFlag {
		_, matched := f.matches[id]
		f.matchedFlag[id] = matched
	}
	return nil
}

func (f *fakeTorrentStore) UnmatchedTorrents(context.Context) ([]UnmatchedTorrent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []UnmatchedTorrent
	titles := map[int64]string{}
	for nyaaID, id := range f.byNyaaID {
		titles[id] = f.titles[nyaaID]
	}
	for id, matched := range f.matchedFlag {
		if !matched {
			out = append(out, UnmatchedTorrent{TorrentID: id, Title: titles[id]})
		}
	}
	return out, nil
}

func (f *fakeTorrentStore) RematchMode(context.Context) (RematchMode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode, nil
}

func (f *fakeTorrentStore) SetRematchMode(_ context.Context, mode RematchMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = mode
	return nil
}

func TestIngestTorrentsStopsOnOverlap(t *testing.T) {
	store := newFakeTorrentStore(1000)
	holder := testHolder()

	calls := 0
	scrape := func(_ context.Context, page int) ([]nyaa.Torrent, error) {
		calls++
		// 900 + torrentOverlapWindow <= maxID=1000, so the first page
		// overlaps what is on file and ingestion should stop there.
		return []nyaa.Torrent{
			{NyaaID: 900, Title: "[Group] Shigatsu wa Kimi no Uso - 01 [1080p].mkv"},
		}, nil
	}

	err := IngestTorrents(context.Background(), scrape, store, holder)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestIngestTorrentsMatchesNewTorrents(t *testing.T) {
	store := newFakeTorrentStore(0)
	store.titles = map[int64]string{
		2000: "[SubsPlease] Oreshura - 05 (1080p) [ABCDEF12].mkv",
	}
	holder := testHolder()

	scrape := func(_ context.Context, page int) ([]nyaa.Torrent, error) {
		return []nyaa.Torrent{
			{NyaaID: 2000, Title: store.titles[2000]},
		}, nil
	}

	err := IngestTorrents(context.Background(), scrape, store, holder)
	require.NoError(t, err)

	torrentID := store.byNyaaID[2000]
	assert.Equal(t, int64(2), store.matches[torrentID])
	assert.Equal(t, int64(2000), store.maxID)

	tags := store.releaseTags[torrentID]
	assert.Equal(t, "1080p", tags.Resolution)
	assert.Equal(t, "SubsPlease", tags.ReleaseGroup)
}

func TestRematchUnmatchedDoesNothingWhenModeIsNone(t *testing.T) {
	store := newFakeTorrentStore(0)
	store.mode = RematchNone
	holder := testHolder()

	err := RematchUnmatched(context.Background(), store, holder)
	require.NoError(t, err)
	assert.Equal(t, 0, store.refreshCalls)
}

func TestRematchUnmatchedMatchesUnmatchedTorrents(t *testing.T) {
	store := newFakeTorrentStore(0)
	store.mode = RematchUnmatched
	store.titles = map[int64]string{3000: "[Group] Oreshura - 01 [1080p].mkv"}
	store.byNyaaID[3000] = 1
	store.nextID = 1
	store.matchedFlag[1] = false
	holder := testHolder()

	err := RematchUnmatched(context.Background(), store, holder)
	require.NoError(t, err)

	assert.Equal(t, int64(2), store.matches[1])
	assert.Equal(t, RematchNone, store.mode)
	assert.Equal(t, 1, store.refreshCalls)
	assert.Equal(t, 0, store.clearCalls)
}

func TestRematchAllClearsExistingMatchesFirst(t *testing.T) {
	store := newFakeTorrentStore(0)
	store.mode = RematchAll
	store.titles = map[int64]string{3000: "[Group] Oreshura - 01 [1080p].mkv"}
	store.byNyaaID[3000] = 1
	store.nextID = 1
	store.matches[1] = 999 // stale match, should be cleared then rematched
	store.matchedFlag[1] = true

	holder := testHolder()

	err := RematchUnmatched(context.Background(), store, holder)
	require.NoError(t, err)

	assert.Equal(t, 1, store.clearCalls)
	assert.Equal(t, int64(2), store.matches[1])
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package reconcile is the driver that ties the show database, the
// title analyzer/matcher, the Anilist client, and the nyaa.si scraper
// into the four background jobs magnets runs continuously (spec §4.H):
// syncing the show catalog, syncing the airing schedule, ingesting new
// torrents (and matching them as they come in), and rematching
// previously-unmatched (or, on demand, all) torrents.
package reconcile

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/magnets-moe/processor/internal/nyaa"
	"github.com/magnets-moe/processor/internal/showdb"
	"github.com/magnets-moe/processor/internal/titleanalyzer"
	"github.com/magnets-moe/processor/pkg/titles"
	"github.com/rs/zerolog/log"
)

// ReleaseTags is best-effort release metadata tagged onto a torrent
// once it has already been matched to a show - auxiliary catalogue
// display data, never consulted by the matcher.
type ReleaseTags struct {
	Resolution   string
	Source       string
	VideoCodec   string
	ReleaseGroup string
}

// tagger parses release names for auxiliary display metadata. It is
// package-level rather than threaded through every call because it is
// stateless apart from its internal TTL cache, which is safe to share
// across every IngestTorrents/rematch invocation.
var tagger = titles.NewParser()

// tagRelease runs title through the release tagger and returns the
// fields worth persisting, ignoring anything the parser couldn't
// extract.
func tagRelease(ctx context.Context, title string) ReleaseTags {
	parsed := tagger.ParseTitles(ctx, []string{title})
	if len(parsed) == 0 {
		return ReleaseTags{}
	}
	p := parsed[0]
	var codec string
	if len(p.Codec) > 0 {
		codec = p.Codec[0]
	}
	// nyaa.si releases are almost universally fansub-tagged with a
	// leading "[Group]" bracket, which rls reports through Site rather
	// than Group (Group is the scene-release "-GROUP" suffix
	// convention); prefer whichever one the parser actually populated.
	group := p.Group
	if group == "" {
		group = p.Site
	}
	return ReleaseTags{
		Resolution:   p.Resolution,
		Source:       p.Source,
		VideoCodec:   codec,
		ReleaseGroup: group,
	}
}

// State keys persisted in the store's key/value state table, one per
// background job so each can be woken and rescheduled independently.
const (
	LastShowsUpdateKey    = "last_shows_update"
	LastScheduleUpdateKey = "last_schedule_update"
	MaxNyaaSiIDKey        = "max_nyaa_si_id"
	RematchUnmatchedKey   = "rematch_unmatched"
	InitialSetupKey       = "initial_setup"
)

// RematchMode controls how broadly RematchUnmatched re-runs the
// matcher over stored torrents.
type RematchMode int

const (
	RematchNone RematchMode = iota
	RematchUnmatched
	RematchAll
)

// torrentOverlapWindow is how far below the highest known nyaa id a
// scraped torrent's id must be before IngestTorrents treats its page
// as overlapping what is already on file. nyaa.si's listing can reorder a handful of ids
// across consecutive scrapes (uploads racing the page render), so
// requiring an exact id match on the boundary would occasionally
// stop paging one page too early.
const torrentOverlapWindow = 74

// maxIngestPages bounds how many nyaa.si pages IngestTorrents will
// walk in a single run, so an empty or wiped torrent table (or an
// upstream bug that never reports an overlap) cannot turn one ingest
// into an unbounded full-catalog crawl.
const maxIngestPages = 100

// UnmatchedTorrent is one torrent row with matched = false.
type UnmatchedTorrent struct {
	TorrentID int64
	Title     string
}

// TorrentStore is the narrow persistence surface the torrent ingest
// and rematch jobs need.
type TorrentStore interface {
	MaxNyaaID(ctx context.Context) (int64, error)
	SetMaxNyaaID(ctx context.Context, id int64) error
	// InsertTorrent inserts t if no row with its NyaaID exists yet,
	// returning the row's id and whether it was newly inserted.
	// Already-present torrents are assumed already matched (or
	// already attempted), and are not returned for matching.
	InsertTorrent(ctx context.Context, t nyaa.Torrent) (torrentID int64, inserted bool, err error)
	InsertMatch(ctx context.Context, torrentID, showID int64) error
	SetReleaseTags(ctx context.Context, torrentID int64, tags ReleaseTags) error

	ClearAllMatches(ctx context.Context) error
	RefreshMatchedFlags(ctx context.Context) error
	UnmatchedTorrents(ctx context.Context) ([]UnmatchedTorrent, error)

	RematchMode(ctx context.Context) (RematchMode, error)
	SetRematchMode(ctx context.Context, mode RematchMode) error
}

// ShowDBSource loads the flat rows showdb.Build needs to construct a
// fresh snapshot, reflecting whatever the store currently holds.
type ShowDBSource interface {
	LoadShowInputs(ctx context.Context) ([]showdb.ShowInput, error)
}

// RefreshShowDB rebuilds the show database from src and atomically
// publishes it through holder, so the title analyzer picks up newly
// synced Anilist shows without a restart.
func RefreshShowDB(ctx context.Context, src ShowDBSource, holder *showdb.Holder) error {
	inputs, err := src.LoadShowInputs(ctx)
	if err != nil {
		return fmt.Errorf("load show inputs: %w", err)
	}
	holder.Store(showdb.Build(inputs))
	return nil
}

// PageScraper fetches one nyaa.si listing page. HTTPPageScraper adapts
// nyaa.ScrapePage to this shape for production use; tests supply a
// canned scraper instead of hitting the network.
type PageScraper func(ctx context.Context, page int) ([]nyaa.Torrent, error)

// HTTPPageScraper returns a PageScraper that fetches real nyaa.si
// pages through client.
func HTTPPageScraper(client *http.Client) PageScraper {
	return func(ctx context.Context, page int) ([]nyaa.Torrent, error) {
		return nyaa.ScrapePage(ctx, client, page)
	}
}

// IngestTorrents scrapes nyaa.si starting from page 1, paging forward
// until a page contains a torrent whose id is at least
// torrentOverlapWindow below the highest known id, or
// maxIngestPages is reached, paced one second apart between page
// fetches. Every newly inserted torrent is immediately run through the
// title analyzer and, on a match, linked to its show.
func IngestTorrents(ctx context.Context, scrape PageScraper, store TorrentStore, holder *showdb.Holder) error {
	maxID, err := store.MaxNyaaID(ctx)
	if err != nil {
		return fmt.Errorf("load max nyaa id: %w", err)
	}

	var torrents []nyaa.Torrent
	pace := time.Now()
	for page := 1; page <= maxIngestPages; page++ {
		if page > 1 {
			log.Info().Int("page", page).Msg("loading nyaa.si page")
		}

		fresh, err := scrape(ctx, page)
		if err != nil {
			return fmt.Errorf("scrape nyaa.si page %d: %w", page, err)
		}

		sawExisting := false
		for _, t := range fresh {
			if t.NyaaID+torrentOverlapWindow <= maxID {
				sawExisting = true
				break
			}
		}
		torrents = append(torrents, fresh...)
		if sawExisting {
			break
		}

		pace = pace.Add(time.Second)
		select {
		case <-time.After(time.Until(pace)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if len(torrents) == 0 {
		return nil
	}

	// Load the show database before writing torrents, so every torrent
	// inserted below is matched against a snapshot at least as fresh as
	// this ingest run.
	db := holder.Load()

	sort.Slice(torrents, func(i, j int) bool { return torrents[i].NyaaID < torrents[j].NyaaID })

	newMax := maxID
	for _, t := range torrents {
		if t.NyaaID > newMax {
			newMax = t.NyaaID
		}

		torrentID, inserted, err := store.InsertTorrent(ctx, t)
		if err != nil {
			return fmt.Errorf("insert torrent %d: %w", t.NyaaID, err)
		}
		if !inserted {
			continue
		}

		show, err := titleanalyzer.FindShow(db, t.Title)
		if err != nil {
			log.Error().Err(err).Str("title", t.Title).Msg("could not match torrent")
			continue
		}
		if err := store.InsertMatch(ctx, torrentID, show.ShowID); err != nil {
			return fmt.Errorf("insert match for torrent %d: %w", torrentID, err)
		}
		if err := store.SetReleaseTags(ctx, torrentID, tagRelease(ctx, t.Title)); err != nil {
			log.Warn().Err(err).Str("title", t.Title).Msg("could not set release tags")
		}
	}

	if err := store.SetMaxNyaaID(ctx, newMax); err != nil {
		return fmt.Errorf("update max nyaa id: %w", err)
	}
	return nil
}

// RematchUnmatched re-runs the matcher over stored torrents according
// to the store's persisted rematch mode, clearing it back to
// RematchNone once done. A store error reading the mode is treated as
// RematchNone rather than aborted, matching the upstream behavior of
// never letting a rematch-mode read failure wedge the job loop.
func RematchUnmatched(ctx context.Context, store TorrentStore, holder *showdb.Holder) error {
	mode, err := store.RematchMode(ctx)
	if err != nil {
		log.Error().Err(err).Msg("could not get rematch mode, assuming none")
		mode = RematchNone
	}
	if mode == RematchNone {
		return nil
	}

	log.Info().Msg("rematching torrents")
	if err := rematch(ctx, store, holder, mode); err != nil {
		return fmt.Errorf("rematch torrents: %w", err)
	}
	return nil
}

func rematch(ctx context.Context, store TorrentStore, holder *showdb.Holder, mode RematchMode) error {
	db := holder.Load()

	if mode == RematchAll {
		if err := store.ClearAllMatches(ctx); err != nil {
			return fmt.Errorf("clear matches: %w", err)
		}
	}
	if err := store.RefreshMatchedFlags(ctx); err != nil {
		return fmt.Errorf("refresh matched flags: %w", err)
	}

	unmatched, err := store.UnmatchedTorrents(ctx)
	if err != nil {
		return fmt.Errorf("load unmatched torrents: %w", err)
	}

	matched := 0
	for _, u := range unmatched {
		show, err := titleanalyzer.FindShow(db, u.Title)
		if err != nil {
			continue
		}
		if err := store.InsertMatch(ctx, u.TorrentID, show.ShowID); err != nil {
			return fmt.Errorf("insert match for torrent %d: %w", u.TorrentID, err)
		}
		if err := store.SetReleaseTags(ctx, u.TorrentID, tagRelease(ctx, u.Title)); err != nil {
			log.Warn().Err(err).Str("title", u.Title).Msg("could not set release tags")
		}
		if mode != RematchAll {
			log.Info().Int64("torrent_id", u.TorrentID).Int64("show_id", show.ShowID).
				Str("title", u.Title).Msg("matched previously unmatched torrent")
		}
		matched++
	}
	log.Info().Int("matched", matched).Int("total", len(unmatched)).Msg("finished rematching torrents")

	return store.SetRematchMode(ctx, RematchNone)
}

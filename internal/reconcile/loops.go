// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reconcile

import (
	"context"
	"net/http"
	"time"

	"github.com/magnets-moe/processor/internal/anilist"
	"github.com/magnets-moe/processor/internal/scheduler"
	"github.com/magnets-moe/processor/internal/showdb"
	"github.com/rs/zerolog/log"
)

// RunShowSync runs SyncShows on the schedule tracked under
// LastShowsUpdateKey, rebuilding the in-memory show database from the
// store every time a sync completes so the matcher sees new shows
// without a restart.
func RunShowSync(ctx context.Context, state scheduler.StateStore, period time.Duration, notify <-chan struct{}, client *anilist.Client, store anilist.ShowStore, src ShowDBSource, holder *showdb.Holder) {
	sched := scheduler.New(state, LastShowsUpdateKey, period)
	scheduler.Run(ctx, sched, notify, func(ctx context.Context) error {
		log.Info().Msg("loading the shows")
		if err := anilist.SyncShows(ctx, client, store); err != nil {
			return err
		}
		if err := RefreshShowDB(ctx, src, holder); err != nil {
			log.Error().Err(err).Msg("refreshing show db failed")
		}
		return nil
	})
}

// RunScheduleSync runs SyncSchedule on the schedule tracked under
// LastScheduleUpdateKey.
func RunScheduleSync(ctx context.Context, state scheduler.StateStore, period time.Duration, notify <-chan struct{}, client *anilist.Client, store anilist.ScheduleStore) {
	sched := scheduler.New(state, LastScheduleUpdateKey, period)
	scheduler.Run(ctx, sched, notify, func(ctx context.Context) error {
		log.Info().Msg("loading the schedule")
		return anilist.SyncSchedule(ctx, client, store)
	})
}

// RunTorrentIngest polls nyaa.si for new torrents every interval,
// woken early by notify. The store fires that notification on every
// write of MaxNyaaSiIDKey, and IngestTorrents itself writes the key at
// the end of each run that scraped any torrents, so such a run is
// followed by another without waiting for interval.
func RunTorrentIngest(ctx context.Context, interval time.Duration, notify <-chan struct{}, client *http.Client, store TorrentStore, holder *showdb.Holder) {
	scrape := HTTPPageScraper(client)
	for {
		select {
		case <-notify:
		case <-time.After(interval):
		case <-ctx.Done():
			return
		}

		log.Info().Msg("scraping nyaa.si")
		if err := IngestTorrents(ctx, scrape, store, holder); err != nil {
			log.Error().Err(err).Msg("could not load torrents")
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// RunRematchLoop wakes on notify (fired when RematchUnmatchedKey
// changes in the store) and runs RematchUnmatched. Unlike the other
// three loops this one has no timer fallback: a rematch is only ever
// triggered on demand.
func RunRematchLoop(ctx context.Context, notify <-chan struct{}, store TorrentStore, holder *showdb.Holder) {
	for {
		select {
		case <-notify:
		case <-ctx.Done():
			return
		}

		if err := RematchUnmatched(ctx, store, holder); err != nil {
			log.Error().Err(err).Msg("matching unmatched torrents failed")
		}
	}
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: MIT

package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/magnets-moe/processor/internal/reconcile"
	"github.com/magnets-moe/processor/internal/showdb"
)

// collectTimeout bounds how long a single Collect call is allowed to
// block the Prometheus scrape on store queries.
const collectTimeout = 10 * time.Second

// StateStore is the narrow store surface the collector needs to
// publish the Periodic Scheduler's last-run timestamps and the
// reconciliation driver's outstanding-work counts.
type StateStore interface {
	GetState(ctx context.Context, key string) (time.Time, error)
	UnmatchedTorrents(ctx context.Context) ([]reconcile.UnmatchedTorrent, error)
}

// ProcessorCollector reports the size of the live ShowDB snapshot, the
// count of torrents still awaiting a match, and the age of each
// Periodic Scheduler job's last successful run.
type ProcessorCollector struct {
	holder *showdb.Holder
	store  StateStore

	showsTotalDesc        *prometheus.Desc
	unmatchedTorrentsDesc *prometheus.Desc
	lastSyncTimestampDesc *prometheus.Desc
}

// NewProcessorCollector returns a collector reading holder and store
// at each scrape; neither is copied, so updates made by the
// reconciliation driver after construction are reflected automatically.
func NewProcessorCollector(holder *showdb.Holder, store StateStore) *ProcessorCollector {
	return &ProcessorCollector{
		holder: holder,
		store:  store,

		showsTotalDesc: prometheus.NewDesc(
			"magnets_shows_total",
			"Number of shows in the live ShowDB snapshot",
			nil,
			nil,
		),
		unmatchedTorrentsDesc: prometheus.NewDesc(
			"magnets_unmatched_torrents",
			"Number of ingested torrents with no matched show",
			nil,
			nil,
		),
		lastSyncTimestampDesc: prometheus.NewDesc(
			"magnets_last_sync_timestamp_seconds",
			"Unix timestamp of the last successful run of a scheduled job",
			[]string{"job"},
			nil,
		),
	}
}

func (c *ProcessorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.showsTotalDesc
	ch <- c.unmatchedTorrentsDesc
	ch <- c.lastSyncTimestampDesc
}

// jobStateKeys pairs each scheduled job's label with the state key the
// scheduler records its last-run timestamp under.
var jobStateKeys = map[string]string{
	"shows":    reconcile.LastShowsUpdateKey,
	"schedule": reconcile.LastScheduleUpdateKey,
}

func (c *ProcessorCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	ch <- prometheus.MustNewConstMetric(
		c.showsTotalDesc,
		prometheus.GaugeValue,
		float64(len(c.holder.Load().Shows)),
	)

	unmatched, err := c.store.UnmatchedTorrents(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("cannot collect unmatched torrent count")
	} else {
		ch <- prometheus.MustNewConstMetric(
			c.unmatchedTorrentsDesc,
			prometheus.GaugeValue,
			float64(len(unmatched)),
		)
	}

	for job, key := range jobStateKeys {
		last, err := c.store.GetState(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("job", job).Msg("cannot collect last-sync timestamp")
			continue
		}
		ch <- prometheus.MustNewConstMetric(
			c.lastSyncTimestampDesc,
			prometheus.GaugeValue,
			float64(last.Unix()),
			job,
		)
	}
}

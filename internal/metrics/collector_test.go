// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: MIT

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magnets-moe/processor/internal/reconcile"
	"github.com/magnets-moe/processor/internal/showdb"
)

type fakeStateStore struct {
	unmatched []reconcile.UnmatchedTorrent
	last      time.Time
	err       error
}

func (f *fakeStateStore) GetState(context.Context, string) (time.Time, error) {
	return f.last, f.err
}

func (f *fakeStateStore) UnmatchedTorrents(context.Context) ([]reconcile.UnmatchedTorrent, error) {
	return f.unmatched, f.err
}

func TestProcessorCollectorReportsShowsAndUnmatched(t *testing.T) {
	holder := showdb.NewHolder()
	holder.Store(showdb.Build([]showdb.ShowInput{
		{ShowID: 1, AnilistID: 101, Name: "Show One"},
		{ShowID: 2, AnilistID: 202, Name: "Show Two"},
	}))

	store := &fakeStateStore{
		unmatched: []reconcile.UnmatchedTorrent{{TorrentID: 5, Title: "t"}},
		last:      time.Unix(1700000000, 0).UTC(),
	}

	collector := NewProcessorCollector(holder, store)
	ch := make(chan prometheus.Metric, 16)
	collector.Collect(ch)
	close(ch)

	var metrics []*dto.Metric
	for m := range ch {
		var out dto.Metric
		require.NoError(t, m.Write(&out))
		metrics = append(metrics, &out)
	}

	require.Len(t, metrics, 4) // shows_total + unmatched + 2 job timestamps

	assert.Equal(t, float64(2), metrics[0].GetGauge().GetValue())
	assert.Equal(t, float64(1), metrics[1].GetGauge().GetValue())
}

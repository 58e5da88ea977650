// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFromAnilist(t *testing.T) {
	cases := map[string]Format{
		"TV":       FormatTV,
		"TV_SHORT": FormatTVShort,
		"MOVIE":    FormatMovie,
		"SPECIAL":  FormatSpecial,
		"OVA":      FormatOVA,
		"ONA":      FormatONA,
	}
	for in, want := range cases {
		got, err := FormatFromAnilist(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := FormatFromAnilist("MUSIC")
	assert.Error(t, err)
}

func TestFormatFromParenSpanFoldsOAD(t *testing.T) {
	f, ok := FormatFromParenSpan("oad")
	require.True(t, ok)
	assert.Equal(t, FormatOVA, f)
}

func TestFormatDBRoundTrip(t *testing.T) {
	for _, f := range []Format{FormatTV, FormatTVShort, FormatMovie, FormatSpecial, FormatOVA, FormatONA} {
		got, err := FormatFromDB(f.ToDB())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
}

func TestSeasonFromMonth(t *testing.T) {
	cases := map[time.Month]Season{
		time.January:   SeasonWinter,
		time.March:     SeasonWinter,
		time.April:     SeasonSpring,
		time.June:      SeasonSpring,
		time.July:      SeasonSummer,
		time.September: SeasonSummer,
		time.October:   SeasonFall,
		time.December:  SeasonFall,
	}
	for m, want := range cases {
		assert.Equal(t, want, SeasonFromMonth(m))
	}
}

func TestYearSeasonDBRoundTrip(t *testing.T) {
	ys := YearSeason{Year: 2020, Season: SeasonSpring}
	assert.Equal(t, int32(202002), ys.ToDB())

	back, err := YearSeasonFromDB(202002)
	require.NoError(t, err)
	assert.Equal(t, ys, back)
}

func TestYearSeasonNextPrevRollover(t *testing.T) {
	fall := YearSeason{Year: 2020, Season: SeasonFall}
	assert.Equal(t, YearSeason{Year: 2021, Season: SeasonWinter}, fall.Next())

	winter := YearSeason{Year: 2021, Season: SeasonWinter}
	assert.Equal(t, YearSeason{Year: 2020, Season: SeasonFall}, winter.Prev())
}

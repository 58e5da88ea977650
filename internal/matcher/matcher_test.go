// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package matcher

import (
	"testing"

	"github.com/magnets-moe/processor/internal/showdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB() *showdb.ShowDB {
	return showdb.Build([]showdb.ShowInput{
		{ShowID: 1, AnilistID: 101, Name: "Oreshura"},
		{ShowID: 2, AnilistID: 202, Name: "Oreshura Season 2"},
		{ShowID: 3, AnilistID: 303, Name: "Cowboy Bebop (1998)"},
		{ShowID: 4, AnilistID: 404, Name: "Nisekoi"},
		{ShowID: 4, AnilistID: 404, Name: "Nisekoi (2014)"},
	})
}

func TestSearchExactUniqueMatch(t *testing.T) {
	db := testDB()
	show, err := Search(db, "cowboy bebop", Metadata{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), show.ShowID)
}

func TestSearchBreaksTieBySeason(t *testing.T) {
	db := testDB()
	season := 2
	show, err := Search(db, "oreshura", Metadata{Season: &season})
	require.NoError(t, err)
	assert.Equal(t, int64(2), show.ShowID)
}

func TestSearchFallsBackToNoSeasonCandidate(t *testing.T) {
	db := testDB()
	show, err := Search(db, "oreshura", Metadata{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), show.ShowID)
}

func TestSearchPrefixFallbackOnUniqueSubtree(t *testing.T) {
	db := testDB()
	show, err := Search(db, "niseko", Metadata{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), show.ShowID)
}

func TestSearchErrorsWhenAmbiguous(t *testing.T) {
	db := showdb.Build([]showdb.ShowInput{
		{ShowID: 1, AnilistID: 1, Name: "Ambiguous"},
		{ShowID: 2, AnilistID: 2, Name: "Ambiguous"},
	})
	_, err := Search(db, "ambiguous", Metadata{})
	assert.Error(t, err)
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package showdb

import (
	"testing"

	"github.com/magnets-moe/processor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractYearRemovesSpan(t *testing.T) {
	y, rest, ok := ExtractYear("cowboy bebop (1998)")
	require.True(t, ok)
	assert.Equal(t, 1998, y)
	assert.Equal(t, "cowboy bebop ", rest)
}

func TestExtractFormatFoldsOAD(t *testing.T) {
	f, rest, ok := ExtractFormat("some ova (oad)")
	require.True(t, ok)
	assert.Equal(t, domain.FormatOVA, f)
	assert.Equal(t, "some ova ", rest)
}

func TestExtractSeasonTakesRightmostMatch(t *testing.T) {
	// "season 2" and "season 3" both appear; the rightmost occurrence must win.
	s, rest, ok := ExtractSeason("oresuki season 2 are you the only one who loves season 3")
	require.True(t, ok)
	assert.Equal(t, 3, s)
	assert.Equal(t, "oresuki season 2 are you the only one who loves ", rest)
}

func TestExtractSeasonOrdinalForm(t *testing.T) {
	s, rest, ok := ExtractSeason("attack on titan 4th season")
	require.True(t, ok)
	assert.Equal(t, 4, s)
	assert.Equal(t, "attack on titan ", rest)
}

func TestExtractSeasonWordForm(t *testing.T) {
	s, _, ok := ExtractSeason("kaguya-sama third season")
	require.True(t, ok)
	assert.Equal(t, 3, s)
}

func TestSearchKeyFiltersToAlphanumeric(t *testing.T) {
	assert.Equal(t, "cowboybebop", SearchKey("Cowboy Bebop!"))
}

func TestBuildGroupsRowsByShowAndIndexesSearchKeys(t *testing.T) {
	db := Build([]ShowInput{
		{ShowID: 1, AnilistID: 101, Name: "Cowboy Bebop", Format: domain.FormatTV},
		{ShowID: 1, AnilistID: 101, Name: "Cowboy Bebop (1998)", Format: domain.FormatTV},
		{ShowID: 2, AnilistID: 202, Name: "Shinseiki Evangelion", Format: domain.FormatTV},
	})

	require.Len(t, db.Shows, 2)

	show1 := db.Shows[0]
	assert.Equal(t, int64(1), show1.ShowID)
	assert.Equal(t, []uint16{1998}, show1.Years)
	assert.Equal(t, []domain.Format{domain.FormatTV}, show1.Formats)
	assert.ElementsMatch(t, []string{"Cowboy Bebop", "Cowboy Bebop (1998)"}, db.Names.Iter(show1.Names))

	idxs, ok := db.ExactMap["cowboybebop"]
	require.True(t, ok)
	assert.Contains(t, idxs, 0)
}

func TestBuildSeedsFormatAndYearFromCatalogueRow(t *testing.T) {
	// Cowboy Bebop (2021) has no year or format parseable from its name
	// alone - formats/years must come entirely from the catalogue
	// show_format/year_season columns Build is seeded with.
	year := uint16(2021)
	db := Build([]ShowInput{
		{ShowID: 1, AnilistID: 101, Name: "Cowboy Bebop", Format: domain.FormatMovie, Year: &year},
	})

	require.Len(t, db.Shows, 1)
	show := db.Shows[0]
	assert.Equal(t, []domain.Format{domain.FormatMovie}, show.Formats)
	assert.Equal(t, []uint16{2021}, show.Years)
}

func TestBuildFormatsNeverEmptyWithoutCatalogueYear(t *testing.T) {
	// No Year set on the catalogue row (a show with no known airing
	// season yet) - Years stays empty, but Formats is still seeded.
	db := Build([]ShowInput{
		{ShowID: 1, AnilistID: 101, Name: "Some Show", Format: domain.FormatONA},
	})

	show := db.Shows[0]
	assert.Equal(t, []domain.Format{domain.FormatONA}, show.Formats)
	assert.Empty(t, show.Years)
}

func TestBuildEmptyInputsProducesUsableDB(t *testing.T) {
	db := Build(nil)
	assert.Empty(t, db.Shows)
	assert.NotNil(t, db.Heap)
}

func TestHolderLoadReflectsLatestStore(t *testing.T) {
	h := NewHolder()
	assert.Empty(t, h.Load().Shows)

	fresh := Build([]ShowInput{{ShowID: 5, AnilistID: 9, Name: "Mushoku Tensei"}})
	h.Store(fresh)
	assert.Len(t, h.Load().Shows, 1)
}

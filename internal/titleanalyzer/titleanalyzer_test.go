// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package titleanalyzer

import (
	"testing"

	"github.com/magnets-moe/processor/internal/showdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB() *showdb.ShowDB {
	return showdb.Build([]showdb.ShowInput{
		{ShowID: 1, AnilistID: 101, Name: "Shigatsu wa Kimi no Uso"},
		{ShowID: 1, AnilistID: 101, Name: "Your Lie in April"},
		{ShowID: 2, AnilistID: 202, Name: "Oreshura"},
		{ShowID: 3, AnilistID: 303, Name: "Oreshura Season 2"},
		{ShowID: 4, AnilistID: 404, Name: "Mob Psycho 100"},
	})
}

func TestFindShowMatchesBracketedReleaseTitle(t *testing.T) {
	db := testDB()
	show, err := FindShow(db, "[HorribleSubs] Shigatsu wa Kimi no Uso - 02 [720p].mkv")
	require.NoError(t, err)
	assert.Equal(t, int64(1), show.ShowID)
}

func TestFindShowMatchesAlternateName(t *testing.T) {
	db := testDB()
	show, err := FindShow(db, "[Erai-raws] Your Lie in April - 01 [1080p][Multiple Subtitle].mkv")
	require.NoError(t, err)
	assert.Equal(t, int64(1), show.ShowID)
}

func TestFindShowUsesSeasonToBreakTie(t *testing.T) {
	db := testDB()
	show, err := FindShow(db, "[SubsPlease] Oreshura S02 - 03 [1080p].mkv")
	require.NoError(t, err)
	assert.Equal(t, int64(3), show.ShowID)
}

func TestFindShowPlainDigitsRetry(t *testing.T) {
	db := testDB()
	show, err := FindShow(db, "[Group] Mob Psycho 100 [720p].mkv")
	require.NoError(t, err)
	assert.Equal(t, int64(4), show.ShowID)
}

func TestFindShowReturnsErrorOnNoMatch(t *testing.T) {
	db := testDB()
	_, err := FindShow(db, "[Group] Some Totally Unknown Series - 01 [1080p].mkv")
	assert.Error(t, err)
}

func TestFindSeparatorPrefersSpace(t *testing.T) {
	assert.Equal(t, ' ', findSeparator("a_b c.d"))
}

func TestFindSeparatorCountsUnderscoreVsDot(t *testing.T) {
	assert.Equal(t, '_', findSeparator("a_b_c.d"))
	assert.Equal(t, '.', findSeparator("a.b.c_d"))
}

func TestNormalizeTitleCollapsesSeparatorRuns(t *testing.T) {
	assert.Equal(t, "one two three", normalizeTitle("One__Two___Three", '_'))
}

func TestParseBlocksSplitsDelimitedRuns(t *testing.T) {
	blocks := parseBlocks("[group] title (2020)")
	require.Len(t, blocks, 3)
	assert.Equal(t, byte('['), blocks[0].Delimiter)
	assert.Equal(t, byte(0), blocks[1].Delimiter)
	assert.Equal(t, byte('('), blocks[2].Delimiter)
}

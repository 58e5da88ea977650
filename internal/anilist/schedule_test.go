// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package anilist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeScheduleDiffAddsAndDeletes(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	existing := []ExistingScheduleItem{
		{ScheduleID: 1, Item: ScheduleItem{AirsAt: t0, AnilistID: 10, Episode: 1}},
		{ScheduleID: 2, Item: ScheduleItem{AirsAt: t0.Add(time.Hour), AnilistID: 20, Episode: 5}},
	}
	fresh := []ScheduleItem{
		{AirsAt: t0, AnilistID: 10, Episode: 1}, // unchanged
		{AirsAt: t0.Add(2 * time.Hour), AnilistID: 30, Episode: 1}, // new
	}

	toAdd, toDelete := computeScheduleDiff(existing, fresh)

	assert.Len(t, toAdd, 1)
	assert.Equal(t, int64(30), toAdd[0].AnilistID)

	assert.Len(t, toDelete, 1)
	assert.Equal(t, int64(2), toDelete[0].ScheduleID)
}

func TestComputeScheduleDiffNoChanges(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := []ExistingScheduleItem{
		{ScheduleID: 1, Item: ScheduleItem{AirsAt: t0, AnilistID: 10, Episode: 1}},
	}
	fresh := []ScheduleItem{
		{AirsAt: t0, AnilistID: 10, Episode: 1},
	}

	toAdd, toDelete := computeScheduleDiff(existing, fresh)
	assert.Empty(t, toAdd)
	assert.Empty(t, toDelete)
}

func TestComputeScheduleDiffEmptyExisting(t *testing.T) {
	fresh := []ScheduleItem{
		{AirsAt: time.Now(), AnilistID: 1, Episode: 1},
		{AirsAt: time.Now(), AnilistID: 2, Episode: 1},
	}
	toAdd, toDelete := computeScheduleDiff(nil, fresh)
	assert.Len(t, toAdd, 2)
	assert.Empty(t, toDelete)
}

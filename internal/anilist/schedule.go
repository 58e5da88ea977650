// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package anilist

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

const scheduleQuery = `
query ($start: Int, $stop: Int, $page: Int) {
  page: Page(perPage: 50, page: $page) {
    pageInfo {
      hasNextPage
    }
    airingSchedules(airingAt_greater: $start, airingAt_lesser: $stop) {
      airingAt
      episode
      mediaId
    }
  }
}`

type scheduleVariables struct {
	Start int64 `json:"start"`
	Stop  int64 `json:"stop"`
	Page  int   `json:"page"`
}

type airingSchedule struct {
	AiringAt int64 `json:"airingAt"`
	Episode  int32 `json:"episode"`
	MediaID  int64 `json:"mediaId"`
}

type schedulePage struct {
	PageInfo struct {
		HasNextPage bool `json:"hasNextPage"`
	} `json:"pageInfo"`
	AiringSchedules []airingSchedule `json:"airingSchedules"`
}

type scheduleData struct {
	Page schedulePage `json:"page"`
}

// ScheduleItem is one airing-schedule entry, keyed by Anilist media ID
// since it is looked up against magnets' show table by that ID at
// write time.
type ScheduleItem struct {
	AirsAt    time.Time
	AnilistID int64
	Episode   int32
}

// ExistingScheduleItem is a ScheduleItem already present in the store,
// carrying the row ID needed to delete it.
type ExistingScheduleItem struct {
	Item       ScheduleItem
	ScheduleID int64
}

// ScheduleStore is the narrow persistence surface SyncSchedule needs.
type ScheduleStore interface {
	LoadSchedule(ctx context.Context) ([]ExistingScheduleItem, error)
	DeleteScheduleItem(ctx context.Context, scheduleID int64) error
	InsertScheduleItem(ctx context.Context, item ScheduleItem) error
}

// scheduleLookback and scheduleLookahead are how far back and forward SyncSchedule asks Anilist
// for airing times: magnets.moe's own UI only ever displays yesterday
// through six days from now, and the extra day past that covers the
// gap between midnight and the next scheduled reload.
const (
	scheduleLookback  = 24 * time.Hour
	scheduleLookahead = 7 * 24 * time.Hour
)

// SyncSchedule fetches the upcoming airing schedule from Anilist and
// reconciles it against the store by computing a sorted add/delete diff,
// rather than clearing and reinserting the whole table, to avoid
// needless churn on a table upstream changes only slightly.
func SyncSchedule(ctx context.Context, client *Client, store ScheduleStore) error {
	existing, err := store.LoadSchedule(ctx)
	if err != nil {
		return fmt.Errorf("load existing schedule: %w", err)
	}

	fresh, err := loadNewScheduleItems(ctx, client)
	if err != nil {
		return fmt.Errorf("load anilist schedule: %w", err)
	}

	toAdd, toDelete := computeScheduleDiff(existing, fresh)
	log.Info().Int("add", len(toAdd)).Int("delete", len(toDelete)).Msg("found schedule changes")

	for _, e := range toDelete {
		if err := store.DeleteScheduleItem(ctx, e.ScheduleID); err != nil {
			return fmt.Errorf("delete schedule item %d: %w", e.ScheduleID, err)
		}
	}
	for _, n := range toAdd {
		if err := store.InsertScheduleItem(ctx, n); err != nil {
			return fmt.Errorf("insert schedule item for anilist id %d: %w", n.AnilistID, err)
		}
	}
	return nil
}

func loadNewScheduleItems(ctx context.Context, client *Client) ([]ScheduleItem, error) {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.Add(-scheduleLookback).Unix()
	stop := today.Add(scheduleLookahead).Unix()

	var items []ScheduleItem
	for page := 1; ; page++ {
		var data scheduleData
		vars := scheduleVariables{Start: start, Stop: stop, Page: page}
		if err := client.Request(ctx, scheduleQuery, vars, &data); err != nil {
			return nil, fmt.Errorf("request schedule page %d: %w", page, err)
		}
		for _, a := range data.Page.AiringSchedules {
			items = append(items, ScheduleItem{
				AirsAt:    time.Unix(a.AiringAt, 0).UTC(),
				AnilistID: a.MediaID,
				Episode:   a.Episode,
			})
		}
		if !data.Page.PageInfo.HasNextPage {
			return items, nil
		}
	}
}

func itemLess(a, b ScheduleItem) bool {
	if !a.AirsAt.Equal(b.AirsAt) {
		return a.AirsAt.Before(b.AirsAt)
	}
	if a.AnilistID != b.AnilistID {
		return a.AnilistID < b.AnilistID
	}
	return a.Episode < b.Episode
}

func itemEqual(a, b ScheduleItem) bool {
	return a.AirsAt.Equal(b.AirsAt) && a.AnilistID == b.AnilistID && a.Episode == b.Episode
}

// computeScheduleDiff walks both lists, sorted ascending, in lockstep:
// an item present in existing but absent from fresh is deleted, one
// present in fresh but absent from existing is added, and matching
// items are left untouched.
func computeScheduleDiff(existing []ExistingScheduleItem, fresh []ScheduleItem) (toAdd []ScheduleItem, toDelete []ExistingScheduleItem) {
	sort.Slice(existing, func(i, j int) bool { return itemLess(existing[i].Item, existing[j].Item) })
	sort.Slice(fresh, func(i, j int) bool { return itemLess(fresh[i], fresh[j]) })

	i, j := 0, 0
	for i < len(existing) && j < len(fresh) {
		e, n := existing[i].Item, fresh[j]
		switch {
		case itemEqual(e, n):
			i++
			j++
		case itemLess(e, n):
			toDelete = append(toDelete, existing[i])
			i++
		default:
			toAdd = append(toAdd, n)
			j++
		}
	}
	for ; i < len(existing); i++ {
		toDelete = append(toDelete, existing[i])
	}
	for ; j < len(fresh); j++ {
		toAdd = append(toAdd, fresh[j])
	}
	return toAdd, toDelete
}

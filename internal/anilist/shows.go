// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package anilist

import (
	"context"
	"fmt"

	"github.com/magnets-moe/processor/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"
)

const showsQuery = `
query ($page: Int) {
  page: Page(perPage: 50, page: $page) {
    pageInfo {
      hasNextPage
    }
    media(sort: ID, format_in: [TV, TV_SHORT, MOVIE, SPECIAL, OVA, ONA]) {
      id
      title {
        romaji
        english
      }
      seasonYear
      season
      format
    }
  }
}`

type showsVariables struct {
	Page int `json:"page"`
}

type showsTitle struct {
	Romaji  string  `json:"romaji"`
	English *string `json:"english"`
}

type showsMedia struct {
	ID         int64      `json:"id"`
	Title      showsTitle `json:"title"`
	SeasonYear *uint16    `json:"seasonYear"`
	Season     *string    `json:"season"`
	Format     string     `json:"format"`
}

type showsPage struct {
	PageInfo struct {
		HasNextPage bool `json:"hasNextPage"`
	} `json:"pageInfo"`
	Media []showsMedia `json:"media"`
}

type showsData struct {
	Page showsPage `json:"page"`
}

// ExistingName is one already-stored name of a show.
type ExistingName struct {
	ShowNameID int64
	Name       string
	Type       domain.ShowNameType
}

// ExistingShow is the current store state for one show, keyed by
// Anilist media ID, as loaded by ShowStore.LoadShows.
type ExistingShow struct {
	ShowID int64
	Format domain.Format
	Season *domain.YearSeason
	Names  []ExistingName
}

// ShowStore is the narrow persistence surface SyncShows needs. A
// concrete store implementation supplies it (internal/store).
type ShowStore interface {
	LoadShows(ctx context.Context) (map[int64]ExistingShow, error)
	UpdateShowFormat(ctx context.Context, showID int64, format domain.Format) error
	UpdateShowSeason(ctx context.Context, showID int64, season *domain.YearSeason) error
	UpdateShowName(ctx context.Context, showNameID int64, name string) error
	InsertShowName(ctx context.Context, showID int64, nameType domain.ShowNameType, name string) error
	InsertShow(ctx context.Context, anilistID int64, format domain.Format, season *domain.YearSeason) (int64, error)
}

// SyncShows pages through the entire Anilist media catalog (formats
// TV/TV_SHORT/MOVIE/SPECIAL/OVA/ONA) in increasing ID order, diffing
// each page against store against the store's current state and
// writing only what changed. Names are stored in NFC form.
func SyncShows(ctx context.Context, client *Client, store ShowStore) error {
	existing, err := store.LoadShows(ctx)
	if err != nil {
		return fmt.Errorf("load existing shows: %w", err)
	}
	log.Info().Int("count", len(existing)).Msg("loaded existing shows")

	for page := 1; ; page++ {
		var data showsData
		if err := client.Request(ctx, showsQuery, showsVariables{Page: page}, &data); err != nil {
			return fmt.Errorf("request shows page %d: %w", page, err)
		}
		if err := syncShowsPage(ctx, store, existing, data.Page.Media); err != nil {
			return fmt.Errorf("sync shows page %d: %w", page, err)
		}
		if !data.Page.PageInfo.HasNextPage {
			return nil
		}
	}
}

func syncShowsPage(ctx context.Context, store ShowStore, existing map[int64]ExistingShow, media []showsMedia) error {
	for _, m := range media {
		format, err := domain.FormatFromAnilist(m.Format)
		if err != nil {
			log.Warn().Str("format", m.Format).Msg("cannot parse format of anilist show, skipping")
			continue
		}

		var season *domain.YearSeason
		if m.SeasonYear != nil && m.Season != nil {
			s, err := domain.SeasonFromAnilist(*m.Season)
			if err != nil {
				log.Warn().Str("season", *m.Season).Msg("cannot parse anilist season, skipping")
				continue
			}
			season = &domain.YearSeason{Year: *m.SeasonYear, Season: s}
		}

		romaji := norm.NFC.String(m.Title.Romaji)
		var names []ExistingName
		if m.Title.English != nil {
			english := norm.NFC.String(*m.Title.English)
			if english != romaji {
				names = append(names, ExistingName{Name: english, Type: domain.ShowNameEnglish})
			}
		}
		names = append(names, ExistingName{Name: romaji, Type: domain.ShowNameRomaji})

		if old, ok := existing[m.ID]; ok {
			if err := reconcileExistingShow(ctx, store, old, format, season, names); err != nil {
				return err
			}
			continue
		}

		log.Info().Str("name", romaji).Msg("adding new show")
		showID, err := store.InsertShow(ctx, m.ID, format, season)
		if err != nil {
			return fmt.Errorf("insert show %d: %w", m.ID, err)
		}
		for _, name := range names {
			if err := store.InsertShowName(ctx, showID, name.Type, name.Name); err != nil {
				return fmt.Errorf("insert show name: %w", err)
			}
		}
	}
	return nil
}

func reconcileExistingShow(ctx context.Context, store ShowStore, old ExistingShow, format domain.Format, season *domain.YearSeason, names []ExistingName) error {
	if old.Format != format {
		log.Info().Int64("show_id", old.ShowID).Stringer("from", old.Format).Stringer("to", format).Msg("updating show format")
		if err := store.UpdateShowFormat(ctx, old.ShowID, format); err != nil {
			return fmt.Errorf("update show format: %w", err)
		}
	}
	if !yearSeasonEqual(old.Season, season) {
		log.Info().Int64("show_id", old.ShowID).Msg("updating show season")
		if err := store.UpdateShowSeason(ctx, old.ShowID, season); err != nil {
			return fmt.Errorf("update show season: %w", err)
		}
	}
	for _, name := range names {
		match := findExistingName(old.Names, name.Type)
		if match == nil {
			log.Info().Int64("show_id", old.ShowID).Str("name", name.Name).Msg("adding new show name")
			if err := store.InsertShowName(ctx, old.ShowID, name.Type, name.Name); err != nil {
				return fmt.Errorf("insert show name: %w", err)
			}
			continue
		}
		if match.Name != name.Name {
			log.Info().Int64("show_id", old.ShowID).Str("from", match.Name).Str("to", name.Name).Msg("updating show name")
			if err := store.UpdateShowName(ctx, match.ShowNameID, name.Name); err != nil {
				return fmt.Errorf("update show name: %w", err)
			}
		}
	}
	return nil
}

func findExistingName(names []ExistingName, t domain.ShowNameType) *ExistingName {
	for i := range names {
		if names[i].Type == t {
			return &names[i]
		}
	}
	return nil
}

func yearSeasonEqual(a, b *domain.YearSeason) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

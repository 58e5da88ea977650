// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package store is the single concrete persistence layer backing every
// narrow store interface the rest of the processor depends on
// (scheduler.StateStore, anilist.ShowStore, anilist.ScheduleStore,
// reconcile.TorrentStore, reconcile.ShowDBSource), plus the in-process
// Notifier that wakes the background jobs in internal/reconcile when
// an administrator edits a row in the state table.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/magnets-moe/processor/internal/anilist"
	"github.com/magnets-moe/processor/internal/dbinterface"
	"github.com/magnets-moe/processor/internal/domain"
	"github.com/magnets-moe/processor/internal/nyaa"
	"github.com/magnets-moe/processor/internal/reconcile"
	"github.com/magnets-moe/processor/internal/showdb"
)

// Store is the narrow-interface-satisfying facade over the database.
// Constructed the same way as the other store types in this codebase:
// wrapping a dbinterface.Querier rather than a concrete *database.DB,
// so it works equally against the pooled connection, a *sql.Tx, or a
// test-only *sql.DB.
type Store struct {
	db       dbinterface.Querier
	notifier *Notifier
}

// New returns a Store backed by db, waking waiters through notifier
// whenever a row one of them watches changes.
func New(db dbinterface.Querier, notifier *Notifier) *Store {
	return &Store{db: db, notifier: notifier}
}

// state table helpers

func (s *Store) getStateValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("get state %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) setStateValue(ctx context.Context, key, value string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE state SET value = ? WHERE key = ?`, value, key)
	if err != nil {
		return fmt.Errorf("set state %q: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set state %q: no such key", key)
	}
	s.notifier.Notify(key)
	return nil
}

// GetState implements scheduler.StateStore.
func (s *Store) GetState(ctx context.Context, key string) (time.Time, error) {
	raw, err := s.getStateValue(ctx, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse state %q: %w", key, err)
	}
	return t, nil
}

// SetState implements scheduler.StateStore.
func (s *Store) SetState(ctx context.Context, key string, value time.Time) error {
	return s.setStateValue(ctx, key, value.UTC().Format(time.RFC3339))
}

// MaxNyaaID implements reconcile.TorrentStore.
func (s *Store) MaxNyaaID(ctx context.Context) (int64, error) {
	raw, err := s.getStateValue(ctx, reconcile.MaxNyaaSiIDKey)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", reconcile.MaxNyaaSiIDKey, err)
	}
	return id, nil
}

// SetMaxNyaaID implements reconcile.TorrentStore.
func (s *Store) SetMaxNyaaID(ctx context.Context, id int64) error {
	return s.setStateValue(ctx, reconcile.MaxNyaaSiIDKey, strconv.FormatInt(id, 10))
}

// RematchMode implements reconcile.TorrentStore.
func (s *Store) RematchMode(ctx context.Context) (reconcile.RematchMode, error) {
	raw, err := s.getStateValue(ctx, reconcile.RematchUnmatchedKey)
	if err != nil {
		return 0, err
	}
	mode, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", reconcile.RematchUnmatchedKey, err)
	}
	return reconcile.RematchMode(mode), nil
}

// SetRematchMode implements reconcile.TorrentStore.
func (s *Store) SetRematchMode(ctx context.Context, mode reconcile.RematchMode) error {
	return s.setStateValue(ctx, reconcile.RematchUnmatchedKey, strconv.Itoa(int(mode)))
}

// InitialSetupPending reports whether the one-time startup sync (an
// immediate show-catalog load, run synchronously before the background
// jobs start) still needs to happen. True on a freshly migrated
// database; cleared by SetInitialSetupPending(ctx, false) once that
// load completes.
func (s *Store) InitialSetupPending(ctx context.Context) (bool, error) {
	raw, err := s.getStateValue(ctx, reconcile.InitialSetupKey)
	if err != nil {
		return false, err
	}
	pending, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", reconcile.InitialSetupKey, err)
	}
	return pending, nil
}

// SetInitialSetupPending records whether the one-time startup sync
// still needs to run.
func (s *Store) SetInitialSetupPending(ctx context.Context, pending bool) error {
	return s.setStateValue(ctx, reconcile.InitialSetupKey, strconv.FormatBool(pending))
}

// InsertTorrent implements reconcile.TorrentStore, inserting t if its
// nyaa id isn't already on file.
func (s *Store) InsertTorrent(ctx context.Context, t nyaa.Torrent) (int64, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO torrent (nyaa_id, title, info_hash, trusted, size_bytes, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.NyaaID, t.Title, t.Hash, t.Trusted, t.Size, t.UploadedAt.Unix())
	if err != nil {
		return 0, false, fmt.Errorf("insert torrent %d: %w", t.NyaaID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("last insert id for torrent %d: %w", t.NyaaID, err)
		}
		return id, true, nil
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM torrent WHERE nyaa_id = ?`, t.NyaaID).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("load existing torrent %d: %w", t.NyaaID, err)
	}
	return id, false, nil
}

// InsertMatch implements reconcile.TorrentStore.
func (s *Store) InsertMatch(ctx context.Context, torrentID, showID int64) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO rel_torrent_show (torrent_id, show_id) VALUES (?, ?)
	`, torrentID, showID); err != nil {
		return fmt.Errorf("insert match (torrent %d, show %d): %w", torrentID, showID, err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE torrent SET matched = 1 WHERE id = ?`, torrentID); err != nil {
		return fmt.Errorf("mark torrent %d matched: %w", torrentID, err)
	}
	return nil
}

// SetReleaseTags implements reconcile.TorrentStore, recording
// best-effort release metadata for a matched torrent. Purely for
// catalogue display - never read back by anything in this package.
func (s *Store) SetReleaseTags(ctx context.Context, torrentID int64, tags reconcile.ReleaseTags) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE torrent SET resolution = ?, source = ?, video_codec = ?, release_group = ?
		WHERE id = ?
	`, nullIfEmpty(tags.Resolution), nullIfEmpty(tags.Source), nullIfEmpty(tags.VideoCodec), nullIfEmpty(tags.ReleaseGroup), torrentID); err != nil {
		return fmt.Errorf("set release tags for torrent %d: %w", torrentID, err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ClearAllMatches implements reconcile.TorrentStore.
func (s *Store) ClearAllMatches(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rel_torrent_show`); err != nil {
		return fmt.Errorf("clear matches: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE torrent SET matched = 0`); err != nil {
		return fmt.Errorf("reset matched flags: %w", err)
	}
	return nil
}

// RefreshMatchedFlags implements reconcile.TorrentStore, recomputing
// torrent.matched from the current contents of rel_torrent_show so the
// two never drift apart.
func (s *Store) RefreshMatchedFlags(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE torrent SET matched = EXISTS (
			SELECT 1 FROM rel_torrent_show WHERE rel_torrent_show.torrent_id = torrent.id
		)
	`)
	if err != nil {
		return fmt.Errorf("refresh matched flags: %w", err)
	}
	return nil
}

// UnmatchedTorrents implements reconcile.TorrentStore.
func (s *Store) UnmatchedTorrents(ctx context.Context) ([]reconcile.UnmatchedTorrent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title FROM torrent WHERE matched = 0`)
	if err != nil {
		return nil, fmt.Errorf("load unmatched torrents: %w", err)
	}
	defer rows.Close()

	var out []reconcile.UnmatchedTorrent
	for rows.Next() {
		var u reconcile.UnmatchedTorrent
		if err := rows.Scan(&u.TorrentID, &u.Title); err != nil {
			return nil, fmt.Errorf("scan unmatched torrent: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// LoadShowInputs implements reconcile.ShowDBSource, flattening the
// show/show_name join into showdb.Build's one-row-per-name shape. Each
// row also carries its show's catalogue show_format/year_season columns
// so Build can seed Formats/Years from the catalogue, not only from
// parsing names.
func (s *Store) LoadShowInputs(ctx context.Context) ([]showdb.ShowInput, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.anilist_id, s.show_format, s.year_season, n.name
		FROM show s
		JOIN show_name n ON n.show_id = s.id
		ORDER BY s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("load show inputs: %w", err)
	}
	defer rows.Close()

	var out []showdb.ShowInput
	for rows.Next() {
		var in showdb.ShowInput
		var formatCode int16
		var yearSeason sql.NullInt64
		if err := rows.Scan(&in.ShowID, &in.AnilistID, &formatCode, &yearSeason, &in.Name); err != nil {
			return nil, fmt.Errorf("scan show input: %w", err)
		}

		format, err := domain.FormatFromDB(formatCode)
		if err != nil {
			return nil, fmt.Errorf("show %d: %w", in.ShowID, err)
		}
		in.Format = format

		if yearSeason.Valid {
			ys, err := domain.YearSeasonFromDB(int32(yearSeason.Int64))
			if err != nil {
				return nil, fmt.Errorf("show %d: %w", in.ShowID, err)
			}
			year := ys.Year
			in.Year = &year
		}

		out = append(out, in)
	}
	return out, rows.Err()
}

// LoadShows implements anilist.ShowStore, keyed by Anilist media id.
func (s *Store) LoadShows(ctx context.Context) (map[int64]anilist.ExistingShow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.anilist_id, s.id, s.show_format, s.year_season, n.id, n.name_type, n.name
		FROM show s
		LEFT JOIN show_name n ON n.show_id = s.id
		ORDER BY s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("load shows: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]anilist.ExistingShow)
	for rows.Next() {
		var anilistID, showID int64
		var formatCode int16
		var yearSeason sql.NullInt64
		var nameID sql.NullInt64
		var nameType sql.NullInt64
		var name sql.NullString

		if err := rows.Scan(&anilistID, &showID, &formatCode, &yearSeason, &nameID, &nameType, &name); err != nil {
			return nil, fmt.Errorf("scan show: %w", err)
		}

		show, ok := out[anilistID]
		if !ok {
			format, err := domain.FormatFromDB(formatCode)
			if err != nil {
				return nil, fmt.Errorf("show %d: %w", showID, err)
			}
			var season *domain.YearSeason
			if yearSeason.Valid {
				ys, err := domain.YearSeasonFromDB(int32(yearSeason.Int64))
				if err != nil {
					return nil, fmt.Errorf("show %d: %w", showID, err)
				}
				season = &ys
			}
			show = anilist.ExistingShow{ShowID: showID, Format: format, Season: season}
		}

		if nameID.Valid {
			t, err := domain.ShowNameTypeFromDB(int16(nameType.Int64))
			if err != nil {
				return nil, fmt.Errorf("show %d name %d: %w", showID, nameID.Int64, err)
			}
			show.Names = append(show.Names, anilist.ExistingName{
				ShowNameID: nameID.Int64,
				Name:       name.String,
				Type:       t,
			})
		}
		out[anilistID] = show
	}
	return out, rows.Err()
}

// UpdateShowFormat implements anilist.ShowStore.
func (s *Store) UpdateShowFormat(ctx context.Context, showID int64, format domain.Format) error {
	_, err := s.db.ExecContext(ctx, `UPDATE show SET show_format = ? WHERE id = ?`, format.ToDB(), showID)
	if err != nil {
		return fmt.Errorf("update show %d format: %w", showID, err)
	}
	return nil
}

// UpdateShowSeason implements anilist.ShowStore.
func (s *Store) UpdateShowSeason(ctx context.Context, showID int64, season *domain.YearSeason) error {
	var value any
	if season != nil {
		value = season.ToDB()
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE show SET year_season = ? WHERE id = ?`, value, showID); err != nil {
		return fmt.Errorf("update show %d season: %w", showID, err)
	}
	return nil
}

// UpdateShowName implements anilist.ShowStore.
func (s *Store) UpdateShowName(ctx context.Context, showNameID int64, name string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE show_name SET name = ? WHERE id = ?`, name, showNameID); err != nil {
		return fmt.Errorf("update show name %d: %w", showNameID, err)
	}
	return nil
}

// InsertShowName implements anilist.ShowStore.
func (s *Store) InsertShowName(ctx context.Context, showID int64, nameType domain.ShowNameType, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO show_name (show_id, name_type, name) VALUES (?, ?, ?)
	`, showID, nameType.ToDB(), name)
	if err != nil {
		return fmt.Errorf("insert show name for show %d: %w", showID, err)
	}
	return nil
}

// InsertShow implements anilist.ShowStore.
func (s *Store) InsertShow(ctx context.Context, anilistID int64, format domain.Format, season *domain.YearSeason) (int64, error) {
	var value any
	if season != nil {
		value = season.ToDB()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO show (anilist_id, show_format, year_season) VALUES (?, ?, ?)
	`, anilistID, format.ToDB(), value)
	if err != nil {
		return 0, fmt.Errorf("insert show %d: %w", anilistID, err)
	}
	return res.LastInsertId()
}

// LoadSchedule implements anilist.ScheduleStore.
func (s *Store) LoadSchedule(ctx context.Context) ([]anilist.ExistingScheduleItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, anilist_id, airs_at, episode FROM schedule`)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	defer rows.Close()

	var out []anilist.ExistingScheduleItem
	for rows.Next() {
		var e anilist.ExistingScheduleItem
		var airsAt int64
		if err := rows.Scan(&e.ScheduleID, &e.Item.AnilistID, &airsAt, &e.Item.Episode); err != nil {
			return nil, fmt.Errorf("scan schedule item: %w", err)
		}
		e.Item.AirsAt = time.Unix(airsAt, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteScheduleItem implements anilist.ScheduleStore.
func (s *Store) DeleteScheduleItem(ctx context.Context, scheduleID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM schedule WHERE id = ?`, scheduleID); err != nil {
		return fmt.Errorf("delete schedule item %d: %w", scheduleID, err)
	}
	return nil
}

// InsertScheduleItem implements anilist.ScheduleStore.
func (s *Store) InsertScheduleItem(ctx context.Context, item anilist.ScheduleItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedule (anilist_id, airs_at, episode) VALUES (?, ?, ?)
	`, item.AnilistID, item.AirsAt.Unix(), item.Episode)
	if err != nil {
		return fmt.Errorf("insert schedule item for anilist id %d: %w", item.AnilistID, err)
	}
	return nil
}

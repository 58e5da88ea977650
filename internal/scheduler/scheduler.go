// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package scheduler implements the persisted-timestamp periodic jobs
// (spec §4.G): show refresh, schedule refresh, and anything else that
// should run on a fixed interval but must not drift or double-run
// across process restarts. The last-run time lives in the store rather
// than in memory, and an external notification (fired when another
// process or request handler changes that timestamp) can wake a
// waiter early.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StateStore is the narrow persistence surface a Scheduled needs. A
// concrete store implementation supplies it (internal/store), backed
// by a keyed timestamp table analogous to magnets.state.
type StateStore interface {
	GetState(ctx context.Context, key string) (time.Time, error)
	SetState(ctx context.Context, key string, value time.Time) error
}

// errSleepOnFailure is how long Wait backs off when the store is
// unreachable, and how long Run backs off after a failed job, so
// neither spins into a tight retry loop. (Update backs off for one
// period instead.)
const errSleepOnFailure = 5 * time.Minute

// Scheduled gates a single recurring job keyed by key, due to run once
// every period since its last recorded completion.
type Scheduled struct {
	store  StateStore
	key    string
	period time.Duration
}

// New returns a Scheduled for the job identified by key, due once
// every period.
func New(store StateStore, key string, period time.Duration) *Scheduled {
	return &Scheduled{store: store, key: key, period: period}
}

// Wait blocks until the job is due: period has elapsed since the
// timestamp last recorded via Update, and no notification has arrived
// on notify since the wait began re-examined that timestamp. A signal
// on notify makes Wait re-read the stored timestamp immediately,
// rather than firing early - this matters when the timestamp itself
// was just extended by someone else, such as an administrator
// triggering an out-of-band run.
//
// On a store error, Wait logs and retries after errSleepOnFailure
// rather than returning, since callers run this in a background loop
// that is expected to run forever.
func (s *Scheduled) Wait(ctx context.Context, notify <-chan struct{}) error {
	for {
		err := s.waitOnce(ctx, notify)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error().Err(err).Str("key", s.key).Msg("cannot retrieve schedule state")
		log.Info().Dur("delay", errSleepOnFailure).Msg("sleeping before retrying")
		select {
		case <-time.After(errSleepOnFailure):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Scheduled) waitOnce(ctx context.Context, notify <-chan struct{}) error {
	for {
		last, err := s.store.GetState(ctx, s.key)
		if err != nil {
			return err
		}

		timer := time.NewTimer(time.Until(last.Add(s.period)))
		select {
		case <-notify:
			timer.Stop()
			continue
		case <-timer.C:
			return nil
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Update records now as the job's last-completed timestamp. On a store
// error it logs and sleeps out one period (the same interval Wait
// gates runs on), so a persistently failing store still paces retries rather
// than busy-looping the caller's job loop.
func (s *Scheduled) Update(ctx context.Context) {
	if err := s.store.SetState(ctx, s.key, time.Now().UTC()); err != nil {
		log.Error().Err(err).Str("key", s.key).Msg("cannot update schedule state")
		log.Info().Dur("delay", s.period).Msg("sleeping manually instead")
		select {
		case <-time.After(s.period):
		case <-ctx.Done():
		}
	}
}

// Run ties Wait, job, and Update into the loop every periodic job in
// magnets follows: wait until due, run job, and only push the
// timestamp forward on success so a failed run is retried on the next
// Wait rather than silently skipped for a full period. Run blocks
// until ctx is cancelled.
func Run(ctx context.Context, s *Scheduled, notify <-chan struct{}, job func(context.Context) error) {
	for {
		if err := s.Wait(ctx, notify); err != nil {
			return
		}
		if err := job(ctx); err != nil {
			log.Error().Err(err).Str("key", s.key).Msg("scheduled job failed")
			select {
			case <-time.After(errSleepOnFailure):
			case <-ctx.Done():
				return
			}
			continue
		}
		s.Update(ctx)
		if ctx.Err() != nil {
			return
		}
	}
}

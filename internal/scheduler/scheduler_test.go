// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu   sync.Mutex
	vals map[string]time.Time
}

func newFakeStore(key string, last time.Time) *fakeStore {
	return &fakeStore{vals: map[string]time.Time{key: last}}
}

func (f *fakeStore) GetState(_ context.Context, key string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vals[key], nil
}

func (f *fakeStore) SetState(_ context.Context, key string, value time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vals[key] = value
	return nil
}

func TestWaitReturnsImmediatelyWhenAlreadyDue(t *testing.T) {
	store := newFakeStore("k", time.Now().Add(-time.Hour))
	s := New(store, "k", time.Minute)

	start := time.Now()
	err := s.Wait(context.Background(), make(chan struct{}))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitBlocksUntilPeriodElapses(t *testing.T) {
	store := newFakeStore("k", time.Now())
	s := New(store, "k", 80*time.Millisecond)

	start := time.Now()
	err := s.Wait(context.Background(), make(chan struct{}))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestWaitNotifyReReadsExtendedDeadline(t *testing.T) {
	store := newFakeStore("k", time.Now())
	s := New(store, "k", 120*time.Millisecond)
	notify := make(chan struct{}, 1)

	go func() {
		time.Sleep(30 * time.Millisecond)
		store.mu.Lock()
		store.vals["k"] = time.Now().Add(150 * time.Millisecond)
		store.mu.Unlock()
		notify <- struct{}{}
	}()

	start := time.Now()
	err := s.Wait(context.Background(), notify)
	require.NoError(t, err)
	// Had the notify not re-read the (now pushed back) deadline, Wait would
	// have returned at ~120ms. The notify re-reads a last-run time of ~180ms
	// from start, so Wait completes one 120ms period later, at ~300ms.
	assert.Greater(t, time.Since(start), 150*time.Millisecond)
}

func TestWaitRetriesOnStoreErrorUntilContextCancelled(t *testing.T) {
	s := New(failingStore{}, "k", time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Wait(ctx, make(chan struct{}))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type failingStore struct{}

func (failingStore) GetState(context.Context, string) (time.Time, error) {
	return time.Time{}, errors.New("store unavailable")
}
func (failingStore) SetState(context.Context, string, time.Time) error { return nil }

func TestUpdateSetsStateToNow(t *testing.T) {
	store := newFakeStore("k", time.Time{})
	s := New(store, "k", time.Minute)

	before := time.Now()
	s.Update(context.Background())
	got, err := store.GetState(context.Background(), "k")
	require.NoError(t, err)
	assert.WithinDuration(t, before, got, time.Second)
}

func TestRunUpdatesStateOnJobSuccessThenStops(t *testing.T) {
	store := newFakeStore("k", time.Now().Add(-time.Hour))
	s := New(store, "k", time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	done := make(chan struct{})
	go func() {
		Run(ctx, s, make(chan struct{}), func(context.Context) error {
			calls++
			cancel()
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
	assert.Equal(t, 1, calls)

	got, err := store.GetState(context.Background(), "k")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), got, time.Second)
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magnets-moe/processor/internal/reconcile"
)

type fakeRematchStore struct {
	mode reconcile.RematchMode
	err  error
}

func (f *fakeRematchStore) SetRematchMode(_ context.Context, mode reconcile.RematchMode) error {
	if f.err != nil {
		return f.err
	}
	f.mode = mode
	return nil
}

func TestHealthzReturnsBuildInfo(t *testing.T) {
	router := NewRouter(Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version"`)
}

func TestRematchEndpointSetsMode(t *testing.T) {
	store := &fakeRematchStore{}
	router := NewRouter(Dependencies{Rematch: NewRematchHandler(store)})

	req := httptest.NewRequest(http.MethodPut, "/rematch/all", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, reconcile.RematchAll, store.mode)
}

func TestRematchEndpointRejectsUnknownMode(t *testing.T) {
	store := &fakeRematchStore{}
	router := NewRouter(Dependencies{Rematch: NewRematchHandler(store)})

	req := httptest.NewRequest(http.MethodPut, "/rematch/bogus", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

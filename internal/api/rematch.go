// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/magnets-moe/processor/internal/reconcile"
)

// RematchStore is the narrow store surface the rematch endpoint needs.
type RematchStore interface {
	SetRematchMode(ctx context.Context, mode reconcile.RematchMode) error
}

// RematchHandler sets the stored rematch mode an operator requested;
// the store write notifies the reconciliation driver's rematch loop,
// which runs the rematch and resets the mode back to RematchNone once
// done.
type RematchHandler struct {
	store RematchStore
}

// NewRematchHandler returns a handler backed by store.
func NewRematchHandler(store RematchStore) *RematchHandler {
	return &RematchHandler{store: store}
}

func (h *RematchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mode, err := parseRematchMode(chi.URLParam(r, "mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.SetRematchMode(r.Context(), mode); err != nil {
		log.Error().Err(err).Str("mode", chi.URLParam(r, "mode")).Msg("cannot set rematch mode")
		http.Error(w, "cannot set rematch mode", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func parseRematchMode(s string) (reconcile.RematchMode, error) {
	switch s {
	case "unmatched":
		return reconcile.RematchUnmatched, nil
	case "all":
		return reconcile.RematchAll, nil
	default:
		return 0, errUnknownRematchMode(s)
	}
}

type errUnknownRematchMode string

func (e errUnknownRematchMode) Error() string {
	return "unknown rematch mode " + string(e) + ": want \"unmatched\" or \"all\""
}

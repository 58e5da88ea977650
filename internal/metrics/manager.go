// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/magnets-moe/processor/internal/showdb"
)

// Manager owns the process's Prometheus registry, combining the
// standard Go/process collectors with ProcessorCollector.
type Manager struct {
	registry  *prometheus.Registry
	collector *ProcessorCollector
}

// NewManager builds a registry reporting on holder and store via
// ProcessorCollector, alongside the standard runtime collectors.
func NewManager(holder *showdb.Holder, store StateStore) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	collector := NewProcessorCollector(holder, store)
	registry.MustRegister(collector)

	log.Info().Msg("metrics manager initialized")

	return &Manager{
		registry:  registry,
		collector: collector,
	}
}

// Registry returns the Prometheus registry for the metrics HTTP handler.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

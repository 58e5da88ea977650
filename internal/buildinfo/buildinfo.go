// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package buildinfo exposes version metadata stamped in at build time
// via -ldflags, falling back to sane defaults for `go run`/`go test`.
package buildinfo

import (
	"encoding/json"
	"fmt"
	"runtime"
)

// Version, Commit, and Date are overridden at build time with:
//
//	-ldflags "-X github.com/magnets-moe/processor/internal/buildinfo.Version=..."
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// UserAgent is a product/version string for this binary, set once in
// init(). The HTTP clients do not send it: the Anilist client uses the
// configured anilistUserAgent instead.
var UserAgent string

func init() {
	UserAgent = fmt.Sprintf("magnets-processor/%s (%s; %s)", Version, runtime.GOOS, runtime.GOARCH)
}

// String renders a three-line human-readable summary, used by the
// CLI's version command.
func String() string {
	return fmt.Sprintf("Version: %s\nCommit: %s\nBuild date: %s\n", Version, Commit, Date)
}

type info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// JSON renders the same fields as String in JSON form, used by the
// admin API's /healthz response.
func JSON() ([]byte, error) {
	return json.Marshal(info{Version: Version, Commit: Commit, Date: Date})
}

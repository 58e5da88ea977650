// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package redact strips sensitive query parameters out of errors before
// they reach logs.
package redact

import (
	"errors"
	"net/url"
)

var sensitiveParams = []string{"apikey", "api_key", "token", "passkey", "password"}

// URLError returns a copy of err with sensitive query parameters redacted
// if err is, or wraps, a *url.Error. Any other error is returned unchanged.
func URLError(err error) error {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}

	redacted := *urlErr
	redacted.URL = redactURL(urlErr.URL)
	return &redacted
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	q := u.Query()
	changed := false
	for _, key := range sensitiveParams {
		if _, ok := q[key]; ok {
			q.Set(key, "REDACTED")
			changed = true
		}
	}

	if !changed {
		return raw
	}

	u.RawQuery = q.Encode()
	return u.String()
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package anilist implements a rate-limited GraphQL client for the
// Anilist API and the show/schedule reconciliation jobs built on it
// (spec §4.F). The client guarantees no two requests run concurrently,
// enforces a minimum gap between request starts, and sleeps out
// Retry-After responses before resuming.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const endpoint = "https://graphql.anilist.co"

// minGap is the minimum duration between request starts. Anilist's
// documented limit is 90 requests/minute; pacing request starts (not
// request ends) one second apart keeps well under it even accounting
// for response latency.
const minGap = time.Second

// Client serializes and paces requests to the Anilist GraphQL API: the
// inflight mutex is held for the whole of each Request call (retries
// and Retry-After sleeps included), a rate.Limiter allowing one token
// per minGap paces request starts, and a mutex-guarded retryAfter
// sleeps out Retry-After responses before the next request is allowed
// through.
type Client struct {
	http      *http.Client
	userAgent string
	endpoint  string
	limiter   *rate.Limiter

	inflight sync.Mutex

	mu         sync.Mutex
	retryAfter time.Duration
}

// New returns a Client that issues requests through httpClient,
// identifying itself with userAgent so Anilist operators can reach out
// if this client misbehaves.
func New(httpClient *http.Client, userAgent string) *Client {
	return &Client{
		http:      httpClient,
		userAgent: userAgent,
		endpoint:  endpoint,
		limiter:   rate.NewLimiter(rate.Every(minGap), 1),
	}
}

type graphQLBody struct {
	Query     string `json:"query"`
	Variables any    `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// Request executes query against the Anilist API with variables,
// decoding the "data" field of the response into out. It blocks,
// retrying indefinitely, until a well-formed response with non-null
// data is received - callers are expected to pass a context they are
// willing to have block for a long time under sustained upstream
// failure.
func (c *Client) Request(ctx context.Context, query string, variables, out any) error {
	c.inflight.Lock()
	defer c.inflight.Unlock()

	for {
		err := c.requestOnce(ctx, query, variables, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.Error().Err(err).Msg("anilist request failed")

		c.mu.Lock()
		delay := c.retryAfter
		c.retryAfter = 0
		c.mu.Unlock()
		if delay == 0 {
			delay = time.Minute
		}

		log.Info().Dur("delay", delay).Msg("sleeping before retrying anilist request")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) requestOnce(ctx context.Context, query string, variables, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for request gap: %w", err)
	}

	body, err := json.Marshal(graphQLBody{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal graphql body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if ra := resp.Header.Get("Retry-After"); ra != "" {
		secs, err := strconv.ParseUint(ra, 10, 32)
		if err != nil {
			return fmt.Errorf("retry-after header is set but invalid: %q", ra)
		}
		c.mu.Lock()
		c.retryAfter = time.Duration(secs+10) * time.Second
		c.mu.Unlock()
		return fmt.Errorf("retry-after header is set: %ds", secs)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var parsed graphQLResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("cannot parse response: %s", truncate(data, 512))
	}
	if len(parsed.Data) == 0 || string(parsed.Data) == "null" {
		return fmt.Errorf("response data is null, errors: %v", parsed.Errors)
	}
	if out != nil {
		if err := json.Unmarshal(parsed.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

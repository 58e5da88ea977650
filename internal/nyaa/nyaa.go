// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package nyaa scrapes nyaa.si torrent listing pages (spec §4.M). It
// only extracts structured rows; paging, pacing, and storage are the
// reconciliation driver's job.
package nyaa

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

const pageURLFormat = "https://nyaa.si/?f=0&c=1_2&p=%d"

const (
	rowsXPath      = `//table[contains(concat(" ", normalize-space(@class), " "), " torrent-list ")]/tbody/tr`
	titleLinkXPath = `./td[2]/a[not(contains(concat(" ", normalize-space(@class), " "), " comments "))]`
	magnetAXPath   = `.//a[i[contains(concat(" ", normalize-space(@class), " "), " fa-magnet ")]]`
	sizeFieldXPath = `./td[4]`
	timeFieldXPath = `./td[5]`
)

// Torrent is one row of a scraped listing page.
type Torrent struct {
	NyaaID     int64
	Title      string
	Hash       []byte
	Trusted    bool
	Size       int64
	UploadedAt time.Time
}

// ScrapePage fetches and parses listing page pageNo (1-indexed).
func ScrapePage(ctx context.Context, client *http.Client, pageNo int) ([]Torrent, error) {
	u := fmt.Sprintf(pageURLFormat, pageNo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", u, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot communicate with nyaa.si: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nyaa.si status code is %d", resp.StatusCode)
	}

	doc, err := htmlquery.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot parse nyaa.si response: %w", err)
	}

	rows := htmlquery.Find(doc, rowsXPath)
	torrents := make([]Torrent, 0, len(rows))
	for i, row := range rows {
		t, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("cannot parse torrent number %d on %s: %w", i+1, u, err)
		}
		torrents = append(torrents, t)
	}
	return torrents, nil
}

func uniqueNode(n *html.Node, xpath string) (*html.Node, error) {
	matches := htmlquery.Find(n, xpath)
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("selector %q matches no element", xpath)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("selector %q matches multiple elements", xpath)
	}
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(htmlquery.SelectAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func parseRow(row *html.Node) (Torrent, error) {
	titleLink, err := uniqueNode(row, titleLinkXPath)
	if err != nil {
		return Torrent{}, fmt.Errorf("cannot extract title link: %w", err)
	}

	title := norm.NFC.String(htmlquery.InnerText(titleLink))

	const urlPrefix = "/view/"
	href := htmlquery.SelectAttr(titleLink, "href")
	if !strings.HasPrefix(href, urlPrefix) {
		return Torrent{}, fmt.Errorf("nyaa link does not start with prefix: %s", href)
	}
	nyaaID, err := strconv.ParseInt(href[len(urlPrefix):], 10, 64)
	if err != nil {
		return Torrent{}, fmt.Errorf("nyaa id is out of bounds: %s", href)
	}

	magnetAnchor, err := uniqueNode(row, magnetAXPath)
	if err != nil {
		return Torrent{}, fmt.Errorf("cannot extract magnet link: %w", err)
	}
	hash, err := extractHash(htmlquery.SelectAttr(magnetAnchor, "href"))
	if err != nil {
		return Torrent{}, err
	}

	sizeField, err := uniqueNode(row, sizeFieldXPath)
	if err != nil {
		return Torrent{}, fmt.Errorf("cannot extract size field: %w", err)
	}
	size, err := parseSize(htmlquery.InnerText(sizeField))
	if err != nil {
		return Torrent{}, fmt.Errorf("cannot parse size: %w", err)
	}

	timeField, err := uniqueNode(row, timeFieldXPath)
	if err != nil {
		return Torrent{}, fmt.Errorf("cannot extract timestamp field: %w", err)
	}
	tsAttr := htmlquery.SelectAttr(timeField, "data-timestamp")
	ts, err := strconv.ParseInt(tsAttr, 10, 64)
	if err != nil {
		return Torrent{}, fmt.Errorf("timestamp is invalid: %s", tsAttr)
	}

	return Torrent{
		NyaaID:     nyaaID,
		Title:      title,
		Hash:       hash,
		Trusted:    hasClass(row, "success"),
		Size:       size,
		UploadedAt: time.Unix(ts, 0).UTC(),
	}, nil
}

func extractHash(magnetHref string) ([]byte, error) {
	const topicPrefix = "urn:btih:"

	parsed, err := url.Parse(magnetHref)
	if err != nil {
		return nil, fmt.Errorf("magnet link is not a valid url: %s", magnetHref)
	}
	topic := parsed.Query().Get("xt")
	if topic == "" {
		return nil, fmt.Errorf("magnet link does not contain an xt parameter: %s", magnetHref)
	}
	if !strings.HasPrefix(topic, topicPrefix) {
		return nil, fmt.Errorf("topic does not start with bittorrent prefix: %s", topic)
	}

	hash, err := hex.DecodeString(topic[len(topicPrefix):])
	if err != nil {
		return nil, fmt.Errorf("hash is not hex: %s", topic[len(topicPrefix):])
	}
	return hash, nil
}

// parseSize parses nyaa's human-readable size column ("1.2 GiB", "700.0
// MiB") into a byte count, matching rust_decimal's exact fixed-point
// arithmetic rather than floating point so the conversion round-trips
// cleanly for billing-adjacent display elsewhere.
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	idx := strings.IndexByte(s, ' ')
	if idx < 0 {
		return 0, fmt.Errorf("missing unit: %s", s)
	}
	numPart, unitPart := strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+1:])

	num, err := decimal.NewFromString(numPart)
	if err != nil {
		return 0, fmt.Errorf("invalid size number %q: %w", numPart, err)
	}

	var multiplier int64
	switch strings.ToLower(unitPart) {
	case "", "b":
		multiplier = 1
	case "ki", "kib":
		multiplier = 1024
	case "mi", "mib":
		multiplier = 1024 * 1024
	case "gi", "gib":
		multiplier = 1024 * 1024 * 1024
	case "ti", "tib":
		multiplier = 1024 * 1024 * 1024 * 1024
	case "k", "kb":
		multiplier = 1_000
	case "m", "mb":
		multiplier = 1_000_000
	case "g", "gb":
		multiplier = 1_000_000_000
	case "t", "tb":
		multiplier = 1_000_000_000_000
	default:
		return 0, fmt.Errorf("invalid unit: %s", s)
	}

	return num.Mul(decimal.NewFromInt(multiplier)).Round(0).IntPart(), nil
}

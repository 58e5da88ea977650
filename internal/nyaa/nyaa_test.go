// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package nyaa

import (
	"strings"
	"testing"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSizeHandlesBinaryAndDecimalUnits(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"1.0 GiB", 1024 * 1024 * 1024},
		{"700.0 MiB", 700 * 1024 * 1024},
		{"1 KB", 1000},
		{"0 B", 0},
		{"1.5 GB", 1_500_000_000},
	}
	for _, c := range cases {
		got, err := parseSize(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseSizeErrorsOnMissingUnit(t *testing.T) {
	_, err := parseSize("1234")
	assert.Error(t, err)
}

func TestParseSizeErrorsOnUnknownUnit(t *testing.T) {
	_, err := parseSize("1.0 XB")
	assert.Error(t, err)
}

const rowFixture = `<html><body><table class="torrent-list"><tbody>
<tr class="success">
<td><a href="/category">1</a></td>
<td><a href="/view/12345">Some Show - 01 [1080p]</a><a class="comments" href="#c">3</a></td>
<td><a href="magnet:?xt=urn:btih:0123456789abcdef0123456789abcdef01234567"><i class="fa fa-fw fa-magnet"></i></a></td>
<td>1.2 GiB</td>
<td data-timestamp="1700000000">2023-11-14 22:13</td>
</tr>
</tbody></table></body></html>`

func TestParseRowExtractsFields(t *testing.T) {
	doc, err := htmlquery.Parse(strings.NewReader(rowFixture))
	require.NoError(t, err)

	rows := htmlquery.Find(doc, rowsXPath)
	require.Len(t, rows, 1)

	torrent, err := parseRow(rows[0])
	require.NoError(t, err)

	assert.Equal(t, int64(12345), torrent.NyaaID)
	assert.Equal(t, "Some Show - 01 [1080p]", torrent.Title)
	assert.True(t, torrent.Trusted)
	assert.Equal(t, int64(1288490189), torrent.Size)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), torrent.UploadedAt)
	assert.Len(t, torrent.Hash, 20)
}

func TestParseRowErrorsWhenMagnetLinkMissing(t *testing.T) {
	const fixture = `<html><body><table class="torrent-list"><tbody>
<tr>
<td>1</td>
<td><a href="/view/1">Title</a></td>
<td>1.2 GiB</td>
<td data-timestamp="1700000000">x</td>
</tr>
</tbody></table></body></html>`

	doc, err := htmlquery.Parse(strings.NewReader(fixture))
	require.NoError(t, err)
	rows := htmlquery.Find(doc, rowsXPath)
	require.Len(t, rows, 1)

	_, err = parseRow(rows[0])
	assert.Error(t, err)
}

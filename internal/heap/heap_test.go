// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package heap

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildWords(words []string) (*Heap[int], []Item[int]) {
	items := make([]Item[int], len(words))
	for i, w := range words {
		items[i] = Item[int]{Key: w, Payload: i}
	}
	return Build(items), items
}

func TestFindExactAndPrefix(t *testing.T) {
	h, _ := buildWords([]string{"shogun", "shinseikievangelion", "shin"})

	nShogun := h.Find("shogun")
	require.Contains(t, h.Iter(nShogun), 0)

	// "shi" is a prefix of both "shin" and "shinseikievangelion" but not a
	// node itself with a payload of its own; find() should land on the
	// deepest node that is actually a prefix present in the tree.
	nShin := h.Find("shin")
	assert.Contains(t, h.Iter(nShin), 2)
	assert.Contains(t, h.Iter(nShin), 1, "shinseikievangelion payload reachable under its own prefix's subtree")
}

func TestFindReturnsRootOnNoMatch(t *testing.T) {
	h, _ := buildWords([]string{"shogun"})
	n := h.Find("zzz")
	assert.Equal(t, 0, n)
}

func TestFindFiltersNonAlphabet(t *testing.T) {
	h, _ := buildWords([]string{"attackontitan"})
	n := h.Find("Attack On Titan!!!")
	assert.Contains(t, h.Iter(n), 0)
}

func TestBuildDiscardsEmptyKeys(t *testing.T) {
	h := Build([]Item[int]{{Key: "!!!", Payload: 1}})
	assert.Equal(t, 1, h.NodeCount(), "only the synthetic root should exist")
}

func TestEveryPayloadReachableFromFind(t *testing.T) {
	words := []string{"narutoshippuuden", "naruto", "narutomovie", "bleach", "bleachmovie", "deathnote"}
	h, items := buildWords(words)

	for _, it := range items {
		node := h.Find(it.Key)
		assert.Contains(t, h.Iter(node), it.Payload, "payload for %q must be reachable", it.Key)
	}
}

func TestBuildInvariantUnderPermutation(t *testing.T) {
	words := []string{"a", "ab", "abc", "abd", "b", "ba", "z9"}
	base, items := buildWords(words)

	for trial := 0; trial < 5; trial++ {
		shuffled := make([]Item[int], len(items))
		copy(shuffled, items)
		rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		h := Build(shuffled)
		for _, it := range items {
			n1 := base.Find(it.Key)
			n2 := h.Find(it.Key)
			// Node indices differ across builds; compare payload sets via Find on each heap.
			got1 := base.Iter(n1)
			got2 := h.Iter(n2)
			sort.Ints(got1)
			sort.Ints(got2)
			assert.Equal(t, got1, got2, "payload set for %q must not depend on input order", it.Key)
			assert.Contains(t, got2, it.Payload)
		}
	}
}

func TestChildrenRangeStrictlyAfterParent(t *testing.T) {
	h, _ := buildWords([]string{"a", "ab", "abc", "b", "ba"})
	for i := 1; i < len(h.nodes); i++ {
		n := h.nodes[i]
		for c := int(n.PosChildren); c < int(n.PosChildren)+int(n.NumChildren); c++ {
			assert.Greater(t, c, i)
		}
	}
}

func TestSiblingLettersDistinct(t *testing.T) {
	h, _ := buildWords([]string{"cat", "car", "can", "dog"})
	for i := range h.nodes {
		n := h.nodes[i]
		seen := map[byte]bool{}
		for c := int(n.PosChildren); c < int(n.PosChildren)+int(n.NumChildren); c++ {
			letter := h.nodes[c].Letter
			assert.False(t, seen[letter], "duplicate sibling letter %q under node %d", letter, i)
			seen[letter] = true
		}
	}
}

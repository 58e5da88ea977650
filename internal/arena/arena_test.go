// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushAndIterPerShow(t *testing.T) {
	a := New()

	a.Push("Shigatsu wa Kimi no Uso")
	a.Push("Your Lie in April")
	showA := a.FinishList()

	a.Push("Shinseiki Evangelion")
	showB := a.FinishList()

	assert.Equal(t, []string{"Shigatsu wa Kimi no Uso", "Your Lie in April"}, a.Iter(showA))
	assert.Equal(t, []string{"Shinseiki Evangelion"}, a.Iter(showB))
}

func TestEmptyListHandle(t *testing.T) {
	a := New()
	h := a.FinishList()
	assert.Empty(t, a.Iter(h))
}

func TestLenTracksPushedStrings(t *testing.T) {
	a := New()
	a.Push("one")
	a.Push("two")
	assert.Equal(t, 2, a.Len())
}

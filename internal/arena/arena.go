// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package arena implements the String Arena (spec §4.B): every show name
// is interned into one backing buffer, grouped into per-show lists of
// byte ranges. Returned names are copies of the stored bytes; they do
// not borrow from the arena's buffer.
package arena

// Range is a half-open byte range into an Arena's backing buffer.
type Range struct {
	Start, End uint32
}

// Handle identifies a finished list of names belonging to a single show.
type Handle int

// Arena owns one growable backing buffer of concatenated name bytes, an
// ordered list of name ranges, and an ordered list of per-show name-list
// ranges (a range into the strings slice).
type Arena struct {
	buf     []byte
	strings []Range
	lists   []Range
}

// New returns an empty Arena.
func New() *Arena {
	return &Arena{}
}

// Push appends name to the backing buffer and records it as the next
// string in the list currently being built. Returns the index of the
// pushed string within the arena's global strings slice.
func (a *Arena) Push(name string) int {
	start := uint32(len(a.buf))
	a.buf = append(a.buf, name...)
	end := uint32(len(a.buf))
	a.strings = append(a.strings, Range{Start: start, End: end})
	return len(a.strings) - 1
}

// FinishList closes the run of strings pushed since the last FinishList
// call (or since the arena was created) into a Handle, so the caller can
// later iterate exactly that show's names.
func (a *Arena) FinishList() Handle {
	start := uint32(0)
	if len(a.lists) > 0 {
		start = a.lists[len(a.lists)-1].End
	}
	end := uint32(len(a.strings))
	a.lists = append(a.lists, Range{Start: start, End: end})
	return Handle(len(a.lists) - 1)
}

// Iter returns the names belonging to the list identified by handle, in
// push order. Each call allocates new strings copied from the arena's
// buffer.
func (a *Arena) Iter(h Handle) []string {
	r := a.lists[int(h)]
	out := make([]string, 0, r.End-r.Start)
	for i := r.Start; i < r.End; i++ {
		sr := a.strings[i]
		out = append(out, string(a.buf[sr.Start:sr.End]))
	}
	return out
}

// Len reports the number of names stored in the arena so far.
func (a *Arena) Len() int { return len(a.strings) }

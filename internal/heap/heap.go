// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package heap implements an immutable, array-packed ASCII [a-z0-9] trie
// (the "prefix heap") optimized for longest-prefix lookup and sub-tree
// payload iteration over a fixed 36-symbol alphabet.
package heap

import "sort"

// alphabet is the restricted symbol set accepted by the heap: lowercase
// letters and digits. Any other input byte is dropped during filtering.
func isAlphabet(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

// filter lowercases s and drops every byte outside [a-z0-9].
func filter(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if isAlphabet(c) {
			out = append(out, c)
		}
	}
	return out
}

// Node is a single entry of the packed trie. The synthetic root occupies
// index 0. Every other node carries one alphabet letter, a contiguous
// range of child indices (all strictly greater than its own index), and a
// contiguous range into the payload slice.
type Node struct {
	Letter       byte
	PosChildren  uint32
	NumChildren  uint8
	PayloadStart uint32
	PayloadEnd   uint32
}

// maxNodes is the fatal-precondition ceiling from the spec (2^32 - 1).
const maxNodes = 1<<32 - 1

// Heap is the immutable packed trie. Zero value is not usable; build one
// with Build.
type Heap[T any] struct {
	nodes    []Node
	payloads []T
}

// Item is a single (key, payload) pair supplied to Build.
type Item[T any] struct {
	Key     string
	Payload T
}

// candidate is every materialized non-empty prefix of an accepted input.
type candidate[T any] struct {
	key      []byte
	hasValue bool
	values   []T
}

// Build constructs a Heap from the supplied items, following the 6-step
// contract: materialize prefixes, stable-sort by key bytes, dedup equal
// keys merging payloads, reconstruct parent links via a stack, assign BFS
// positions, and emit nodes/payloads in position order.
func Build[T any](items []Item[T]) *Heap[T] {
	var candidates []candidate[T]

	for _, it := range items {
		key := filter(it.Key)
		if len(key) == 0 {
			continue
		}
		for n := 1; n <= len(key); n++ {
			candidates = append(candidates, candidate[T]{
				key:      key[:n],
				hasValue: n == len(key),
				values:   valuesFor(n == len(key), it.Payload),
			})
		}
	}

	if len(candidates) == 0 {
		return &Heap[T]{nodes: []Node{{}}}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return lessBytes(candidates[i].key, candidates[j].key)
	})

	// Dedup adjacent equal keys, merging payloads.
	deduped := candidates[:1]
	for _, c := range candidates[1:] {
		last := &deduped[len(deduped)-1]
		if string(last.key) == string(c.key) {
			last.values = append(last.values, c.values...)
			last.hasValue = last.hasValue || c.hasValue
			continue
		}
		deduped = append(deduped, c)
	}

	if len(deduped) > maxNodes {
		panic("heap: node count exceeds 2^32-1, fatal precondition violation")
	}

	// Reconstruct parent links with a stack of indices into deduped, keyed
	// by depth (len of key). The parent of candidate i is the deepest
	// still-open ancestor whose key is a strict prefix.
	parent := make([]int, len(deduped)) // -1 means "root"
	childrenOf := make([][]int, len(deduped))
	numSingleLetter := 0

	type frame struct {
		idx int
		len int
	}
	var stack []frame

	for i, c := range deduped {
		for len(stack) > 0 && stack[len(stack)-1].len >= len(c.key) {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			parent[i] = -1
			numSingleLetter++
		} else {
			p := stack[len(stack)-1].idx
			parent[i] = p
			childrenOf[p] = append(childrenOf[p], i)
		}
		stack = append(stack, frame{idx: i, len: len(c.key)})
	}

	// Assign BFS heap positions: index 0 is the synthetic root; single
	// letter nodes (depth 1) occupy 1..1+numSingleLetter; thereafter every
	// node's children occupy a contiguous span placed after all
	// earlier-positioned nodes' children, in candidate (datas-array) order.
	// A BFS queue drives this: single-letter nodes seed the queue already
	// positioned (1..1+numSingleLetter); dequeuing a node reserves a
	// contiguous span for its children and positions them in turn.
	heapPos := make([]int, len(deduped))
	var order []int
	nextPos := 1
	for i := range deduped {
		if parent[i] == -1 {
			heapPos[i] = nextPos
			order = append(order, i)
			nextPos++
		}
	}

	posChildrenOf := make([]uint32, len(deduped))
	numChildrenOf := make([]uint8, len(deduped))
	nextFreePos := uint32(nextPos)

	for qi := 0; qi < len(order); qi++ {
		idx := order[qi]
		kids := childrenOf[idx]
		numChildrenOf[idx] = uint8(len(kids))
		if len(kids) == 0 {
			continue
		}
		posChildrenOf[idx] = nextFreePos
		for j, kidIdx := range kids {
			heapPos[kidIdx] = int(nextFreePos) + j
			order = append(order, kidIdx)
		}
		nextFreePos += uint32(len(kids))
	}

	totalNodes := int(nextFreePos)
	nodes := make([]Node, totalNodes)
	rootKids := 0
	for i := range deduped {
		if parent[i] == -1 {
			rootKids++
		}
	}
	nodes[0] = Node{Letter: 0, PosChildren: 1, NumChildren: uint8(rootKids)}

	var payloads []T
	for _, idx := range order {
		c := deduped[idx]
		pos := heapPos[idx]
		start := uint32(len(payloads))
		payloads = append(payloads, c.values...)
		nodes[pos] = Node{
			Letter:       c.key[len(c.key)-1],
			PosChildren:  posChildrenOf[idx],
			NumChildren:  numChildrenOf[idx],
			PayloadStart: start,
			PayloadEnd:   uint32(len(payloads)),
		}
	}

	return &Heap[T]{nodes: nodes, payloads: payloads}
}

func valuesFor[T any](keep bool, v T) []T {
	if !keep {
		return nil
	}
	return []T{v}
}

func lessBytes(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// Find walks the heap from the root, following the longest ASCII-filtered
// prefix of query present in the tree. Returns the root index (0) when no
// byte of the filtered query matches.
func (h *Heap[T]) Find(query string) int {
	key := filter(query)
	cur := 0
	for _, c := range key {
		next := h.childWithLetter(cur, c)
		if next < 0 {
			break
		}
		cur = next
	}
	return cur
}

func (h *Heap[T]) childWithLetter(node int, letter byte) int {
	n := h.nodes[node]
	start := int(n.PosChildren)
	end := start + int(n.NumChildren)
	for i := start; i < end; i++ {
		if h.nodes[i].Letter == letter {
			return i
		}
	}
	return -1
}

// Iter returns every payload in the sub-tree rooted at nodeIndex via
// depth-first traversal, in no particular sibling order.
func (h *Heap[T]) Iter(nodeIndex int) []T {
	var out []T
	todo := []int{nodeIndex}
	for len(todo) > 0 {
		idx := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		n := h.nodes[idx]
		out = append(out, h.payloads[n.PayloadStart:n.PayloadEnd]...)
		for c := int(n.PosChildren); c < int(n.PosChildren)+int(n.NumChildren); c++ {
			todo = append(todo, c)
		}
	}
	return out
}

// NodeCount reports the total number of nodes including the synthetic root.
func (h *Heap[T]) NodeCount() int {
	return len(h.nodes)
}

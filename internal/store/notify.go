// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package store

import "sync"

// Notifier wakes goroutines waiting on a named key, coalescing any
// notifications that arrive before a waiter next reads the channel
// into a single wakeup (the in-process analogue of the original's
// per-key tokio::sync::Notify set, since SQLite has no LISTEN/NOTIFY
// to relay state_change rows across processes).
type Notifier struct {
	mu   sync.Mutex
	subs map[string]chan struct{}
}

// NewNotifier returns an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]chan struct{})}
}

// Subscribe returns the channel woken by calls to Notify(key). The
// same channel is returned for repeated calls with the same key, so
// only one waiter per key is ever supported - the jobs that use this
// (internal/reconcile's loops) each own exactly one key.
func (n *Notifier) Subscribe(key string) <-chan struct{} {
	return n.channel(key)
}

// Notify wakes any waiter subscribed to key. Non-blocking: if the
// channel already holds an unread wakeup, this is a no-op.
func (n *Notifier) Notify(key string) {
	ch := n.channel(key)
	select {
	case ch <- struct{}{}:
	default:
	}
}

// NotifyAll wakes every key that has ever been subscribed to,
// mirroring DbWatcher.notify_all's "assume every watcher might be
// stale after a reconnect" behavior.
func (n *Notifier) NotifyAll() {
	n.mu.Lock()
	keys := make([]string, 0, len(n.subs))
	for k := range n.subs {
		keys = append(keys, k)
	}
	n.mu.Unlock()
	for _, k := range keys {
		n.Notify(k)
	}
}

func (n *Notifier) channel(key string) chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch, ok := n.subs[key]
	if !ok {
		ch = make(chan struct{}, 1)
		n.subs[key] = ch
	}
	return ch
}

// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hal

import (
	"sync"
)

// Publisher hands consistent snapshots of a component to readers
// outside of the real-time thread.
//
// Publish is meant to be called from the real-time thread: it never
// blocks and skips the update when a reader holds the shared buffer.
type Publisher struct {
	comp *Component

	back []Value // owned by the writer

	mu    sync.Mutex
	front []Value
	seq   uint64
}

// NewPublisher creates a publisher for the given component.
// The component must not export new entries afterwards.
func NewPublisher(c *Component) *Publisher {
	n := c.Len()
	return &Publisher{
		comp:  c,
		back:  make([]Value, 0, n),
		front: make([]Value, 0, n),
	}
}

// Publish snapshots the component and reports whether readers
// can see the new values.
func (p *Publisher) Publish() bool {
	p.back = p.comp.Snapshot(p.back[:0])
	if !p.mu.TryLock() {
		return false
	}
	p.front, p.back = p.back, p.front
	p.seq++
	p.mu.Unlock()
	return true
}

// Load appends the latest published snapshot to dst and returns
// its sequence number.
func (p *Publisher) Load(dst []Value) ([]Value, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append(dst, p.front...), p.seq
}

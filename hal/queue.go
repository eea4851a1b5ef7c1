// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hal

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrQueueFull is returned when a Queue holds too many pending writes.
var ErrQueueFull = errors.New("hal: write queue full")

type write struct {
	name string
	v    interface{}
}

// Queue carries writes from outside the real-time thread to a component.
//
// Set validates and queues a write; Apply, called from the real-time
// thread, stores the pending writes in submission order. Apply never
// blocks: when a writer holds the queue, the writes are applied during
// the next cycle.
type Queue struct {
	comp *Component

	mu      sync.Mutex
	pending []write

	cur []write // owned by the real-time thread
}

// NewQueue creates a queue holding at most size pending writes.
func NewQueue(c *Component, size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		comp:    c,
		pending: make([]write, 0, size),
		cur:     make([]write, 0, size),
	}
}

// Set queues a write of v to the named input pin or read-write parameter.
func (q *Queue) Set(name string, v interface{}) error {
	err := q.comp.Check(name, v)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == cap(q.pending) {
		return fmt.Errorf("could not queue %q: %w", name, ErrQueueFull)
	}
	q.pending = append(q.pending, write{name: name, v: v})
	return nil
}

// Apply stores the pending writes and returns how many were applied.
func (q *Queue) Apply() int {
	if !q.mu.TryLock() {
		return 0
	}
	q.cur, q.pending = q.pending, q.cur[:0]
	q.mu.Unlock()

	n := 0
	for i, w := range q.cur {
		if q.comp.Set(w.name, w.v) == nil {
			n++
		}
		q.cur[i] = write{}
	}
	q.cur = q.cur[:0]
	return n
}

// Funct returns a function applying the pending writes, to be run
// before the functions reading the written entries.
func (q *Queue) Funct(name string) Funct {
	return Funct{
		Name: name,
		Fn:   func(time.Duration) { q.Apply() },
	}
}

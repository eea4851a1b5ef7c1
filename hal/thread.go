// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hal

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-daq/tdaq/log"
	"golang.org/x/time/rate"
)

// Thread invokes a list of functions at a fixed period.
type Thread struct {
	name   string
	period time.Duration
	msg    log.MsgStream

	fcts []Funct
	hook func()

	lim *rate.Limiter

	cycles   uint64 // atomic
	overruns uint64 // atomic
}

// NewThread creates a new thread invoking its functions every period.
func NewThread(name string, period time.Duration, msg log.MsgStream) (*Thread, error) {
	if period <= 0 {
		return nil, fmt.Errorf("hal: invalid period %v for thread %q", period, name)
	}
	return &Thread{
		name:   name,
		period: period,
		msg:    msg,
		lim:    rate.NewLimiter(rate.Every(time.Second), 1),
	}, nil
}

// Name returns the name of the thread.
func (th *Thread) Name() string { return th.name }

// Period returns the period of the thread.
func (th *Thread) Period() time.Duration { return th.period }

// Add appends functions to the thread, in invocation order.
// Add must not be called once Run has started.
func (th *Thread) Add(fcts ...Funct) {
	th.fcts = append(th.fcts, fcts...)
}

// OnCycle installs a hook invoked at the end of every cycle.
// The hook must not block.
func (th *Thread) OnCycle(f func()) {
	th.hook = f
}

// Step runs one cycle.
func (th *Thread) Step() {
	for _, f := range th.fcts {
		f.Fn(th.period)
	}
	if th.hook != nil {
		th.hook()
	}
	atomic.AddUint64(&th.cycles, 1)
}

// Cycles returns the number of completed cycles.
func (th *Thread) Cycles() uint64 { return atomic.LoadUint64(&th.cycles) }

// Overruns returns the number of cycles that took longer than the period.
func (th *Thread) Overruns() uint64 { return atomic.LoadUint64(&th.overruns) }

// Run runs cycles until ctx is done.
func (th *Thread) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	tick := time.NewTicker(th.period)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			beg := time.Now()
			th.Step()
			if dt := time.Since(beg); dt > th.period {
				n := atomic.AddUint64(&th.overruns, 1)
				if th.msg != nil && th.lim.Allow() {
					th.msg.Warnf(
						"thread %q: cycle took %v (period=%v, overruns=%d)",
						th.name, dt, th.period, n,
					)
				}
			}
		}
	}
}

// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m5i20

import (
	"time"

	"github.com/go-lpc/mesa/hal"
	"github.com/go-lpc/mesa/m5i20/internal/regs"
)

type encoder struct {
	slot int // hardware counter slot

	count         int32
	countLatch    int32
	position      float64
	positionLatch float64
	index         bool
	indexLatch    bool

	latchIndex hal.Request
	resetCount hal.Request

	scale float64

	mode    uint32 // latch mode currently applied
	armed   bool   // waiting for an index pulse
	latched bool   // last observed index-latched status
}

// ReadEncoders updates the encoder pins from the hardware counters.
func (brd *Board) ReadEncoders(period time.Duration) {
	for i := range brd.enc {
		var (
			enc   = &brd.enc[i]
			ccr   = brd.regs.enc.ccr[i]
			count = brd.regs.enc.count[i]
		)

		if enc.resetCount.Pending() {
			ccr.w(enc.mode | regs.EncLocalClear)
			enc.resetCount.Ack()
		}

		arming := enc.latchIndex.Pending()
		if arming {
			enc.indexLatch = false
			enc.mode = regs.EncLatchOnIndex
			ccr.w(enc.mode)
			enc.armed = true
			enc.latchIndex.Ack()
		}

		status := ccr.r()
		enc.count = int32(count.r())
		if enc.scale != 0 {
			enc.position = float64(enc.count) / enc.scale
		}
		enc.index = status&regs.EncIndexLive != 0

		// only a rising index-latched flag, seen after arming, is an index event.
		latched := status&regs.EncIndexLatched != 0
		if arming {
			enc.latched = latched
		}
		edge := latched && !enc.latched
		enc.latched = latched

		if enc.armed && edge {
			enc.countLatch = enc.count
			enc.positionLatch = enc.position
			enc.indexLatch = true
			enc.armed = false
			enc.mode = regs.EncLatchOnRead
			ccr.w(enc.mode)
		}
	}
}

func (brd *Board) initEncoders() {
	for i := range brd.enc {
		brd.enc[i].mode = regs.EncLatchOnRead
		brd.regs.enc.ccr[i].w(regs.EncLatchOnRead)
	}
}

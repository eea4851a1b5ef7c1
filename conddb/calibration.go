// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conddb

import (
	"fmt"
	"math"
)

const (
	numDACs     = 4
	numEncoders = 8
)

// Calibration kinds, as stored in the kind column.
const (
	KindDAC      = "dac"      // v0: offset, v1: gain
	KindEncoder  = "encoder"  // v0: scale
	KindWatchdog = "watchdog" // v0: timeout in µs
)

// Calibration describes the calibration of a board.
type Calibration struct {
	Board    string              `json:"board"`
	DACs     [numDACs]DAC        `json:"dacs"`
	Encoders [numEncoders]Encoder `json:"encoders"`
	Watchdog uint32              `json:"watchdog"` // timeout in µs
}

// DAC describes the calibration of a DAC channel.
type DAC struct {
	Offset float64 `json:"offset"`
	Gain   float64 `json:"gain"`
}

// Encoder describes the calibration of an encoder channel.
type Encoder struct {
	Scale float64 `json:"scale"` // counts per unit
}

func (cal *Calibration) set(kind string, ch int, v0, v1 float64) error {
	switch kind {
	case KindDAC:
		if ch < 0 || ch >= len(cal.DACs) {
			return fmt.Errorf("invalid DAC channel %d", ch)
		}
		cal.DACs[ch] = DAC{Offset: v0, Gain: v1}
	case KindEncoder:
		if ch < 0 || ch >= len(cal.Encoders) {
			return fmt.Errorf("invalid encoder channel %d", ch)
		}
		cal.Encoders[ch] = Encoder{Scale: v0}
	case KindWatchdog:
		if v0 < 0 || v0 > math.MaxUint32 {
			return fmt.Errorf("invalid watchdog timeout %v", v0)
		}
		cal.Watchdog = uint32(v0)
	default:
		return fmt.Errorf("invalid calibration kind %q", kind)
	}
	return nil
}

// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package m5i20 drives Mesa 5I20 motion-control cards.
//
// A card is a PLX 9030 PCI bridge in front of a Xilinx FPGA providing
// quadrature encoder counters, PWM generators used as DACs, digital I/O
// and a hardware watchdog.
//
// Boards are attached once, at process start, and export their pins,
// parameters and periodic functions to a hal.Registry.
// The periodic functions never block, allocate nor log.
package m5i20 // import "github.com/go-lpc/mesa/m5i20"

import (
	"errors"

	"github.com/go-lpc/mesa/internal/pci"
	"github.com/go-lpc/mesa/m5i20/internal/regs"
)

const (
	NumEncoders   = 8
	NumDACs       = 4
	NumPorts      = 2
	NumDigitalIns = NumPorts * regs.DioLines
	NumDigitalOut = NumPorts * regs.DioLines

	// MaxBoards is the default maximum number of attached boards.
	MaxBoards = 4
)

// encSlots maps logical encoder channels to hardware counter slots.
// The secondary group starts at slot 8: slots 4 to 7 are not encoders.
var encSlots = [NumEncoders]int{0, 1, 2, 3, 8, 9, 10, 11}

// ID identifies 5I20 cards on the PCI bus.
var ID = pci.ID{
	Vendor:    regs.VendorID,
	Device:    regs.DeviceID,
	SubVendor: regs.SubVendorID,
	SubDevice: regs.SubDeviceID,
}

var (
	// ErrConfigBusy is returned when the FPGA reports DONE before
	// being programmed, usually a sign the wrong card is addressed.
	ErrConfigBusy = errors.New("m5i20: FPGA configuration busy (DONE already high)")

	// ErrConfigIncomplete is returned when the FPGA does not report
	// DONE after the whole bitstream was sent.
	ErrConfigIncomplete = errors.New("m5i20: FPGA configuration incomplete (DONE still low)")

	// ErrNoBoard is returned when no board could be attached.
	ErrNoBoard = errors.New("m5i20: no board attached")
)

// Calibration holds the per-board calibration applied at bring-up.
type Calibration struct {
	DACs     [NumDACs]DACCalibration
	Encoders [NumEncoders]float64 // scale, counts per unit; 0 keeps the default
	Watchdog uint32               // timeout in µs; 0 keeps the default
}

// DACCalibration holds the offset and gain of a DAC channel.
type DACCalibration struct {
	Offset float64
	Gain   float64 // 0 keeps the default
}

// Calibrator provides the calibration of a board, identified by its
// PCI slot.
type Calibrator interface {
	Calibration(slot string) (Calibration, error)
}

// CalibratorFunc adapts a function to the Calibrator interface.
type CalibratorFunc func(slot string) (Calibration, error)

func (f CalibratorFunc) Calibration(slot string) (Calibration, error) {
	return f(slot)
}

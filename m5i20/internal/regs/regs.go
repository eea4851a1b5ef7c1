// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regs holds the register map of the 5I20 card.
//
// All offsets are byte offsets inside their window.
package regs // import "github.com/go-lpc/mesa/m5i20/internal/regs"

// PCI identifiers.
const (
	VendorID    = 0x10b5 // PLX Technology
	DeviceID    = 0x9030 // PCI 9030 target bridge
	SubVendorID = 0x10b5
	SubDeviceID = 0x3131
)

// PCI base address registers.
const (
	BarBridge = 0 // PLX 9030 local configuration registers
	BarFPGA32 = 4 // FPGA, 32-bit accesses
	BarFPGA16 = 5 // FPGA, 16-bit accesses

	BridgeSize = 0x80
	FPGASize   = 0x10000
)

// PLX 9030 local configuration registers.
const (
	GPIOC = 0x54
)

// GPIOC bits wired to the FPGA configuration pins.
// /WRITE and /PROGRAM are active low.
const (
	GpioDone    = 1 << 11
	GpioInit    = 1 << 14
	GpioLed     = 1 << 17
	GpioWrite   = 1 << 23
	GpioProgram = 1 << 26
)

// ConfigData is the FPGA configuration data port (16-bit window).
const ConfigData = 0x0000

// Encoder counters.
const (
	NumEncoderSlots = 16

	encCount = 0x0000
	encCCR   = 0x0040
)

func EncCount(slot int) int64 { return encCount + 4*int64(slot) }
func EncCCR(slot int) int64   { return encCCR + 4*int64(slot) }

// Encoder control and status register bits.
const (
	EncLatchOnRead  = 1 << 0
	EncLatchOnIndex = 1 << 1
	EncLocalClear   = 1 << 2 // self-clearing
	EncIndexLive    = 1 << 3 // read-only
	EncIndexLatched = 1 << 4 // read-only
)

// PWM generators.
const (
	pwmValue = 0x0080
	pwmMode  = 0x0090
	pwmGate  = 0x00a0

	PwmRate = 0x00b0

	PwmInterlaced = 1 << 0
	PwmEnable     = 1 << 0
)

func PwmValue(i int) int64 { return pwmValue + 4*int64(i) }
func PwmMode(i int) int64  { return pwmMode + 4*int64(i) }
func PwmGate(i int) int64  { return pwmGate + 4*int64(i) }

// Watchdog and miscellaneous.
const (
	WdTimeout = 0x00c0
	WdCount   = 0x00c4
	WdControl = 0x00c8
	LedView   = 0x00cc

	WdEnable    = 1 << 0
	WdAutoReset = 1 << 1
)

// Digital I/O ports. Each port carries 24 lines, LSB first.
const (
	dioIn  = 0x00d0
	dioOut = 0x00d8

	DioLines = 24
	DioMask  = 1<<DioLines - 1
)

func DioIn(port int) int64  { return dioIn + 4*int64(port) }
func DioOut(port int) int64 { return dioOut + 4*int64(port) }

// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m5i20

import (
	"fmt"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/mesa/internal/mmap"
	"github.com/go-lpc/mesa/internal/pci"
	"github.com/go-lpc/mesa/m5i20/internal/regs"
	"periph.io/x/periph/conn/physic"
)

// Board is an attached 5I20 card.
type Board struct {
	id   int
	name string
	dev  pci.Device
	cfg  config
	msg  log.MsgStream

	mem struct {
		bridge *window
		fpga32 *window
		fpga16 *window
	}

	regs registers
	err  error

	enc  [NumEncoders]encoder
	dac  [NumDACs]dac
	din  [NumDigitalIns]digitalIn
	dout [NumDigitalOut]digitalOut
	wd   watchdog
}

type registers struct {
	gpioc reg32
	data  reg16

	enc struct {
		count [NumEncoders]reg32
		ccr   [NumEncoders]reg32
	}

	pwm struct {
		value [NumDACs]reg32
		mode  [NumDACs]reg32
		gate  [NumDACs]reg32
		rate  reg32
	}

	wd struct {
		timeout reg32
		count   reg32
		ctrl    reg32
	}
	led reg32

	dio struct {
		in  [NumPorts]reg32
		out [NumPorts]reg32
	}
}

// Open maps the register windows of the card at the provided PCI
// location.
func Open(dev pci.Device, id int, opts ...Option) (*Board, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return open(dev, id, cfg)
}

func open(dev pci.Device, id int, cfg config) (*Board, error) {
	bridge, err := mmap.Map(dev.Resource(regs.BarBridge), regs.BridgeSize)
	if err != nil {
		return nil, fmt.Errorf("m5i20: could not map bridge window of %q: %w", dev.Slot, err)
	}

	fpga32, err := mmap.Map(dev.Resource(regs.BarFPGA32), regs.FPGASize)
	if err != nil {
		_ = bridge.Close()
		return nil, fmt.Errorf("m5i20: could not map 32-bit FPGA window of %q: %w", dev.Slot, err)
	}

	fpga16, err := mmap.Map(dev.Resource(regs.BarFPGA16), regs.FPGASize)
	if err != nil {
		_ = fpga32.Close()
		_ = bridge.Close()
		return nil, fmt.Errorf("m5i20: could not map 16-bit FPGA window of %q: %w", dev.Slot, err)
	}

	return newBoard(dev, id, bridge, fpga32, fpga16, cfg)
}

func newBoard(dev pci.Device, id int, bridge, fpga32, fpga16 *mmap.Handle, cfg config) (*Board, error) {
	brd := &Board{
		id:   id,
		name: fmt.Sprintf("m5i20.%d", id),
		dev:  dev,
		cfg:  cfg,
		msg:  cfg.msg,
	}
	brd.mem.bridge = newWindow("bridge", bridge)
	brd.mem.fpga32 = newWindow("fpga32", fpga32)
	brd.mem.fpga16 = newWindow("fpga16", fpga16)

	err := brd.bind()
	if err != nil {
		_ = brd.Close()
		return nil, fmt.Errorf("m5i20: could not bind registers of %q: %w", dev.Slot, err)
	}

	for i := range brd.enc {
		brd.enc[i].slot = encSlots[i]
		brd.enc[i].scale = 1
	}
	for i := range brd.dac {
		brd.dac[i].gain = 1
	}
	for i := range brd.din {
		brd.din[i].bit = uint(i % regs.DioLines)
	}
	for i := range brd.dout {
		brd.dout[i].bit = uint(i % regs.DioLines)
	}
	brd.wd.timeout = defaultWatchdogTimeout

	return brd, nil
}

func (brd *Board) bind() error {
	var (
		bridge = brd.mem.bridge
		fpga32 = brd.mem.fpga32
		fpga16 = brd.mem.fpga16
	)

	brd.regs.gpioc = newReg32(brd, bridge, "gpioc", regs.GPIOC)
	brd.regs.data = newReg16(brd, fpga16, "config-data", regs.ConfigData)

	for i, slot := range encSlots {
		brd.regs.enc.count[i] = newReg32(brd, fpga32, fmt.Sprintf("enc-%02d-count", i), regs.EncCount(slot))
		brd.regs.enc.ccr[i] = newReg32(brd, fpga32, fmt.Sprintf("enc-%02d-ccr", i), regs.EncCCR(slot))
	}

	for i := 0; i < NumDACs; i++ {
		brd.regs.pwm.value[i] = newReg32(brd, fpga32, fmt.Sprintf("pwm-%02d-value", i), regs.PwmValue(i))
		brd.regs.pwm.mode[i] = newReg32(brd, fpga32, fmt.Sprintf("pwm-%02d-mode", i), regs.PwmMode(i))
		brd.regs.pwm.gate[i] = newReg32(brd, fpga32, fmt.Sprintf("pwm-%02d-gate", i), regs.PwmGate(i))
	}
	brd.regs.pwm.rate = newReg32(brd, fpga32, "pwm-rate", regs.PwmRate)

	brd.regs.wd.timeout = newReg32(brd, fpga32, "wd-timeout", regs.WdTimeout)
	brd.regs.wd.count = newReg32(brd, fpga32, "wd-count", regs.WdCount)
	brd.regs.wd.ctrl = newReg32(brd, fpga32, "wd-control", regs.WdControl)
	brd.regs.led = newReg32(brd, fpga32, "led-view", regs.LedView)

	for i := 0; i < NumPorts; i++ {
		brd.regs.dio.in[i] = newReg32(brd, fpga32, fmt.Sprintf("dio-%d-in", i), regs.DioIn(i))
		brd.regs.dio.out[i] = newReg32(brd, fpga32, fmt.Sprintf("dio-%d-out", i), regs.DioOut(i))
	}

	return brd.err
}

// Close unmaps the register windows of the board.
func (brd *Board) Close() error {
	var err error
	for _, win := range []*window{brd.mem.fpga16, brd.mem.fpga32, brd.mem.bridge} {
		if win == nil || win.h == nil {
			continue
		}
		e := win.h.Close()
		if e != nil && err == nil {
			err = fmt.Errorf("m5i20: could not unmap %s window: %w", win.name, e)
		}
	}
	return err
}

// ID returns the index of the board in the process.
func (brd *Board) ID() int { return brd.id }

// Name returns the prefix of the board's pins, parameters and functions.
func (brd *Board) Name() string { return brd.name }

// Slot returns the PCI location of the board.
func (brd *Board) Slot() string { return brd.dev.Slot }

// PWMFrequency returns the PWM carrier frequency.
func (brd *Board) PWMFrequency() physic.Frequency { return brd.cfg.pwm }

// Rails returns the output range of the DACs.
func Rails() (lo, hi physic.ElectricPotential) {
	return dacMin * physic.Volt, dacMax * physic.Volt
}

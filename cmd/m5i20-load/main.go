// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command m5i20-load programs the FPGA of Mesa 5I20 cards.
//
// Usage:
//
//	m5i20-load [options] file.bit
//
// Example:
//
//	$> m5i20-load -slot 0000:05:02.0 ./hostmot5_8.bit
package main // import "github.com/go-lpc/mesa/cmd/m5i20-load"

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	tlog "github.com/go-daq/tdaq/log"
	"github.com/go-lpc/mesa/internal/pci"
	"github.com/go-lpc/mesa/m5i20"
)

func main() {
	log.SetPrefix("m5i20-load: ")
	log.SetFlags(0)

	var (
		sysfs = flag.String("sysfs", pci.SysFS, "sysfs directory of PCI devices")
		slot  = flag.String("slot", "", "PCI slot of the card to program (default: all cards)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `m5i20-load programs the FPGA of Mesa 5I20 cards.

Usage: m5i20-load [options] file.bit

Example:

 $> m5i20-load -slot 0000:05:02.0 ./hostmot5_8.bit

Options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		log.Fatalf("missing bitstream file")
	}

	err := xmain(*sysfs, *slot, flag.Arg(0))
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func xmain(sysfs, slot, fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open bitstream: %w", err)
	}
	defer f.Close()

	bs, err := m5i20.ReadBitstream(f)
	if err != nil {
		return fmt.Errorf("could not read bitstream %q: %w", fname, err)
	}
	log.Printf("design: %q", bs.Design)
	log.Printf("part:   %q", bs.Part)
	log.Printf("date:   %s %s", bs.Date, bs.Time)
	log.Printf("size:   %d bytes (crc=0x%04x)", len(bs.Data), bs.CRC16())

	devs, err := pci.Scan(sysfs, m5i20.ID, 0)
	if err != nil {
		return fmt.Errorf("could not scan PCI bus: %w", err)
	}

	if slot != "" {
		var sel []pci.Device
		for _, dev := range devs {
			if dev.Slot == slot {
				sel = append(sel, dev)
			}
		}
		devs = sel
	}

	if len(devs) == 0 {
		return m5i20.ErrNoBoard
	}

	msg := tlog.NewMsgStream("m5i20-load", tlog.LvlInfo, os.Stdout)
	var errs []error
	for i, dev := range devs {
		err := load(dev, i, bs, msg)
		if err != nil {
			log.Printf("could not program card %q: %+v", dev.Slot, err)
			errs = append(errs, err)
			continue
		}
		log.Printf("programmed card %q", dev.Slot)
	}

	switch len(errs) {
	case 0:
		return nil
	case len(devs):
		return fmt.Errorf("could not program any card: %w", errs[0])
	default:
		return fmt.Errorf("could not program %d/%d cards: %w", len(errs), len(devs), errs[0])
	}
}

type programmer interface {
	Program(bs m5i20.Bitstream) error
	Close() error
}

var open = func(dev pci.Device, id int, opts ...m5i20.Option) (programmer, error) {
	brd, err := m5i20.Open(dev, id, opts...)
	if err != nil {
		return nil, err
	}
	return brd, nil
}

func load(dev pci.Device, id int, bs m5i20.Bitstream, msg tlog.MsgStream) error {
	brd, err := open(dev, id, m5i20.WithMsgStream(msg))
	if err != nil {
		return err
	}

	err = brd.Program(bs)
	if err != nil {
		_ = brd.Close()
		if errors.Is(err, m5i20.ErrConfigBusy) {
			log.Printf("card %q is already configured: power-cycle it first", dev.Slot)
		}
		return err
	}

	return brd.Close()
}

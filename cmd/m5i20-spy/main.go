// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command m5i20-spy spies the content of 5I20 registers.
package main // import "github.com/go-lpc/mesa/cmd/m5i20-spy"

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	tlog "github.com/go-daq/tdaq/log"
	"github.com/go-lpc/mesa/internal/pci"
	"github.com/go-lpc/mesa/m5i20"
)

func main() {
	log.SetPrefix("m5i20-spy: ")
	log.SetFlags(0)

	sysfs := flag.String("sysfs", pci.SysFS, "sysfs directory of PCI devices")
	flag.Parse()

	err := spy(os.Stdout, *sysfs)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func spy(w io.Writer, sysfs string) error {
	devs, err := pci.Scan(sysfs, m5i20.ID, m5i20.MaxBoards)
	if err != nil {
		return fmt.Errorf("could not scan PCI bus: %w", err)
	}
	if len(devs) == 0 {
		return m5i20.ErrNoBoard
	}

	msg := tlog.NewMsgStream("m5i20-spy", tlog.LvlWarning, os.Stderr)
	for i, dev := range devs {
		err := dump(w, dev, i, msg)
		if err != nil {
			return fmt.Errorf("could not dump registers of %q: %w", dev.Slot, err)
		}
	}
	return nil
}

func dump(w io.Writer, dev pci.Device, id int, msg tlog.MsgStream) error {
	brd, err := m5i20.Open(dev, id, m5i20.WithMsgStream(msg))
	if err != nil {
		return fmt.Errorf("could not open device: %w", err)
	}
	defer brd.Close()

	fmt.Fprintf(w, "------------------------------------------------\n")
	const layout = "2006-01-02 15:04:05 MST"
	fmt.Fprintf(w, "%v\n", time.Now().Format(layout))

	err = brd.DumpRegisters(w)
	if err != nil {
		return err
	}

	return brd.Close()
}

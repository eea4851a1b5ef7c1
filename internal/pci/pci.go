// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pci scans the Linux sysfs view of the PCI bus.
package pci // import "github.com/go-lpc/mesa/internal/pci"

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// SysFS is the default location of PCI devices.
const SysFS = "/sys/bus/pci/devices"

// ID identifies a kind of PCI card.
type ID struct {
	Vendor    uint16
	Device    uint16
	SubVendor uint16
	SubDevice uint16
}

func (id ID) String() string {
	return fmt.Sprintf(
		"%04x:%04x (sub=%04x:%04x)",
		id.Vendor, id.Device, id.SubVendor, id.SubDevice,
	)
}

// Device is a PCI function found on the bus.
type Device struct {
	Slot string // bus address, e.g. 0000:05:02.0
	Dir  string // sysfs directory of the device
	ID   ID
}

// Resource returns the path to the file mapping the given BAR.
func (dev Device) Resource(bar int) string {
	return filepath.Join(dev.Dir, "resource"+strconv.Itoa(bar))
}

// Scan returns at most max devices under root matching id,
// sorted by slot.
func Scan(root string, id ID, max int) ([]Device, error) {
	if root == "" {
		root = SysFS
	}

	ents, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("pci: could not read bus %q: %w", root, err)
	}

	var devs []Device
	for _, ent := range ents {
		dir := filepath.Join(root, ent.Name())
		got, err := readID(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("pci: could not read device %q: %w", ent.Name(), err)
		}
		if got != id {
			continue
		}
		devs = append(devs, Device{
			Slot: ent.Name(),
			Dir:  dir,
			ID:   got,
		})
	}

	sort.Slice(devs, func(i, j int) bool {
		return devs[i].Slot < devs[j].Slot
	})

	if max > 0 && len(devs) > max {
		devs = devs[:max]
	}

	return devs, nil
}

func readID(dir string) (ID, error) {
	var (
		id  ID
		err error
	)
	for _, v := range []struct {
		name string
		ptr  *uint16
	}{
		{"vendor", &id.Vendor},
		{"device", &id.Device},
		{"subsystem_vendor", &id.SubVendor},
		{"subsystem_device", &id.SubDevice},
	} {
		*v.ptr, err = readHex(filepath.Join(dir, v.name))
		if err != nil {
			return id, err
		}
	}
	return id, nil
}

func readHex(fname string) (uint16, error) {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return 0, err
	}
	txt := strings.TrimSpace(string(raw))
	txt = strings.TrimPrefix(txt, "0x")
	v, err := strconv.ParseUint(txt, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("could not parse %q: %w", fname, err)
	}
	return uint16(v), nil
}

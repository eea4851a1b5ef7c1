// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-lpc/mesa/m5i20"
)

func mkcard(t *testing.T, root, slot string) {
	t.Helper()
	dir := filepath.Join(root, slot)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		t.Fatalf("could not create card dir: %+v", err)
	}

	for name, txt := range map[string]string{
		"vendor":           "0x10b5\n",
		"device":           "0x9030\n",
		"subsystem_vendor": "0x10b5\n",
		"subsystem_device": "0x3131\n",
	} {
		err = os.WriteFile(filepath.Join(dir, name), []byte(txt), 0644)
		if err != nil {
			t.Fatalf("could not create %s: %+v", name, err)
		}
	}

	for name, size := range map[string]int{
		"resource0": 0x80,
		"resource4": 0x10000,
		"resource5": 0x10000,
	} {
		err = os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0644)
		if err != nil {
			t.Fatalf("could not create %s: %+v", name, err)
		}
	}
}

func TestSpy(t *testing.T) {
	root := t.TempDir()

	err := spy(new(bytes.Buffer), root)
	if !errors.Is(err, m5i20.ErrNoBoard) {
		t.Fatalf("invalid error: got=%v, want=%v", err, m5i20.ErrNoBoard)
	}

	mkcard(t, root, "0000:05:02.0")
	mkcard(t, root, "0000:05:04.0")

	buf := new(bytes.Buffer)
	err = spy(buf, root)
	if err != nil {
		t.Fatalf("could not spy registers: %+v", err)
	}

	out := buf.String()
	for _, want := range []string{
		`board m5i20.0 (slot="0000:05:02.0")`,
		`board m5i20.1 (slot="0000:05:04.0")`,
		"bridge[0x0054] gpioc",
		"fpga16[0x0000] config-data",
		"watchdog: disabled",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}

	err = os.Remove(filepath.Join(root, "0000:05:04.0", "resource5"))
	if err != nil {
		t.Fatalf("could not remove resource: %+v", err)
	}
	err = spy(new(bytes.Buffer), root)
	if err == nil {
		t.Fatalf("expected an error")
	}
}

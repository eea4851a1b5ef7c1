// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command m5i20-cfg writes the configuration of m5i20-rt.
//
// Without argument, m5i20-cfg writes the default configuration.
// With a configuration file argument, m5i20-cfg writes the configuration
// m5i20-rt would use, defaults included.
//
// Example:
//
//	$> m5i20-cfg -o m5i20-rt.yml
//	$> m5i20-cfg ./m5i20-rt.yml
package main // import "github.com/go-lpc/mesa/cmd/m5i20-cfg"

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-lpc/mesa/internal/rtconf"
	yml "gopkg.in/yaml.v2"
)

func main() {
	log.SetPrefix("m5i20-cfg: ")
	log.SetFlags(0)

	oname := flag.String("o", "", "path to output configuration file (default: stdout)")
	flag.Parse()

	var fname string
	if flag.NArg() > 0 {
		fname = flag.Arg(0)
	}

	var w io.Writer = os.Stdout
	if *oname != "" {
		f, err := os.Create(*oname)
		if err != nil {
			log.Fatalf("could not create output file: %+v", err)
		}
		defer f.Close()
		w = f
	}

	err := mkconf(w, fname)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func mkconf(w io.Writer, fname string) error {
	cfg, err := rtconf.Load(fname)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}

	enc := yml.NewEncoder(w)
	err = enc.Encode(cfg)
	if err != nil {
		return fmt.Errorf("could not encode configuration: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return fmt.Errorf("could not flush configuration: %w", err)
	}
	return nil
}

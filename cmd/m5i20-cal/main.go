// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command m5i20-cal displays the calibrations stored in the
// calibration database.
//
// Without -board, m5i20-cal lists the calibrated boards.
package main // import "github.com/go-lpc/mesa/cmd/m5i20-cal"

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/go-lpc/mesa/conddb"
)

func main() {
	log.SetPrefix("m5i20-cal: ")
	log.SetFlags(0)

	var (
		dbname = flag.String("db", "m5i20", "name of the calibration database")
		board  = flag.String("board", "", "PCI slot of the board to inspect")
		asJSON = flag.Bool("json", false, "display the calibration as JSON")
	)

	flag.Parse()

	db, err := conddb.Open(*dbname)
	if err != nil {
		log.Fatalf("could not open calibration db: %+v", err)
	}
	defer db.Close()

	err = doQuery(os.Stdout, db, *board, *asJSON)
	if err != nil {
		log.Fatalf("could not do query: %+v", err)
	}
}

func doQuery(w io.Writer, db *conddb.DB, board string, asJSON bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if board == "" {
		boards, err := db.Boards(ctx)
		if err != nil {
			return fmt.Errorf("could not list boards: %w", err)
		}
		for _, b := range boards {
			fmt.Fprintf(w, "%s\n", b)
		}
		return nil
	}

	cal, err := db.Calibration(ctx, board)
	if err != nil {
		return fmt.Errorf("could not get calibration of %q: %w", board, err)
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cal)
	}
	return display(w, cal)
}

func display(w io.Writer, cal conddb.Calibration) error {
	fmt.Fprintf(w, "board: %s\n", cal.Board)
	fmt.Fprintf(w, "watchdog: %dus\n", cal.Watchdog)

	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	fmt.Fprintf(tw, "channel\toffset\tgain\n")
	for i, dac := range cal.DACs {
		fmt.Fprintf(tw, "dac-%02d\t%g\t%g\n", i, dac.Offset, dac.Gain)
	}
	fmt.Fprintf(tw, "channel\tscale\t\n")
	for i, enc := range cal.Encoders {
		fmt.Fprintf(tw, "enc-%02d\t%g\t\n", i, enc.Scale)
	}
	return tw.Flush()
}

// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command m5i20-rt starts a TDAQ server driving Mesa 5I20 cards.
//
// Usage:
//
//	m5i20-rt [tdaq options] config.yml
//
// The /config command attaches the cards described by the configuration
// file, /init builds the real-time thread, /start and /stop run it and
// /quit releases the cards.
// Snapshots of the exported pins are streamed on the /pins output and
// served over HTTP.
package main // import "github.com/go-lpc/mesa/cmd/m5i20-rt"

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/mesa/internal/rtconf"
	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
)

func main() {
	cmd := flags.New()

	var fname string
	if len(cmd.Args) > 0 {
		fname = cmd.Args[0]
	}

	cfg, err := rtconf.Load(fname)
	if err != nil {
		log.Fatalf("could not load configuration: %+v", err)
	}

	if cfg.PMon {
		stop, err := monitor(cfg)
		if err != nil {
			log.Fatalf("could not start process monitoring: %+v", err)
		}
		defer stop()
	}

	dev := newServer(fname)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/pins", dev.pins)

	srv.RunHandle(dev.run)

	grp, ctx := errgroup.WithContext(context.Background())

	var web *http.Server
	if cfg.HTTP != "" {
		web = &http.Server{
			Addr:    cfg.HTTP,
			Handler: dev.router(),
		}
		grp.Go(func() error {
			err := web.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	grp.Go(func() error {
		if web != nil {
			defer web.Close()
		}
		return srv.Run(ctx)
	})

	err = grp.Wait()
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

func monitor(cfg rtconf.Config) (func(), error) {
	p, err := pmon.Monitor(os.Getpid())
	if err != nil {
		return nil, err
	}

	f, err := os.Create("m5i20-rt-pmon.log")
	if err != nil {
		return nil, err
	}
	p.W = f
	p.Freq = cfg.PMonDuration()

	go func() {
		err := p.Run()
		if err != nil {
			log.Printf("could not run pmon: %+v", err)
		}
	}()

	return func() {
		err := p.Kill()
		if err != nil {
			log.Printf("could not stop pmon: %+v", err)
		}
		_ = f.Close()
	}, nil
}

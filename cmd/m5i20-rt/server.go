// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-lpc/mesa/conddb"
	"github.com/go-lpc/mesa/hal"
	"github.com/go-lpc/mesa/internal/pci"
	"github.com/go-lpc/mesa/internal/rtconf"
	"github.com/go-lpc/mesa/m5i20"
	"golang.org/x/sync/errgroup"
)

const (
	pinsPeriod = 100 * time.Millisecond // period of the /pins output stream
	queueSize  = 256                    // pending user writes
)

type server struct {
	fname string

	scan   func(root string, id pci.ID, max int) ([]pci.Device, error)
	opendb func(name string) (*conddb.DB, error)

	mu     sync.RWMutex
	cfg    rtconf.Config
	db     *conddb.DB
	comp   *hal.Component
	boards []*m5i20.Board
	thread *hal.Thread
	pub    *hal.Publisher
	queue  *hal.Queue
	alert  *alerter

	// owned by the real-time thread.
	estops chan estop
	prev   []bool

	buf []hal.Value // /pins output
}

func newServer(fname string) *server {
	return &server{
		fname:  fname,
		scan:   pci.Scan,
		opendb: conddb.Open,
	}
}

func (srv *server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")

	cfg, err := rtconf.Load(srv.fname)
	if err != nil {
		ctx.Msg.Errorf("could not load configuration: %+v", err)
		return fmt.Errorf("could not load configuration: %w", err)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.release(ctx)

	var cal m5i20.Calibrator
	if cfg.CondDB != "" {
		db, err := srv.opendb(cfg.CondDB)
		if err != nil {
			ctx.Msg.Errorf("could not open calibration db %q: %+v", cfg.CondDB, err)
			return fmt.Errorf("could not open calibration db %q: %w", cfg.CondDB, err)
		}
		srv.db = db
		cal = calibrator(ctx.Ctx, db)
	}

	opts, err := options(cfg, ctx.Msg, cal)
	if err != nil {
		ctx.Msg.Errorf("could not configure driver: %+v", err)
		return fmt.Errorf("could not configure driver: %w", err)
	}

	devs, err := srv.scan(cfg.SysFS, m5i20.ID, 0)
	if err != nil {
		ctx.Msg.Errorf("could not scan PCI bus: %+v", err)
		return fmt.Errorf("could not scan PCI bus: %w", err)
	}
	ctx.Msg.Infof("found %d 5I20 card(s) under %q", len(devs), cfg.SysFS)

	comp := hal.NewComponent("m5i20")
	boards, err := m5i20.Attach(devs, comp, opts...)
	if err != nil {
		ctx.Msg.Errorf("could not attach boards: %+v", err)
		return fmt.Errorf("could not attach boards: %w", err)
	}

	srv.cfg = cfg
	srv.comp = comp
	srv.boards = boards
	ctx.Msg.Infof(
		"attached %d board(s): %d pins and parameters, %d functions",
		len(boards), comp.Len(), len(comp.Functs()),
	)

	return nil
}

func (srv *server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	return srv.init(ctx)
}

func (srv *server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	return srv.init(ctx)
}

func (srv *server) init(ctx tdaq.Context) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.comp == nil {
		return fmt.Errorf("no board attached")
	}

	th, err := hal.NewThread("m5i20-rt", srv.cfg.PeriodDuration(), ctx.Msg)
	if err != nil {
		return fmt.Errorf("could not create real-time thread: %w", err)
	}
	queue := hal.NewQueue(srv.comp, queueSize)
	th.Add(queue.Funct("m5i20-rt.apply"))
	th.Add(srv.comp.Functs()...)
	th.OnCycle(srv.cycle)

	srv.thread = th
	srv.queue = queue
	srv.pub = hal.NewPublisher(srv.comp)
	srv.alert = newAlerter(srv.cfg.Alert, ctx.Msg)
	srv.estops = make(chan estop, len(srv.boards))
	srv.prev = make([]bool, len(srv.boards))
	srv.pub.Publish()

	ctx.Msg.Infof("real-time thread: period=%v, functions=%d", th.Period(), len(srv.comp.Functs()))
	return nil
}

func (srv *server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return nil
}

func (srv *server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	srv.mu.RLock()
	th := srv.thread
	srv.mu.RUnlock()

	if th == nil {
		ctx.Msg.Debugf("received /stop command...")
		return nil
	}
	ctx.Msg.Debugf(
		"received /stop command... -> cycles=%d, overruns=%d",
		th.Cycles(), th.Overruns(),
	)
	return nil
}

func (srv *server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.release(ctx)
	return nil
}

// release closes the attached boards and the calibration db.
func (srv *server) release(ctx tdaq.Context) {
	for _, brd := range srv.boards {
		err := brd.Close()
		if err != nil {
			ctx.Msg.Warnf("could not close board %s: %+v", brd.Name(), err)
		}
	}
	if srv.db != nil {
		err := srv.db.Close()
		if err != nil {
			ctx.Msg.Warnf("could not close calibration db: %+v", err)
		}
	}
	srv.db = nil
	srv.comp = nil
	srv.boards = nil
	srv.thread = nil
	srv.pub = nil
	srv.queue = nil
}

// cycle runs at the end of each real-time cycle.
func (srv *server) cycle() {
	srv.pub.Publish()
	for i, brd := range srv.boards {
		on := brd.Estop()
		if on && !srv.prev[i] {
			select {
			case srv.estops <- estop{board: brd.Name(), slot: brd.Slot(), cycle: srv.thread.Cycles()}:
			default:
			}
		}
		srv.prev[i] = on
	}
}

func (srv *server) run(ctx tdaq.Context) error {
	srv.mu.RLock()
	var (
		th    = srv.thread
		alert = srv.alert
		ch    = srv.estops
	)
	srv.mu.RUnlock()

	if th == nil {
		return fmt.Errorf("real-time thread not initialized")
	}

	var grp errgroup.Group
	if alert.enabled() {
		grp.Go(func() error {
			alert.run(ctx.Ctx, ch)
			return nil
		})
	}
	grp.Go(func() error {
		return th.Run(ctx.Ctx)
	})
	return grp.Wait()
}

func (srv *server) pins(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case <-time.After(pinsPeriod):
	}

	vs, seq, ok := srv.snapshot(srv.buf[:0])
	if !ok {
		dst.Body = nil
		return nil
	}
	srv.buf = vs
	dst.Body = encodePins(seq, vs)
	return nil
}

// snapshot appends the latest published values to dst.
func (srv *server) snapshot(dst []hal.Value) ([]hal.Value, uint64, bool) {
	srv.mu.RLock()
	pub := srv.pub
	srv.mu.RUnlock()

	if pub == nil {
		return dst, 0, false
	}
	vs, seq := pub.Load(dst)
	return vs, seq, true
}

// encodePins encodes a snapshot as a /pins frame body:
// sequence number, number of values, then name, type and value of each.
func encodePins(seq uint64, vs []hal.Value) []byte {
	buf := new(bytes.Buffer)
	enc := tdaq.NewEncoder(buf)
	enc.WriteU64(seq)
	enc.WriteU32(uint32(len(vs)))
	for _, v := range vs {
		enc.WriteStr(v.Name)
		enc.WriteStr(v.Type.String())
		enc.WriteF64(number(v))
	}
	return buf.Bytes()
}

func number(v hal.Value) float64 {
	switch v.Type {
	case hal.Bit, hal.Cmd:
		if v.Bit {
			return 1
		}
		return 0
	case hal.Float:
		return v.Float
	case hal.S32:
		return float64(v.S32)
	case hal.U32:
		return float64(v.U32)
	}
	return math.NaN()
}

func calibrator(ctx context.Context, db *conddb.DB) m5i20.Calibrator {
	return m5i20.CalibratorFunc(func(slot string) (m5i20.Calibration, error) {
		cal, err := db.Calibration(ctx, slot)
		if err != nil {
			return m5i20.Calibration{}, err
		}
		return fromCondDB(cal), nil
	})
}

func fromCondDB(cal conddb.Calibration) m5i20.Calibration {
	var o m5i20.Calibration
	for i, dac := range cal.DACs {
		o.DACs[i] = m5i20.DACCalibration{Offset: dac.Offset, Gain: dac.Gain}
	}
	for i, enc := range cal.Encoders {
		o.Encoders[i] = enc.Scale
	}
	o.Watchdog = cal.Watchdog
	return o
}

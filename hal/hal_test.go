// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/go-daq/tdaq/log"
)

func TestRequest(t *testing.T) {
	var req Request
	if req.Bool() || req.Pending() {
		t.Fatalf("invalid zero request: %v", req)
	}

	req.Set()
	if !req.Bool() || !req.Pending() {
		t.Fatalf("request not pending: %v", req)
	}

	req.Ack()
	if req.Bool() || req.Pending() {
		t.Fatalf("request still pending: %v", req)
	}
	if got, want := req.String(), "serviced"; got != want {
		t.Fatalf("invalid request state: got=%q, want=%q", got, want)
	}
}

func TestComponentExport(t *testing.T) {
	var (
		bit bool
		f64 float64
		s32 int32
		u32 uint32
		req Request
		bad int
	)

	c := NewComponent("test")
	err := c.Export(
		Pin("b.count", Out, &s32),
		Pin("b.value", In, &f64),
		Param("b.scale", RW, &u32),
	)
	if err != nil {
		t.Fatalf("could not export: %+v", err)
	}

	for _, tc := range []struct {
		name string
		ents []Entry
	}{
		{"duplicate-registered", []Entry{Pin("b.count", Out, &s32)}},
		{"duplicate-batch", []Entry{Pin("b.x", Out, &bit), Pin("b.x", Out, &bit)}},
		{"bad-type", []Entry{Pin("b.y", Out, &bit), Pin("b.z", Out, &bad)}},
		{"bad-dir", []Entry{Pin("b.y", 0, &bit)}},
		{"bad-mode", []Entry{Param("b.y", 0, &bit)}},
		{"empty-name", []Entry{Pin("", In, &req)}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := c.Export(tc.ents...)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if got, want := c.Len(), 3; got != want {
				t.Fatalf("export was not all-or-nothing: got=%d, want=%d", got, want)
			}
		})
	}

	want := []string{"b.count", "b.scale", "b.value"}
	if got := c.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid names:\ngot= %q\nwant=%q", got, want)
	}
}

func TestComponentGetSet(t *testing.T) {
	var (
		count int32
		value float64
		scale float64
		ctrl  uint32
		reset Request
		out   bool
	)

	c := NewComponent("test")
	err := c.Export(
		Pin("count", Out, &count),
		Pin("value", In, &value),
		Pin("reset", IO, &reset),
		Pin("out", In, &out),
		Param("scale", RW, &scale),
		Param("ctrl", RO, &ctrl),
	)
	if err != nil {
		t.Fatalf("could not export: %+v", err)
	}

	for _, tc := range []struct {
		name string
		v    interface{}
		fail bool
	}{
		{"count", int32(1), true},
		{"ctrl", uint32(1), true},
		{"unknown", 1, true},
		{"value", "1", true},
		{"value", 2.5, false},
		{"scale", 1000, false},
		{"reset", true, false},
		{"out", true, false},
		{"out", 1, true},
	} {
		err := c.Set(tc.name, tc.v)
		switch {
		case err == nil && tc.fail:
			t.Fatalf("set(%q, %v): expected an error", tc.name, tc.v)
		case err != nil && !tc.fail:
			t.Fatalf("set(%q, %v): %+v", tc.name, tc.v, err)
		}
	}

	if value != 2.5 || scale != 1000 || !out || !reset.Pending() {
		t.Fatalf("invalid values: value=%v scale=%v out=%v reset=%v", value, scale, out, reset)
	}

	count = 42
	v, err := c.Get("count")
	if err != nil {
		t.Fatalf("could not get count: %+v", err)
	}
	if v.Type != S32 || v.S32 != 42 {
		t.Fatalf("invalid value: %+v", v)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("could not marshal value: %+v", err)
	}
	if got, want := string(raw), `{"name":"count","type":"s32","value":42}`; got != want {
		t.Fatalf("invalid json:\ngot= %s\nwant=%s", got, want)
	}

	reset.Ack()
	v, _ = c.Get("reset")
	if v.Bit {
		t.Fatalf("acknowledged request reads back true")
	}

	_, err = c.Get("not-there")
	if err == nil {
		t.Fatalf("expected an error")
	}
}

func TestSnapshot(t *testing.T) {
	var (
		a int32 = 1
		b bool  = true
	)
	c := NewComponent("test")
	if err := c.Export(Pin("b", Out, &b), Pin("a", Out, &a)); err != nil {
		t.Fatalf("could not export: %+v", err)
	}

	buf := make([]Value, 0, c.Len())
	allocs := testing.AllocsPerRun(10, func() {
		buf = c.Snapshot(buf[:0])
	})
	if allocs != 0 {
		t.Fatalf("snapshot allocates: %v", allocs)
	}

	want := []Value{
		{Name: "a", Type: S32, S32: 1},
		{Name: "b", Type: Bit, Bit: true},
	}
	if !reflect.DeepEqual(buf, want) {
		t.Fatalf("invalid snapshot:\ngot= %+v\nwant=%+v", buf, want)
	}
}

func TestFunct(t *testing.T) {
	c := NewComponent("test")
	nop := func(time.Duration) {}
	err := c.Funct(Funct{"a", nop}, Funct{"b", nop})
	if err != nil {
		t.Fatalf("could not register functs: %+v", err)
	}

	err = c.Funct(Funct{"c", nop}, Funct{"a", nop})
	if err == nil {
		t.Fatalf("expected an error")
	}
	err = c.Funct(Funct{"d", nil})
	if err == nil {
		t.Fatalf("expected an error")
	}

	if got, want := len(c.Functs()), 2; got != want {
		t.Fatalf("invalid number of functs: got=%d, want=%d", got, want)
	}
	if _, ok := c.Lookup("b"); !ok {
		t.Fatalf("could not find funct b")
	}
	if _, ok := c.Lookup("c"); ok {
		t.Fatalf("funct c should not be registered")
	}
}

func TestThread(t *testing.T) {
	msg := log.NewMsgStream("hal", log.LvlInfo, io.Discard)

	_, err := NewThread("bad", 0, msg)
	if err == nil {
		t.Fatalf("expected an error")
	}

	th, err := NewThread("servo", time.Millisecond, msg)
	if err != nil {
		t.Fatalf("could not create thread: %+v", err)
	}

	var (
		order []string
		hooks int
	)
	th.Add(
		Funct{"a", func(p time.Duration) {
			if p != time.Millisecond {
				t.Errorf("invalid period: %v", p)
			}
			order = append(order, "a")
		}},
		Funct{"b", func(time.Duration) { order = append(order, "b") }},
	)
	th.OnCycle(func() { hooks++ })

	th.Step()
	th.Step()

	if got, want := order, []string{"a", "b", "a", "b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid order: got=%q, want=%q", got, want)
	}
	if hooks != 2 || th.Cycles() != 2 {
		t.Fatalf("invalid cycles: hooks=%d, cycles=%d", hooks, th.Cycles())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = th.Run(ctx)
	if err != nil {
		t.Fatalf("could not run thread: %+v", err)
	}
	if th.Cycles() <= 2 {
		t.Fatalf("thread did not run")
	}
}

func TestPublisher(t *testing.T) {
	var v int32
	c := NewComponent("test")
	if err := c.Export(Pin("v", Out, &v)); err != nil {
		t.Fatalf("could not export: %+v", err)
	}

	pub := NewPublisher(c)
	got, seq := pub.Load(nil)
	if len(got) != 0 || seq != 0 {
		t.Fatalf("invalid initial snapshot: %+v (seq=%d)", got, seq)
	}

	v = 1
	if !pub.Publish() {
		t.Fatalf("could not publish")
	}
	v = 2

	got, seq = pub.Load(nil)
	if seq != 1 || len(got) != 1 || got[0].S32 != 1 {
		t.Fatalf("invalid snapshot: %+v (seq=%d)", got, seq)
	}

	pub.mu.Lock()
	if pub.Publish() {
		t.Fatalf("publish should not block on a busy reader")
	}
	pub.mu.Unlock()

	if !pub.Publish() {
		t.Fatalf("could not publish")
	}
	got, seq = pub.Load(got[:0])
	if seq != 2 || got[0].S32 != 2 {
		t.Fatalf("invalid snapshot: %+v (seq=%d)", got, seq)
	}
}

func TestQueue(t *testing.T) {
	var (
		value float64
		ctrl  uint32
		count int32
		reset Request
		id    uint32
	)
	c := NewComponent("test")
	err := c.Export(
		Pin("value", In, &value),
		Pin("count", IO, &count),
		Pin("reset", IO, &reset),
		Param("ctrl", RW, &ctrl),
		Param("id", RO, &id),
	)
	if err != nil {
		t.Fatalf("could not export: %+v", err)
	}

	q := NewQueue(c, 3)

	for _, tc := range []struct {
		name string
		v    interface{}
		err  error
	}{
		{"unknown", 1.0, ErrUnknownName},
		{"id", 1.0, ErrNotWritable},
		{"ctrl", 1.5, nil},
		{"ctrl", -1.0, nil},
		{"count", 1e12, nil},
		{"value", "1", nil},
	} {
		err := q.Set(tc.name, tc.v)
		if err == nil {
			t.Fatalf("set(%q, %v): expected an error", tc.name, tc.v)
		}
		if tc.err != nil && !errors.Is(err, tc.err) {
			t.Fatalf("set(%q, %v): invalid error: got=%v, want=%v", tc.name, tc.v, err, tc.err)
		}
	}

	for _, w := range []struct {
		name string
		v    interface{}
	}{
		{"ctrl", 3.0}, // JSON numbers
		{"count", -2.0},
		{"reset", true},
	} {
		err := q.Set(w.name, w.v)
		if err != nil {
			t.Fatalf("could not queue %q: %+v", w.name, err)
		}
	}
	err = q.Set("value", 2.5)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("invalid error: got=%v, want=%v", err, ErrQueueFull)
	}
	if ctrl != 0 || count != 0 || reset.Pending() {
		t.Fatalf("writes applied before the cycle")
	}

	msg := log.NewMsgStream("hal", log.LvlInfo, io.Discard)
	th, err := NewThread("servo", time.Millisecond, msg)
	if err != nil {
		t.Fatalf("could not create thread: %+v", err)
	}
	var seen uint32
	th.Add(
		q.Funct("test.apply"),
		Funct{"read", func(time.Duration) { seen = ctrl }},
	)

	th.Step()
	if ctrl != 3 || count != -2 || !reset.Pending() || seen != 3 {
		t.Fatalf("invalid values: ctrl=%d count=%d reset=%v seen=%d", ctrl, count, reset, seen)
	}

	// a writer holding the queue delays the writes to the next cycle.
	err = q.Set("value", 2.5)
	if err != nil {
		t.Fatalf("could not queue value: %+v", err)
	}
	q.mu.Lock()
	if n := q.Apply(); n != 0 {
		t.Fatalf("applied %d writes under contention", n)
	}
	q.mu.Unlock()
	if value != 0 {
		t.Fatalf("value applied under contention")
	}
	if n := q.Apply(); n != 1 || value != 2.5 {
		t.Fatalf("invalid apply: n=%d, value=%v", n, value)
	}
	if n := q.Apply(); n != 0 {
		t.Fatalf("writes applied twice: %d", n)
	}
}

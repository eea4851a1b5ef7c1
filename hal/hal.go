// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hal describes the named pins, parameters and periodic functions
// a hardware driver publishes to a real-time control loop.
//
// Pins and parameters are plain Go variables owned by the driver.
// A Registry only records their names and addresses; values are read and
// written in place, once per cycle, by the periodic functions.
package hal // import "github.com/go-lpc/mesa/hal"

import (
	"fmt"
	"time"
)

// Dir is the direction of a pin, seen from the driver.
type Dir uint8

const (
	In  Dir = 1 << iota // driver reads the pin
	Out                 // driver writes the pin
	IO  = In | Out
)

func (dir Dir) String() string {
	switch dir {
	case In:
		return "in"
	case Out:
		return "out"
	case IO:
		return "io"
	}
	return fmt.Sprintf("Dir(%d)", uint8(dir))
}

// Mode is the access mode of a parameter, seen from the user.
type Mode uint8

const (
	RO Mode = iota + 1
	RW
)

func (m Mode) String() string {
	switch m {
	case RO:
		return "ro"
	case RW:
		return "rw"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Request is a self-clearing command.
//
// A user sets a request; the driver services it during the next cycle
// and acknowledges it in that same cycle. An acknowledged request
// reads back as false.
type Request uint8

const (
	Idle Request = iota
	Requested
	Serviced
)

// Set asks for the command to be serviced.
func (r *Request) Set() { *r = Requested }

// Pending reports whether the command waits for service.
func (r Request) Pending() bool { return r == Requested }

// Ack marks the command as serviced.
func (r *Request) Ack() { *r = Serviced }

// Bool returns the boolean view of the request.
func (r Request) Bool() bool { return r == Requested }

func (r Request) String() string {
	switch r {
	case Idle:
		return "idle"
	case Requested:
		return "requested"
	case Serviced:
		return "serviced"
	}
	return fmt.Sprintf("Request(%d)", uint8(r))
}

// Type is the value type of a pin or parameter.
type Type uint8

const (
	Bit Type = iota + 1
	Float
	S32
	U32
	Cmd // a Request
)

func (t Type) String() string {
	switch t {
	case Bit:
		return "bit"
	case Float:
		return "float"
	case S32:
		return "s32"
	case U32:
		return "u32"
	case Cmd:
		return "request"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

func typeOf(ptr interface{}) (Type, error) {
	switch ptr.(type) {
	case *bool:
		return Bit, nil
	case *float64:
		return Float, nil
	case *int32:
		return S32, nil
	case *uint32:
		return U32, nil
	case *Request:
		return Cmd, nil
	}
	return 0, fmt.Errorf("hal: unsupported value type %T", ptr)
}

// Kind distinguishes pins from parameters.
type Kind uint8

const (
	KindPin Kind = iota + 1
	KindParam
)

// Entry describes one exported pin or parameter.
type Entry struct {
	Name string
	Kind Kind
	Dir  Dir  // pins only
	Mode Mode // parameters only
	Ptr  interface{}
}

// Pin describes a pin.
func Pin(name string, dir Dir, ptr interface{}) Entry {
	return Entry{Name: name, Kind: KindPin, Dir: dir, Ptr: ptr}
}

// Param describes a parameter.
func Param(name string, mode Mode, ptr interface{}) Entry {
	return Entry{Name: name, Kind: KindParam, Mode: mode, Ptr: ptr}
}

// writable reports whether users may set the entry.
func (e Entry) writable() bool {
	switch e.Kind {
	case KindPin:
		return e.Dir&In != 0
	case KindParam:
		return e.Mode == RW
	}
	return false
}

// Funct is a periodic function.
// Fn must not block nor allocate.
type Funct struct {
	Name string
	Fn   func(period time.Duration)
}

// Registry records exported pins, parameters and functions.
type Registry interface {
	// Export registers all entries or none of them.
	Export(entries ...Entry) error
	// Funct registers all functions or none of them.
	Funct(fcts ...Funct) error
}

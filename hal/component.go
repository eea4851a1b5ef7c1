// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hal

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Value is a snapshot of a pin or parameter.
type Value struct {
	Name  string
	Type  Type
	Bit   bool
	Float float64
	S32   int32
	U32   uint32
}

// Interface returns the value held by v.
func (v Value) Interface() interface{} {
	switch v.Type {
	case Bit, Cmd:
		return v.Bit
	case Float:
		return v.Float
	case S32:
		return v.S32
	case U32:
		return v.U32
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name  string      `json:"name"`
		Type  string      `json:"type"`
		Value interface{} `json:"value"`
	}{v.Name, v.Type.String(), v.Interface()})
}

type entry struct {
	Entry
	typ Type
}

func (e *entry) load(v *Value) {
	v.Name = e.Name
	v.Type = e.typ
	switch p := e.Ptr.(type) {
	case *bool:
		v.Bit = *p
	case *float64:
		v.Float = *p
	case *int32:
		v.S32 = *p
	case *uint32:
		v.U32 = *p
	case *Request:
		v.Bit = p.Bool()
	}
}

// Component is an in-memory Registry.
//
// Component does not synchronize accesses to the exported values:
// readers outside the real-time thread may observe torn updates.
// Use a Publisher to get consistent snapshots.
type Component struct {
	name string
	ents []*entry // sorted by name
	idx  map[string]*entry
	fcts []Funct
	fidx map[string]struct{}
}

// NewComponent creates a new, empty, registry.
func NewComponent(name string) *Component {
	return &Component{
		name: name,
		idx:  make(map[string]*entry),
		fidx: make(map[string]struct{}),
	}
}

// Name returns the name of the component.
func (c *Component) Name() string { return c.name }

func (c *Component) Export(entries ...Entry) error {
	add := make([]*entry, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return fmt.Errorf("hal: empty name")
		}
		if _, dup := c.idx[e.Name]; dup {
			return fmt.Errorf("hal: duplicate name %q", e.Name)
		}
		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("hal: duplicate name %q", e.Name)
		}
		seen[e.Name] = struct{}{}

		switch e.Kind {
		case KindPin:
			if e.Dir&IO == 0 {
				return fmt.Errorf("hal: invalid direction for pin %q", e.Name)
			}
		case KindParam:
			if e.Mode != RO && e.Mode != RW {
				return fmt.Errorf("hal: invalid mode for parameter %q", e.Name)
			}
		default:
			return fmt.Errorf("hal: invalid kind for %q", e.Name)
		}

		typ, err := typeOf(e.Ptr)
		if err != nil {
			return fmt.Errorf("hal: could not export %q: %w", e.Name, err)
		}
		add = append(add, &entry{Entry: e, typ: typ})
	}

	for _, e := range add {
		c.idx[e.Name] = e
	}
	c.ents = append(c.ents, add...)
	sort.Slice(c.ents, func(i, j int) bool {
		return c.ents[i].Name < c.ents[j].Name
	})
	return nil
}

func (c *Component) Funct(fcts ...Funct) error {
	seen := make(map[string]struct{}, len(fcts))
	for _, f := range fcts {
		if f.Fn == nil {
			return fmt.Errorf("hal: nil function %q", f.Name)
		}
		if _, dup := c.fidx[f.Name]; dup {
			return fmt.Errorf("hal: duplicate function %q", f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("hal: duplicate function %q", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	for _, f := range fcts {
		c.fidx[f.Name] = struct{}{}
	}
	c.fcts = append(c.fcts, fcts...)
	return nil
}

// Len returns the number of exported pins and parameters.
func (c *Component) Len() int { return len(c.ents) }

// Names returns the sorted names of all pins and parameters.
func (c *Component) Names() []string {
	names := make([]string, len(c.ents))
	for i, e := range c.ents {
		names[i] = e.Name
	}
	return names
}

// Functs returns the registered functions, in registration order.
func (c *Component) Functs() []Funct {
	return append([]Funct(nil), c.fcts...)
}

// Lookup returns the named function.
func (c *Component) Lookup(name string) (Funct, bool) {
	for _, f := range c.fcts {
		if f.Name == name {
			return f, true
		}
	}
	return Funct{}, false
}

// Get returns the current value of the named pin or parameter.
func (c *Component) Get(name string) (Value, error) {
	var v Value
	e, ok := c.idx[name]
	if !ok {
		return v, fmt.Errorf("%w %q", ErrUnknownName, name)
	}
	e.load(&v)
	return v, nil
}

var (
	ErrUnknownName = errors.New("hal: unknown name")
	ErrNotWritable = errors.New("hal: not writable")
)

// Set sets the named input pin or read-write parameter.
// Setting a request to true asks for its service.
func (c *Component) Set(name string, v interface{}) error {
	return c.set(name, v, true)
}

// Check reports whether Set would accept v for the named entry,
// without modifying it.
func (c *Component) Check(name string, v interface{}) error {
	return c.set(name, v, false)
}

func (c *Component) set(name string, v interface{}, store bool) error {
	e, ok := c.idx[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownName, name)
	}
	if !e.writable() {
		return fmt.Errorf("%w: %q", ErrNotWritable, name)
	}

	switch p := e.Ptr.(type) {
	case *bool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("hal: invalid value type %T for bit %q", v, name)
		}
		if store {
			*p = b
		}
	case *Request:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("hal: invalid value type %T for request %q", v, name)
		}
		if b && store {
			p.Set()
		}
	case *float64:
		var f float64
		switch v := v.(type) {
		case float64:
			f = v
		case float32:
			f = float64(v)
		case int:
			f = float64(v)
		default:
			return fmt.Errorf("hal: invalid value type %T for float %q", v, name)
		}
		if store {
			*p = f
		}
	case *int32:
		var i int32
		switch v := v.(type) {
		case int32:
			i = v
		case int:
			if v < math.MinInt32 || v > math.MaxInt32 {
				return fmt.Errorf("hal: value %d out of range for s32 %q", v, name)
			}
			i = int32(v)
		case float64:
			if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
				return fmt.Errorf("hal: invalid value %v for s32 %q", v, name)
			}
			i = int32(v)
		default:
			return fmt.Errorf("hal: invalid value type %T for s32 %q", v, name)
		}
		if store {
			*p = i
		}
	case *uint32:
		var u uint32
		switch v := v.(type) {
		case uint32:
			u = v
		case int:
			if v < 0 || int64(v) > math.MaxUint32 {
				return fmt.Errorf("hal: value %d out of range for u32 %q", v, name)
			}
			u = uint32(v)
		case float64:
			if v != math.Trunc(v) || v < 0 || v > math.MaxUint32 {
				return fmt.Errorf("hal: invalid value %v for u32 %q", v, name)
			}
			u = uint32(v)
		default:
			return fmt.Errorf("hal: invalid value type %T for u32 %q", v, name)
		}
		if store {
			*p = u
		}
	}
	return nil
}

// Snapshot appends the values of all pins and parameters to dst.
// Snapshot does not allocate when dst has enough capacity.
func (c *Component) Snapshot(dst []Value) []Value {
	for _, e := range c.ents {
		var v Value
		e.load(&v)
		dst = append(dst, v)
	}
	return dst
}

var (
	_ Registry = (*Component)(nil)
)

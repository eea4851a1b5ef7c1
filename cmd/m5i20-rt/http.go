// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-lpc/mesa/hal"
)

// router serves the latest published snapshot and queues writes to
// input pins and parameters.
// It never touches the boards: values come from the publisher and
// writes are applied by the real-time thread.
func (srv *server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Get("/boards", srv.httpBoards)
	r.Get("/pins", srv.httpPins)
	r.Get("/pins/{name}", srv.httpPin)
	r.Put("/pins/{name}", srv.httpSetPin)
	return r
}

type boardInfo struct {
	Name  string `json:"name"`
	Slot  string `json:"slot"`
	PWM   string `json:"pwm"`
	Estop bool   `json:"estop"`
}

func (srv *server) httpBoards(w http.ResponseWriter, r *http.Request) {
	vs, _, _ := srv.snapshot(nil)
	estop := make(map[string]bool)
	for _, v := range vs {
		if v.Type == hal.Bit {
			estop[v.Name] = v.Bit
		}
	}

	srv.mu.RLock()
	list := make([]boardInfo, 0, len(srv.boards))
	for _, brd := range srv.boards {
		list = append(list, boardInfo{
			Name:  brd.Name(),
			Slot:  brd.Slot(),
			PWM:   brd.PWMFrequency().String(),
			Estop: estop[brd.Name()+".estop"],
		})
	}
	srv.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(list)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (srv *server) httpPins(w http.ResponseWriter, r *http.Request) {
	vs, seq, ok := srv.snapshot(nil)
	if !ok {
		http.Error(w, "no published snapshot", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(struct {
		Seq  uint64      `json:"seq"`
		Pins []hal.Value `json:"pins"`
	}{seq, vs})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (srv *server) httpPin(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	vs, _, ok := srv.snapshot(nil)
	if !ok {
		http.Error(w, "no published snapshot", http.StatusServiceUnavailable)
		return
	}

	for _, v := range vs {
		if v.Name != name {
			continue
		}
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	http.Error(w, "unknown pin "+name, http.StatusNotFound)
}

func (srv *server) httpSetPin(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req struct {
		Value interface{} `json:"value"`
	}
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		http.Error(w, "could not decode request: "+err.Error(), http.StatusBadRequest)
		return
	}

	srv.mu.RLock()
	queue := srv.queue
	srv.mu.RUnlock()

	if queue == nil {
		http.Error(w, "real-time thread not initialized", http.StatusServiceUnavailable)
		return
	}

	err = queue.Set(name, req.Value)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, hal.ErrUnknownName):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, hal.ErrQueueFull):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/mesa/internal/rtconf"
	"golang.org/x/time/rate"
	mail "gopkg.in/gomail.v2"
)

// estop describes a board whose watchdog expired.
type estop struct {
	board string
	slot  string
	cycle uint64
}

// alerter mails estop notifications.
type alerter struct {
	cfg rtconf.Alert
	msg log.MsgStream
	lim *rate.Limiter

	send func(m *mail.Message) error
	bkof func() backoff.BackOff
}

func newAlerter(cfg rtconf.Alert, msg log.MsgStream) *alerter {
	a := &alerter{
		cfg: cfg,
		msg: msg,
		lim: rate.NewLimiter(rate.Every(cfg.Interval()), 1),
		bkof: func() backoff.BackOff {
			return &backoff.ExponentialBackOff{
				InitialInterval:     500 * time.Millisecond,
				RandomizationFactor: 0.5,
				Multiplier:          2,
				MaxInterval:         10 * time.Second,
				MaxElapsedTime:      1 * time.Minute,
				Clock:               backoff.SystemClock,
			}
		},
	}
	a.send = a.dial
	return a
}

func (a *alerter) enabled() bool {
	return a != nil && a.cfg.Server != ""
}

// run sends an alert for each estop received on ch, until ctx is done.
func (a *alerter) run(ctx context.Context, ch <-chan estop) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-ch:
			err := a.alert(evt)
			if err != nil {
				a.msg.Errorf("could not send estop alert for %s: %+v", evt.board, err)
			}
		}
	}
}

func (a *alerter) alert(evt estop) error {
	if !a.lim.Allow() {
		a.msg.Warnf("estop on %s (slot=%q): alert rate limited", evt.board, evt.slot)
		return nil
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", a.cfg.User)
	msg.SetHeader("Bcc", a.cfg.To...)
	msg.SetHeader("Subject", fmt.Sprintf("[m5i20-rt] estop: %s", evt.board))
	msg.SetBody("text/plain", fmt.Sprintf(
		"board: %s\nslot:  %q\ncycle: %d\ndate:  %s",
		evt.board, evt.slot, evt.cycle, time.Now().UTC().Format(time.RFC3339),
	))

	return backoff.Retry(func() error {
		return a.send(msg)
	}, a.bkof())
}

func (a *alerter) dial(msg *mail.Message) error {
	dial := mail.NewDialer(a.cfg.Server, a.cfg.Port, a.cfg.User, os.Getenv("MAIL_PASSWORD"))
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	return dial.DialAndSend(msg)
}

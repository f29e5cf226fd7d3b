// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package serial

import (
	"github.com/pkg/errors"
	bugst "go.bug.st/serial"
)

// Controlled is a serial port with access to its modem control lines.
//
// This allows the DTR output of a USB serial adapter to be wired to the
// modem reset input, so the modem can be reset without a GPIO.
type Controlled struct {
	bugst.Port
	dtr *DTRLine
}

// NewControlled creates a serial port with control of the DTR line.
//
// The DTR line is released on open so the modem is not held in reset.
func NewControlled(options ...Option) (*Controlled, error) {
	cfg := newConfig(options...)
	mode := &bugst.Mode{
		BaudRate: cfg.baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	p, err := bugst.Open(cfg.port, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", cfg.port)
	}
	if err = p.SetReadTimeout(cfg.readTimeout); err != nil {
		p.Close()
		return nil, errors.Wrap(err, "set read timeout")
	}
	c := &Controlled{Port: p, dtr: &DTRLine{ctrl: p}}
	c.dtr.High()
	if err = c.dtr.Err(); err != nil {
		p.Close()
		return nil, err
	}
	return c, nil
}

// DTR returns the DTR line of the port.
func (c *Controlled) DTR() *DTRLine {
	return c.dtr
}

type dtrController interface {
	SetDTR(dtr bool) error
}

// DTRLine drives the DTR output of a serial port as a reset line.
//
// The level of the DTR output is the inverse of its RS-232 state, so the
// line is driven low by asserting DTR.
type DTRLine struct {
	ctrl dtrController
	err  error
}

// High drives the line high by deasserting DTR.
func (l *DTRLine) High() {
	l.set(false)
}

// Low drives the line low by asserting DTR.
func (l *DTRLine) Low() {
	l.set(true)
}

// Err returns the error from the most recent change to the line, if any.
func (l *DTRLine) Err() error {
	return l.err
}

func (l *DTRLine) set(dtr bool) {
	l.err = nil
	if err := l.ctrl.SetDTR(dtr); err != nil {
		l.err = errors.Wrapf(err, "set DTR %t", dtr)
	}
}

// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

// Package gpio provides a Raspberry Pi GPIO output for driving the SIM800L
// reset input.
package gpio

import (
	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

// maxPin is the highest BCM GPIO number.
const maxPin = 53

// ResetLine is a GPIO output connected to the modem reset input.
type ResetLine struct {
	pin rpio.Pin
}

// Open maps the GPIO registers and configures the pin, identified by its
// BCM number, as an output driven high.
//
// The ResetLine should be closed once it is no longer required.
func Open(pin int) (*ResetLine, error) {
	if pin < 0 || pin > maxPin {
		return nil, errors.Wrapf(ErrInvalidPin, "%d", pin)
	}
	if err := rpio.Open(); err != nil {
		return nil, errors.Wrap(err, "open gpio")
	}
	p := rpio.Pin(pin)
	p.Output()
	p.High()
	return &ResetLine{pin: p}, nil
}

// High drives the line high.
func (l *ResetLine) High() {
	l.pin.High()
}

// Low drives the line low.
func (l *ResetLine) Low() {
	l.pin.Low()
}

// Close unmaps the GPIO registers.
//
// The line is left as an output at its current level.
func (l *ResetLine) Close() error {
	return rpio.Close()
}

// ErrInvalidPin indicates the pin is not a valid BCM GPIO number.
var ErrInvalidPin = errors.New("invalid pin")

// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

// Package serial provides serial ports suitable for driving a SIM800L.
//
// The modem driver polls the port, so ports are opened with a short read
// timeout. A read that times out returns no data rather than blocking.
package serial

import (
	"time"

	"github.com/tarm/serial"
)

// Config contains the parameters of the serial port.
type Config struct {
	port        string
	baud        int
	readTimeout time.Duration
}

// Option modifies the Config used to open a port.
type Option func(*Config)

// New creates a serial port.
//
// This is currently a simple wrapper around tarm serial.
func New(options ...Option) (*serial.Port, error) {
	cfg := newConfig(options...)
	config := &serial.Config{
		Name:        cfg.port,
		Baud:        cfg.baud,
		ReadTimeout: cfg.readTimeout,
	}
	p, err := serial.OpenPort(config)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newConfig(options ...Option) Config {
	cfg := defaultConfig
	for _, option := range options {
		option(&cfg)
	}
	return cfg
}

// WithPort specifies the port to open.
//
// The default is platform dependent.
func WithPort(port string) Option {
	return func(c *Config) {
		c.port = port
	}
}

// WithBaud sets the baud rate of the port.
//
// The SIM800L autobauds, so this can be any rate the modem supports.
// The default is 115200.
func WithBaud(baud int) Option {
	return func(c *Config) {
		c.baud = baud
	}
}

// WithReadTimeout sets the time a read waits for data before returning
// empty.
//
// The default is 100ms.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.readTimeout = d
	}
}

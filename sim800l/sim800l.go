// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

// Package sim800l provides a driver for the SIM800L GSM/GPRS module.
//
// The driver decorates the AT modem with the SIM800L operations needed by
// a simple connected device: reset and power management, network
// registration, the GPRS bearer and HTTP requests over that bearer.
//
// All operations are synchronous. Each runs to completion, or until its
// timeout expires, before returning. Failures are reported by the return
// value of each operation, with the reason available from Err.
package sim800l

import (
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/sim800l/at"
	"github.com/warthog618/sim800l/info"
	"github.com/warthog618/sim800l/trace"
)

// SIM800L decorates the AT modem with SIM800L specific functionality.
type SIM800L struct {
	*at.AT

	// the line connected to the modem reset input, if any.
	pin Pin

	// body of the most recent HTTP response.
	// Its length is fixed at construction.
	recv     []byte
	dataSize int

	// the last power mode commanded, or observed by Reset.
	powerMode PowerMode

	// the reason the most recent operation failed, or nil.
	err error

	log   *slog.Logger
	debug bool

	bufferSize     int
	recvBufferSize int
	pollInterval   time.Duration
	idle           func()

	cmdTimeout    time.Duration
	powerTimeout  time.Duration
	bearerTimeout time.Duration
	bootTimeout   time.Duration
	resetHold     time.Duration
	settleTime    time.Duration

	bootToken   string
	httpSuccess func(int) bool
}

const (
	// DefaultRecvBufferSize is the default capacity of the buffer holding the
	// body of HTTP responses.
	DefaultRecvBufferSize = 256

	// DefaultCommandTimeout is the default time allowed for the modem to
	// respond to a command.
	DefaultCommandTimeout = 5 * time.Second

	// SignalUnknown is returned by Signal if the signal quality is not
	// available.
	SignalUnknown = -1

	// ackCRLFs is the number of line terminators awaited when expecting a
	// command to be acknowledged with OK.
	ackCRLFs = 4
)

// Option is a construction option for a SIM800L.
type Option func(*SIM800L)

// New creates a new SIM800L modem on the port.
func New(port at.Port, options ...Option) *SIM800L {
	s := &SIM800L{
		powerMode:      PowerUnknown,
		bufferSize:     at.DefaultBufferSize,
		recvBufferSize: DefaultRecvBufferSize,
		pollInterval:   at.DefaultPollInterval,
		cmdTimeout:     DefaultCommandTimeout,
		powerTimeout:   10 * time.Second,
		bearerTimeout:  65 * time.Second,
		bootTimeout:    15 * time.Second,
		resetHold:      time.Second,
		settleTime:     500 * time.Millisecond,
		bootToken:      "SMS Ready",
		httpSuccess:    isSuccess,
	}
	for _, option := range options {
		option(s)
	}
	if s.log == nil {
		if s.debug {
			s.log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		} else {
			s.log = slog.New(slog.DiscardHandler)
		}
	}
	if s.debug {
		port = trace.New(port, trace.WithLogger(s.log.With("component", "trace")))
	}
	aopts := []at.Option{
		at.WithBufferSize(s.bufferSize),
		at.WithPollInterval(s.pollInterval),
		at.WithLogger(s.log.With("component", "at")),
	}
	if s.idle != nil {
		aopts = append(aopts, at.WithIdle(s.idle))
	}
	s.AT = at.New(port, aopts...)
	s.recv = make([]byte, s.recvBufferSize)
	return s
}

// WithInternalBufferSize sets the capacity of the buffer holding responses
// to commands.
//
// The default size is 128 bytes.
func WithInternalBufferSize(size int) Option {
	return func(s *SIM800L) {
		if size > 0 {
			s.bufferSize = size
		}
	}
}

// WithRecvBufferSize sets the capacity of the buffer holding the body of
// HTTP responses. Longer bodies are truncated.
//
// The default size is 256 bytes.
func WithRecvBufferSize(size int) Option {
	return func(s *SIM800L) {
		if size > 0 {
			s.recvBufferSize = size
		}
	}
}

// WithDebug enables debug output, including a trace of all data exchanged
// with the modem.
//
// Unless a logger is provided with WithLogger, debug output is written to
// Stderr.
func WithDebug(enable bool) Option {
	return func(s *SIM800L) {
		s.debug = enable
	}
}

// WithLogger specifies the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(s *SIM800L) {
		s.log = l
	}
}

// WithResetPin specifies the line connected to the modem reset input.
//
// Without a reset pin, Reset restarts the modem with AT+CFUN=1,1.
func WithResetPin(p Pin) Option {
	return func(s *SIM800L) {
		s.pin = p
	}
}

// WithResetHold sets the time the reset line is held low.
//
// The default is 1s.
func WithResetHold(d time.Duration) Option {
	return func(s *SIM800L) {
		s.resetHold = d
	}
}

// WithBootTimeout sets the time allowed for the modem to report it is ready
// after a reset.
//
// The default is 15s.
func WithBootTimeout(d time.Duration) Option {
	return func(s *SIM800L) {
		s.bootTimeout = d
	}
}

// WithBootToken sets the notification that indicates the modem has
// completed booting.
//
// The default is "SMS Ready".
func WithBootToken(token string) Option {
	return func(s *SIM800L) {
		s.bootToken = token
	}
}

// WithCommandTimeout sets the time allowed for the modem to respond to
// simple commands.
//
// The default is 5s.
func WithCommandTimeout(d time.Duration) Option {
	return func(s *SIM800L) {
		s.cmdTimeout = d
	}
}

// WithPowerTimeout sets the time allowed for the modem to acknowledge a
// change of power mode.
//
// The default is 10s.
func WithPowerTimeout(d time.Duration) Option {
	return func(s *SIM800L) {
		s.powerTimeout = d
	}
}

// WithBearerTimeout sets the time allowed for the GPRS bearer to be opened
// or closed.
//
// The default is 65s.
func WithBearerTimeout(d time.Duration) Option {
	return func(s *SIM800L) {
		s.bearerTimeout = d
	}
}

// WithSettleTime sets the period during which notifications are discarded
// after a reset or change of power mode.
//
// The default is 500ms.
func WithSettleTime(d time.Duration) Option {
	return func(s *SIM800L) {
		s.settleTime = d
	}
}

// WithPollInterval sets the minimum period between polls of the port while
// waiting for a response.
func WithPollInterval(d time.Duration) Option {
	return func(s *SIM800L) {
		s.pollInterval = d
	}
}

// WithIdle sets a function to be called each time the driver is waiting for
// data from the modem.
func WithIdle(idle func()) Option {
	return func(s *SIM800L) {
		s.idle = idle
	}
}

// WithHTTPSuccess sets the predicate that determines if an HTTP status
// indicates the response body should be read.
//
// The default accepts any 2xx status.
func WithHTTPSuccess(success func(status int) bool) Option {
	return func(s *SIM800L) {
		s.httpSuccess = success
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// Err returns the reason the most recent operation failed, or nil if it
// succeeded.
//
// The underlying error, such as at.ErrTimeout or ErrNotReady, can be
// recovered using errors.Cause.
func (s *SIM800L) Err() error {
	return s.err
}

// Reset performs a hardware reset of the modem, or a software restart if no
// reset pin is available, and waits for the modem to report it is ready.
//
// Reset does not retry. If the modem does not become ready within the boot
// timeout Err returns ErrNotReady, so callers should check IsReady.
func (s *SIM800L) Reset() {
	s.err = nil
	s.powerMode = PowerUnknown
	if s.pin != nil {
		s.log.Debug("reset", "hold", s.resetHold)
		s.pin.High()
		s.pin.Low()
		time.Sleep(s.resetHold)
		s.pin.High()
	} else {
		s.log.Debug("restart")
		s.Command("+CFUN=1,1")
	}
	if !s.ReadUntil(s.bootTimeout, s.bootToken) {
		s.fail("reset", errors.Wrapf(ErrNotReady, "%v", s.AT.Err()))
		return
	}
	s.ReadToForget(s.settleTime)
	s.powerMode = Normal
}

// IsReady returns true if the modem responds to commands.
func (s *SIM800L) IsReady() bool {
	s.err = nil
	s.Command("")
	if !s.ack(s.cmdTimeout) {
		s.fail("ready", errors.Wrapf(ErrNotReady, "%v", s.AT.Err()))
		return false
	}
	return true
}

// Signal returns the received signal strength indication, in the range 0 to
// 31, or SignalUnknown.
func (s *SIM800L) Signal() int {
	s.err = nil
	s.Command("+CSQ")
	if !s.ack(s.cmdTimeout) {
		s.failed("signal")
		return SignalUnknown
	}
	v, ok := info.Field(s.Buffer(), "+CSQ:", 0)
	if !ok || v > 31 {
		s.fail("signal", at.ErrUnexpectedResponse)
		return SignalUnknown
	}
	return v
}

// ack waits for the current command to be acknowledged.
func (s *SIM800L) ack(timeout time.Duration) bool {
	return s.ReadResponseCheckAnswer(timeout, "OK", ackCRLFs)
}

// failed records the AT error as the reason the operation failed.
func (s *SIM800L) failed(op string) {
	err := s.AT.Err()
	if err == nil {
		err = at.ErrUnexpectedResponse
	}
	s.fail(op, err)
}

// fail records the reason the operation failed.
func (s *SIM800L) fail(op string, err error) {
	s.err = err
	s.log.Debug("failed", "op", op, "error", err)
}

var (
	// ErrNotReady indicates the modem has not completed booting or is not
	// responding to commands.
	ErrNotReady = errors.New("modem not ready")

	// ErrInvalidPowerMode indicates the requested power mode cannot be set.
	ErrInvalidPowerMode = errors.New("invalid power mode")

	// ErrPowerTransition indicates the modem cannot switch directly from
	// the current power mode to the requested mode.
	ErrPowerTransition = errors.New("invalid power mode transition")
)

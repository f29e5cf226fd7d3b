// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// Package at provides a low level driver for AT modems.
//
// The driver is synchronous and single threaded. A command is written to
// the modem and the response is then read into a fixed size buffer until a
// terminating condition is met or a deadline passes. There is no background
// reader, so bytes arriving between commands remain in the port until the
// next read.
package at

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/sim800l/info"
)

// Port is the byte stream connected to the modem.
//
// A Read that returns no bytes, with either a nil error or io.EOF, is taken
// to mean that no data is currently available. Ports are expected to have a
// short read timeout, or to be non-blocking, so that deadlines can be
// enforced.
type Port interface {
	io.Reader
	io.Writer
}

// AT represents a modem that can be managed using AT commands.
//
// Commands are issued using Command and CommandParam, and the responses
// collected using one of the Read methods. Only one command may be in flight
// at a time and an AT must not be used by more than one goroutine without
// external serialisation.
type AT struct {
	// the underlying modem
	port Port

	// buffer holding the most recent response.
	// Its length is fixed at construction and end never exceeds it.
	buf []byte
	end int

	// set when a response exceeded buf and bytes were discarded.
	overflow bool

	// set when the read was completed by a line matching the token.
	matched bool

	// the final error line that completed the read, if any.
	final string

	// lookahead of bytes read from the port but not yet consumed.
	rx     [64]byte
	rxHead int
	rxTail int

	// the minimum time between polls of an idle port.
	pollInterval time.Duration

	// called while waiting for data.
	idle func()

	// the command currently in flight, for error reporting.
	cmd string

	// the reason the last operation failed, or nil.
	err error

	log *slog.Logger
}

const (
	// DefaultBufferSize is the default capacity of the response buffer.
	DefaultBufferSize = 128

	// DefaultPollInterval is the default time between polls of an idle port.
	DefaultPollInterval = 10 * time.Millisecond

	minPollInterval = time.Millisecond
)

// Option is a construction option for an AT.
type Option func(*AT)

// New creates a new AT modem.
func New(port Port, options ...Option) *AT {
	a := &AT{
		port:         port,
		pollInterval: DefaultPollInterval,
	}
	for _, option := range options {
		option(a)
	}
	if a.buf == nil {
		a.buf = make([]byte, DefaultBufferSize)
	}
	if a.log == nil {
		a.log = slog.New(slog.DiscardHandler)
	}
	return a
}

// WithBufferSize sets the capacity of the response buffer.
//
// Sizes less than 1 are ignored.
// The default size is 128 bytes.
func WithBufferSize(size int) Option {
	return func(a *AT) {
		if size > 0 {
			a.buf = make([]byte, size)
		}
	}
}

// WithPollInterval sets the minimum period between polls of the port while
// waiting for a response.
//
// The interval is clamped to a minimum of 1ms.
// The default interval is 10ms.
func WithPollInterval(d time.Duration) Option {
	return func(a *AT) {
		if d < minPollInterval {
			d = minPollInterval
		}
		a.pollInterval = d
	}
}

// WithIdle sets a function to be called each time the driver is waiting for
// data from the modem.
//
// This is the one point where the driver blocks, so it is where any
// housekeeping required by the platform should be performed.
func WithIdle(idle func()) Option {
	return func(a *AT) {
		a.idle = idle
	}
}

// WithLogger specifies the logger used for debug output.
//
// By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(a *AT) {
		a.log = l
	}
}

// Command issues the command to the modem.
//
// The command should NOT include the AT prefix, nor <CR><LF> suffix which is
// automatically added.
//
// The write is best effort. Success is determined by the response read
// after the command.
func (a *AT) Command(cmd string) {
	a.writeCommand(cmd, "AT"+cmd+"\r\n")
}

// CommandParam issues a command with a single string parameter.
//
// The parameter is enclosed in quotes and appended to the command,
// so CommandParam("+HTTPPARA=\"URL\",", "http://example.com") writes
//
//	AT+HTTPPARA="URL","http://example.com"<CR><LF>
//
// Quotes within the parameter are not escaped.
func (a *AT) CommandParam(cmd, param string) {
	a.writeCommand(cmd, "AT"+cmd+"\""+param+"\"\r\n")
}

// Send writes raw data to the modem, such as the body of an HTTP POST.
//
// Like Command the write is best effort.
func (a *AT) Send(p []byte) {
	if _, err := a.port.Write(p); err != nil {
		a.err = errors.Wrap(err, "send")
		a.log.Debug("send failed", "len", len(p), "error", err)
	}
}

func (a *AT) writeCommand(cmd, line string) {
	a.reset()
	a.cmd = cmd
	a.err = nil
	a.log.Debug("command", "cmd", "AT"+cmd)
	if _, err := io.WriteString(a.port, line); err != nil {
		a.err = errors.Wrapf(err, "AT%s", cmd)
		a.log.Debug("command write failed", "cmd", "AT"+cmd, "error", err)
	}
}

// Buffer returns the bytes captured by the most recent read.
//
// The slice is only valid until the next command or read.
func (a *AT) Buffer() []byte {
	return a.buf[:a.end]
}

// Len returns the number of bytes captured by the most recent read.
func (a *AT) Len() int {
	return a.end
}

// Cap returns the capacity of the response buffer.
func (a *AT) Cap() int {
	return len(a.buf)
}

// Err returns the reason the most recent read failed, or nil if it
// succeeded.
//
// The underlying error can be recovered using errors.Cause.
func (a *AT) Err() error {
	return a.err
}

// ReadResponse reads a response from the modem.
//
// The read completes once crlfs line terminators have been received and no
// further data is immediately available.
// A crlfs less than 1 is treated as 1.
//
// Returns false if the timeout expires before the response is complete, or
// if the response overflows the buffer.
func (a *AT) ReadResponse(timeout time.Duration, crlfs int) bool {
	if crlfs < 1 {
		crlfs = 1
	}
	return a.read(timeout, terminator{crlfs: crlfs})
}

// ReadResponseCheckAnswer reads a response from the modem and checks that it
// contains the expected answer.
//
// The read completes as per ReadResponse, or as soon as a line beginning
// with the expected answer, or a final error line such as ERROR or +CME
// ERROR, has been received.
//
// Returns true only if the expected answer is found in the response,
// ignoring any echo of the command.
func (a *AT) ReadResponseCheckAnswer(timeout time.Duration, expected string, crlfs int) bool {
	if crlfs < 1 {
		crlfs = 1
	}
	if !a.read(timeout, terminator{crlfs: crlfs, token: expected, finals: true}) {
		return false
	}
	if a.hasLine(expected) {
		return true
	}
	a.fail(a.classify())
	return false
}

// ReadUntil reads from the modem until a line beginning with token has been
// received.
//
// This is used to wait for results that arrive some time after the command
// has been acknowledged, such as +HTTPACTION, or for notifications such as
// those emitted when the modem boots. Lines preceding the matching line are
// discarded, so on success the buffer contains only the matching line.
//
// Returns false if the timeout expires first, if a final error line is
// received instead, or if the response overflows the buffer.
func (a *AT) ReadUntil(timeout time.Duration, token string) bool {
	if !a.read(timeout, terminator{token: token, finals: true, lines: true}) {
		return false
	}
	if a.matched {
		return true
	}
	a.fail(a.classify())
	return false
}

// ReadBody reads n raw bytes from the modem, storing as many as fit in dst.
//
// Bytes beyond len(dst) are read and discarded so the stream remains in
// step with the modem.
//
// Returns the number of bytes stored, and false if the timeout expired
// before all n bytes were read.
func (a *AT) ReadBody(dst []byte, n int, timeout time.Duration) (int, bool) {
	deadline := time.Now().Add(timeout)
	stored := 0
	for i := 0; i < n; i++ {
		b, err := a.next(deadline)
		if err != nil {
			a.fail(err)
			return stored, false
		}
		if stored < len(dst) {
			dst[stored] = b
			stored++
		}
	}
	if n > len(dst) {
		a.log.Debug("body truncated", "len", n, "stored", stored)
	}
	a.err = nil
	return stored, true
}

// ReadToForget discards everything received from the modem until the
// timeout expires.
//
// This is used to flush unsolicited notifications, such as those emitted
// after a reset or change of functionality, before issuing a new command.
func (a *AT) ReadToForget(timeout time.Duration) {
	a.reset()
	deadline := time.Now().Add(timeout)
	discarded := a.rxTail - a.rxHead
	a.rxHead, a.rxTail = 0, 0
	for {
		ok, err := a.fill()
		if ok {
			discarded += a.rxTail - a.rxHead
			a.rxHead, a.rxTail = 0, 0
		}
		if err != nil || !time.Now().Before(deadline) {
			break
		}
		if ok {
			continue
		}
		a.wait(deadline)
	}
	if discarded > 0 {
		a.log.Debug("discarded", "len", discarded)
	}
}

// terminator defines the conditions that complete a read.
type terminator struct {
	// complete once this many CRLFs are read and the port is quiet.
	// Zero disables the count.
	crlfs int

	// complete once a line beginning with token is read.
	token string

	// complete once a final error line is read.
	finals bool

	// discard lines that do not complete the read.
	lines bool
}

func (a *AT) read(timeout time.Duration, t terminator) bool {
	a.reset()
	deadline := time.Now().Add(timeout)
	crlfs := 0
	lineStart := 0
	var prev byte
	for {
		b, err := a.next(deadline)
		if err != nil {
			if err == ErrTimeout && t.crlfs > 0 && crlfs >= t.crlfs {
				// the count was met but the modem kept talking
				break
			}
			a.fail(err)
			return false
		}
		a.store(b)
		if prev == '\r' && b == '\n' {
			crlfs++
			line := strings.TrimSpace(string(a.buf[lineStart:a.end]))
			lineStart = a.end
			if t.token != "" && line != "" && strings.HasPrefix(line, t.token) {
				a.matched = true
				break
			}
			if t.finals && isFinalError(line) {
				a.final = line
				break
			}
			if t.crlfs > 0 && crlfs >= t.crlfs {
				ok, err := a.fill()
				if err != nil {
					a.fail(err)
					return false
				}
				if !ok {
					break
				}
			}
			if t.lines {
				a.end = 0
				a.overflow = false
				lineStart = 0
			}
		}
		prev = b
	}
	if a.overflow {
		a.fail(ErrOverflow)
		return false
	}
	a.err = nil
	return true
}

// reset clears the response buffer.
func (a *AT) reset() {
	a.end = 0
	a.overflow = false
	a.matched = false
	a.final = ""
}

// store appends b to the buffer, discarding it if the buffer is full.
func (a *AT) store(b byte) {
	if a.end < len(a.buf) {
		a.buf[a.end] = b
		a.end++
		return
	}
	if !a.overflow {
		a.log.Debug("response overflow", "cap", len(a.buf))
	}
	a.overflow = true
}

// fill ensures the lookahead contains data, polling the port once if it is
// empty.
//
// Returns true if data is available.
func (a *AT) fill() (bool, error) {
	if a.rxHead < a.rxTail {
		return true, nil
	}
	a.rxHead, a.rxTail = 0, 0
	n, err := a.port.Read(a.rx[:])
	if n > 0 {
		a.rxTail = n
		return true, nil
	}
	if err == nil || err == io.EOF {
		return false, nil
	}
	return false, err
}

// next returns the next byte from the modem, polling the port until the
// deadline.
//
// The deadline applies even while the modem is talking, so a stream that
// never satisfies the read still times out.
func (a *AT) next(deadline time.Time) (byte, error) {
	for {
		ok, err := a.fill()
		if err != nil {
			return 0, err
		}
		if !time.Now().Before(deadline) {
			return 0, ErrTimeout
		}
		if ok {
			b := a.rx[a.rxHead]
			a.rxHead++
			return b, nil
		}
		a.wait(deadline)
	}
}

// wait yields for one poll interval, or until the deadline if that is
// sooner.
func (a *AT) wait(deadline time.Time) {
	if a.idle != nil {
		a.idle()
	}
	d := time.Until(deadline)
	if d > a.pollInterval {
		d = a.pollInterval
	}
	if d > 0 {
		time.Sleep(d)
	}
}

// echoEnd returns the index following the echo of the command, if the
// modem echoed it, else 0.
func (a *AT) echoEnd() int {
	b := a.Buffer()
	i := 0
	for i < len(b) && (b[i] == '\r' || b[i] == '\n') {
		i++
	}
	if !strings.HasPrefix(string(b[i:]), "AT") {
		return 0
	}
	if idx := info.Index(b, "\n", i); idx >= 0 {
		return idx + 1
	}
	return len(b)
}

// hasLine returns true if a line of the response, following any echo,
// begins with prefix.
func (a *AT) hasLine(prefix string) bool {
	for _, line := range strings.Split(string(a.Buffer()[a.echoEnd():]), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), prefix) {
			return true
		}
	}
	return false
}

// classify determines why a response did not contain what was expected.
func (a *AT) classify() error {
	if a.final != "" {
		return newError(a.final)
	}
	return ErrUnexpectedResponse
}

// fail records the reason for a failed read.
func (a *AT) fail(err error) {
	if a.cmd != "" {
		err = errors.Wrapf(err, "AT%s", a.cmd)
	}
	a.err = err
	a.log.Debug("response failed", "error", err, "rx", string(a.Buffer()))
}

// CMEError indicates a CME Error was returned by the modem.
//
// The value is the error value, in string form, which may be the numeric or
// textual, depending on the modem configuration.
type CMEError string

// CMSError indicates a CMS Error was returned by the modem.
//
// The value is the error value, in string form, which may be the numeric or
// textual, depending on the modem configuration.
type CMSError string

func (e CMEError) Error() string {
	return string("CME Error: " + e)
}

func (e CMSError) Error() string {
	return string("CMS Error: " + e)
}

var (
	// ErrError indicates the modem returned a generic AT ERROR in response to
	// an operation.
	ErrError = errors.New("ERROR")

	// ErrTimeout indicates the modem did not complete a response before the
	// deadline.
	ErrTimeout = errors.New("timeout")

	// ErrUnexpectedResponse indicates the modem responded, but not with the
	// expected answer.
	ErrUnexpectedResponse = errors.New("unexpected response")

	// ErrOverflow indicates the response exceeded the capacity of the
	// response buffer. The excess was discarded.
	ErrOverflow = errors.New("response overflow")
)

// isFinalError returns true if the line is a final result code indicating
// the command failed.
func isFinalError(line string) bool {
	return line == "ERROR" ||
		strings.HasPrefix(line, "+CME ERROR:") ||
		strings.HasPrefix(line, "+CMS ERROR:")
}

// newError parses a line and creates an error corresponding to the content.
func newError(line string) error {
	var err error
	switch {
	case strings.HasPrefix(line, "ERROR"):
		err = ErrError
	case strings.HasPrefix(line, "+CMS ERROR:"):
		err = CMSError(strings.TrimSpace(line[11:]))
	case strings.HasPrefix(line, "+CME ERROR:"):
		err = CMEError(strings.TrimSpace(line[11:]))
	default:
		err = ErrUnexpectedResponse
	}
	return err
}

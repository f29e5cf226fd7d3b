// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

//  Test suite for AT module.
//
//  Note that these tests provide a mockModem which does not attempt to emulate
//  a serial modem, but which provides responses required to exercise at.go So,
//  while the commands may follow the structure of the AT protocol they most
//  certainly are not AT commands - just patterns that elicit the behaviour
//  required for the test.

package at_test

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/sim800l/at"
	"github.com/warthog618/sim800l/trace"
)

func TestNew(t *testing.T) {
	patterns := []struct {
		name    string
		options []at.Option
		cap     int
	}{
		{
			"default",
			nil,
			at.DefaultBufferSize,
		},
		{
			"buffer size",
			[]at.Option{at.WithBufferSize(32)},
			32,
		},
		{
			"zero buffer size",
			[]at.Option{at.WithBufferSize(0)},
			at.DefaultBufferSize,
		},
		{
			"poll interval",
			[]at.Option{at.WithPollInterval(0)},
			at.DefaultBufferSize,
		},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			mm := mockModem{}
			a := at.New(&mm, p.options...)
			require.NotNil(t, a)
			assert.Equal(t, p.cap, a.Cap())
			assert.Equal(t, 0, a.Len())
			assert.Nil(t, a.Err())
		}
		t.Run(p.name, f)
	}
}

func TestCommand(t *testing.T) {
	a, mm := setupModem(t, nil)
	a.Command("+CSQ")
	a.CommandParam("+HTTPPARA=\"URL\",", "http://example.com/data")
	a.CommandParam("+HTTPPARA=\"CONTENT\",", "a\"b")
	a.Send([]byte("payload"))
	assert.Equal(t,
		"AT+CSQ\r\n"+
			"AT+HTTPPARA=\"URL\",\"http://example.com/data\"\r\n"+
			"AT+HTTPPARA=\"CONTENT\",\"a\"b\"\r\n"+
			"payload",
		mm.w.String())
}

func TestCommandWriteError(t *testing.T) {
	a, mm := setupModem(t, nil)
	mm.errOnWrite = true
	a.Command("")
	assert.NotNil(t, a.Err())
	a.Send([]byte("data"))
	assert.NotNil(t, a.Err())

	// response read determines the final outcome
	mm.r.WriteString("\r\nOK\r\n")
	assert.True(t, a.ReadResponseCheckAnswer(10*time.Millisecond, "OK", 2))
	assert.Nil(t, a.Err())
}

func TestReadResponse(t *testing.T) {
	patterns := []struct {
		name   string
		rx     string
		crlfs  int
		ok     bool
		buffer string
		err    error
	}{
		{
			"ok",
			"\r\nOK\r\n",
			2,
			true,
			"\r\nOK\r\n",
			nil,
		},
		{
			"info",
			"\r\n+CSQ: 14,0\r\n\r\nOK\r\n",
			2,
			true,
			"\r\n+CSQ: 14,0\r\n\r\nOK\r\n",
			nil,
		},
		{
			"zero crlfs",
			"OK\r\n",
			0,
			true,
			"OK\r\n",
			nil,
		},
		{
			"partial",
			"\r\nOK",
			2,
			false,
			"\r\nOK",
			at.ErrTimeout,
		},
		{
			"silent",
			"",
			2,
			false,
			"",
			at.ErrTimeout,
		},
		{
			"overflow",
			"\r\n0123456789012345678901234567890123456789\r\n\r\nOK\r\n",
			2,
			false,
			"\r\n012345678901234567890123456789",
			at.ErrOverflow,
		},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			a, mm := setupModem(t, nil, at.WithBufferSize(32))
			mm.r.WriteString(p.rx)
			ok := a.ReadResponse(10*time.Millisecond, p.crlfs)
			assert.Equal(t, p.ok, ok)
			assert.Equal(t, p.buffer, string(a.Buffer()))
			assert.Equal(t, p.err, errors.Cause(a.Err()))
			assert.LessOrEqual(t, a.Len(), a.Cap())
			// stream is left in step
			assert.Equal(t, 0, mm.r.Len())
		}
		t.Run(p.name, f)
	}
}

func TestReadResponseTimeout(t *testing.T) {
	a, _ := setupModem(t, nil)
	start := time.Now()
	ok := a.ReadResponse(50*time.Millisecond, 2)
	elapsed := time.Since(start)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, int64(elapsed), int64(50*time.Millisecond))
	assert.Less(t, int64(elapsed), int64(250*time.Millisecond))
	assert.Equal(t, at.ErrTimeout, errors.Cause(a.Err()))
}

func TestReadResponseReadError(t *testing.T) {
	a, mm := setupModem(t, nil)
	rerr := errors.New("read error")
	mm.errOnRead = rerr
	assert.False(t, a.ReadResponse(time.Second, 2))
	assert.Equal(t, rerr, errors.Cause(a.Err()))
}

func TestReadResponseCheckAnswer(t *testing.T) {
	cmdSet := map[string][]string{
		"AT\r\n":         {"\r\nOK\r\n"},
		"ATE\r\n":        {"\r\nERROR\r\n"},
		"ATCME\r\n":      {"\r\n+CME ERROR: 42\r\n"},
		"ATCMS\r\n":      {"\r\n+CMS ERROR: 204\r\n"},
		"ATBUSY\r\n":     {"\r\nBUSY\r\n"},
		"ATOK\r\n":       {"\r\nERROR\r\n"},
		"ATDATA\r\n":     {"\r\nDOWNLOAD\r\n"},
		"ATURC\r\n":      {"\r\nRING\r\n", "\r\nOK\r\n", "\r\n+CMTI: \"SM\",1\r\n"},
		"ATSILENT\r\n":   {},
		"ATHALF\r\n":     {"\r\nO"},
		"ATINFO=1\r\n":   {"\r\n+INFO: 1\r\n\r\nOK\r\n"},
		"ATOVERFLOW\r\n": {"\r\n+INFO: 0123456789012345678901234567890123456789\r\n\r\nOK\r\n"},
		"ATCOPS?\r\n":    {"\r\n+COPS: 0,0,\"OK\"\r\n"},
	}
	patterns := []struct {
		name     string
		cmd      string
		expected string
		ok       bool
		err      error
		residual string
	}{
		{"ok", "", "OK", true, nil, ""},
		{"error", "E", "OK", false, at.ErrError, ""},
		{"cme", "CME", "OK", false, at.CMEError("42"), ""},
		{"cms", "CMS", "OK", false, at.CMSError("204"), ""},
		{"unexpected", "BUSY", "OK", false, at.ErrUnexpectedResponse, ""},
		{"echoed answer", "OK", "OK", false, at.ErrError, ""},
		{"download", "DATA", "DOWNLOAD", true, nil, ""},
		{"stops at answer", "URC", "OK", true, nil, "\r\n+CMTI: \"SM\",1\r\n"},
		{"silent", "SILENT", "OK", false, at.ErrTimeout, ""},
		{"half", "HALF", "OK", false, at.ErrUnexpectedResponse, ""},
		{"info", "INFO=1", "OK", true, nil, ""},
		{"overflow", "OVERFLOW", "OK", false, at.ErrOverflow, ""},
		{"quoted answer", "COPS?", "OK", false, at.ErrUnexpectedResponse, ""},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			a, mm := setupModem(t, cmdSet, at.WithBufferSize(32))
			mm.echo = true
			a.Command(p.cmd)
			ok := a.ReadResponseCheckAnswer(10*time.Millisecond, p.expected, 2)
			assert.Equal(t, p.ok, ok)
			assert.Equal(t, p.err, errors.Cause(a.Err()))
			if p.residual != "" {
				require.True(t, a.ReadResponse(10*time.Millisecond, 2))
				assert.Equal(t, p.residual, string(a.Buffer()))
			}
		}
		t.Run(p.name, f)
	}
}

func TestReadUntil(t *testing.T) {
	patterns := []struct {
		name string
		rx   string
		ok   bool
		err  error
	}{
		{
			"immediate",
			"\r\n+HTTPACTION: 0,200,5\r\n",
			true,
			nil,
		},
		{
			"after ack",
			"\r\nOK\r\n\r\n+HTTPACTION: 0,200,5\r\n",
			true,
			nil,
		},
		{
			"error",
			"\r\nOK\r\n\r\n+CME ERROR: 3\r\n",
			false,
			at.CMEError("3"),
		},
		{
			"silent",
			"\r\nOK\r\n",
			false,
			at.ErrTimeout,
		},
		{
			"partial",
			"\r\n+HTTPACTION: 0,200,5",
			false,
			at.ErrTimeout,
		},
		{
			"long preceding lines",
			"\r\n" + strings.Repeat("x", 100) + "\r\n\r\n" + strings.Repeat("y", 40) + "\r\n+HTTPACTION: 0,200,5\r\n",
			true,
			nil,
		},
		{
			"long matching line",
			"\r\n+HTTPACTION: 0,200,5" + strings.Repeat("0", 40) + "\r\n",
			false,
			at.ErrOverflow,
		},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			a, mm := setupModem(t, nil, at.WithBufferSize(32))
			mm.r.WriteString(p.rx)
			ok := a.ReadUntil(10*time.Millisecond, "+HTTPACTION:")
			assert.Equal(t, p.ok, ok)
			assert.Equal(t, p.err, errors.Cause(a.Err()))
			if ok {
				assert.Equal(t, "+HTTPACTION: 0,200,5\r\n", string(a.Buffer()))
			}
		}
		t.Run(p.name, f)
	}
}

func TestReadBody(t *testing.T) {
	patterns := []struct {
		name   string
		rx     string
		n      int
		size   int
		ok     bool
		body   string
		remain string
	}{
		{"exact", "hello\r\nOK\r\n", 5, 8, true, "hello", "\r\nOK\r\n"},
		{"truncated", "hello world\r\nOK\r\n", 11, 5, true, "hello", "\r\nOK\r\n"},
		{"empty", "\r\nOK\r\n", 0, 5, true, "", "\r\nOK\r\n"},
		{"short", "hel", 5, 8, false, "hel", ""},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			a, mm := setupModem(t, nil)
			mm.r.WriteString(p.rx)
			dst := make([]byte, p.size)
			n, ok := a.ReadBody(dst, p.n, 10*time.Millisecond)
			assert.Equal(t, p.ok, ok)
			assert.Equal(t, p.body, string(dst[:n]))
			if p.ok {
				assert.Nil(t, a.Err())
				assert.True(t, a.ReadResponse(10*time.Millisecond, 2))
				assert.Equal(t, p.remain, string(a.Buffer()))
			} else {
				assert.Equal(t, at.ErrTimeout, errors.Cause(a.Err()))
			}
		}
		t.Run(p.name, f)
	}
}

func TestReadBodyAfterHeader(t *testing.T) {
	// header and body arrive together so the body is already in the lookahead
	a, mm := setupModem(t, nil)
	mm.r.WriteString("\r\n+HTTPREAD: 5\r\nhello\r\nOK\r\n")
	require.True(t, a.ReadUntil(10*time.Millisecond, "+HTTPREAD:"))
	dst := make([]byte, 16)
	n, ok := a.ReadBody(dst, 5, 10*time.Millisecond)
	assert.True(t, ok)
	assert.Equal(t, "hello", string(dst[:n]))
	assert.True(t, a.ReadResponseCheckAnswer(10*time.Millisecond, "OK", 2))
}

func TestReadToForget(t *testing.T) {
	cmdSet := map[string][]string{
		"AT\r\n": {"\r\nOK\r\n"},
	}
	a, mm := setupModem(t, cmdSet)
	mm.r.WriteString("\r\nRDY\r\n\r\n+CFUN: 1\r\n\r\nCall Ready\r\n\r\nSMS Ready\r\nOK\r\n")
	// leaves the remainder in the lookahead
	require.True(t, a.ReadUntil(10*time.Millisecond, "RDY"))
	mm.r.WriteString("\r\nERROR\r\n")
	a.ReadToForget(5 * time.Millisecond)
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 0, mm.r.Len())

	a.Command("")
	assert.True(t, a.ReadResponseCheckAnswer(10*time.Millisecond, "OK", 2))
	assert.Equal(t, "\r\nOK\r\n", string(a.Buffer()))
}

func TestIdle(t *testing.T) {
	count := 0
	a, _ := setupModem(t, nil, at.WithIdle(func() { count++ }))
	a.ReadResponse(10*time.Millisecond, 2)
	assert.Greater(t, count, 0)
}

func TestOverflowNeverExceedsCapacity(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	alphabet := []byte("OK+:,0123456789 \r\n\r\n")
	for _, size := range []int{1, 2, 7, 16, 128} {
		a, mm := setupModem(t, nil, at.WithBufferSize(size))
		for i := 0; i < 200; i++ {
			n := r.Intn(4 * size)
			rx := make([]byte, n)
			for j := range rx {
				rx[j] = alphabet[r.Intn(len(alphabet))]
			}
			mm.r.Write(rx)
			a.ReadResponse(time.Millisecond, r.Intn(4)+1)
			require.LessOrEqual(t, a.Len(), a.Cap(), "size %d stream %q", size, rx)
			require.Equal(t, size, a.Cap())
			if n > size {
				assert.False(t, a.Err() == nil, "size %d stream %q", size, rx)
			}
			a.ReadToForget(time.Millisecond)
			require.Equal(t, 0, mm.r.Len())
		}
	}
}

func TestEndlessStream(t *testing.T) {
	timeout := 50 * time.Millisecond
	patterns := []struct {
		name  string
		chunk string
		read  func(a *at.AT) bool
		err   error
	}{
		{
			"response noise",
			"garbage",
			func(a *at.AT) bool { return a.ReadResponse(timeout, 2) },
			at.ErrTimeout,
		},
		{
			"response lines",
			"+CREG: 1\r\n",
			func(a *at.AT) bool { return a.ReadResponse(timeout, 2) },
			at.ErrOverflow,
		},
		{
			"answer noise",
			"garbage",
			func(a *at.AT) bool { return a.ReadResponseCheckAnswer(timeout, "OK", 4) },
			at.ErrTimeout,
		},
		{
			"answer lines",
			"+CREG: 1\r\n",
			func(a *at.AT) bool { return a.ReadResponseCheckAnswer(timeout, "OK", 4) },
			at.ErrOverflow,
		},
		{
			"until noise",
			"garbage",
			func(a *at.AT) bool { return a.ReadUntil(timeout, "SMS Ready") },
			at.ErrTimeout,
		},
		{
			"until lines",
			"+CREG: 1\r\n",
			func(a *at.AT) bool { return a.ReadUntil(timeout, "SMS Ready") },
			at.ErrTimeout,
		},
		{
			"forget",
			"+CREG: 1\r\n",
			func(a *at.AT) bool { a.ReadToForget(timeout); return false },
			nil,
		},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			a := at.New(&streamModem{chunk: p.chunk}, at.WithPollInterval(time.Millisecond))
			done := make(chan bool)
			start := time.Now()
			go func() {
				done <- p.read(a)
			}()
			select {
			case ok := <-done:
				assert.False(t, ok)
				assert.GreaterOrEqual(t, int64(time.Since(start)), int64(timeout))
				assert.Equal(t, p.err, errors.Cause(a.Err()))
			case <-time.After(2 * time.Second):
				t.Fatal("read ignored the timeout")
			}
		}
		t.Run(p.name, f)
	}
}

func TestReadResponseReadErrorAfterLines(t *testing.T) {
	rerr := errors.New("read error")
	a := at.New(&streamModem{chunk: "\r\nOK\r\n", count: 1, err: rerr},
		at.WithPollInterval(time.Millisecond))
	assert.False(t, a.ReadResponse(time.Second, 2))
	assert.Equal(t, rerr, errors.Cause(a.Err()))
}

func TestCMEError(t *testing.T) {
	patterns := []string{"1", "204", "42"}
	for _, p := range patterns {
		f := func(t *testing.T) {
			err := at.CMEError(p)
			expected := fmt.Sprintf("CME Error: %s", string(err))
			assert.Equal(t, expected, err.Error())
		}
		t.Run(fmt.Sprintf("%x", p), f)
	}
}

func TestCMSError(t *testing.T) {
	patterns := []string{"1", "204", "42"}
	for _, p := range patterns {
		f := func(t *testing.T) {
			err := at.CMSError(p)
			expected := fmt.Sprintf("CMS Error: %s", string(err))
			assert.Equal(t, expected, err.Error())
		}
		t.Run(fmt.Sprintf("%x", p), f)
	}
}

type mockModem struct {
	cmdSet     map[string][]string
	echo       bool
	errOnWrite bool
	errOnRead  error
	// The buffer emulating characters emitted by the modem.
	r bytes.Buffer
	// All bytes written to the modem.
	w bytes.Buffer
}

func (m *mockModem) Read(p []byte) (n int, err error) {
	if m.errOnRead != nil {
		return 0, m.errOnRead
	}
	if m.r.Len() == 0 {
		return 0, io.EOF
	}
	return m.r.Read(p)
}

func (m *mockModem) Write(p []byte) (n int, err error) {
	if m.errOnWrite {
		return 0, errors.New("Write error")
	}
	m.w.Write(p)
	if m.cmdSet == nil {
		return len(p), nil
	}
	if m.echo {
		m.r.Write(p)
	}
	v, ok := m.cmdSet[string(p)]
	if !ok {
		m.r.WriteString("\r\nERROR\r\n")
		return len(p), nil
	}
	for _, l := range v {
		m.r.WriteString(l)
	}
	return len(p), nil
}

// streamModem returns chunk from every Read, count times if count is set,
// after which it returns err.
type streamModem struct {
	chunk string
	count int
	reads int
	err   error
}

func (m *streamModem) Read(p []byte) (n int, err error) {
	if m.count > 0 && m.reads >= m.count {
		return 0, m.err
	}
	m.reads++
	return copy(p, m.chunk), nil
}

func (m *streamModem) Write(p []byte) (n int, err error) {
	return len(p), nil
}

func setupModem(t *testing.T, cmdSet map[string][]string, options ...at.Option) (*at.AT, *mockModem) {
	mm := &mockModem{cmdSet: cmdSet}
	var modem at.Port = mm
	debug := false // set to true to enable tracing of the flow to the mockModem.
	if debug {
		modem = trace.New(modem)
	}
	options = append([]at.Option{at.WithPollInterval(time.Millisecond)}, options...)
	a := at.New(modem, options...)
	require.NotNil(t, a)
	return a, mm
}

// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

// Package wsbridge provides a port to a modem attached to a remote
// serial-to-websocket bridge.
//
// Each websocket message received from the bridge carries bytes emitted by
// the modem, and each write is sent to the bridge as a single binary
// message.
package wsbridge

import (
	"crypto/tls"
	"encoding/base64"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Conn is a connection to a serial-to-websocket bridge.
//
// Reads do not block. A Read returns no data if nothing has been received
// from the bridge, matching the behaviour of a serial port with a read
// timeout.
type Conn struct {
	conn *websocket.Conn

	// messages received from the bridge, closed when the connection fails.
	msgs chan []byte
	// the reason the connection failed, valid once msgs is closed.
	err error

	// remainder of a message partially returned by Read.
	buf []byte

	done      chan struct{}
	closeOnce sync.Once
}

type dialConfig struct {
	handshakeTimeout time.Duration
	username         string
	password         string
	skipVerify       bool
}

// Option modifies the configuration used by Dial.
type Option func(*dialConfig)

// WithHandshakeTimeout sets the time allowed for the websocket handshake.
//
// The default is 10s.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *dialConfig) {
		c.handshakeTimeout = d
	}
}

// WithBasicAuth sets the credentials presented to the bridge.
func WithBasicAuth(username, password string) Option {
	return func(c *dialConfig) {
		c.username = username
		c.password = password
	}
}

// WithInsecureSkipVerify disables verification of the bridge certificate
// for wss connections.
func WithInsecureSkipVerify() Option {
	return func(c *dialConfig) {
		c.skipVerify = true
	}
}

// Dial connects to the bridge at the ws or wss URL.
func Dial(rawURL string, options ...Option) (*Conn, error) {
	cfg := dialConfig{handshakeTimeout: 10 * time.Second}
	for _, option := range options {
		option(&cfg)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, errors.Wrapf(ErrUnsupportedScheme, "%q", u.Scheme)
	}
	dialer := websocket.Dialer{HandshakeTimeout: cfg.handshakeTimeout}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.skipVerify}
	}
	headers := http.Header{}
	if cfg.username != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(cfg.username + ":" + cfg.password))
		headers.Set("Authorization", "Basic "+credentials)
	}
	conn, resp, err := dialer.Dial(rawURL, headers)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "dial %s (HTTP %d)", rawURL, resp.StatusCode)
		}
		return nil, errors.Wrapf(err, "dial %s", rawURL)
	}
	c := &Conn{
		conn: conn,
		msgs: make(chan []byte, 16),
		done: make(chan struct{}),
	}
	go c.pump()
	return c, nil
}

// pump forwards messages from the bridge to Read until the connection
// fails or is closed.
func (c *Conn) pump() {
	defer close(c.msgs)
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			c.err = err
			return
		}
		if mt != websocket.BinaryMessage && mt != websocket.TextMessage {
			continue
		}
		select {
		case c.msgs <- data:
		case <-c.done:
			c.err = ErrClosed
			return
		}
	}
}

// Read returns bytes received from the bridge, or no bytes if none are
// available.
//
// Returns an error once the connection has failed and all received bytes
// have been read.
func (c *Conn) Read(p []byte) (int, error) {
	if len(c.buf) == 0 {
		select {
		case data, ok := <-c.msgs:
			if !ok {
				return 0, c.err
			}
			c.buf = data
		default:
			return 0, nil
		}
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

// Write sends p to the bridge as a single binary message.
func (c *Conn) Write(p []byte) (int, error) {
	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close closes the connection to the bridge.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

var (
	// ErrUnsupportedScheme indicates the URL is not a ws or wss URL.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrClosed indicates the connection has been closed.
	ErrClosed = errors.New("connection closed")
)

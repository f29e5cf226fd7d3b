// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package wsbridge_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/sim800l/at"
	"github.com/warthog618/sim800l/wsbridge"
)

// bridge emulates a serial bridge with a modem that acknowledges AT and
// rejects everything else.
func bridge(t *testing.T, auth string) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth != "" {
			user, pass, ok := r.BasicAuth()
			if !ok || user+":"+pass != auth {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Log("upgrade failed", err)
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			rsp := "\r\nERROR\r\n"
			switch string(data) {
			case "AT\r\n":
				// split to exercise reassembly
				conn.WriteMessage(websocket.BinaryMessage, []byte("\r\nO"))
				rsp = "K\r\n"
			case "BYE":
				return
			}
			conn.WriteMessage(websocket.BinaryMessage, []byte(rsp))
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestDial(t *testing.T) {
	s := bridge(t, "")
	defer s.Close()
	c, err := wsbridge.Dial(wsURL(s))
	require.Nil(t, err)
	require.NotNil(t, c)
	assert.Nil(t, c.Close())
	// idempotent
	assert.Nil(t, c.Close())
}

func TestDialScheme(t *testing.T) {
	c, err := wsbridge.Dial("http://localhost/modem")
	assert.Equal(t, wsbridge.ErrUnsupportedScheme, errors.Cause(err))
	assert.Nil(t, c)
}

func TestDialAuth(t *testing.T) {
	s := bridge(t, "user:secret")
	defer s.Close()
	c, err := wsbridge.Dial(wsURL(s))
	assert.NotNil(t, err)
	assert.Nil(t, c)
	c, err = wsbridge.Dial(wsURL(s), wsbridge.WithBasicAuth("user", "secret"))
	require.Nil(t, err)
	require.NotNil(t, c)
	c.Close()
}

func TestReadEmpty(t *testing.T) {
	s := bridge(t, "")
	defer s.Close()
	c, err := wsbridge.Dial(wsURL(s))
	require.Nil(t, err)
	defer c.Close()
	b := make([]byte, 8)
	n, err := c.Read(b)
	assert.Nil(t, err)
	assert.Zero(t, n)
}

func TestCommand(t *testing.T) {
	s := bridge(t, "")
	defer s.Close()
	c, err := wsbridge.Dial(wsURL(s))
	require.Nil(t, err)
	defer c.Close()
	a := at.New(c, at.WithPollInterval(time.Millisecond))
	a.Command("")
	assert.True(t, a.ReadResponseCheckAnswer(time.Second, "OK", 4))
	assert.Equal(t, "\r\nOK\r\n", string(a.Buffer()))
	a.Command("+CSQ")
	assert.False(t, a.ReadResponseCheckAnswer(time.Second, "OK", 4))
	assert.Equal(t, at.ErrError, errors.Cause(a.Err()))
}

func TestReadClosed(t *testing.T) {
	s := bridge(t, "")
	defer s.Close()
	c, err := wsbridge.Dial(wsURL(s))
	require.Nil(t, err)
	defer c.Close()
	_, err = c.Write([]byte("BYE"))
	require.Nil(t, err)
	b := make([]byte, 8)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err = c.Read(b); err != nil {
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.NotNil(t, err)
}

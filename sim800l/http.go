// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package sim800l

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/sim800l/at"
	"github.com/warthog618/sim800l/info"
)

// Result codes returned by DoGet and DoPost when the request could not be
// completed. The codes of the form 7xx indicate the step that failed.
const (
	// StatusTimeout indicates the server did not respond within the server
	// read timeout.
	StatusTimeout = 408

	// StatusInitError indicates the HTTP service could not be initialised.
	StatusInitError = 701

	// StatusCIDError indicates the bearer profile could not be selected.
	StatusCIDError = 702

	// StatusURLError indicates the URL was rejected.
	StatusURLError = 703

	// StatusSSLError indicates SSL could not be configured.
	StatusSSLError = 704

	// StatusContentError indicates the content type was rejected.
	StatusContentError = 705

	// StatusDataError indicates the payload could not be transferred to the
	// modem.
	StatusDataError = 706

	// StatusActionError indicates the request could not be started, or its
	// completion could not be parsed.
	StatusActionError = 707

	// StatusReadError indicates the response body could not be read from the
	// modem.
	StatusReadError = 708
)

const (
	httpGet  = 0
	httpPost = 1
)

// DoGet performs an HTTP GET of the url over the GPRS bearer.
//
// Returns the HTTP status reported by the server, or one of the Status codes
// if the request could not be completed.
// If the status indicates success the body of the response is available from
// DataReceived.
func (s *SIM800L) DoGet(url string, serverReadTimeout time.Duration) int {
	return s.do(httpGet, url, "", nil, 0, serverReadTimeout)
}

// DoPost performs an HTTP POST of the payload to the url over the GPRS
// bearer.
//
// The clientWriteTimeout is the time allowed to transfer the payload to the
// modem, and the serverReadTimeout is the time allowed for the server to
// respond.
//
// Returns the HTTP status reported by the server, or one of the Status codes
// if the request could not be completed.
// If the status indicates success the body of the response is available from
// DataReceived.
func (s *SIM800L) DoPost(url, contentType string, payload []byte, clientWriteTimeout, serverReadTimeout time.Duration) int {
	return s.do(httpPost, url, contentType, payload, clientWriteTimeout, serverReadTimeout)
}

// DataSizeReceived returns the number of bytes of the body of the most
// recent HTTP response held in the receive buffer.
func (s *SIM800L) DataSizeReceived() int {
	return s.dataSize
}

// DataReceived returns the body of the most recent HTTP response, truncated
// to the capacity of the receive buffer.
//
// The slice is only valid until the next HTTP request.
func (s *SIM800L) DataReceived() []byte {
	return s.recv[:s.dataSize]
}

func (s *SIM800L) do(method int, url, contentType string, payload []byte, writeTimeout, readTimeout time.Duration) int {
	s.err = nil
	s.dataSize = 0
	s.log.Debug("http request", "method", method, "url", url)
	s.Command("+HTTPINIT")
	// the session must be closed however the request ends
	defer s.terminate()
	if !s.ack(s.cmdTimeout) {
		return s.httpFailed(StatusInitError)
	}
	s.Command(`+HTTPPARA="CID",1`)
	if !s.ack(s.cmdTimeout) {
		return s.httpFailed(StatusCIDError)
	}
	s.CommandParam(`+HTTPPARA="URL",`, url)
	if !s.ack(s.cmdTimeout) {
		return s.httpFailed(StatusURLError)
	}
	ssl := "0"
	if strings.HasPrefix(strings.ToLower(url), "https://") {
		ssl = "1"
	}
	s.Command("+HTTPSSL=" + ssl)
	if !s.ack(s.cmdTimeout) {
		return s.httpFailed(StatusSSLError)
	}
	if method == httpPost {
		if status := s.upload(contentType, payload, writeTimeout); status != 0 {
			return status
		}
	}
	s.Command("+HTTPACTION=" + strconv.Itoa(method))
	if !s.ack(s.cmdTimeout) {
		return s.httpFailed(StatusActionError)
	}
	if !s.ReadUntil(readTimeout, "+HTTPACTION:") {
		if errors.Cause(s.AT.Err()) == at.ErrTimeout {
			return s.httpFailed(StatusTimeout)
		}
		return s.httpFailed(StatusActionError)
	}
	status, ok := info.Field(s.Buffer(), "+HTTPACTION:", 1)
	if !ok {
		s.fail("http", errors.Wrap(at.ErrUnexpectedResponse, "+HTTPACTION"))
		return StatusActionError
	}
	length, ok := info.Field(s.Buffer(), "+HTTPACTION:", 2)
	if !ok {
		s.fail("http", errors.Wrap(at.ErrUnexpectedResponse, "+HTTPACTION"))
		return StatusActionError
	}
	s.log.Debug("http response", "status", status, "len", length)
	if !s.httpSuccess(status) || length <= 0 {
		return status
	}
	if !s.readData() {
		return StatusReadError
	}
	return status
}

// upload transfers the POST content type and payload to the modem.
//
// Returns 0 on success, else the status code of the failed step.
func (s *SIM800L) upload(contentType string, payload []byte, timeout time.Duration) int {
	s.CommandParam(`+HTTPPARA="CONTENT",`, contentType)
	if !s.ack(s.cmdTimeout) {
		return s.httpFailed(StatusContentError)
	}
	s.Command("+HTTPDATA=" + strconv.Itoa(len(payload)) + "," + strconv.FormatInt(timeout.Milliseconds(), 10))
	if !s.ReadResponseCheckAnswer(s.cmdTimeout, "DOWNLOAD", ackCRLFs) {
		return s.httpFailed(StatusDataError)
	}
	s.Send(payload)
	if !s.ack(timeout + s.cmdTimeout) {
		return s.httpFailed(StatusDataError)
	}
	return 0
}

// readData reads the body of the response into the receive buffer.
func (s *SIM800L) readData() bool {
	s.Command("+HTTPREAD")
	if !s.ReadUntil(s.cmdTimeout, "+HTTPREAD:") {
		s.failed("http read")
		return false
	}
	n, ok := info.Field(s.Buffer(), "+HTTPREAD:", 0)
	if !ok {
		s.fail("http read", errors.Wrap(at.ErrUnexpectedResponse, "+HTTPREAD"))
		return false
	}
	stored, ok := s.ReadBody(s.recv, n, s.cmdTimeout)
	if !ok {
		s.failed("http read")
		return false
	}
	if !s.ack(s.cmdTimeout) {
		s.failed("http read")
		return false
	}
	s.dataSize = stored
	return true
}

// terminate closes the HTTP session.
//
// A failure to close does not alter the result of the request, but is
// reported by Err if the request itself succeeded.
func (s *SIM800L) terminate() {
	s.Command("+HTTPTERM")
	if !s.ack(s.cmdTimeout) && s.err == nil {
		s.failed("http term")
	}
}

func (s *SIM800L) httpFailed(status int) int {
	s.failed("http " + strconv.Itoa(status))
	return status
}

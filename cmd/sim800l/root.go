// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/warthog618/sim800l/at"
	"github.com/warthog618/sim800l/gpio"
	"github.com/warthog618/sim800l/serial"
	"github.com/warthog618/sim800l/sim800l"
	"github.com/warthog618/sim800l/wsbridge"
	"golang.org/x/term"
)

var (
	// serial connection flags
	portName string
	baudRate int
	dtrReset bool

	// websocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// modem flags
	resetPin       int
	bufferSize     int
	recvBufferSize int
	cmdTimeout     time.Duration
	verbose        bool
)

var rootCmd = &cobra.Command{
	Use:   "sim800l",
	Short: "Drive a SIM800L GSM/GPRS modem",
	Long: `sim800l drives a SIM800L modem over a serial port, or over a
serial-to-websocket bridge.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200] [--dtr-reset]
  WebSocket: --url ws://host/path [--username user]

For websocket authentication, the password is read from the SIM800L_PASSWORD
environment variable, or prompted for if not set.

The modem reset input may be driven by a Raspberry Pi GPIO (--reset-pin) or
by the DTR line of the serial adapter (--dtr-reset).`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "serial port device (default is platform dependent)")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "baud rate (serial only)")
	rootCmd.PersistentFlags().BoolVar(&dtrReset, "dtr-reset", false, "drive the modem reset from the serial DTR line")

	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "websocket bridge URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "username for HTTP basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().IntVar(&resetPin, "reset-pin", -1, "BCM number of the GPIO driving the modem reset")
	rootCmd.PersistentFlags().IntVar(&bufferSize, "buffer", at.DefaultBufferSize, "size of the command response buffer")
	rootCmd.PersistentFlags().IntVar(&recvBufferSize, "recv-buffer", sim800l.DefaultRecvBufferSize, "size of the HTTP body buffer")
	rootCmd.PersistentFlags().DurationVarP(&cmdTimeout, "timeout", "t", sim800l.DefaultCommandTimeout, "command timeout period")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log modem interactions")
}

// modem is an open SIM800L and the resources backing it.
type modem struct {
	*sim800l.SIM800L
	closers []io.Closer
}

func (m *modem) Close() {
	for i := len(m.closers) - 1; i >= 0; i-- {
		m.closers[i].Close()
	}
}

// openModem opens the connection selected by the flags and creates the
// driver on it.
func openModem(extra ...sim800l.Option) (*modem, error) {
	if err := checkFlags(); err != nil {
		return nil, err
	}
	m := &modem{}
	options := []sim800l.Option{
		sim800l.WithInternalBufferSize(bufferSize),
		sim800l.WithRecvBufferSize(recvBufferSize),
		sim800l.WithCommandTimeout(cmdTimeout),
		sim800l.WithDebug(verbose),
	}
	var port at.Port
	switch {
	case wsURL != "":
		c, err := dialBridge()
		if err != nil {
			return nil, err
		}
		m.closers = append(m.closers, c)
		port = c
	case dtrReset:
		c, err := serial.NewControlled(serialOptions()...)
		if err != nil {
			return nil, err
		}
		m.closers = append(m.closers, c)
		port = c
		options = append(options, sim800l.WithResetPin(c.DTR()))
	default:
		p, err := serial.New(serialOptions()...)
		if err != nil {
			return nil, err
		}
		m.closers = append(m.closers, p)
		port = p
	}
	if resetPin >= 0 {
		l, err := gpio.Open(resetPin)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.closers = append(m.closers, l)
		options = append(options, sim800l.WithResetPin(l))
	}
	m.SIM800L = sim800l.New(port, append(options, extra...)...)
	return m, nil
}

// checkFlags rejects combinations of connection flags that cannot all be
// honoured.
func checkFlags() error {
	if dtrReset && wsURL != "" {
		return errors.Wrap(ErrFlagConflict, "--dtr-reset requires a serial connection, not --url")
	}
	if dtrReset && resetPin >= 0 {
		return errors.Wrap(ErrFlagConflict, "--dtr-reset and --reset-pin both drive the modem reset")
	}
	return nil
}

// ErrFlagConflict indicates flags were given that cannot be used together.
var ErrFlagConflict = errors.New("conflicting flags")

func serialOptions() []serial.Option {
	options := []serial.Option{serial.WithBaud(baudRate)}
	if portName != "" {
		options = append(options, serial.WithPort(portName))
	}
	return options
}

func dialBridge() (*wsbridge.Conn, error) {
	var options []wsbridge.Option
	if wsUsername != "" {
		password, err := getPassword()
		if err != nil {
			return nil, err
		}
		options = append(options, wsbridge.WithBasicAuth(wsUsername, password))
	}
	if wsNoSSLVerify {
		options = append(options, wsbridge.WithInsecureSkipVerify())
	}
	return wsbridge.Dial(wsURL, options...)
}

// getPassword retrieves the bridge password from the environment or prompts
// the user for it.
func getPassword() (string, error) {
	if pw := os.Getenv("SIM800L_PASSWORD"); pw != "" {
		return pw, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.Wrap(err, "read password")
	}
	return string(pw), nil
}

// failed returns the reason the most recent modem operation failed.
func failed(m *modem, op string) error {
	if err := m.Err(); err != nil {
		return errors.Wrap(err, op)
	}
	return errors.Errorf("%s failed", op)
}

// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	contentType  string
	writeTimeout time.Duration
	readTimeout  time.Duration
)

var getCmd = &cobra.Command{
	Use:   "get <url>",
	Short: "Perform an HTTP GET over the GPRS bearer",
	Long: `Perform an HTTP GET over the GPRS bearer and display the status and
body of the response.

The body is truncated to the size of the receive buffer (--recv-buffer).`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

var postCmd = &cobra.Command{
	Use:   "post <url> <payload>",
	Short: "Perform an HTTP POST over the GPRS bearer",
	Long: `Perform an HTTP POST of the payload over the GPRS bearer and display the
status and body of the response.`,
	Args: cobra.ExactArgs(2),
	RunE: runPost,
}

func init() {
	for _, c := range []*cobra.Command{getCmd, postCmd} {
		c.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "time allowed for the server to respond")
		rootCmd.AddCommand(c)
	}
	postCmd.Flags().StringVar(&contentType, "content-type", "text/plain", "content type of the payload")
	postCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 10*time.Second, "time allowed to transfer the payload to the modem")
}

func runGet(cmd *cobra.Command, args []string) error {
	m, err := openModem()
	if err != nil {
		return err
	}
	defer m.Close()
	status := m.DoGet(args[0], readTimeout)
	return report(m, status)
}

func runPost(cmd *cobra.Command, args []string) error {
	m, err := openModem()
	if err != nil {
		return err
	}
	defer m.Close()
	status := m.DoPost(args[0], contentType, []byte(args[1]), writeTimeout, readTimeout)
	return report(m, status)
}

// report displays the result of an HTTP request.
func report(m *modem, status int) error {
	fmt.Println("status:", status)
	if err := m.Err(); err != nil && m.DataSizeReceived() == 0 {
		return failed(m, "http")
	}
	if n := m.DataSizeReceived(); n > 0 {
		fmt.Printf("body: %d bytes\n", n)
		os.Stdout.Write(m.DataReceived())
		fmt.Println()
	}
	return nil
}

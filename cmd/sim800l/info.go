// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var infoAll bool

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display the modem status",
	Long: `Display the readiness, signal quality, power mode and network
registration of the modem.

With --all the responses to a set of identification and configuration
queries are also displayed, which may be useful for debugging.`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().BoolVarP(&infoAll, "all", "a", false, "also display identification and configuration")
	rootCmd.AddCommand(infoCmd)
}

// queries are displayed by info --all.
var queries = []string{
	"I",
	"+GCAP",
	"+CGMI",
	"+CGMM",
	"+CGMR",
	"+CGSN",
	"+CCID",
	"+CIMI",
	"+CPIN?",
	"+COPS?",
	"+CBC",
	"+SAPBR=2,1",
}

func runInfo(cmd *cobra.Command, args []string) error {
	m, err := openModem()
	if err != nil {
		return err
	}
	defer m.Close()
	if !m.IsReady() {
		return failed(m, "ready")
	}
	fmt.Println("ready:", true)
	signal := m.Signal()
	fmt.Println("signal:", signal)
	fmt.Println("power mode:", m.PowerMode())
	fmt.Println("registration:", m.RegistrationStatus())
	if !infoAll {
		return nil
	}
	for _, q := range queries {
		m.Command(q)
		fmt.Println("AT" + q)
		if !m.ReadResponseCheckAnswer(cmdTimeout, "OK", 4) {
			fmt.Printf(" %s\n", m.AT.Err())
			continue
		}
		for _, l := range strings.Split(string(m.Buffer()), "\r\n") {
			l = strings.TrimSpace(l)
			if l == "" || l == "OK" || l == "AT"+q {
				continue
			}
			fmt.Printf(" %s\n", l)
		}
	}
	return nil
}

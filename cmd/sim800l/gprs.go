// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/warthog618/sim800l/sim800l"
)

var bearerTimeout time.Duration

var gprsCmd = &cobra.Command{
	Use:   "gprs <apn>",
	Short: "Open the GPRS bearer",
	Long: `Configure the GPRS bearer for the APN and open it.

The modem must be registered on the network.`,
	Args: cobra.ExactArgs(1),
	RunE: runGPRS,
}

var gprsDownCmd = &cobra.Command{
	Use:   "gprs-down",
	Short: "Close the GPRS bearer",
	Args:  cobra.NoArgs,
	RunE:  runGPRSDown,
}

func init() {
	for _, c := range []*cobra.Command{gprsCmd, gprsDownCmd} {
		c.Flags().DurationVar(&bearerTimeout, "bearer-timeout", 65*time.Second, "time allowed to open or close the bearer")
		rootCmd.AddCommand(c)
	}
}

func runGPRS(cmd *cobra.Command, args []string) error {
	m, err := openModem(sim800l.WithBearerTimeout(bearerTimeout))
	if err != nil {
		return err
	}
	defer m.Close()
	if reg := m.RegistrationStatus(); !reg.Registered() {
		fmt.Println("registration:", reg)
	}
	if !m.SetupGPRS(args[0]) {
		return failed(m, "setup gprs")
	}
	if !m.ConnectGPRS() {
		return failed(m, "connect gprs")
	}
	fmt.Println("gprs: connected")
	return nil
}

func runGPRSDown(cmd *cobra.Command, args []string) error {
	m, err := openModem(sim800l.WithBearerTimeout(bearerTimeout))
	if err != nil {
		return err
	}
	defer m.Close()
	if !m.DisconnectGPRS() {
		return failed(m, "disconnect gprs")
	}
	fmt.Println("gprs: disconnected")
	return nil
}

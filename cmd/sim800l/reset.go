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

var (
	bootTimeout time.Duration
	bootToken   string
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the modem and wait for it to boot",
	Long: `Reset the modem and wait for it to boot.

The reset line is pulsed if one is configured with --reset-pin or --dtr-reset,
else the modem is restarted with AT+CFUN=1,1.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().DurationVar(&bootTimeout, "boot-timeout", 15*time.Second, "time allowed for the modem to boot")
	resetCmd.Flags().StringVar(&bootToken, "boot-token", "SMS Ready", "notification indicating the modem has booted")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	m, err := openModem(
		sim800l.WithBootTimeout(bootTimeout),
		sim800l.WithBootToken(bootToken))
	if err != nil {
		return err
	}
	defer m.Close()
	m.Reset()
	if err := m.Err(); err != nil {
		return err
	}
	if !m.IsReady() {
		return failed(m, "ready")
	}
	fmt.Println("power mode:", m.CachedPowerMode())
	return nil
}

// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/warthog618/sim800l/sim800l"
)

var powerTimeout time.Duration

var powerCmd = &cobra.Command{
	Use:   "power [minimum|normal|sleep]",
	Short: "Display or set the modem power mode",
	Long: `Display the modem power mode or, if a mode is provided, switch the modem
to that mode.

From sleep or minimum the modem can only be switched to normal.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPower,
}

func init() {
	powerCmd.Flags().DurationVar(&powerTimeout, "power-timeout", 10*time.Second, "time allowed for the modem to change mode")
	rootCmd.AddCommand(powerCmd)
}

func runPower(cmd *cobra.Command, args []string) error {
	var mode sim800l.PowerMode
	if len(args) > 0 {
		var err error
		if mode, err = parsePowerMode(args[0]); err != nil {
			return err
		}
	}
	m, err := openModem(sim800l.WithPowerTimeout(powerTimeout))
	if err != nil {
		return err
	}
	defer m.Close()
	if len(args) == 0 {
		mode = m.PowerMode()
		if mode == sim800l.PowerError {
			return failed(m, "power mode")
		}
		fmt.Println("power mode:", mode)
		return nil
	}
	if !m.SetPowerMode(mode) {
		return failed(m, "set power mode")
	}
	fmt.Println("power mode:", m.CachedPowerMode())
	return nil
}

var powerModes = map[string]sim800l.PowerMode{
	"minimum": sim800l.Minimum,
	"normal":  sim800l.Normal,
	"sleep":   sim800l.Sleep,
}

func parsePowerMode(s string) (sim800l.PowerMode, error) {
	if mode, ok := powerModes[strings.ToLower(s)]; ok {
		return mode, nil
	}
	return sim800l.PowerUnknown, errors.Wrapf(sim800l.ErrInvalidPowerMode, "%q", s)
}

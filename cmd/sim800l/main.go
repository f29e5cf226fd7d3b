// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

// sim800l drives a SIM800L modem from the command line.
//
// This serves as an example of how to use the sim800l driver, as well as
// providing a tool for exercising a modem during bring up.
package main

import (
	"os"
)

var version = "undefined"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

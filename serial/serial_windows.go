// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

//go:build windows

package serial

import "time"

var defaultConfig = Config{
	port:        "COM1",
	baud:        115200,
	readTimeout: 100 * time.Millisecond,
}

// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package sim800l

//go:generate go tool mockgen -destination=mock_pin_test.go -package=sim800l_test . Pin

// Pin is an output line connected to the modem reset input.
//
// The reset input is active low.
type Pin interface {
	// High drives the line high, releasing the modem from reset.
	High()

	// Low drives the line low, holding the modem in reset.
	Low()
}

// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package sim800l

// SetupGPRS configures bearer profile 1 for a GPRS connection to the APN.
func (s *SIM800L) SetupGPRS(apn string) bool {
	s.err = nil
	s.Command(`+SAPBR=3,1,"CONTYPE","GPRS"`)
	if !s.ack(s.cmdTimeout) {
		s.failed("setup gprs")
		return false
	}
	s.CommandParam(`+SAPBR=3,1,"APN",`, apn)
	if !s.ack(s.cmdTimeout) {
		s.failed("setup gprs")
		return false
	}
	return true
}

// ConnectGPRS opens the bearer configured by SetupGPRS.
//
// Opening the bearer can take some time, so this blocks for up to the
// bearer timeout.
func (s *SIM800L) ConnectGPRS() bool {
	return s.bearer("connect gprs", "+SAPBR=1,1")
}

// DisconnectGPRS closes the bearer opened by ConnectGPRS.
func (s *SIM800L) DisconnectGPRS() bool {
	return s.bearer("disconnect gprs", "+SAPBR=0,1")
}

func (s *SIM800L) bearer(op, cmd string) bool {
	s.err = nil
	s.Command(cmd)
	if !s.ack(s.bearerTimeout) {
		s.failed(op)
		return false
	}
	return true
}

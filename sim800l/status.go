// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package sim800l

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/warthog618/sim800l/at"
	"github.com/warthog618/sim800l/info"
)

// PowerMode is the functionality level of the modem.
type PowerMode int

const (
	// Minimum functionality. The RF and SIM are disabled.
	Minimum PowerMode = iota

	// Normal is full functionality.
	Normal

	// PowerUnknown indicates the modem reported a mode that is not mapped.
	PowerUnknown

	// Sleep disables the RF but leaves the SIM accessible, aka flight mode.
	Sleep

	// PowerError indicates the mode could not be determined.
	PowerError
)

var powerModeNames = map[PowerMode]string{
	Minimum:      "Minimum",
	Normal:       "Normal",
	PowerUnknown: "Unknown",
	Sleep:        "Sleep",
	PowerError:   "Error",
}

func (m PowerMode) String() string {
	if n, ok := powerModeNames[m]; ok {
		return n
	}
	return "PowerMode(" + strconv.Itoa(int(m)) + ")"
}

// cfun returns the +CFUN value corresponding to the mode.
func (m PowerMode) cfun() (int, bool) {
	switch m {
	case Minimum:
		return 0, true
	case Normal:
		return 1, true
	case Sleep:
		return 4, true
	}
	return 0, false
}

func powerModeFromCFUN(v int) PowerMode {
	switch v {
	case 0:
		return Minimum
	case 1:
		return Normal
	case 4:
		return Sleep
	}
	return PowerUnknown
}

// NetworkRegistration is the network registration status of the modem.
//
// The values from NotRegistered to RegisteredRoaming match the stat values
// reported by +CREG.
type NetworkRegistration int

const (
	// NotRegistered and not searching for an operator.
	NotRegistered NetworkRegistration = iota

	// RegisteredHome is registered on the home network.
	RegisteredHome

	// Searching for an operator to register with.
	Searching

	// Denied indicates registration was denied.
	Denied

	// NetUnknown indicates the modem reported an unknown or unmapped status.
	NetUnknown

	// RegisteredRoaming is registered on a roaming network.
	RegisteredRoaming

	// NetError indicates the status could not be determined.
	NetError
)

var registrationNames = map[NetworkRegistration]string{
	NotRegistered:     "NotRegistered",
	RegisteredHome:    "RegisteredHome",
	Searching:         "Searching",
	Denied:            "Denied",
	NetUnknown:        "Unknown",
	RegisteredRoaming: "RegisteredRoaming",
	NetError:          "Error",
}

func (r NetworkRegistration) String() string {
	if n, ok := registrationNames[r]; ok {
		return n
	}
	return "NetworkRegistration(" + strconv.Itoa(int(r)) + ")"
}

// Registered returns true if the modem is registered on either the home or
// a roaming network.
func (r NetworkRegistration) Registered() bool {
	return r == RegisteredHome || r == RegisteredRoaming
}

// PowerMode queries the modem for its current power mode.
//
// Returns PowerError if the modem does not answer and PowerUnknown if it
// answers with a mode that is not mapped.
func (s *SIM800L) PowerMode() PowerMode {
	s.err = nil
	return s.queryPowerMode()
}

func (s *SIM800L) queryPowerMode() PowerMode {
	s.Command("+CFUN?")
	if !s.ack(s.cmdTimeout) {
		s.failed("power mode")
		return PowerError
	}
	v, ok := info.Field(s.Buffer(), "+CFUN:", 0)
	if !ok {
		s.fail("power mode", at.ErrUnexpectedResponse)
		return PowerError
	}
	return powerModeFromCFUN(v)
}

// CachedPowerMode returns the power mode last set by SetPowerMode or Reset,
// without querying the modem.
func (s *SIM800L) CachedPowerMode() PowerMode {
	return s.powerMode
}

// RegistrationStatus queries the modem for its network registration status.
//
// The status is not cached.
func (s *SIM800L) RegistrationStatus() NetworkRegistration {
	s.err = nil
	s.Command("+CREG?")
	if !s.ack(s.cmdTimeout) {
		s.failed("registration")
		return NetError
	}
	v, ok := info.Field(s.Buffer(), "+CREG:", 1)
	if !ok {
		s.fail("registration", at.ErrUnexpectedResponse)
		return NetError
	}
	if v > int(RegisteredRoaming) {
		return NetUnknown
	}
	return NetworkRegistration(v)
}

// SetPowerMode switches the modem to the requested power mode.
//
// From Sleep or Minimum the modem can only be switched to Normal.
// The cached power mode is only updated once the modem confirms the change.
//
// Returns true if the modem is in the requested mode on return.
func (s *SIM800L) SetPowerMode(mode PowerMode) bool {
	s.err = nil
	cfun, ok := mode.cfun()
	if !ok {
		s.fail("set power mode", errors.Wrapf(ErrInvalidPowerMode, "%v", mode))
		return false
	}
	current := s.queryPowerMode()
	if current == PowerError {
		return false
	}
	if current == PowerUnknown {
		s.fail("set power mode", errors.Wrapf(at.ErrUnexpectedResponse, "current mode %v", current))
		return false
	}
	if current == mode {
		s.powerMode = mode
		return true
	}
	if current != Normal && mode != Normal {
		s.fail("set power mode", errors.Wrapf(ErrPowerTransition, "%v to %v", current, mode))
		return false
	}
	s.log.Debug("set power mode", "from", current, "to", mode)
	s.Command("+CFUN=" + strconv.Itoa(cfun))
	if !s.ack(s.powerTimeout) {
		s.failed("set power mode")
		return false
	}
	// the change triggers notifications such as +CPIN and Call Ready
	s.ReadToForget(s.settleTime)
	confirmed := s.queryPowerMode()
	if confirmed != mode {
		if s.err == nil {
			s.fail("set power mode", errors.Wrapf(at.ErrUnexpectedResponse, "mode %v", confirmed))
		}
		return false
	}
	s.powerMode = mode
	return true
}

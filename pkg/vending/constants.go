// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package vending decodes the FMT hex-over-serial protocol spoken by vending
// peripherals (product dispensers and payment devices).
//
// A host transmits a command payload, the peripheral answers with a fixed
// layout frame, and this package turns that frame into a typed telemetry
// record selected by the command that was sent. Decoding is pure: no I/O,
// no retained state, safe for concurrent use.
package vending

// Protocol framing
const (
	AckByte = 0x06

	// HeaderSize is the number of bytes following the ACK that some
	// peripherals echo twice before the payload.
	HeaderSize = 6
)

// Temperature sign marker ("2" in ASCII)
const tempPositiveMarker = 0x32

// Human-readable log lines reported by Dispatch
const (
	LogDataReceived = "Data has been received."
	LogNoData       = "No data received"
)

// Family groups commands that share a response layout
type Family int

// Command families
const (
	FamilyNone Family = iota
	FamilyMachineStatus
	FamilyDispense
	FamilyFirmware
)

// String returns the family name
func (f Family) String() string {
	switch f {
	case FamilyMachineStatus:
		return "machine_status"
	case FamilyDispense:
		return "dispense"
	case FamilyFirmware:
		return "firmware"
	default:
		return "none"
	}
}

// bays maps a decoded bay index to its physical bay number
var bays = [...]int{1, 2, 3, 4, 5}

// DispenseMode is the motor/actuator type used for a dispense
type DispenseMode int

// Dispense modes, in wire index order
const (
	ModeSolenoid DispenseMode = iota
	ModeBelt
	ModeSpiralMotor
	ModeSolenoidHardOpen
	ModeNoodleMotor
	ModeSpiralMotorWithSensor
)

var modeNames = [...]string{
	"Solenoid",
	"Belt",
	"Spiral Motor",
	"Solenoid Hard-Open",
	"Noodle Motor",
	"Spiral Motor with Sensor",
}

// String returns the mode name
func (m DispenseMode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "UNKNOWN"
	}
	return modeNames[m]
}

// MarshalText renders the mode by name
func (m DispenseMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

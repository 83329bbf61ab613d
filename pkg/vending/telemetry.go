// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vending

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Telemetry is a decoded response. Concrete types: MachineStatus,
// DispenseResult, FirmwareVersion and Unrecognized.
type Telemetry interface {
	Family() Family
	telemetry()
}

// Temperature as reported by the machine status response
type Temperature struct {
	Positive bool
	Whole    uint8
	Fraction uint8
}

// String renders the temperature the way the peripheral documents it,
// e.g. "+2.5 Celsius"
func (t Temperature) String() string {
	sign := "-"
	if t.Positive {
		sign = "+"
	}
	return fmt.Sprintf("%s%d.%d Celsius", sign, t.Whole, t.Fraction)
}

// MarshalText renders the temperature string
func (t Temperature) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// MarshalCBOR renders the temperature string
func (t Temperature) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(t.String())
}

// MachineStatus is the GET_MACHINE_STATUS response
type MachineStatus struct {
	Temperature Temperature `json:"temperature"`
	PowerRelay  bool        `json:"power_relay_status"`
	FanRelay    bool        `json:"fan_relay_status"`
	BayStock    [5]uint8    `json:"bay_stocks"`
	LampStatus  [6]bool     `json:"lamp_status"`
}

// DispenseResult is the response to a dispense command
type DispenseResult struct {
	Bay            int          `json:"bay"`
	Mode           DispenseMode `json:"mode"`
	ItemDropped    bool         `json:"item_dropped"`
	UseTimeMs      uint16       `json:"use_time"`
	RemainingStock uint8        `json:"stocks"`
}

// FirmwareVersion is the FIRMWARE_VERSION_GET response
type FirmwareVersion struct {
	HardwareVersion float32 `json:"hardware_version"`
	SoftwareVersion float32 `json:"software_version"`
}

// Unrecognized is returned for commands without a response layout.
// It is a valid outcome, not an error.
type Unrecognized struct{}

func (MachineStatus) Family() Family   { return FamilyMachineStatus }
func (DispenseResult) Family() Family  { return FamilyDispense }
func (FirmwareVersion) Family() Family { return FamilyFirmware }
func (Unrecognized) Family() Family    { return FamilyNone }

func (MachineStatus) telemetry()   {}
func (DispenseResult) telemetry()  {}
func (FirmwareVersion) telemetry() {}
func (Unrecognized) telemetry()    {}

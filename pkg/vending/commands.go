// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vending

import (
	"fmt"
	"strings"
)

// Command identifies a request a host can send to a peripheral
type Command int

// Commands. Dispense commands are kept contiguous so a bay maps to an offset.
const (
	CmdUnknown Command = iota
	CmdGetMachineStatus
	CmdDispenseBay1
	CmdDispenseBay2
	CmdDispenseBay3
	CmdDispenseBay4
	CmdDispenseBay5
	CmdGetFirmwareVersion

	// Payment device
	CmdPaymentGetStatus
	CmdPaymentFirmwareVersion
	CmdPaymentEnable
	CmdPaymentDisable

	cmdCount
)

// Symbolic names as used by hosts and configuration files
var commandNames = [cmdCount]string{
	CmdUnknown:                "UNKNOWN",
	CmdGetMachineStatus:       "GET_MACHINE_STATUS",
	CmdDispenseBay1:           "PRODUCT_DISPEN_PRODUCT_ID_00_DISPEN_MODE_2",
	CmdDispenseBay2:           "PRODUCT_DISPEN_PRODUCT_ID_01_DISPEN_MODE_2",
	CmdDispenseBay3:           "PRODUCT_DISPEN_PRODUCT_ID_02_DISPEN_MODE_2",
	CmdDispenseBay4:           "PRODUCT_DISPEN_PRODUCT_ID_03_DISPEN_MODE_2",
	CmdDispenseBay5:           "PRODUCT_DISPEN_PRODUCT_ID_04_DISPEN_MODE_2",
	CmdGetFirmwareVersion:     "FIRMWARE_VERSION_GET",
	CmdPaymentGetStatus:       "PAYMENT_GET_STATUS",
	CmdPaymentFirmwareVersion: "PAYMENT_FIRMWARE_VERSION_GET",
	CmdPaymentEnable:          "PAYMENT_ENABLE",
	CmdPaymentDisable:         "PAYMENT_DISABLE",
}

// String returns the symbolic command name
func (c Command) String() string {
	if c < 0 || c >= cmdCount {
		return commandNames[CmdUnknown]
	}
	return commandNames[c]
}

// Family returns the response layout family of the command
func (c Command) Family() Family {
	switch {
	case c == CmdGetMachineStatus:
		return FamilyMachineStatus
	case c >= CmdDispenseBay1 && c <= CmdDispenseBay5:
		return FamilyDispense
	case c == CmdGetFirmwareVersion, c == CmdPaymentFirmwareVersion:
		return FamilyFirmware
	default:
		return FamilyNone
	}
}

// Bay returns the physical bay (1-5) a dispense command targets, or 0
func (c Command) Bay() int {
	if c.Family() != FamilyDispense {
		return 0
	}
	return int(c-CmdDispenseBay1) + 1
}

// ParseCommand resolves a symbolic command name (case-insensitive)
func ParseCommand(name string) (Command, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for c := CmdGetMachineStatus; c < cmdCount; c++ {
		if commandNames[c] == upper {
			return c, nil
		}
	}
	return CmdUnknown, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

// DispenseCommand returns the dispense command for a physical bay (1-5)
func DispenseCommand(bay int) (Command, error) {
	if bay < 1 || bay > len(bays) {
		return CmdUnknown, fmt.Errorf("%w: bay %d (valid 1-%d)", ErrIndexOutOfRange, bay, len(bays))
	}
	return CmdDispenseBay1 + Command(bay-1), nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vending

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Profile is one peripheral's protocol dialect: the commands it accepts with
// their wire payloads, and the response layouts it produces. Profiles are
// immutable once built.
type Profile struct {
	name      string
	envPrefix string
	payloads  map[Command]string
	decoder   *Decoder
}

// Built-in profile names
const (
	ProfileVending = "vending"
	ProfilePayment = "payment"
)

// Default command catalog of the dispenser. Payloads are hex with optional
// spaces: STX, device address, length, opcode, argument, mode, checksum, ETX.
var vendingPayloads = map[Command]string{
	CmdGetMachineStatus:   "02 01 06 10 00 00 17 03",
	CmdDispenseBay1:       "02 01 06 20 00 02 29 03",
	CmdDispenseBay2:       "02 01 06 20 01 02 2A 03",
	CmdDispenseBay3:       "02 01 06 20 02 02 2B 03",
	CmdDispenseBay4:       "02 01 06 20 03 02 2C 03",
	CmdDispenseBay5:       "02 01 06 20 04 02 2D 03",
	CmdGetFirmwareVersion: "02 01 06 30 00 00 37 03",
}

// Default command catalog of the payment device
var paymentPayloads = map[Command]string{
	CmdPaymentGetStatus:       "02 02 06 10 00 00 18 03",
	CmdPaymentFirmwareVersion: "02 02 06 30 00 00 38 03",
	CmdPaymentEnable:          "02 02 06 40 01 00 49 03",
	CmdPaymentDisable:         "02 02 06 40 00 00 48 03",
}

// NewProfile builds a profile from a payload table and the response
// families it decodes
func NewProfile(name, envPrefix string, payloads map[Command]string, families ...Family) (*Profile, error) {
	p := &Profile{
		name:      name,
		envPrefix: envPrefix,
		payloads:  make(map[Command]string, len(payloads)),
		decoder:   NewDecoder(families...),
	}
	for cmd, payload := range payloads {
		if _, err := decodePayload(payload); err != nil {
			return nil, fmt.Errorf("profile %s: %s: %w", name, cmd, err)
		}
		p.payloads[cmd] = payload
	}
	return p, nil
}

// VendingProfile returns the product dispenser profile
func VendingProfile() *Profile {
	return mustProfile(ProfileVending, "FMT_VENDING_", vendingPayloads,
		FamilyMachineStatus, FamilyDispense, FamilyFirmware)
}

// PaymentProfile returns the payment device profile
func PaymentProfile() *Profile {
	return mustProfile(ProfilePayment, "FMT_PAYMENT_", paymentPayloads, FamilyFirmware)
}

// ProfileByName returns a built-in profile
func ProfileByName(name string) (*Profile, error) {
	switch strings.ToLower(name) {
	case ProfileVending, "":
		return VendingProfile(), nil
	case ProfilePayment:
		return PaymentProfile(), nil
	default:
		return nil, fmt.Errorf("unknown profile %q (use %s or %s)", name, ProfileVending, ProfilePayment)
	}
}

func mustProfile(name, envPrefix string, payloads map[Command]string, families ...Family) *Profile {
	p, err := NewProfile(name, envPrefix, payloads, families...)
	if err != nil {
		panic(fmt.Sprintf("vending: built-in profile: %v", err))
	}
	return p
}

// Name returns the profile name
func (p *Profile) Name() string {
	return p.name
}

// EnvPrefix returns the configuration key prefix, e.g. "FMT_VENDING_"
func (p *Profile) EnvPrefix() string {
	return p.envPrefix
}

// Decoder returns the profile's response decoder
func (p *Profile) Decoder() *Decoder {
	return p.decoder
}

// Commands returns the commands the profile can send, in command order
func (p *Profile) Commands() []Command {
	cmds := make([]Command, 0, len(p.payloads))
	for cmd := range p.payloads {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i] < cmds[j] })
	return cmds
}

// Payload returns the catalog hex string for cmd as written in the table
func (p *Profile) Payload(cmd Command) (string, error) {
	payload, ok := p.payloads[cmd]
	if !ok {
		return "", fmt.Errorf("%w: %s not supported by %s profile", ErrUnknownCommand, cmd, p.name)
	}
	return payload, nil
}

// PayloadBytes returns the bytes to transmit for cmd
func (p *Profile) PayloadBytes(cmd Command) ([]byte, error) {
	payload, err := p.Payload(cmd)
	if err != nil {
		return nil, err
	}
	return decodePayload(payload)
}

// WithPayloads returns a copy of the profile with catalog entries replaced.
// Keys are symbolic command names.
func (p *Profile) WithPayloads(overrides map[string]string) (*Profile, error) {
	if len(overrides) == 0 {
		return p, nil
	}
	payloads := make(map[Command]string, len(p.payloads)+len(overrides))
	for cmd, payload := range p.payloads {
		payloads[cmd] = payload
	}
	for name, payload := range overrides {
		cmd, err := ParseCommand(name)
		if err != nil {
			return nil, err
		}
		if _, err := decodePayload(payload); err != nil {
			return nil, fmt.Errorf("profile %s: %s: %w", p.name, cmd, err)
		}
		payloads[cmd] = payload
	}
	return &Profile{
		name:      p.name,
		envPrefix: p.envPrefix,
		payloads:  payloads,
		decoder:   p.decoder,
	}, nil
}

// decodePayload strips spaces from a catalog entry and decodes the hex
func decodePayload(payload string) ([]byte, error) {
	compact := strings.ReplaceAll(payload, " ", "")
	if compact == "" {
		return nil, fmt.Errorf("empty payload")
	}
	b, err := hex.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("invalid payload %q: %v", payload, err)
	}
	return b, nil
}

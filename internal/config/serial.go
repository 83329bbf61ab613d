// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

// SerialSettings describes the line settings of one device
type SerialSettings struct {
	Port        string
	BaudRate    int
	Parity      serial.Parity
	DataBits    int
	StopBits    serial.StopBits
	FlowControl string
	ReplyDelay  time.Duration
}

// Mode returns the settings as a serial port mode
func (s SerialSettings) Mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: s.BaudRate,
		DataBits: s.DataBits,
		Parity:   s.Parity,
		StopBits: s.StopBits,
	}
}

// Describe returns a one-line summary for banners
func (s SerialSettings) Describe() string {
	return fmt.Sprintf("%s @ %d baud %d%s%s", s.Port, s.BaudRate, s.DataBits, parityLetter(s.Parity), stopBitsLabel(s.StopBits))
}

// Serial parses and validates the serial settings of the resolver's profile
func (r *Resolver) Serial() (SerialSettings, error) {
	var s SerialSettings
	var err error

	s.Port = r.String(KeyPort)
	if s.Port == "" {
		return s, fmt.Errorf("%s%s: no serial port configured", r.Prefix, KeyPort)
	}

	if s.BaudRate, err = r.Int(KeyBaudRate); err != nil {
		return s, err
	}
	if s.BaudRate <= 0 {
		return s, fmt.Errorf("%s%s: baud rate must be positive, got %d", r.Prefix, KeyBaudRate, s.BaudRate)
	}

	if s.Parity, err = ParseParity(r.String(KeyParity)); err != nil {
		return s, err
	}

	if s.DataBits, err = r.Int(KeyCharLength); err != nil {
		return s, err
	}
	if s.DataBits < 5 || s.DataBits > 8 {
		return s, fmt.Errorf("invalid character length %d: use 5, 6, 7, or 8", s.DataBits)
	}

	if s.StopBits, err = ParseStopBits(r.String(KeyStopBits)); err != nil {
		return s, err
	}

	if s.FlowControl, err = parseFlowControl(r.String(KeyFlowControl)); err != nil {
		return s, err
	}

	if s.ReplyDelay, err = r.Duration(KeyReplyDelay); err != nil {
		return s, err
	}
	if s.ReplyDelay < 0 {
		return s, fmt.Errorf("%s%s: reply delay must not be negative", r.Prefix, KeyReplyDelay)
	}

	return s, nil
}

// ParseParity maps a parity name to its serial constant
func ParseParity(s string) (serial.Parity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return serial.NoParity, nil
	case "odd":
		return serial.OddParity, nil
	case "even":
		return serial.EvenParity, nil
	case "mark":
		return serial.MarkParity, nil
	case "space":
		return serial.SpaceParity, nil
	default:
		return serial.NoParity, fmt.Errorf("invalid parity %q: use none, odd, even, mark, or space", s)
	}
}

// ParseStopBits maps "1", "1.5" or "2" to its serial constant
func ParseStopBits(s string) (serial.StopBits, error) {
	switch strings.TrimSpace(s) {
	case "1":
		return serial.OneStopBit, nil
	case "1.5":
		return serial.OnePointFiveStopBits, nil
	case "2":
		return serial.TwoStopBits, nil
	default:
		return serial.OneStopBit, fmt.Errorf("invalid stop bits %q: use 1, 1.5, or 2", s)
	}
}

func parseFlowControl(s string) (string, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "none", "":
		return "none", nil
	case "rts_cts", "xon_xoff":
		return "", fmt.Errorf("flow control %q is not supported by the serial driver", v)
	default:
		return "", fmt.Errorf("invalid flow control %q: use none, rts_cts, or xon_xoff", s)
	}
}

func parityLetter(p serial.Parity) string {
	switch p {
	case serial.OddParity:
		return "O"
	case serial.EvenParity:
		return "E"
	case serial.MarkParity:
		return "M"
	case serial.SpaceParity:
		return "S"
	default:
		return "N"
	}
}

func stopBitsLabel(s serial.StopBits) string {
	switch s {
	case serial.OnePointFiveStopBits:
		return "1.5"
	case serial.TwoStopBits:
		return "2"
	default:
		return "1"
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vending

import "fmt"

// field is one fixed-offset slice of a canonical frame and the function that
// stores its decoded value into the record
type field[T any] struct {
	name   string
	offset int
	length int
	apply  func(rec *T, b []byte) error
}

// layout is the ordered field table of one response family
type layout[T any] []field[T]

// minLength returns the frame length required by every field
func (l layout[T]) minLength() int {
	n := 0
	for _, f := range l {
		if end := f.offset + f.length; end > n {
			n = end
		}
	}
	return n
}

// decode checks the frame against the table, then extracts each field
func (l layout[T]) decode(f Frame) (T, error) {
	var rec T
	if need := l.minLength(); len(f) < need {
		return rec, fmt.Errorf("%w: %d bytes, layout needs %d", ErrMalformedFrame, len(f), need)
	}
	for _, fd := range l {
		if err := fd.apply(&rec, f[fd.offset:fd.offset+fd.length]); err != nil {
			return rec, fmt.Errorf("%s: %w", fd.name, err)
		}
	}
	return rec, nil
}

// Machine status layout
var machineStatusLayout = layout[MachineStatus]{
	{"temperature", 7, 3, func(r *MachineStatus, b []byte) error {
		r.Temperature = decodeTemperature(b)
		return nil
	}},
	{"power_relay_status", 10, 1, func(r *MachineStatus, b []byte) error {
		r.PowerRelay = statusIndicator(b[0])
		return nil
	}},
	{"fan_relay_status", 11, 1, func(r *MachineStatus, b []byte) error {
		r.FanRelay = statusIndicator(b[0])
		return nil
	}},
	stockField(0, 12),
	stockField(1, 13),
	stockField(2, 14),
	stockField(3, 15),
	stockField(4, 16),
	lampField(0, 17),
	lampField(1, 18),
	lampField(2, 19),
	lampField(3, 20),
	lampField(4, 21),
	lampField(5, 22),
}

func stockField(i, offset int) field[MachineStatus] {
	return field[MachineStatus]{fmt.Sprintf("bay_%03d_stocks", i+1), offset, 1, func(r *MachineStatus, b []byte) error {
		r.BayStock[i] = b[0]
		return nil
	}}
}

func lampField(i, offset int) field[MachineStatus] {
	return field[MachineStatus]{fmt.Sprintf("lamp_%03d_status", i+1), offset, 1, func(r *MachineStatus, b []byte) error {
		r.LampStatus[i] = statusIndicator(b[0])
		return nil
	}}
}

// Dispense result layout
var dispenseLayout = layout[DispenseResult]{
	{"bay", 7, 1, func(r *DispenseResult, b []byte) error {
		bay, err := dispenseBay(b[0])
		r.Bay = bay
		return err
	}},
	{"mode", 8, 1, func(r *DispenseResult, b []byte) error {
		mode, err := dispenseMode(b[0])
		r.Mode = mode
		return err
	}},
	{"item_dropped", 9, 1, func(r *DispenseResult, b []byte) error {
		r.ItemDropped = statusIndicator(b[0])
		return nil
	}},
	{"use_time", 10, 2, func(r *DispenseResult, b []byte) error {
		r.UseTimeMs = uint16(b[0])<<8 | uint16(b[1])
		return nil
	}},
	{"stocks", 12, 1, func(r *DispenseResult, b []byte) error {
		r.RemainingStock = b[0]
		return nil
	}},
}

// Firmware version layout
var firmwareLayout = layout[FirmwareVersion]{
	{"hardware_version", 7, 1, func(r *FirmwareVersion, b []byte) error {
		r.HardwareVersion = leadingDecimal(b[0])
		return nil
	}},
	{"software_version", 8, 1, func(r *FirmwareVersion, b []byte) error {
		r.SoftwareVersion = leadingDecimal(b[0])
		return nil
	}},
}

// statusIndicator is true only for the value 1; anything else reads as off
func statusIndicator(b byte) bool {
	return b == 0x01
}

// decodeTemperature reads [sign, whole, fraction]
func decodeTemperature(b []byte) Temperature {
	return Temperature{
		Positive: b[0] == tempPositiveMarker,
		Whole:    b[1],
		Fraction: b[2],
	}
}

// decimalToken reads the byte's two hex digits as a decimal number
// (0x12 -> 12). ok is false when either digit is A-F.
func decimalToken(b byte) (n int, ok bool) {
	hi, lo := b>>4, b&0x0F
	if hi > 9 || lo > 9 {
		return 0, false
	}
	return int(hi)*10 + int(lo), true
}

// leadingDecimal reads the decimal digits at the start of the byte's hex
// token: 0x08 -> 8, 0x12 -> 12, 0x1A -> 1, 0xAB -> 0
func leadingDecimal(b byte) float32 {
	hi, lo := b>>4, b&0x0F
	if hi > 9 {
		return 0
	}
	if lo > 9 {
		return float32(hi)
	}
	return float32(hi*10 + lo)
}

func dispenseBay(b byte) (int, error) {
	idx, ok := decimalToken(b)
	if !ok || idx >= len(bays) {
		return 0, fmt.Errorf("%w: bay index 0x%02X (table size %d)", ErrIndexOutOfRange, b, len(bays))
	}
	return bays[idx], nil
}

func dispenseMode(b byte) (DispenseMode, error) {
	idx, ok := decimalToken(b)
	if !ok || idx >= len(modeNames) {
		return 0, fmt.Errorf("%w: mode index 0x%02X (table size %d)", ErrIndexOutOfRange, b, len(modeNames))
	}
	return DispenseMode(idx), nil
}

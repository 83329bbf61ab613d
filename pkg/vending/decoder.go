// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vending

// decodeFunc turns a canonical frame into a telemetry record
type decodeFunc func(Frame) (Telemetry, error)

// Layout decoders by family, shared by every profile
var familyDecoders = map[Family]decodeFunc{
	FamilyMachineStatus: func(f Frame) (Telemetry, error) {
		return machineStatusLayout.decode(f)
	},
	FamilyDispense: func(f Frame) (Telemetry, error) {
		return dispenseLayout.decode(f)
	},
	FamilyFirmware: func(f Frame) (Telemetry, error) {
		return firmwareLayout.decode(f)
	},
}

// Decoder maps a command to the telemetry layout of its response.
// The table is fixed at construction; a Decoder is safe for concurrent use.
type Decoder struct {
	table map[Family]decodeFunc
}

// NewDecoder creates a decoder that understands the given families.
// Commands of any other family decode to Unrecognized.
func NewDecoder(families ...Family) *Decoder {
	d := &Decoder{table: make(map[Family]decodeFunc, len(families))}
	for _, fam := range families {
		if fn, ok := familyDecoders[fam]; ok {
			d.table[fam] = fn
		}
	}
	return d
}

// Supports reports whether the decoder has a layout for the family
func (d *Decoder) Supports(fam Family) bool {
	_, ok := d.table[fam]
	return ok
}

// Decode extracts the telemetry record for cmd from a canonical frame.
// Offsets count from the ACK byte, which is restored if missing.
func (d *Decoder) Decode(cmd Command, f Frame) (Telemetry, error) {
	fn, ok := d.table[cmd.Family()]
	if !ok {
		return Unrecognized{}, nil
	}
	rec, err := fn(withAck(f))
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vending

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// machineStatusHex is a GET_MACHINE_STATUS reply with a single header
const machineStatusHex = "0601020304050607080932003205313000000101010101"

// mustNormalize decodes a test frame or fails the test
func mustNormalize(t *testing.T, s string) Frame {
	t.Helper()
	f, err := Normalize(s)
	if err != nil {
		t.Fatalf("Normalize(%q): %v", s, err)
	}
	return f
}

// ============================================================
// Frame Normalizer Tests
// ============================================================

func TestNormalize_KeepsAck(t *testing.T) {
	f := mustNormalize(t, "060102")
	if !bytes.Equal(f, []byte{0x06, 0x01, 0x02}) {
		t.Errorf("Normalize = % X, want 06 01 02", []byte(f))
	}
}

func TestNormalize_InsertsMissingAck(t *testing.T) {
	f := mustNormalize(t, "0102")
	if !bytes.Equal(f, []byte{0x06, 0x01, 0x02}) {
		t.Errorf("Normalize = % X, want 06 01 02", []byte(f))
	}
}

func TestNormalize_UppercaseInput(t *testing.T) {
	f := mustNormalize(t, "06AAbb")
	if !bytes.Equal(f, []byte{0x06, 0xAA, 0xBB}) {
		t.Errorf("Normalize = % X, want 06 AA BB", []byte(f))
	}
}

func TestNormalize_Malformed(t *testing.T) {
	tests := []struct {
		name string
		hex  string
	}{
		{"odd length", "06010"},
		{"single nibble", "6"},
		{"non-hex characters", "06zz"},
		{"separators", "06 01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.hex)
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("Normalize(%q) error = %v, want ErrMalformedFrame", tt.hex, err)
			}
		})
	}
}

func TestNormalize_Empty(t *testing.T) {
	f, err := Normalize("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f) != 0 {
		t.Errorf("expected empty frame, got % X", []byte(f))
	}
}

func TestFrame_String(t *testing.T) {
	f := Frame{0x06, 0x0a, 0xff}
	if got := f.String(); got != "06 0A FF" {
		t.Errorf("String() = %q, want %q", got, "06 0A FF")
	}
	if got := f.Hex(); got != "060aff" {
		t.Errorf("Hex() = %q, want %q", got, "060aff")
	}
	if got := Frame(nil).String(); got != "" {
		t.Errorf("empty frame String() = %q, want empty", got)
	}
}

// ============================================================
// Frame Extractor Tests
// ============================================================

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "single byte unchanged",
			in:   "06",
			want: "06",
		},
		{
			name: "shorter than header",
			in:   "060102",
			want: "06 01 02",
		},
		{
			name: "single header is a no-op",
			in:   machineStatusHex,
			want: "06 01 02 03 04 05 06 07 08 09 32 00 32 05 31 30 00 00 01 01 01 01 01",
		},
		{
			name: "duplicated header collapsed",
			in:   "06a1a2a3a4a5a61122a1a2a3a4a5a6070809",
			want: "06 A1 A2 A3 A4 A5 A6 07 08 09",
		},
		{
			name: "last occurrence wins",
			in:   "06a1a2a3a4a5a611a1a2a3a4a5a622a1a2a3a4a5a633",
			want: "06 A1 A2 A3 A4 A5 A6 33",
		},
		{
			name: "header at end leaves empty tail",
			in:   "06a1a2a3a4a5a699a1a2a3a4a5a6",
			want: "06 A1 A2 A3 A4 A5 A6",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(mustNormalize(t, tt.in)).String()
			if got != tt.want {
				t.Errorf("Extract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtract_Idempotent(t *testing.T) {
	inputs := []string{
		"06",
		"060102",
		machineStatusHex,
		"06a1a2a3a4a5a61122a1a2a3a4a5a6070809",
		"06a1a2a3a4a5a611a1a2a3a4a5a622a1a2a3a4a5a633",
	}
	for _, in := range inputs {
		once := Extract(mustNormalize(t, in))
		twice := Extract(once)
		if !bytes.Equal(once, twice) {
			t.Errorf("Extract not idempotent for %s: % X != % X", in, []byte(once), []byte(twice))
		}
	}
}

// ============================================================
// Field Decoder Tests
// ============================================================

func TestStatusIndicator(t *testing.T) {
	tests := []struct {
		b    byte
		want bool
	}{
		{0x00, false},
		{0x01, true},
		{0x02, false},
		{0x10, false},
		{0xFF, false},
	}
	for _, tt := range tests {
		if got := statusIndicator(tt.b); got != tt.want {
			t.Errorf("statusIndicator(0x%02X) = %v, want %v", tt.b, got, tt.want)
		}
	}
}

func TestDecodeTemperature(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"positive marker", []byte{0x32, 0x02, 0x05}, "+2.5 Celsius"},
		{"zero sign byte", []byte{0x00, 0x02, 0x05}, "-2.5 Celsius"},
		{"other sign byte", []byte{0x31, 0x0A, 0x00}, "-10.0 Celsius"},
		{"wide values", []byte{0x32, 0xFF, 0x0C}, "+255.12 Celsius"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeTemperature(tt.data).String(); got != tt.want {
				t.Errorf("temperature = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDispenseBay(t *testing.T) {
	tests := []struct {
		b       byte
		want    int
		wantErr bool
	}{
		{0x00, 1, false},
		{0x02, 3, false},
		{0x04, 5, false},
		{0x05, 0, true},
		{0x0A, 0, true},
		{0x10, 0, true},
	}
	for _, tt := range tests {
		got, err := dispenseBay(tt.b)
		if tt.wantErr {
			if !errors.Is(err, ErrIndexOutOfRange) {
				t.Errorf("dispenseBay(0x%02X) error = %v, want ErrIndexOutOfRange", tt.b, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("dispenseBay(0x%02X) unexpected error: %v", tt.b, err)
		}
		if got != tt.want {
			t.Errorf("dispenseBay(0x%02X) = %d, want %d", tt.b, got, tt.want)
		}
	}
}

func TestDispenseMode(t *testing.T) {
	mode, err := dispenseMode(0x05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mode != ModeSpiralMotorWithSensor || mode.String() != "Spiral Motor with Sensor" {
		t.Errorf("mode = %v, want Spiral Motor with Sensor", mode)
	}

	if _, err := dispenseMode(0x06); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("mode 0x06 error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestLeadingDecimal(t *testing.T) {
	tests := []struct {
		b    byte
		want float32
	}{
		{0x08, 8},
		{0x12, 12},
		{0x1A, 1},
		{0xAB, 0},
		{0x99, 99},
	}
	for _, tt := range tests {
		if got := leadingDecimal(tt.b); got != tt.want {
			t.Errorf("leadingDecimal(0x%02X) = %v, want %v", tt.b, got, tt.want)
		}
	}
}

// ============================================================
// Response Decoder Tests
// ============================================================

func TestDecode_MachineStatus(t *testing.T) {
	d := VendingProfile().Decoder()
	rec, err := d.Decode(CmdGetMachineStatus, Extract(mustNormalize(t, machineStatusHex)))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}

	status, ok := rec.(MachineStatus)
	if !ok {
		t.Fatalf("expected MachineStatus, got %T", rec)
	}

	want := MachineStatus{
		Temperature: Temperature{Positive: false, Whole: 8, Fraction: 9},
		PowerRelay:  false,
		FanRelay:    false,
		BayStock:    [5]uint8{50, 5, 49, 48, 0},
		LampStatus:  [6]bool{false, true, true, true, true, true},
	}
	if status != want {
		t.Errorf("MachineStatus = %+v, want %+v", status, want)
	}
	if status.Temperature.String() != "-8.9 Celsius" {
		t.Errorf("temperature = %q", status.Temperature)
	}
}

func TestDecode_MachineStatusDeterministic(t *testing.T) {
	d := VendingProfile().Decoder()
	frame := Extract(mustNormalize(t, machineStatusHex))
	a, errA := d.Decode(CmdGetMachineStatus, frame)
	b, errB := d.Decode(CmdGetMachineStatus, frame)
	if errA != nil || errB != nil {
		t.Fatalf("decode errors: %v, %v", errA, errB)
	}
	if a != b {
		t.Errorf("decode not deterministic: %+v != %+v", a, b)
	}
}

func TestDecode_Dispense(t *testing.T) {
	d := VendingProfile().Decoder()
	rec, err := d.Decode(CmdDispenseBay3, mustNormalize(t, "06a1a2a3a4a5a602020108720a"))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}

	want := DispenseResult{
		Bay:            3,
		Mode:           ModeSpiralMotor,
		ItemDropped:    true,
		UseTimeMs:      2162,
		RemainingStock: 10,
	}
	if rec != want {
		t.Errorf("DispenseResult = %+v, want %+v", rec, want)
	}
}

func TestDecode_DispenseIndexOutOfRange(t *testing.T) {
	d := VendingProfile().Decoder()
	tests := []struct {
		name string
		hex  string
	}{
		{"bay index 5", "06a1a2a3a4a5a605020108720a"},
		{"mode index 6", "06a1a2a3a4a5a602060108720a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Decode(CmdDispenseBay1, mustNormalize(t, tt.hex))
			if !errors.Is(err, ErrIndexOutOfRange) {
				t.Errorf("error = %v, want ErrIndexOutOfRange", err)
			}
		})
	}
}

func TestDecode_Firmware(t *testing.T) {
	d := VendingProfile().Decoder()
	rec, err := d.Decode(CmdGetFirmwareVersion, mustNormalize(t, "06a1a2a3a4a5a60812"))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	want := FirmwareVersion{HardwareVersion: 8, SoftwareVersion: 12}
	if rec != want {
		t.Errorf("FirmwareVersion = %+v, want %+v", rec, want)
	}
}

func TestDecode_ShortFrame(t *testing.T) {
	d := VendingProfile().Decoder()
	tests := []struct {
		cmd Command
		hex string
	}{
		{CmdGetMachineStatus, "06010203040506070809"},
		{CmdDispenseBay2, "06a1a2a3a4a5a60202"},
		{CmdGetFirmwareVersion, "06a1a2a3a4a5a6"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.String(), func(t *testing.T) {
			_, err := d.Decode(tt.cmd, mustNormalize(t, tt.hex))
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("error = %v, want ErrMalformedFrame", err)
			}
		})
	}
}

func TestDecode_RestoresAck(t *testing.T) {
	d := VendingProfile().Decoder()
	rec, err := d.Decode(CmdGetFirmwareVersion, Frame{0xa1, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6, 0x03, 0x04})
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if rec != (FirmwareVersion{HardwareVersion: 3, SoftwareVersion: 4}) {
		t.Errorf("FirmwareVersion = %+v", rec)
	}
}

func TestDecode_Unrecognized(t *testing.T) {
	d := VendingProfile().Decoder()
	rec, err := d.Decode(CmdPaymentEnable, Frame{0x06})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := rec.(Unrecognized); !ok {
		t.Errorf("expected Unrecognized, got %T", rec)
	}
}

// ============================================================
// Command Tests
// ============================================================

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		want Command
	}{
		{"GET_MACHINE_STATUS", CmdGetMachineStatus},
		{"get_machine_status", CmdGetMachineStatus},
		{"PRODUCT_DISPEN_PRODUCT_ID_04_DISPEN_MODE_2", CmdDispenseBay5},
		{" FIRMWARE_VERSION_GET ", CmdGetFirmwareVersion},
		{"PAYMENT_DISABLE", CmdPaymentDisable},
	}
	for _, tt := range tests {
		got, err := ParseCommand(tt.name)
		if err != nil {
			t.Errorf("ParseCommand(%q) error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCommand(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}

	for _, bad := range []string{"", "UNKNOWN", "DISPENSE"} {
		if _, err := ParseCommand(bad); !errors.Is(err, ErrUnknownCommand) {
			t.Errorf("ParseCommand(%q) error = %v, want ErrUnknownCommand", bad, err)
		}
	}
}

func TestDispenseCommand(t *testing.T) {
	for bay := 1; bay <= 5; bay++ {
		cmd, err := DispenseCommand(bay)
		if err != nil {
			t.Fatalf("DispenseCommand(%d) error: %v", bay, err)
		}
		if cmd.Family() != FamilyDispense || cmd.Bay() != bay {
			t.Errorf("DispenseCommand(%d) = %v (bay %d)", bay, cmd, cmd.Bay())
		}
	}
	for _, bay := range []int{0, 6, -1} {
		if _, err := DispenseCommand(bay); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("DispenseCommand(%d) error = %v, want ErrIndexOutOfRange", bay, err)
		}
	}
}

func TestCommandFamily(t *testing.T) {
	tests := []struct {
		cmd  Command
		want Family
	}{
		{CmdGetMachineStatus, FamilyMachineStatus},
		{CmdDispenseBay1, FamilyDispense},
		{CmdDispenseBay5, FamilyDispense},
		{CmdGetFirmwareVersion, FamilyFirmware},
		{CmdPaymentFirmwareVersion, FamilyFirmware},
		{CmdPaymentGetStatus, FamilyNone},
		{CmdUnknown, FamilyNone},
	}
	for _, tt := range tests {
		if got := tt.cmd.Family(); got != tt.want {
			t.Errorf("%v.Family() = %v, want %v", tt.cmd, got, tt.want)
		}
	}
}

// ============================================================
// Profile Tests
// ============================================================

func TestProfile_PayloadBytes(t *testing.T) {
	p := VendingProfile()
	b, err := p.PayloadBytes(CmdGetMachineStatus)
	if err != nil {
		t.Fatalf("PayloadBytes error: %v", err)
	}
	want := []byte{0x02, 0x01, 0x06, 0x10, 0x00, 0x00, 0x17, 0x03}
	if !bytes.Equal(b, want) {
		t.Errorf("PayloadBytes = % X, want % X", b, want)
	}

	if _, err := p.PayloadBytes(CmdPaymentEnable); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("payment command on vending profile error = %v, want ErrUnknownCommand", err)
	}
}

func TestProfile_Commands(t *testing.T) {
	cmds := VendingProfile().Commands()
	if len(cmds) != 7 {
		t.Fatalf("vending profile has %d commands, want 7", len(cmds))
	}
	if cmds[0] != CmdGetMachineStatus || cmds[len(cmds)-1] != CmdGetFirmwareVersion {
		t.Errorf("commands not in order: %v", cmds)
	}

	if n := len(PaymentProfile().Commands()); n != 4 {
		t.Errorf("payment profile has %d commands, want 4", n)
	}
}

func TestProfile_WithPayloads(t *testing.T) {
	base := VendingProfile()
	p, err := base.WithPayloads(map[string]string{"GET_MACHINE_STATUS": "AA BB"})
	if err != nil {
		t.Fatalf("WithPayloads error: %v", err)
	}
	b, _ := p.PayloadBytes(CmdGetMachineStatus)
	if !bytes.Equal(b, []byte{0xAA, 0xBB}) {
		t.Errorf("override payload = % X", b)
	}

	// Base profile is untouched
	b, _ = base.PayloadBytes(CmdGetMachineStatus)
	if b[0] != 0x02 {
		t.Errorf("base profile modified: % X", b)
	}

	if _, err := base.WithPayloads(map[string]string{"NOPE": "AA"}); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("unknown name error = %v, want ErrUnknownCommand", err)
	}
	if _, err := base.WithPayloads(map[string]string{"GET_MACHINE_STATUS": "XYZ"}); err == nil {
		t.Error("expected error for invalid hex payload")
	}
}

func TestProfileByName(t *testing.T) {
	for _, name := range []string{"vending", "PAYMENT", ""} {
		if _, err := ProfileByName(name); err != nil {
			t.Errorf("ProfileByName(%q) error: %v", name, err)
		}
	}
	if _, err := ProfileByName("coffee"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

// ============================================================
// Dispatch Tests
// ============================================================

func TestDispatch_MachineStatusEndToEnd(t *testing.T) {
	raw := mustNormalize(t, machineStatusHex)
	res := VendingProfile().Dispatch(CmdGetMachineStatus, raw)
	if !res.Status {
		t.Fatalf("Dispatch failed: %s", res.Error)
	}
	if res.Log != LogDataReceived {
		t.Errorf("Log = %q", res.Log)
	}
	if res.Hex != machineStatusHex {
		t.Errorf("Hex = %q, want %q", res.Hex, machineStatusHex)
	}
	if _, ok := res.Metadata.(MachineStatus); !ok {
		t.Errorf("Metadata = %T, want MachineStatus", res.Metadata)
	}
}

func TestDispatch_EmptyReply(t *testing.T) {
	for _, p := range []*Profile{VendingProfile(), PaymentProfile()} {
		for _, cmd := range p.Commands() {
			res := p.Dispatch(cmd, nil)
			if res.Status {
				t.Errorf("%s/%s: expected failure", p.Name(), cmd)
			}
			if res.Error != "No data received" {
				t.Errorf("%s/%s: Error = %q", p.Name(), cmd, res.Error)
			}
			if !errors.Is(res.Err, ErrTransportEmpty) {
				t.Errorf("%s/%s: Err = %v", p.Name(), cmd, res.Err)
			}
		}
	}
}

func TestDispatch_DecodeErrorIsResult(t *testing.T) {
	res := VendingProfile().DispatchHex(CmdDispenseBay1, "06a1a2a3a4a5a605020108720a")
	if res.Status {
		t.Fatal("expected failure")
	}
	if !errors.Is(res.Err, ErrIndexOutOfRange) {
		t.Errorf("Err = %v, want ErrIndexOutOfRange", res.Err)
	}
	if !strings.Contains(res.Error, "bay") {
		t.Errorf("Error %q should name the field", res.Error)
	}
}

func TestDispatch_MalformedHex(t *testing.T) {
	res := VendingProfile().DispatchHex(CmdGetMachineStatus, "06a")
	if res.Status || !errors.Is(res.Err, ErrMalformedFrame) {
		t.Errorf("result = %+v, want malformed frame failure", res)
	}
}

func TestDispatch_UnrecognizedIsSuccess(t *testing.T) {
	res := PaymentProfile().DispatchHex(CmdPaymentEnable, "06")
	if !res.Status {
		t.Fatalf("expected success, got %s", res.Error)
	}
	if _, ok := res.Metadata.(Unrecognized); !ok {
		t.Errorf("Metadata = %T, want Unrecognized", res.Metadata)
	}

	// Payment profile has no dispense layout
	res = PaymentProfile().DispatchHex(CmdDispenseBay1, "06a1a2a3a4a5a602020108720a")
	if _, ok := res.Metadata.(Unrecognized); !res.Status || !ok {
		t.Errorf("dispense on payment profile = %+v, want Unrecognized", res)
	}
}

func TestExchangeResult_JSON(t *testing.T) {
	res := VendingProfile().DispatchHex(CmdGetMachineStatus, machineStatusHex)
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded struct {
		Status bool `json:"status"`
		Data   struct {
			Log      string                 `json:"log"`
			Hex      string                 `json:"hex"`
			Response string                 `json:"response"`
			Metadata map[string]interface{} `json:"metadata"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if !decoded.Status || decoded.Data.Hex != machineStatusHex {
		t.Errorf("unexpected envelope: %s", data)
	}
	if decoded.Data.Metadata["temperature"] != "-8.9 Celsius" {
		t.Errorf("temperature = %v", decoded.Data.Metadata["temperature"])
	}
	if !strings.HasPrefix(decoded.Data.Response, "06 01 02") {
		t.Errorf("response = %q", decoded.Data.Response)
	}

	fail := VendingProfile().Dispatch(CmdGetMachineStatus, nil)
	data, err = json.Marshal(fail)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(data) != `{"status":false,"error":"No data received"}` {
		t.Errorf("failure JSON = %s", data)
	}
}

func TestDispenseMode_JSON(t *testing.T) {
	data, err := json.Marshal(DispenseResult{Bay: 1, Mode: ModeBelt})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if !strings.Contains(string(data), `"mode":"Belt"`) {
		t.Errorf("JSON = %s", data)
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatResult(t *testing.T) {
	out := FormatResult(VendingProfile().DispatchHex(CmdGetMachineStatus, machineStatusHex))
	for _, want := range []string{"GET_MACHINE_STATUS OK", "Temperature: -8.9 Celsius", "Bay Stock: 1:50 2:5", "Lamps: 1:OFF 2:ON"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out = FormatResult(VendingProfile().Dispatch(CmdGetFirmwareVersion, nil))
	if !strings.Contains(out, "FAILED: No data received") {
		t.Errorf("failure output = %q", out)
	}
}

func TestFormatCatalog(t *testing.T) {
	out := FormatCatalog(PaymentProfile())
	if !strings.Contains(out, "PAYMENT_FIRMWARE_VERSION_GET") || !strings.Contains(out, "firmware") {
		t.Errorf("catalog output:\n%s", out)
	}
}

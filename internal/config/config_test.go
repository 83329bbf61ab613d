// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.bug.st/serial"
)

// ============================================================
// .env Parsing Tests
// ============================================================

func TestParseDotEnv(t *testing.T) {
	input := `
# serial settings
FMT_VENDING_PORT=/dev/ttyS3
FMT_VENDING_BAUDRATE = 19200
FMT_VENDING_PORT=/dev/ttyS9
export FMT_VENDING_PARITY="even"
FMT_VENDING_LOG_DIR='/var/log/fmt'
not a pair
FMT_VENDING_EMPTY=
`
	got, err := ParseDotEnv(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseDotEnv error: %v", err)
	}

	tests := []struct {
		key  string
		want string
	}{
		{"FMT_VENDING_PORT", "/dev/ttyS3"},
		{"FMT_VENDING_BAUDRATE", "19200"},
		{"FMT_VENDING_PARITY", "even"},
		{"FMT_VENDING_LOG_DIR", "/var/log/fmt"},
		{"FMT_VENDING_EMPTY", ""},
	}
	for _, tt := range tests {
		if v, ok := got[tt.key]; !ok || v != tt.want {
			t.Errorf("%s = %q (present %v), want %q", tt.key, v, ok, tt.want)
		}
	}
	if len(got) != len(tests) {
		t.Errorf("parsed %d keys, want %d: %v", len(got), len(tests), got)
	}
}

func TestLoadDotEnv_Missing(t *testing.T) {
	src, err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env"))
	if err != nil {
		t.Fatalf("LoadDotEnv error: %v", err)
	}
	if len(src) != 0 {
		t.Errorf("expected empty source, got %v", src)
	}
}

// ============================================================
// Resolver Tests
// ============================================================

func TestResolver_Priority(t *testing.T) {
	t.Setenv("FMT_VENDING_PORT", "/dev/env")
	t.Setenv("FMT_VENDING_BAUDRATE", "")

	dotenv := MapSource{"FMT_VENDING_PORT": "/dev/dotenv", "FMT_VENDING_BAUDRATE": "19200"}
	file := MapSource{"FMT_VENDING_BAUDRATE": "38400", "FMT_VENDING_PARITY": "odd"}
	r := NewResolver("FMT_VENDING_", EnvSource{}, dotenv, file)

	if got := r.String(KeyPort); got != "/dev/env" {
		t.Errorf("port = %q, want environment value", got)
	}
	if got, err := r.Int(KeyBaudRate); err != nil || got != 19200 {
		t.Errorf("baud = %d, %v; want .env value 19200", got, err)
	}
	if got := r.String(KeyParity); got != "odd" {
		t.Errorf("parity = %q, want file value", got)
	}
	if got := r.String(KeyStopBits); got != "1" {
		t.Errorf("stop bits = %q, want default", got)
	}
	if _, ok := r.Lookup("UNKNOWN"); ok {
		t.Error("unknown key should not resolve")
	}
}

func TestResolver_PrefixIsolation(t *testing.T) {
	src := MapSource{"FMT_VENDING_PORT": "/dev/vend"}
	r := NewResolver("FMT_PAYMENT_", src)
	if got := r.String(KeyPort); got != Defaults[KeyPort] {
		t.Errorf("payment port = %q, want default", got)
	}
}

func TestResolver_Duration(t *testing.T) {
	tests := []struct {
		value   string
		want    time.Duration
		wantErr bool
	}{
		{"5", 5 * time.Second, false},
		{"250ms", 250 * time.Millisecond, false},
		{"1m", time.Minute, false},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		r := NewResolver("X_", MapSource{"X_REPLY_DELAY": tt.value})
		got, err := r.Duration(KeyReplyDelay)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: error = %v, wantErr %v", tt.value, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestResolver_IntInvalid(t *testing.T) {
	r := NewResolver("X_", MapSource{"X_BAUDRATE": "fast"})
	if _, err := r.Int(KeyBaudRate); err == nil {
		t.Error("expected error for non-numeric baud rate")
	}
}

// ============================================================
// YAML File Tests
// ============================================================

const sampleYAML = `
profile: payment
commands:
  GET_MACHINE_STATUS: "02 01 06 10 00 00 17 03"
  FIRMWARE_VERSION_GET: "02 01 06 30 00 00 37 03"
devices:
  vending:
    port: /dev/ttyUSB1
    baudrate: 19200
    reply_delay: 2s
    commands:
      FIRMWARE_VERSION_GET: "02 01 06 31 00 00 38 03"
  payment:
    port: /dev/ttyUSB2
    parity: even
    character_length: 7
    stop_bits: "2"
`

func TestParseFile(t *testing.T) {
	f, err := ParseFile([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseFile error: %v", err)
	}
	if f.Profile != "payment" {
		t.Errorf("profile = %q", f.Profile)
	}

	vend := f.Source("vending", "FMT_VENDING_")
	if vend["FMT_VENDING_PORT"] != "/dev/ttyUSB1" || vend["FMT_VENDING_BAUDRATE"] != "19200" {
		t.Errorf("vending source = %v", vend)
	}
	if _, ok := vend["FMT_VENDING_PARITY"]; ok {
		t.Error("unset YAML field should not appear in source")
	}

	pay := f.Source("payment", "FMT_PAYMENT_")
	if pay["FMT_PAYMENT_CHAR_LENGTH"] != "7" || pay["FMT_PAYMENT_STOP_BITS"] != "2" {
		t.Errorf("payment source = %v", pay)
	}

	if got := f.Source("missing", "X_"); len(got) != 0 {
		t.Errorf("missing section source = %v", got)
	}
}

func TestFile_CommandOverrides(t *testing.T) {
	f, err := ParseFile([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseFile error: %v", err)
	}

	vend := f.CommandOverrides("vending")
	if vend["FIRMWARE_VERSION_GET"] != "02 01 06 31 00 00 38 03" {
		t.Errorf("device override lost: %v", vend)
	}
	if vend["GET_MACHINE_STATUS"] != "02 01 06 10 00 00 17 03" {
		t.Errorf("global override lost: %v", vend)
	}

	pay := f.CommandOverrides("payment")
	if pay["FIRMWARE_VERSION_GET"] != "02 01 06 30 00 00 37 03" {
		t.Errorf("payment should see the global entry: %v", pay)
	}
}

func TestLoadFile(t *testing.T) {
	if f, err := LoadFile(""); err != nil || f == nil {
		t.Fatalf("LoadFile(\"\") = %v, %v", f, err)
	}

	path := filepath.Join(t.TempDir(), "fmtvend.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if len(f.Devices) != 2 {
		t.Errorf("devices = %d, want 2", len(f.Devices))
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
	if _, err := ParseFile([]byte("devices: [")); err == nil {
		t.Error("expected error for broken YAML")
	}
}

// ============================================================
// Serial Settings Tests
// ============================================================

func TestResolver_SerialDefaults(t *testing.T) {
	s, err := NewResolver("FMT_VENDING_").Serial()
	if err != nil {
		t.Fatalf("Serial error: %v", err)
	}
	if s.Port != "/dev/ttyUSB0" || s.BaudRate != 9600 || s.DataBits != 8 {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if s.Parity != serial.NoParity || s.StopBits != serial.OneStopBit {
		t.Errorf("unexpected line defaults: %+v", s)
	}
	if s.ReplyDelay != 5*time.Second {
		t.Errorf("reply delay = %v, want 5s", s.ReplyDelay)
	}
	if got := s.Describe(); got != "/dev/ttyUSB0 @ 9600 baud 8N1" {
		t.Errorf("Describe() = %q", got)
	}

	mode := s.Mode()
	if mode.BaudRate != 9600 || mode.DataBits != 8 {
		t.Errorf("Mode() = %+v", mode)
	}
}

func TestResolver_SerialOverrides(t *testing.T) {
	r := NewResolver("FMT_PAYMENT_", MapSource{
		"FMT_PAYMENT_PORT":        "/dev/ttyS1",
		"FMT_PAYMENT_BAUDRATE":    "19200",
		"FMT_PAYMENT_PARITY":      "Even",
		"FMT_PAYMENT_CHAR_LENGTH": "7",
		"FMT_PAYMENT_STOP_BITS":   "1.5",
		"FMT_PAYMENT_REPLY_DELAY": "500ms",
	})
	s, err := r.Serial()
	if err != nil {
		t.Fatalf("Serial error: %v", err)
	}
	if s.Parity != serial.EvenParity || s.StopBits != serial.OnePointFiveStopBits || s.DataBits != 7 {
		t.Errorf("unexpected settings: %+v", s)
	}
	if got := s.Describe(); got != "/dev/ttyS1 @ 19200 baud 7E1.5" {
		t.Errorf("Describe() = %q", got)
	}
}

func TestResolver_SerialInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero baud", "X_BAUDRATE", "0"},
		{"text baud", "X_BAUDRATE", "fast"},
		{"bad parity", "X_PARITY", "sometimes"},
		{"data bits low", "X_CHAR_LENGTH", "4"},
		{"data bits high", "X_CHAR_LENGTH", "9"},
		{"bad stop bits", "X_STOP_BITS", "3"},
		{"rts_cts", "X_FLOW_CONTROL", "rts_cts"},
		{"xon_xoff", "X_FLOW_CONTROL", "xon_xoff"},
		{"unknown flow", "X_FLOW_CONTROL", "magic"},
		{"negative delay", "X_REPLY_DELAY", "-1s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver("X_", MapSource{tt.key: tt.value})
			if _, err := r.Serial(); err == nil {
				t.Errorf("%s=%q: expected error", tt.key, tt.value)
			}
		})
	}
}

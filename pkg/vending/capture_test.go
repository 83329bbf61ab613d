// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vending

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
)

func TestCapture_RoundTrip(t *testing.T) {
	received, _ := hex.DecodeString(machineStatusHex)
	now := time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)

	records := []CaptureRecord{
		{
			ID:       "0b6f0f5e-4c55-4c39-9f2c-8c1f1d2a7b11",
			Time:     now,
			Profile:  ProfileVending,
			Command:  CmdGetMachineStatus.String(),
			Sent:     []byte{0x02, 0x01, 0x06, 0x10, 0x00, 0x00, 0x17, 0x03},
			Received: received,
		},
		{
			ID:      "5d1c6a8e-2f6b-4a5e-8a53-0f1d9f7c2e44",
			Time:    now.Add(time.Second),
			Profile: ProfileVending,
			Command: CmdDispenseBay2.String(),
			Sent:    []byte{0x02},
		},
	}

	var buf bytes.Buffer
	w := NewCaptureWriter(&buf)
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}

	r := NewCaptureReader(&buf)
	for i, want := range records {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("record %d: Next error: %v", i, err)
		}
		if got.ID != want.ID || got.Command != want.Command || got.Profile != want.Profile {
			t.Errorf("record %d: got %+v, want %+v", i, got, want)
		}
		if !got.Time.Equal(want.Time) {
			t.Errorf("record %d: time %v, want %v", i, got.Time, want.Time)
		}
		if !bytes.Equal(got.Sent, want.Sent) || !bytes.Equal(got.Received, want.Received) {
			t.Errorf("record %d: payload mismatch", i)
		}
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after last record, got %v", err)
	}
}

func TestCapture_CorruptStream(t *testing.T) {
	r := NewCaptureReader(bytes.NewReader([]byte{0xFF, 0x00, 0x13}))
	if _, err := r.Next(); err == nil || errors.Is(err, io.EOF) {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestProfile_Replay(t *testing.T) {
	received, _ := hex.DecodeString(machineStatusHex)
	p := VendingProfile()

	res, err := p.Replay(CaptureRecord{Command: "GET_MACHINE_STATUS", Received: received})
	if err != nil {
		t.Fatalf("Replay error: %v", err)
	}
	if !res.Status {
		t.Fatalf("Replay result failed: %s", res.Error)
	}

	res, err = p.Replay(CaptureRecord{Command: "GET_MACHINE_STATUS"})
	if err != nil {
		t.Fatalf("Replay error: %v", err)
	}
	if res.Status || res.Error != LogNoData {
		t.Errorf("empty capture replay = %+v", res)
	}

	if _, err := p.Replay(CaptureRecord{Command: "BOGUS"}); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("unknown command replay error = %v", err)
	}
}

func TestExchangeResult_CBOR(t *testing.T) {
	res := VendingProfile().DispatchHex(CmdGetFirmwareVersion, "06a1a2a3a4a5a60812")
	data, err := cbor.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded map[string]interface{}
	if err := cbor.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if decoded["status"] != true {
		t.Errorf("status = %v", decoded["status"])
	}
	body, ok := decoded["data"].(map[interface{}]interface{})
	if !ok {
		t.Fatalf("data = %T", decoded["data"])
	}
	if body["hex"] != "06a1a2a3a4a5a60812" {
		t.Errorf("hex = %v", body["hex"])
	}
}

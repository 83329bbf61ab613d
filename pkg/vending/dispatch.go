// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vending

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ExchangeResult is the outcome of one command/response exchange
type ExchangeResult struct {
	Status   bool
	Command  Command
	Log      string
	Hex      string // raw reply, contiguous lowercase hex
	Response Frame  // canonical frame
	Metadata Telemetry

	// Set on failure
	Error string
	Err   error
}

// resultEnvelope is the serialized form of an ExchangeResult
type resultEnvelope struct {
	Status bool        `json:"status"`
	Data   *resultData `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

type resultData struct {
	Log      string    `json:"log"`
	Hex      string    `json:"hex"`
	Response string    `json:"response"`
	Metadata Telemetry `json:"metadata"`
}

func (r ExchangeResult) envelope() resultEnvelope {
	if !r.Status {
		return resultEnvelope{Status: false, Error: r.Error}
	}
	return resultEnvelope{
		Status: true,
		Data: &resultData{
			Log:      r.Log,
			Hex:      r.Hex,
			Response: r.Response.String(),
			Metadata: r.Metadata,
		},
	}
}

// MarshalJSON renders {"status":true,"data":{...}} or {"status":false,"error":"..."}
func (r ExchangeResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.envelope())
}

// MarshalCBOR renders the same shape as MarshalJSON
func (r ExchangeResult) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(r.envelope())
}

// Failure builds a failed result for cmd
func Failure(cmd Command, err error) ExchangeResult {
	msg := err.Error()
	if errors.Is(err, ErrTransportEmpty) {
		msg = LogNoData
	}
	return ExchangeResult{Status: false, Command: cmd, Error: msg, Err: err}
}

// Dispatch decodes the raw bytes a peripheral returned for cmd.
// Every outcome, including an empty reply, is reported as a result.
func (p *Profile) Dispatch(cmd Command, raw []byte) ExchangeResult {
	if len(raw) == 0 {
		return Failure(cmd, ErrTransportEmpty)
	}
	return p.DispatchHex(cmd, hex.EncodeToString(raw))
}

// DispatchHex decodes a reply given as a contiguous hex string
func (p *Profile) DispatchHex(cmd Command, hexReply string) ExchangeResult {
	if hexReply == "" {
		return Failure(cmd, ErrTransportEmpty)
	}

	frame, err := Normalize(hexReply)
	if err != nil {
		res := Failure(cmd, err)
		res.Hex = hexReply
		return res
	}

	body := Extract(frame)

	metadata, err := p.decoder.Decode(cmd, body)
	if err != nil {
		res := Failure(cmd, fmt.Errorf("decode %s: %w", cmd, err))
		res.Hex = hexReply
		res.Response = body
		return res
	}

	return ExchangeResult{
		Status:   true,
		Command:  cmd,
		Log:      LogDataReceived,
		Hex:      hexReply,
		Response: body,
		Metadata: metadata,
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vending

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// CaptureRecord is one exchange as seen on the wire.
// Capture files are a sequence of CBOR-encoded records.
type CaptureRecord struct {
	ID       string    `cbor:"0,keyasint"`
	Time     time.Time `cbor:"1,keyasint"`
	Profile  string    `cbor:"2,keyasint"`
	Command  string    `cbor:"3,keyasint"`
	Sent     []byte    `cbor:"4,keyasint"`
	Received []byte    `cbor:"5,keyasint"`
}

var captureEncMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("vending: capture encoder: %v", err))
	}
	return em
}()

// CaptureWriter appends capture records to a stream
type CaptureWriter struct {
	enc *cbor.Encoder
}

// NewCaptureWriter creates a capture writer on w
func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{enc: captureEncMode.NewEncoder(w)}
}

// Write appends one record
func (c *CaptureWriter) Write(rec CaptureRecord) error {
	if err := c.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode capture record: %w", err)
	}
	return nil
}

// CaptureReader reads capture records from a stream
type CaptureReader struct {
	dec *cbor.Decoder
}

// NewCaptureReader creates a capture reader on r
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the stream
func (c *CaptureReader) Next() (CaptureRecord, error) {
	var rec CaptureRecord
	if err := c.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return rec, io.EOF
		}
		return rec, fmt.Errorf("failed to decode capture record: %w", err)
	}
	return rec, nil
}

// Replay re-decodes a captured reply with this profile
func (p *Profile) Replay(rec CaptureRecord) (ExchangeResult, error) {
	cmd, err := ParseCommand(rec.Command)
	if err != nil {
		return ExchangeResult{}, err
	}
	return p.Dispatch(cmd, rec.Received), nil
}

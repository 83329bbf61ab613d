// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vending

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// Frame is one protocol message as raw bytes
type Frame []byte

// String renders the frame as space separated uppercase hex pairs
func (f Frame) String() string {
	if len(f) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(f) * 3)
	for i, v := range f {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}

// Hex renders the frame as contiguous lowercase hex, the form read off the wire
func (f Frame) Hex() string {
	return hex.EncodeToString(f)
}

// MarshalText renders the frame in its display form
func (f Frame) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Normalize decodes a contiguous hex string into a frame that starts with
// the ACK byte. Peripherals sometimes omit the leading ACK; a synthetic one
// is inserted so field offsets stay fixed.
func Normalize(s string) (Frame, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: odd hex length %d", ErrMalformedFrame, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return withAck(raw), nil
}

// withAck prepends ACK unless the frame already starts with it
func withAck(raw []byte) Frame {
	if len(raw) == 0 || raw[0] == AckByte {
		return Frame(raw)
	}
	f := make(Frame, 0, len(raw)+1)
	f = append(f, AckByte)
	return append(f, raw...)
}

// Extract collapses a duplicated header into the canonical frame.
//
// The bytes after the ACK (up to HeaderSize of them) form a separator key.
// The frame is split on every occurrence of the key and rebuilt as
// ACK + key + last segment, so a header echoed ahead of the real one is
// dropped. When the key only occurs in its own position the frame is
// returned as is.
func Extract(f Frame) Frame {
	if len(f) <= 1 {
		return f
	}

	end := 1 + HeaderSize
	if end > len(f) {
		end = len(f)
	}
	key := f[1:end]

	// The ACK is left out of the search so a key made of ACK bytes cannot
	// match at offset 0 and shift the header.
	segments := bytes.Split(f[1:], key)
	tail := segments[len(segments)-1]

	out := make(Frame, 0, 1+len(key)+len(tail))
	out = append(out, f[0])
	out = append(out, key...)
	return append(out, tail...)
}

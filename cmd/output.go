// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/fmtvend/pkg/vending"
)

// errExchangeFailed is returned after a failed result has been printed
var errExchangeFailed = fmt.Errorf("exchange failed")

// writeResult prints res in the selected output format and reports failures
// as an error so the process exits non-zero
func writeResult(w io.Writer, res vending.ExchangeResult) error {
	switch outputFormat {
	case "json":
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %v", err)
		}
		fmt.Fprintln(w, string(data))
	case "cbor":
		data, err := cbor.Marshal(res)
		if err != nil {
			return fmt.Errorf("failed to encode result: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	case "text", "":
		fmt.Fprint(w, vending.FormatResult(res))
	default:
		return fmt.Errorf("unsupported output format: %s (use text, json, or cbor)", outputFormat)
	}

	if !res.Status {
		return fmt.Errorf("%w: %s", errExchangeFailed, res.Error)
	}
	return nil
}

// validateFormat rejects an unknown --format before any device is touched
func validateFormat() error {
	switch outputFormat {
	case "text", "json", "cbor", "":
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (use text, json, or cbor)", outputFormat)
	}
}

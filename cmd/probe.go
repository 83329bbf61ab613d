// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/fmtvend/pkg/vending"
)

var probeTimeout int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connection by waiting for a decodable reply",
	Long: `Repeatedly send the profile's probe command until a reply decodes or the
timeout is reached. The vending profile probes with GET_MACHINE_STATUS, the
payment profile with PAYMENT_FIRMWARE_VERSION_GET.

Exit codes:
  0 - Decodable reply received before timeout
  1 - Timeout reached without a decodable reply
  2 - Connection error

Useful for checking wiring and line settings before running other commands.`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 30, "Timeout in seconds to wait for a reply")
}

// probeCommand picks the first command of the profile whose reply is decoded
func probeCommand(p *vending.Profile) (vending.Command, bool) {
	for _, cmd := range []vending.Command{vending.CmdGetMachineStatus, vending.CmdPaymentFirmwareVersion, vending.CmdGetFirmwareVersion} {
		if _, err := p.Payload(cmd); err == nil && p.Decoder().Supports(cmd.Family()) {
			return cmd, true
		}
	}
	return vending.CmdUnknown, false
}

func runProbe(cmd *cobra.Command, args []string) error {
	ds, err := openSession(cmd, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer ds.Close()

	probe, ok := probeCommand(ds.Profile)
	if !ok {
		return fmt.Errorf("%s profile has no command with a decoded reply", ds.Profile.Name())
	}

	fmt.Printf("fmtvend - Probe\n")
	fmt.Printf("Connection: %s\n", ds.connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Sending %s...\n\n", probe)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(probeTimeout)*time.Second)
	defer cancel()

	for attempt := 1; ; attempt++ {
		res := ds.Exchange(ctx, probe)
		if res.Status {
			fmt.Printf("SUCCESS: Decoded reply on attempt %d\n", attempt)
			fmt.Printf("  Frame: %s\n", res.Response)
			fmt.Print(vending.FormatTelemetry(res.Metadata))
			return nil
		}

		if ctx.Err() != nil {
			ds.Close()
			fmt.Fprintf(os.Stderr, "TIMEOUT: No decodable reply within %d seconds\n", probeTimeout)
			os.Exit(1)
		}
		fmt.Printf("Attempt %d: %s\n", attempt, res.Error)
	}
}

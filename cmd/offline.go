// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/fmtvend/pkg/vending"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <COMMAND_NAME> <hex>",
	Short: "Decode a captured reply without a device",
	Long: `Run a reply through the same pipeline as a live exchange: normalize,
collapse duplicated headers and decode the fields for the given command.

The hex may contain spaces, e.g. "06 01 02 03 04 05 06 08 12".`,
	Example: "  fmtvend decode FIRMWARE_VERSION_GET 06a1a2a3a4a5a60812",
	Args:    cobra.MinimumNArgs(2),
	RunE:    runDecode,
}

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Re-decode every exchange in a capture file",
	Long: `Read a CBOR capture file written with --capture and decode each recorded
reply again with the active profile.

Useful for checking decoder changes against traffic recorded from hardware.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the active profile's command catalog",
	Args:  cobra.NoArgs,
	RunE:  runCommands,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(commandsCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	if err := validateFormat(); err != nil {
		return err
	}
	env, err := loadEnvironment(cmd, false)
	if err != nil {
		return err
	}
	defer env.log.Close()

	command, err := vending.ParseCommand(args[0])
	if err != nil {
		return err
	}
	reply := strings.ReplaceAll(strings.Join(args[1:], ""), " ", "")

	res := env.profile.DispatchHex(command, reply)
	return writeResult(cmd.OutOrStdout(), res)
}

func runReplay(cmd *cobra.Command, args []string) error {
	if err := validateFormat(); err != nil {
		return err
	}
	env, err := loadEnvironment(cmd, false)
	if err != nil {
		return err
	}
	defer env.log.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture file: %v", err)
	}
	defer f.Close()

	out := cmd.OutOrStdout()
	reader := vending.NewCaptureReader(f)
	total, failed := 0, 0

	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", total+1, err)
		}
		total++

		if rec.Profile != "" && rec.Profile != env.profile.Name() {
			env.log.WithField("exchange", rec.ID).Warnf("Recorded with %s profile, decoding with %s", rec.Profile, env.profile.Name())
		}

		res, err := env.profile.Replay(rec)
		if err != nil {
			failed++
			fmt.Fprintf(out, "[%s] %s: %v\n", rec.Time.Format("2006-01-02 15:04:05"), rec.Command, err)
			continue
		}
		if outputFormat == "text" {
			fmt.Fprintf(out, "[%s] ", rec.Time.Format("2006-01-02 15:04:05"))
		}
		if err := writeResult(out, res); err != nil {
			if !errors.Is(err, errExchangeFailed) {
				return err
			}
			failed++
		}
	}

	fmt.Fprintf(os.Stderr, "\nReplayed %d exchanges, %d failed\n", total, failed)
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d replies did not decode", errExchangeFailed, failed, total)
	}
	return nil
}

func runCommands(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd, false)
	if err != nil {
		return err
	}
	defer env.log.Close()

	fmt.Fprint(cmd.OutOrStdout(), vending.FormatCatalog(env.profile))
	return nil
}

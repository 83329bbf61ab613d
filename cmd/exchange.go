// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/fmtvend/pkg/vending"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read machine status (temperature, relays, bay stock, lamps)",
	Long: `Send GET_MACHINE_STATUS and decode the reply.

The reply carries the cabinet temperature, the power and fan relay states,
the stock count of bays 1-5 and the six lamp indicators.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExchange(cmd, func(ctx context.Context, ds *deviceSession) vending.ExchangeResult {
			return ds.Status(ctx)
		})
	},
}

var firmwareCmd = &cobra.Command{
	Use:   "firmware",
	Short: "Read hardware and software versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExchange(cmd, func(ctx context.Context, ds *deviceSession) vending.ExchangeResult {
			return ds.Firmware(ctx)
		})
	},
}

var dispenseCmd = &cobra.Command{
	Use:   "dispense <bay>",
	Short: "Dispense one item from bay 1-5",
	Long: `Dispense one item from a bay using dispense mode 2.

The reply reports the bay, the motor mode, whether the drop sensor saw the
item fall, the motor run time and the remaining stock.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bay, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid bay %q: use 1-5", args[0])
		}
		return runExchange(cmd, func(ctx context.Context, ds *deviceSession) vending.ExchangeResult {
			return ds.Dispense(ctx, bay)
		})
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <COMMAND_NAME>",
	Short: "Send any catalog command by name",
	Long: `Send a command from the active profile's catalog by its symbolic name,
e.g. PAYMENT_ENABLE. Use the commands subcommand to list the catalog.

Replies to commands without a known response layout are still reported with
their raw and canonical frames.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExchange(cmd, func(ctx context.Context, ds *deviceSession) vending.ExchangeResult {
			return ds.ExchangeName(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(firmwareCmd)
	rootCmd.AddCommand(dispenseCmd)
	rootCmd.AddCommand(sendCmd)
}

// runExchange opens a session, runs one exchange and prints the result.
// Ctrl+C cancels the reply wait.
func runExchange(cmd *cobra.Command, exchange func(context.Context, *deviceSession) vending.ExchangeResult) error {
	if err := validateFormat(); err != nil {
		return err
	}

	ds, err := openSession(cmd, nil)
	if err != nil {
		return err
	}
	defer ds.Close()

	fmt.Fprintf(os.Stderr, "fmtvend - %s profile\n", ds.env.profile.Name())
	fmt.Fprintf(os.Stderr, "Connection: %s\n", ds.connInfo)
	fmt.Fprintf(os.Stderr, "Waiting %s for reply...\n\n", ds.ReplyDelay)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	res := exchange(ctx, ds)
	return writeResult(cmd.OutOrStdout(), res)
}

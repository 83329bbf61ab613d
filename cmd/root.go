// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Device selection
	profileName string
	configPath  string
	envFile     string

	// Serial connection flags
	portName string
	baudRate int
	parity   string
	dataBits int
	stopBits string

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Exchange and output flags
	replyDelay   string
	logDir       string
	logLevel     string
	noLogFile    bool
	capturePath  string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "fmtvend",
	Short: "FMT vending machine and payment terminal client",
	Long: `fmtvend - A CLI tool for talking to FMT vending controllers and payment
terminals over their hex-over-serial protocol.

Each command sends one request, waits for the reply delay, reads the reply and
prints the decoded result. Replies are normalized (a missing ACK is restored),
duplicated headers are collapsed and the fields of known responses are decoded.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 9600 --parity none --data-bits 8 --stop-bits 1]
  WebSocket: --url ws://host/path [--username user]

Settings are resolved from flags, then the environment (FMT_VENDING_* or
FMT_PAYMENT_*), then the .env file, then the YAML config file, then defaults.

For WebSocket authentication, the password is read from the FMT_BRIDGE_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:      "1.0.0",
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Device profile: vending or payment (default vending)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 9600, "Baud rate (serial only)")
	rootCmd.PersistentFlags().StringVar(&parity, "parity", "none", "Parity: none, odd, even, mark, space")
	rootCmd.PersistentFlags().IntVar(&dataBits, "data-bits", 8, "Character length: 5-8")
	rootCmd.PersistentFlags().StringVar(&stopBits, "stop-bits", "1", "Stop bits: 1, 1.5, 2")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Exchange and output flags
	rootCmd.PersistentFlags().StringVar(&replyDelay, "reply-delay", "5s", "Wait between request and reading the reply")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "storage/logs", "Directory for dated log files")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&noLogFile, "no-log-file", false, "Log to stderr only")
	rootCmd.PersistentFlags().StringVar(&capturePath, "capture", "", "Append every exchange to this CBOR capture file")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "Output format: text, json, cbor")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/fmtvend/pkg/vending"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw traffic on the line in human-readable format",
	Long: `Continuously display bytes as they arrive, without sending anything.

Bytes are grouped into bursts separated by quiet periods. Each burst is shown
as received and in its canonical form (ACK restored, duplicated header
collapsed), which is how a reply would be decoded.

Supports both serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd, true)
	if err != nil {
		return err
	}
	defer env.log.Close()

	conn, connInfo, err := OpenConnection(env)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SetReadTimeout(replyIdleTimeout); err != nil {
		return fmt.Errorf("failed to set read timeout: %v", err)
	}

	fmt.Printf("fmtvend - Raw Traffic Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	var burst []byte
	buf := make([]byte, 256)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// For WebSocket connections, a read error usually means
			// the connection is permanently closed - exit gracefully
			if errors.Is(err, ErrConnectionClosed) {
				log.Printf("Connection closed")
				return nil
			}
			log.Printf("Read error: %v", err)
			continue
		}

		if n > 0 {
			burst = append(burst, buf[:n]...)
			continue
		}

		// Quiet line ends the burst
		if len(burst) > 0 {
			fmt.Print(formatBurst(time.Now(), burst))
			burst = burst[:0]
		}
	}
}

// formatBurst renders one burst of received bytes
func formatBurst(ts time.Time, burst []byte) string {
	result := fmt.Sprintf("[%s] %d bytes\n", ts.Format("15:04:05.000"), len(burst))
	result += fmt.Sprintf("  Raw:       %s\n", vending.Frame(burst))

	f, err := vending.Normalize(hex.EncodeToString(burst))
	if err != nil {
		return result + fmt.Sprintf("  [ERROR] %v\n", err)
	}
	return result + fmt.Sprintf("  Canonical: %s\n", vending.Extract(f))
}

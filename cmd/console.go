// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/fmtvend/internal/metrics"
	"github.com/Thermoquad/fmtvend/internal/session"
)

var (
	metricsAddr  string
	pollInterval time.Duration
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive TUI for a vending controller or payment terminal",
	Long: `Drive a device from an interactive terminal UI.

Features:
  - Command catalog of the active profile (Enter sends the selected command)
  - Bay input for dispensing (Tab to focus, type 1-5, Enter)
  - Decoded telemetry panel (status, firmware, last dispense)
  - Exchange statistics and event log
  - Status polling toggled with 'r'
  - Automatic reconnection on connection loss
  - Optional Prometheus endpoint with --metrics-addr

Supports both serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address, e.g. :9110")
	consoleCmd.Flags().DurationVar(&pollInterval, "poll-interval", 15*time.Second, "Status polling interval when polling is on")
}

// errNotConnected is returned by the transport while a reconnect is pending
var errNotConnected = errors.New("not connected")

// connectionManager handles connection lifecycle and reconnection.
// It is the session's transport, so a failed send or receive triggers a
// reconnect in the background.
type connectionManager struct {
	env          *environment
	transport    *connTransport
	conn         Connection
	connInfo     string
	reconnecting bool
	mu           sync.RWMutex
	p            *tea.Program
	done         chan struct{}
}

func (cm *connectionManager) getTransport() *connTransport {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.transport
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) error {
	transport, err := newConnTransport(conn)
	if err != nil {
		return err
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.transport = transport
	cm.connInfo = connInfo
	cm.reconnecting = false
	return nil
}

// Send implements session.Transport
func (cm *connectionManager) Send(payload []byte) error {
	t := cm.getTransport()
	if t == nil {
		return errNotConnected
	}
	if err := t.Send(payload); err != nil {
		cm.connectionLost(err)
		return err
	}
	return nil
}

// Receive implements session.Transport
func (cm *connectionManager) Receive() ([]byte, error) {
	t := cm.getTransport()
	if t == nil {
		return nil, errNotConnected
	}
	reply, err := t.Receive()
	if err != nil {
		cm.connectionLost(err)
		return nil, err
	}
	return reply, nil
}

// connectionLost starts one reconnect loop per lost connection
func (cm *connectionManager) connectionLost(cause error) {
	cm.mu.Lock()
	if cm.reconnecting {
		cm.mu.Unlock()
		return
	}
	cm.reconnecting = true
	conn := cm.conn
	cm.conn = nil
	cm.transport = nil
	cm.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	cm.env.log.WithError(cause).Warn("Connection lost")
	if cm.p != nil {
		cm.p.Send(connectionLostMsg{err: cause})
	}
	go cm.reconnect()
}

// reconnect attempts to reconnect with exponential backoff until done is closed
func (cm *connectionManager) reconnect() {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return
		case <-time.After(backoff):
		}

		conn, connInfo, err := OpenConnection(cm.env)
		if err == nil {
			if err = cm.setConn(conn, connInfo); err == nil {
				cm.env.log.WithField("connection", connInfo).Info("Reconnected")
				if cm.p != nil {
					cm.p.Send(reconnectedMsg{connInfo: connInfo})
				}
				return
			}
			conn.Close()
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (cm *connectionManager) close() {
	close(cm.done)
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.conn != nil {
		cm.conn.Close()
		cm.conn = nil
	}
}

func runConsole(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd, true)
	if err != nil {
		return err
	}
	defer env.log.Close()

	// The TUI owns the terminal, so log entries only go to the file
	env.log.DetachConsole()

	conn, connInfo, err := OpenConnection(env)
	if err != nil {
		return err
	}

	cm := &connectionManager{env: env, done: make(chan struct{})}
	if err := cm.setConn(conn, connInfo); err != nil {
		conn.Close()
		return err
	}
	defer cm.close()

	collector := metrics.New()
	sess := session.New(cm, env.profile, env.serial.ReplyDelay)
	sess.Logger = env.log.Logger
	sess.Metrics = collector

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if metricsAddr != "" {
		go func() {
			if err := collector.Serve(ctx, metricsAddr); err != nil {
				env.log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	m := initialConsoleModel(ctx, sess, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen())
	cm.p = p

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

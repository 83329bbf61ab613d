// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/fmtvend/internal/config"
	"github.com/Thermoquad/fmtvend/internal/logging"
	"github.com/Thermoquad/fmtvend/internal/metrics"
	"github.com/Thermoquad/fmtvend/internal/session"
	"github.com/Thermoquad/fmtvend/pkg/vending"
)

// environment is everything a command needs before it talks to a device
type environment struct {
	profile  *vending.Profile
	resolver *config.Resolver
	serial   config.SerialSettings
	log      *logging.Logger
}

// flagSource exposes the flags the user set explicitly, under prefixed keys
func flagSource(cmd *cobra.Command, prefix string) config.MapSource {
	src := config.MapSource{}
	flags := cmd.Flags()
	set := func(flag, key, value string) {
		if flags.Changed(flag) {
			src[prefix+key] = value
		}
	}
	set("port", config.KeyPort, portName)
	set("baud", config.KeyBaudRate, strconv.Itoa(baudRate))
	set("parity", config.KeyParity, parity)
	set("data-bits", config.KeyCharLength, strconv.Itoa(dataBits))
	set("stop-bits", config.KeyStopBits, stopBits)
	set("reply-delay", config.KeyReplyDelay, replyDelay)
	set("log-dir", config.KeyLogDir, logDir)
	set("log-level", config.KeyLogLevel, logLevel)
	set("capture", config.KeyCaptureFile, capturePath)
	return src
}

// loadEnvironment resolves the profile, settings and logger for cmd.
// Serial settings are only validated when withSerial is set.
func loadEnvironment(cmd *cobra.Command, withSerial bool) (*environment, error) {
	file, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}

	name := profileName
	if name == "" {
		name = file.Profile
	}
	profile, err := vending.ProfileByName(name)
	if err != nil {
		return nil, err
	}
	profile, err = profile.WithPayloads(file.CommandOverrides(profile.Name()))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", configPath, err)
	}

	dotenv, err := config.LoadDotEnv(envFile)
	if err != nil {
		return nil, err
	}

	prefix := profile.EnvPrefix()
	resolver := config.NewResolver(prefix,
		flagSource(cmd, prefix),
		config.EnvSource{},
		dotenv,
		file.Source(profile.Name(), prefix),
	)

	env := &environment{profile: profile, resolver: resolver}
	if withSerial {
		if env.serial, err = resolver.Serial(); err != nil {
			return nil, err
		}
	}

	env.log, err = logging.New(logging.Options{
		Level:  resolver.String(config.KeyLogLevel),
		Dir:    resolver.String(config.KeyLogDir),
		NoFile: noLogFile,
	})
	if err != nil {
		return nil, err
	}
	return env, nil
}

// deviceSession is a session bound to an open connection
type deviceSession struct {
	*session.Session
	env      *environment
	conn     Connection
	connInfo string
	capture  *os.File
}

// openSession opens the configured connection and wraps it in a session.
// collector may be nil.
func openSession(cmd *cobra.Command, collector *metrics.Collector) (*deviceSession, error) {
	env, err := loadEnvironment(cmd, true)
	if err != nil {
		return nil, err
	}

	conn, connInfo, err := OpenConnection(env)
	if err != nil {
		env.log.Close()
		return nil, err
	}

	transport, err := newConnTransport(conn)
	if err != nil {
		conn.Close()
		env.log.Close()
		return nil, err
	}

	s := session.New(transport, env.profile, env.serial.ReplyDelay)
	s.Logger = env.log.Logger
	s.Metrics = collector

	ds := &deviceSession{Session: s, env: env, conn: conn, connInfo: connInfo}

	if path := env.resolver.String(config.KeyCaptureFile); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			ds.Close()
			return nil, fmt.Errorf("failed to open capture file %s: %w", path, err)
		}
		ds.capture = f
		s.Capture = vending.NewCaptureWriter(f)
	}

	env.log.WithField("connection", connInfo).Debug("Connection opened")
	return ds, nil
}

// Close releases the connection, capture file and log file
func (d *deviceSession) Close() {
	d.conn.Close()
	if d.capture != nil {
		d.capture.Close()
	}
	d.env.log.Close()
}

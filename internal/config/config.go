// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config resolves device and host settings from an ordered list of
// sources: process environment, a .env file, a YAML config file and static
// defaults. The first source that has a key wins.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Setting keys, without the profile prefix
const (
	KeyPort        = "PORT"
	KeyBaudRate    = "BAUDRATE"
	KeyParity      = "PARITY"
	KeyCharLength  = "CHAR_LENGTH"
	KeyStopBits    = "STOP_BITS"
	KeyFlowControl = "FLOW_CONTROL"
	KeyReplyDelay  = "REPLY_DELAY"
	KeyLogDir      = "LOG_DIR"
	KeyLogLevel    = "LOG_LEVEL"
	KeyCaptureFile = "CAPTURE_FILE"
)

// Defaults holds the static fallback of every key
var Defaults = map[string]string{
	KeyPort:        "/dev/ttyUSB0",
	KeyBaudRate:    "9600",
	KeyParity:      "none",
	KeyCharLength:  "8",
	KeyStopBits:    "1",
	KeyFlowControl: "none",
	KeyReplyDelay:  "5s",
	KeyLogDir:      "storage/logs",
	KeyLogLevel:    "info",
	KeyCaptureFile: "",
}

// Source is one layer of configuration
type Source interface {
	Lookup(key string) (string, bool)
}

// EnvSource reads the process environment
type EnvSource struct{}

// Lookup returns a non-empty environment variable
func (EnvSource) Lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// MapSource is a fixed set of values
type MapSource map[string]string

// Lookup returns the value stored for key
func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Resolver looks keys up through its sources in priority order
type Resolver struct {
	Prefix  string
	Sources []Source
}

// NewResolver creates a resolver for one profile's keys, e.g. prefix "FMT_VENDING_".
// Unprefixed defaults are consulted last.
func NewResolver(prefix string, sources ...Source) *Resolver {
	return &Resolver{Prefix: prefix, Sources: sources}
}

// Lookup returns the first value found for the prefixed key, falling back to
// the static default of the bare key
func (r *Resolver) Lookup(key string) (string, bool) {
	full := r.Prefix + key
	for _, src := range r.Sources {
		if v, ok := src.Lookup(full); ok {
			return v, true
		}
	}
	v, ok := Defaults[key]
	return v, ok
}

// String returns the resolved value or ""
func (r *Resolver) String(key string) string {
	v, _ := r.Lookup(key)
	return v
}

// Int returns the resolved value as an integer
func (r *Resolver) Int(key string) (int, error) {
	v := r.String(key)
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s%s: invalid integer %q", r.Prefix, key, v)
	}
	return n, nil
}

// Duration returns the resolved value as a duration. Bare numbers are seconds.
func (r *Resolver) Duration(key string) (time.Duration, error) {
	v := strings.TrimSpace(r.String(key))
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s%s: invalid duration %q", r.Prefix, key, v)
	}
	return d, nil
}

// LoadDotEnv reads a .env file. A missing file yields an empty source.
func LoadDotEnv(path string) (MapSource, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return MapSource{}, nil
		}
		return nil, fmt.Errorf("failed to open env file %s: %w", path, err)
	}
	defer f.Close()
	return ParseDotEnv(f)
}

// ParseDotEnv parses KEY=VALUE lines. The first occurrence of a key wins,
// values are trimmed and may be quoted, blank lines and # comments are skipped.
func ParseDotEnv(r io.Reader) (MapSource, error) {
	values := MapSource{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, seen := values[key]; seen {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}
	return values, nil
}

// File is the YAML config file layout
type File struct {
	Profile  string                   `yaml:"profile"`
	Devices  map[string]DeviceSection `yaml:"devices"`
	Commands map[string]string        `yaml:"commands"`
}

// DeviceSection holds the settings of one profile in the YAML file
type DeviceSection struct {
	Port        string `yaml:"port"`
	BaudRate    int    `yaml:"baudrate"`
	Parity      string `yaml:"parity"`
	CharLength  int    `yaml:"character_length"`
	StopBits    string `yaml:"stop_bits"`
	FlowControl string `yaml:"flow_control"`
	ReplyDelay  string `yaml:"reply_delay"`
	LogDir      string `yaml:"log_dir"`
	LogLevel    string `yaml:"log_level"`
	CaptureFile string `yaml:"capture_file"`

	// Command name -> hex payload overrides for this device
	Commands map[string]string `yaml:"commands"`
}

// LoadFile reads a YAML config file. An empty path yields an empty File.
func LoadFile(path string) (*File, error) {
	if path == "" {
		return &File{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return ParseFile(data)
}

// ParseFile parses YAML config file contents
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &f, nil
}

// Source flattens the section of one profile into prefixed keys
func (f *File) Source(profile, prefix string) MapSource {
	m := MapSource{}
	sec, ok := f.Devices[profile]
	if !ok {
		return m
	}
	put := func(key, value string) {
		if value != "" {
			m[prefix+key] = value
		}
	}
	put(KeyPort, sec.Port)
	if sec.BaudRate != 0 {
		put(KeyBaudRate, strconv.Itoa(sec.BaudRate))
	}
	put(KeyParity, sec.Parity)
	if sec.CharLength != 0 {
		put(KeyCharLength, strconv.Itoa(sec.CharLength))
	}
	put(KeyStopBits, sec.StopBits)
	put(KeyFlowControl, sec.FlowControl)
	put(KeyReplyDelay, sec.ReplyDelay)
	put(KeyLogDir, sec.LogDir)
	put(KeyLogLevel, sec.LogLevel)
	put(KeyCaptureFile, sec.CaptureFile)
	return m
}

// CommandOverrides merges the global and per-device command tables.
// Device entries win.
func (f *File) CommandOverrides(profile string) map[string]string {
	out := make(map[string]string, len(f.Commands))
	for k, v := range f.Commands {
		out[k] = v
	}
	if sec, ok := f.Devices[profile]; ok {
		for k, v := range sec.Commands {
			out[k] = v
		}
	}
	return out
}

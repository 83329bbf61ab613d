// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// fmtvend - FMT vending controller and payment terminal client
//
// A CLI tool for sending commands to FMT vending devices over serial or a
// WebSocket bridge and decoding their replies.

package main

import (
	"os"

	"github.com/Thermoquad/fmtvend/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vending

import (
	"fmt"
	"strings"
)

// FormatResult formats an exchange result into a human-readable string
func FormatResult(r ExchangeResult) string {
	if !r.Status {
		result := fmt.Sprintf("%s FAILED: %s\n", r.Command, r.Error)
		if r.Hex != "" {
			result += fmt.Sprintf("  Hex: %s\n", r.Hex)
		}
		return result
	}

	result := fmt.Sprintf("%s OK: %s\n", r.Command, r.Log)
	result += fmt.Sprintf("  Hex: %s\n", r.Hex)
	result += fmt.Sprintf("  Response: %s\n", r.Response)
	result += FormatTelemetry(r.Metadata)
	return result
}

// FormatTelemetry formats a telemetry record, one field per line
func FormatTelemetry(t Telemetry) string {
	switch v := t.(type) {
	case MachineStatus:
		result := fmt.Sprintf("  Temperature: %s\n", v.Temperature)
		result += fmt.Sprintf("  Power Relay: %s, Fan Relay: %s\n", formatOnOff(v.PowerRelay), formatOnOff(v.FanRelay))
		stocks := make([]string, len(v.BayStock))
		for i, s := range v.BayStock {
			stocks[i] = fmt.Sprintf("%d:%d", i+1, s)
		}
		result += fmt.Sprintf("  Bay Stock: %s\n", strings.Join(stocks, " "))
		lamps := make([]string, len(v.LampStatus))
		for i, on := range v.LampStatus {
			lamps[i] = fmt.Sprintf("%d:%s", i+1, formatOnOff(on))
		}
		result += fmt.Sprintf("  Lamps: %s\n", strings.Join(lamps, " "))
		return result

	case DispenseResult:
		dropped := "no"
		if v.ItemDropped {
			dropped = "yes"
		}
		result := fmt.Sprintf("  Bay: %d, Mode: %s (%d)\n", v.Bay, v.Mode, int(v.Mode))
		result += fmt.Sprintf("  Item Dropped: %s, Use Time: %d ms, Remaining Stock: %d\n", dropped, v.UseTimeMs, v.RemainingStock)
		return result

	case FirmwareVersion:
		return fmt.Sprintf("  Hardware: %g, Software: %g\n", v.HardwareVersion, v.SoftwareVersion)

	case Unrecognized:
		return "  (no telemetry for this command)\n"
	}
	return ""
}

// FormatCatalog lists a profile's commands with their payloads
func FormatCatalog(p *Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Profile: %s (env prefix %s)\n", p.Name(), p.EnvPrefix())
	for _, cmd := range p.Commands() {
		payload, _ := p.Payload(cmd)
		decoded := "-"
		if p.decoder.Supports(cmd.Family()) {
			decoded = cmd.Family().String()
		}
		fmt.Fprintf(&b, "  %-44s %-26s %s\n", cmd, payload, decoded)
	}
	return b.String()
}

func formatOnOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

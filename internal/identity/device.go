// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package identity

import (
	"strings"

	"github.com/mileusna/useragent"
)

// DeviceInfo holds the structured fields parsed from a client user agent.
// Parsing is best-effort; an absent or unrecognized user agent yields
// empty fields, never an error.
type DeviceInfo struct {
	Browser string
	OS      string
	Device  string
}

// ParseUserAgent parses a raw user-agent string into DeviceInfo.
func ParseUserAgent(raw string) DeviceInfo {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DeviceInfo{}
	}

	ua := useragent.Parse(raw)

	info := DeviceInfo{
		Browser: ua.Name,
		OS:      ua.OS,
		Device:  ua.Device,
	}

	if info.Device == "" {
		switch {
		case ua.Mobile:
			info.Device = "mobile"
		case ua.Tablet:
			info.Device = "tablet"
		case ua.Desktop:
			info.Device = "desktop"
		case ua.Bot:
			info.Device = "bot"
		}
	}

	return info
}

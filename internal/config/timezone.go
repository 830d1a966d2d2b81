package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Location resolves the configured timezone. Listing groups and upload
// notification dates are rendered in this zone.
func (c *AppConfig) Location() (*time.Location, error) {
	return ParseTimezone(c.Timezone)
}

// ParseTimezone accepts an IANA zone name or a fixed "+HH:MM" offset.
func ParseTimezone(raw string) (*time.Location, error) {
	tz := strings.TrimSpace(raw)
	if tz == "" {
		return time.UTC, nil
	}
	if loc, err := time.LoadLocation(tz); err == nil {
		return loc, nil
	}
	if len(tz) == 6 && (tz[0] == '+' || tz[0] == '-') && tz[3] == ':' {
		h, errH := strconv.Atoi(tz[1:3])
		m, errM := strconv.Atoi(tz[4:6])
		if errH == nil && errM == nil && h <= 23 && m <= 59 {
			offset := h*3600 + m*60
			if tz[0] == '-' {
				offset = -offset
			}
			return time.FixedZone(tz, offset), nil
		}
	}
	return nil, fmt.Errorf("invalid timezone %q: expect IANA zone (e.g. Europe/London) or UTC offset (e.g. +01:00)", tz)
}

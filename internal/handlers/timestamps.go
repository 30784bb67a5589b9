package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,      // full RFC3339, fractional seconds optional
	"2006-01-02T15:04:05", // local time without zone, read as UTC
	"2006-01-02",          // ISO date
	"2 Jan 2006",          // e.g., 30 Oct 2025
	"02 Jan 2006",         // zero-padded day
}

func parseDateFlexible(dateStr string) (time.Time, bool) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

var errInvalidDate = errors.New("expected a date string or epoch milliseconds")

// parseDueDate accepts a date string in any supported layout or a JSON
// number of milliseconds since the Unix epoch.
func parseDueDate(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 {
		return time.Time{}, errInvalidDate
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, errInvalidDate
		}
		t, ok := parseDateFlexible(s)
		if !ok {
			return time.Time{}, errors.New("invalid date")
		}
		return t, nil
	}
	ms, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || math.IsInf(ms, 0) || math.Abs(ms) > 8.64e15 {
		return time.Time{}, errInvalidDate
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}

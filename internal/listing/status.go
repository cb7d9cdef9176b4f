package listing

import (
	"strings"
)

// Status is a property's availability status.
type Status string

const (
	StatusAvailable           Status = "Available"
	StatusBooked              Status = "Booked"
	StatusUnderConstruction   Status = "Under Construction"
	StatusPreBookingAvailable Status = "Pre-booking Available"
	StatusUnknown             Status = "Unknown"
)

// DefaultColor is used for unknown or missing statuses.
const DefaultColor = "#6b7280"

var allStatuses = []Status{
	StatusAvailable,
	StatusBooked,
	StatusUnderConstruction,
	StatusPreBookingAvailable,
}

var statusColors = map[Status]string{
	StatusAvailable:           "#16a34a",
	StatusBooked:              "#dc2626",
	StatusUnderConstruction:   "#d97706",
	StatusPreBookingAvailable: "#2563eb",
}

// AllStatuses lists the known statuses, Unknown excluded.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// NormalizeStatus maps free-form status text onto the taxonomy. Matching
// ignores case, surrounding space and the separators '-', '_' and ' '.
func NormalizeStatus(raw string) Status {
	key := statusKey(raw)
	if key == "" {
		return StatusUnknown
	}
	for _, s := range allStatuses {
		if statusKey(string(s)) == key {
			return s
		}
	}
	return StatusUnknown
}

// IsValidStatus reports whether raw normalizes to a known status.
func IsValidStatus(raw string) bool {
	return NormalizeStatus(raw) != StatusUnknown
}

// Color is the marker color for the status.
func (s Status) Color() string {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return DefaultColor
}

// Label is the human readable name.
func (s Status) Label() string {
	if s == "" {
		return string(StatusUnknown)
	}
	return string(s)
}

// Slug is the css-friendly form, e.g. "pre-booking-available".
func (s Status) Slug() string {
	return strings.ReplaceAll(strings.ToLower(s.Label()), " ", "-")
}

func statusKey(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	var sb strings.Builder
	for _, r := range raw {
		switch r {
		case '-', '_', ' ', '\t':
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

package geo

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ParseNumber accepts a JSON number or a JSON string holding a number and
// returns the finite float it encodes. null, empty input, objects, arrays and
// non-finite values report false.
func ParseNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		return ParseNumberString(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return ParseNumberString(n.String())
}

// ParseNumberString parses s as a finite float64.
func ParseNumberString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !IsFinite(f) {
		return 0, false
	}
	return f, true
}

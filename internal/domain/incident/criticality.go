package incident

import (
	"strings"
)

// CriticalHours is the same-day open time from which an incident counts as
// critical. Any incident open for at least one full day is critical.
const CriticalHours = 12

// criticalMarkers are searched in the upper-cased description.
var criticalMarkers = []string{"SWAP", "RUP CABO"}

// DurationResult is the outcome of ParseDuration. When Parsed is false the
// value could not be split into its days and hours parts and Days and Hours
// are zero.
type DurationResult struct {
	Parsed bool
	Days   int
	Hours  int
}

// Parsed builds a successful DurationResult.
func Parsed(days, hours int) DurationResult {
	return DurationResult{Parsed: true, Days: days, Hours: hours}
}

// Unparseable is the DurationResult of a value without a days/hours separator.
func Unparseable() DurationResult {
	return DurationResult{}
}

// ExceedsThreshold reports whether the duration is past the critical limit.
func (d DurationResult) ExceedsThreshold() bool {
	return d.Parsed && (d.Days > 0 || d.Hours >= CriticalHours)
}

// ParseDuration reads the "{days}d.{hours}h{minutes}m" encoding, e.g.
// "31d.04h12m". The value is split on "."; a value with fewer than two parts
// is Unparseable. The days part loses its "d" suffix and the hours are the
// first two characters of the second part. Each number is read like a
// leading-integer parse and falls back to 0 when no digits are present, so a
// damaged field such as "xd.4h" still yields Parsed(0, 4).
func ParseDuration(s string) DurationResult {
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return Unparseable()
	}
	days := leadingInt(strings.TrimSuffix(parts[0], "d"))
	hoursPart := parts[1]
	if len(hoursPart) > 2 {
		hoursPart = hoursPart[:2]
	}
	return Parsed(days, leadingInt(hoursPart))
}

// leadingInt parses an optional sign and the digits that follow leading
// whitespace. It returns 0 when there are no digits.
func leadingInt(s string) int {
	s = strings.TrimLeft(s, " \t\n\r")
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n, digits := 0, 0
	for _, c := range []byte(s) {
		if c < '0' || c > '9' {
			break
		}
		if n > (1<<31)/10 {
			// Saturate rather than overflow.
			break
		}
		n = n*10 + int(c-'0')
		digits++
	}
	if digits == 0 {
		return 0
	}
	if neg {
		return -n
	}
	return n
}

// MatchesCriticalType reports whether the description names a swap or a
// cable rupture, ignoring case.
func MatchesCriticalType(description string) bool {
	upper := strings.ToUpper(description)
	for _, m := range criticalMarkers {
		if strings.Contains(upper, m) {
			return true
		}
	}
	return false
}

// IsCriticalRecord applies both conditions to a single record.
func IsCriticalRecord(r IncidentRecord) bool {
	if !MatchesCriticalType(r.Description) {
		return false
	}
	return ParseDuration(r.Duration).ExceedsThreshold()
}

// IsCritical reports whether at least one record is critical. It stops at the
// first match; the result does not depend on record order.
func IsCritical(records []IncidentRecord) bool {
	for _, r := range records {
		if IsCriticalRecord(r) {
			return true
		}
	}
	return false
}

// CriticalByGroup returns, for every group present in records, whether the
// group holds a critical record.
func CriticalByGroup(records []IncidentRecord, key KeyFunc) map[string]bool {
	flags := make(map[string]bool)
	for _, r := range records {
		k := key(r)
		if flags[k] {
			continue
		}
		flags[k] = IsCriticalRecord(r)
	}
	return flags
}

// CriticalRecords returns the critical records in input order.
func CriticalRecords(records []IncidentRecord) []IncidentRecord {
	out := make([]IncidentRecord, 0)
	for _, r := range records {
		if IsCriticalRecord(r) {
			out = append(out, r)
		}
	}
	return out
}

package manifest

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var scientificNotation = regexp.MustCompile(`^-?\d+\.?\d*[eE][+-]?\d+$`)

// spreadsheetEpoch is day zero of spreadsheet serial dates.
var spreadsheetEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

const (
	minDateSerial = 40000
	maxDateSerial = 60000
	dateLayout    = "01/02/2006"
)

// NormalizeIdentifier trims the value and expands identifiers that a
// spreadsheet rewrote into scientific notation back to their integer form.
// Case is preserved. It never fails: unparseable input is returned trimmed.
func NormalizeIdentifier(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !scientificNotation.MatchString(trimmed) {
		return trimmed
	}

	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return trimmed
	}

	truncated := math.Trunc(f)
	if truncated == 0 {
		return "0"
	}
	return strconv.FormatFloat(truncated, 'f', 0, 64)
}

// HasValueChanged reports whether next counts as a change over old.
// A value becoming empty is not a change.
func HasValueChanged(old, next string) bool {
	o := strings.TrimSpace(old)
	n := strings.TrimSpace(next)
	if o == "" {
		return n != ""
	}
	return n != "" && o != n
}

// NormalizeDateForComparison converts spreadsheet serial dates to MM/DD/YYYY
// so a serial and its rendered date compare equal. Values with a slash are
// assumed to already be dates and are returned trimmed.
func NormalizeDateForComparison(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.Contains(trimmed, "/") {
		return trimmed
	}

	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(n) || n <= minDateSerial || n >= maxDateSerial {
		return trimmed
	}

	seconds := math.Round(n * 86400)
	return spreadsheetEpoch.Add(time.Duration(seconds) * time.Second).Format(dateLayout)
}

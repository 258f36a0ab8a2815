package common

import (
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const isoLayout = "2006-01-02"

var (
	isoDateRegex   = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	fullDateRegex  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	shortDateRegex = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})\b`)
	serialRegex    = regexp.MustCompile(`^\d+(?:\.\d+)?$`)

	yearMonthHintRegex = regexp.MustCompile(`(?:^|\D)(20\d{2})[-_](0[1-9]|1[0-2])(?:\D|$)`)
	monthYearHintRegex = regexp.MustCompile(`(?:^|\D)(0[1-9]|1[0-2])(20\d{2})(?:\D|$)`)

	// spreadsheet day zero; 1899-12-30 absorbs the 1900 leap-year bug
	serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
)

// maxSerial is 9999-12-31.
const maxSerial = 2958465

var now = time.Now

// ToISODate converts a date value to YYYY-MM-DD. Accepted inputs are ISO
// strings, dd/mm/yyyy, dd/mm (completed with yearHint, or the current year
// when yearHint is zero), spreadsheet serial numbers and time.Time values.
func ToISODate(value any, yearHint int) (string, bool) {
	return ToISODateHinted(value, yearHint, 0)
}

// ToISODateHinted is ToISODate for rows of a statement whose year and month
// are known. A dd/mm value takes its year from InferYear, so rows across a
// year boundary land in the right year.
func ToISODateHinted(value any, yearHint int, monthHint time.Month) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return stringToISO(v, yearHint, monthHint)
	case time.Time:
		if v.IsZero() {
			return "", false
		}
		return v.Format(isoLayout), true
	case *time.Time:
		if v == nil || v.IsZero() {
			return "", false
		}
		return v.Format(isoLayout), true
	case int:
		return SerialToISO(float64(v))
	case int64:
		return SerialToISO(float64(v))
	case float64:
		return SerialToISO(v)
	case float32:
		return SerialToISO(float64(v))
	}
	return "", false
}

func stringToISO(s string, yearHint int, monthHint time.Month) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	if m := isoDateRegex.FindStringSubmatch(s); m != nil {
		return buildISO(m[1], m[2], m[3])
	}
	if m := fullDateRegex.FindStringSubmatch(s); m != nil {
		return buildISO(m[3], m[2], m[1])
	}
	if m := shortDateRegex.FindStringSubmatch(s); m != nil {
		month, err := strconv.Atoi(m[2])
		if err != nil {
			return "", false
		}
		year := InferYear(time.Month(month), yearHint, monthHint)
		if year == 0 {
			year = now().Year()
		}
		return buildISO(strconv.Itoa(year), m[2], m[1])
	}
	if serialRegex.MatchString(s) {
		serial, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "", false
		}
		return SerialToISO(serial)
	}
	return "", false
}

// SerialToISO converts a spreadsheet serial date to YYYY-MM-DD. Fractions
// (time of day) are dropped.
func SerialToISO(serial float64) (string, bool) {
	if math.IsNaN(serial) || serial < 1 || serial > maxSerial {
		return "", false
	}
	days := int(math.Floor(serial))
	return serialEpoch.AddDate(0, 0, days).Format(isoLayout), true
}

func buildISO(year, month, day string) (string, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return "", false
	}
	if !ValidDate(y, time.Month(m), d) {
		return "", false
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC).Format(isoLayout), true
}

// ValidDate reports whether y-m-d exists on the calendar.
func ValidDate(y int, m time.Month, d int) bool {
	if y < 1900 || y > 9999 || m < time.January || m > time.December || d < 1 {
		return false
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return t.Year() == y && t.Month() == m && t.Day() == d
}

// ParseISODate parses a YYYY-MM-DD string in UTC.
func ParseISODate(value string) (time.Time, error) {
	return time.ParseInLocation(isoLayout, value, time.UTC)
}

// FormatISODate formats t as YYYY-MM-DD.
func FormatISODate(t time.Time) string {
	return t.Format(isoLayout)
}

// FilenameHint recovers the statement year and month from names such as
// "itau102025.pdf", "nubank_2025-10.csv" or "fatura_2025_10.ofx".
func FilenameHint(name string) (int, time.Month, bool) {
	base := filepath.Base(name)

	if m := yearMonthHintRegex.FindStringSubmatch(base); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		return year, time.Month(month), true
	}
	if m := monthYearHintRegex.FindStringSubmatch(base); m != nil {
		month, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		return year, time.Month(month), true
	}
	return 0, 0, false
}

// InferYear picks the year for a short date on a statement of hintMonth in
// hintYear. Only rows across the year boundary move: a January or February
// statement listing November or December rows belongs to the previous year,
// and a November or December statement listing January or February rows to
// the next one.
func InferYear(month time.Month, hintYear int, hintMonth time.Month) int {
	if hintYear == 0 || hintMonth == 0 {
		return hintYear
	}
	switch {
	case hintMonth <= time.February && month >= time.November:
		return hintYear - 1
	case hintMonth >= time.November && month <= time.February:
		return hintYear + 1
	}
	return hintYear
}

package ans

import (
	"regexp"
	"strconv"
	"time"
)

// refDatePattern matches "1T2023" (quarter, year) or "2023_1T" (year, quarter).
var refDatePattern = regexp.MustCompile(`(?i)(\d)T(\d{4})|(\d{4})_(\d)T`)

// ParseReferenceDate derives the statement reference date from a file name: the last
// calendar day of the quarter named in it. ok is false when the name carries no
// recognisable quarter or the quarter is outside 1..4.
func ParseReferenceDate(filename string) (time.Time, bool) {
	m := refDatePattern.FindStringSubmatch(filename)
	if m == nil {
		return time.Time{}, false
	}

	var quarterStr, yearStr string
	if m[1] != "" && m[2] != "" {
		quarterStr, yearStr = m[1], m[2]
	} else {
		yearStr, quarterStr = m[3], m[4]
	}

	quarter, err := strconv.Atoi(quarterStr)
	if err != nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, false
	}

	return QuarterEnd(year, quarter)
}

// QuarterEnd returns the last day of the given quarter at UTC midnight. Years before
// 1 have no calendar date and are rejected.
func QuarterEnd(year, quarter int) (time.Time, bool) {
	if year < 1 || quarter < 1 || quarter > 4 {
		return time.Time{}, false
	}

	month := time.Month(quarter * 3)
	day := 30
	if month == time.March || month == time.December {
		day = 31
	}

	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalises overflow; a mismatch means the date does not exist.
	if d.Year() != year || d.Month() != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

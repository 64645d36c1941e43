package ans

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// balancePattern accepts pt-BR formatted numbers: "." groups thousands, "," is decimal.
var balancePattern = regexp.MustCompile(`^-?[0-9.,]+$`)

// StripFloatSuffix removes one trailing ".0" left behind when a spreadsheet export
// formats an integer column as a float ("21.0" -> "21").
func StripFloatSuffix(s string) string {
	return strings.TrimSuffix(s, ".0")
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// CleanText trims s and truncates it to width. Empty values map to nil.
func CleanText(s string, width int) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	s = Truncate(s, width)
	return &s
}

// CleanCode is CleanText for numeric-looking code columns (area code, phone, fax,
// postal code, market region): the float-export ".0" suffix is stripped before
// truncation.
func CleanCode(s string, width int) *string {
	s = StripFloatSuffix(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	s = Truncate(s, width)
	return &s
}

// ParseRegistrationDate parses a YYYY-MM-DD registry date. Empty values, the literal
// NULL and the zero date 0000-00-00 are absent; so is anything unparseable.
func ParseRegistrationDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	switch s {
	case "", "NULL", "0000-00-00":
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

// ParseBalance parses a pt-BR formatted monetary value ("1.000,50", "-500,00") into a
// decimal with two fraction digits. Malformed or empty values yield nil.
func ParseBalance(s string) *decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" || !balancePattern.MatchString(s) {
		return nil
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	d = d.Round(2)
	return &d
}

// ParseRegistryCode parses the ANS registry code, tolerating the ".0" float artifact.
func ParseRegistryCode(s string) (int64, bool) {
	s = StripFloatSuffix(strings.Trim(strings.TrimSpace(s), `"`))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

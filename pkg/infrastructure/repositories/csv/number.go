package csv

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var errEmptyNumber = errors.New("empty numeric cell")

// ParseLocaleDecimal parses US (1234.56) and European (1.234,56) numbers.
//
// With both separators present the dot is the thousands separator. With only
// a comma, it is the decimal separator when at most three digits follow it and
// a thousands separator otherwise. Repeated separators of one kind are always
// thousands separators.
func ParseLocaleDecimal(s string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\'':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if cleaned == "" {
		return decimal.Zero, errEmptyNumber
	}

	dots := strings.Count(cleaned, ".")
	commas := strings.Count(cleaned, ",")

	switch {
	case dots > 0 && commas > 0:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case commas > 1:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case commas == 1:
		idx := strings.LastIndex(cleaned, ",")
		if len(cleaned)-idx-1 <= 3 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.Replace(cleaned, ",", "", 1)
		}
	case dots > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q", s)
	}
	return d, nil
}

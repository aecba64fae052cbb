package rules

import (
	"database/sql"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// decimalPattern matches the plain decimal literals the battery feed is expected to carry
var decimalPattern = regexp.MustCompile(`^-?[0-9]*\.?[0-9]+$`)

// SanitizeDecimal coerces a comma-formatted decimal string into a number.
// Anything that is not a plain decimal after trimming and dropping thousands
// separators maps to zero.
func SanitizeDecimal(s string) decimal.Decimal {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if !decimalPattern.MatchString(cleaned) {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// SanitizeNullString is SanitizeDecimal for nullable columns. NULL stays NULL.
func SanitizeNullString(s sql.NullString) decimal.NullDecimal {
	if !s.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(SanitizeDecimal(s.String))
}

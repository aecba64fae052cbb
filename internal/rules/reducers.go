// Package rules holds the aggregation rule set: pure functions that collapse the
// source rows of one calendar day into target rows.
package rules

import "github.com/shopspring/decimal"

// Sum adds every non-null value. No non-null input gives NULL.
func Sum(vals []decimal.NullDecimal) decimal.NullDecimal {
	total := decimal.Zero
	seen := false
	for _, v := range vals {
		if !v.Valid {
			continue
		}
		total = total.Add(v.Decimal)
		seen = true
	}
	if !seen {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(total)
}

// Max returns the largest non-null value
func Max(vals []decimal.NullDecimal) decimal.NullDecimal {
	var out decimal.NullDecimal
	for _, v := range vals {
		if !v.Valid {
			continue
		}
		if !out.Valid || v.Decimal.GreaterThan(out.Decimal) {
			out = v
		}
	}
	return out
}

// MinPositive returns the smallest value strictly greater than zero.
// Zero readings are treated as missing sensor data.
func MinPositive(vals []decimal.NullDecimal) decimal.NullDecimal {
	var out decimal.NullDecimal
	for _, v := range vals {
		if !v.Valid || !v.Decimal.IsPositive() {
			continue
		}
		if !out.Valid || v.Decimal.LessThan(out.Decimal) {
			out = v
		}
	}
	return out
}

// Avg returns the mean of the non-null values rounded to places
func Avg(vals []decimal.NullDecimal, places int32) decimal.NullDecimal {
	total := decimal.Zero
	n := int64(0)
	for _, v := range vals {
		if !v.Valid {
			continue
		}
		total = total.Add(v.Decimal)
		n++
	}
	if n == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(total.Div(decimal.NewFromInt(n)).Round(places))
}

// FirstNonNull passes through the first non-null value in source order
func FirstNonNull(vals []decimal.NullDecimal) decimal.NullDecimal {
	for _, v := range vals {
		if v.Valid {
			return v
		}
	}
	return decimal.NullDecimal{}
}

func orZero(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

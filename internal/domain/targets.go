package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Target names an AI table written by the engine. The value is also the rule name.
type Target string

const (
	TargetSolarPower  Target = "solar_power"
	TargetESSCharge   Target = "ess_charge"
	TargetPowerUsage  Target = "power_usage"
	TargetESSForecast Target = "ess_predict"
)

// Targets lists every target in batch order
var Targets = []Target{TargetSolarPower, TargetESSCharge, TargetPowerUsage, TargetESSForecast}

// Field is a logical target column. Physical names live in the store schema.
type Field string

const (
	FieldTmn              Field = "tmn"
	FieldTmx              Field = "tmx"
	FieldIcs              Field = "ics"
	FieldPrePwrGeneration Field = "pre_pwr_generation"
	FieldTodayGeneration  Field = "today_generation"
	FieldAccumGeneration  Field = "accum_generation"
	FieldPwrUsage         Field = "pwr_usage"
	FieldPwrForecast      Field = "pwr_forecast"
	FieldPreCharge        Field = "pre_charge"
	FieldChargeAmount     Field = "charge_amount"
	FieldForecastQuantity Field = "forecast_quantity"
)

// FieldValue pairs a logical column with the value to write
type FieldValue struct {
	Field Field
	Value decimal.NullDecimal
}

// SolarPowerRow is the daily solar/weather aggregate
type SolarPowerRow struct {
	Day              Day
	Tmn              decimal.NullDecimal
	Tmx              decimal.NullDecimal
	Ics              decimal.NullDecimal
	PrePwrGeneration decimal.NullDecimal
	TodayGeneration  decimal.NullDecimal
	AccumGeneration  decimal.NullDecimal
}

// Fields lists the row's columns in write order
func (r SolarPowerRow) Fields() []FieldValue {
	return []FieldValue{
		{FieldTmn, r.Tmn},
		{FieldTmx, r.Tmx},
		{FieldIcs, r.Ics},
		{FieldPrePwrGeneration, r.PrePwrGeneration},
		{FieldTodayGeneration, r.TodayGeneration},
		{FieldAccumGeneration, r.AccumGeneration},
	}
}

// Feed identifies one independent source feed of the ESS charge row
type Feed string

const (
	FeedGeneration Feed = "generation"
	FeedUsage      Feed = "usage"
	FeedBattery    Feed = "battery"
)

// Feeds lists every ESS charge feed in write order
var Feeds = []Feed{FeedGeneration, FeedUsage, FeedBattery}

// ParseFeed maps a feed name to a Feed
func ParseFeed(s string) (Feed, bool) {
	for _, f := range Feeds {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// ESSChargePart is the slice of an ESS charge row owned by a single feed
type ESSChargePart struct {
	Feed   Feed
	Day    Day
	Values []FieldValue
}

// FeedColumns returns the columns a feed owns. No two feeds share a column.
func FeedColumns(f Feed) []Field {
	switch f {
	case FeedGeneration:
		return []Field{FieldPrePwrGeneration, FieldTodayGeneration}
	case FeedUsage:
		return []Field{FieldPwrUsage, FieldPwrForecast}
	case FeedBattery:
		return []Field{FieldPreCharge, FieldChargeAmount}
	}
	return nil
}

// PowerUsageRow is one smart-meter timestamp mapped into the usage table
type PowerUsageRow struct {
	Timestamp   time.Time
	PwrUsage    decimal.NullDecimal
	PwrForecast decimal.NullDecimal
}

// Fields lists the row's columns in write order
func (r PowerUsageRow) Fields() []FieldValue {
	return []FieldValue{
		{FieldPwrUsage, r.PwrUsage},
		{FieldPwrForecast, r.PwrForecast},
	}
}

// ESSForecastRow is the predicted charge written back to the battery stat table
type ESSForecastRow struct {
	Day              Day
	SolarForecastSum decimal.Decimal
	MeterForecast    decimal.Decimal
	ForecastQuantity decimal.Decimal
}

// Fields lists the row's columns in write order
func (r ESSForecastRow) Fields() []FieldValue {
	return []FieldValue{
		{FieldForecastQuantity, decimal.NewNullDecimal(r.ForecastQuantity)},
	}
}

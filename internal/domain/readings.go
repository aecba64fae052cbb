package domain

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// SolarWeatherReading is one solar row joined to the weather row sharing its timestamp
type SolarWeatherReading struct {
	Timestamp        time.Time
	ForecastQuantity decimal.NullDecimal
	TodayGeneration  decimal.NullDecimal
	AccumGeneration  decimal.NullDecimal
	Tmn              decimal.NullDecimal
	Tmx              decimal.NullDecimal
	Ics              decimal.NullDecimal
}

// SolarReading is a sub-daily solar generation row
type SolarReading struct {
	Timestamp        time.Time
	ForecastQuantity decimal.NullDecimal
	TodayGeneration  decimal.NullDecimal
	AccumGeneration  decimal.NullDecimal
}

// WeatherReading is a weather observation row
type WeatherReading struct {
	Timestamp time.Time
	Tmn       decimal.NullDecimal
	Tmx       decimal.NullDecimal
	Ics       decimal.NullDecimal
}

// MeterReading is a smart-meter aggregate row
type MeterReading struct {
	UseTime          time.Time
	UsageTotal       decimal.NullDecimal
	ForecastQuantity decimal.NullDecimal
}

// BatteryStat is a battery-management daily stat row. Both quantity fields
// arrive as free text and are sanitized by the rule set.
type BatteryStat struct {
	Day              Day
	CreatedAt        sql.NullTime
	ForecastQuantity sql.NullString
	BatterySOC       sql.NullString
}

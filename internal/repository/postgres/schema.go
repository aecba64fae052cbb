package postgres

import (
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/smartenergy/aidaily/internal/config"
	"github.com/smartenergy/aidaily/internal/domain"
)

// KeyKind tells the adapter how a domain key is written to the store
type KeyKind int

const (
	// KeyTimestamp stores the key as a timestamp
	KeyTimestamp KeyKind = iota
	// KeyCompactDate stores the key as YYYYMMDD text
	KeyCompactDate
)

// SolarDayTable describes the solar generation source
type SolarDayTable struct {
	Table            string
	Timestamp        string
	ForecastQuantity string
	TodayGeneration  string
	AccumGeneration  string
}

// WeatherTable describes the weather source
type WeatherTable struct {
	Table     string
	Timestamp string
	Tmn       string
	Tmx       string
	Ics       string
}

// BatteryTable describes the battery-management daily stat source
type BatteryTable struct {
	Table            string
	VTime            string
	CreatedAt        string
	ForecastQuantity string
	BatterySOC       string
}

// MeterTable describes the smart-meter aggregate source
type MeterTable struct {
	Table            string
	UseTime          string
	UsageTotal       string
	ForecastQuantity string
}

// TargetTable describes a table written by the engine
type TargetTable struct {
	Table   string
	Key     string
	KeyKind KeyKind
	// Columns maps logical fields to physical columns, in read-back order
	Columns []ColumnMapping
	// TextValues writes numbers as fixed two-decimal text
	TextValues bool
	// VerifyFilter restricts read-back rows, e.g. to rows this engine populated
	VerifyFilter string
}

// ColumnMapping binds a logical field to a physical column
type ColumnMapping struct {
	Field  domain.Field
	Column string
}

func (t TargetTable) column(f domain.Field) (string, bool) {
	for _, m := range t.Columns {
		if m.Field == f {
			return m.Column, true
		}
	}
	return "", false
}

// Schema holds every physical name the store touches
type Schema struct {
	SolarDay     SolarDayTable
	WeatherInfo  WeatherTable
	BMSDailyStat BatteryTable
	SmarteyeDay  MeterTable
	AISolarPower TargetTable
	AIESSCharge  TargetTable
	AIPwrUsage   TargetTable
}

// DefaultSchema returns the production schema with table names from config
func DefaultSchema(tables config.Tables) Schema {
	return Schema{
		SolarDay: SolarDayTable{
			Table:            tables.SolarDay,
			Timestamp:        "ymdhms",
			ForecastQuantity: "forecast_quantity",
			TodayGeneration:  "today_generation",
			AccumGeneration:  "accum_generation",
		},
		WeatherInfo: WeatherTable{
			Table:     tables.WeatherInfo,
			Timestamp: "tm",
			Tmn:       "tmn",
			Tmx:       "tmx",
			Ics:       "ics",
		},
		BMSDailyStat: BatteryTable{
			Table:            tables.BMSDailyStat,
			VTime:            "v_time",
			CreatedAt:        "t_create_dt",
			ForecastQuantity: "forecast_quantity",
			BatterySOC:       "d_bat_soc",
		},
		SmarteyeDay: MeterTable{
			Table:            tables.SmarteyeDay,
			UseTime:          "use_time",
			UsageTotal:       "pwr_kepco_usage_tot",
			ForecastQuantity: "forecast_quantity",
		},
		AISolarPower: TargetTable{
			Table: tables.AISolarPower,
			Key:   "ymdhms",
			Columns: []ColumnMapping{
				{domain.FieldTmn, "tmn"},
				{domain.FieldTmx, "tmx"},
				{domain.FieldIcs, "ics"},
				{domain.FieldPrePwrGeneration, "pre_pwr_generation"},
				{domain.FieldTodayGeneration, "today_generation"},
				{domain.FieldAccumGeneration, "accum_generation"},
			},
		},
		AIESSCharge: TargetTable{
			Table: tables.AIESSCharge,
			Key:   "ymdhms",
			Columns: []ColumnMapping{
				{domain.FieldPrePwrGeneration, "pre_pwr_generation"},
				{domain.FieldTodayGeneration, "today_generation"},
				{domain.FieldPwrUsage, "pwr_usage"},
				{domain.FieldPwrForecast, "pwr_forecast"},
				{domain.FieldPreCharge, "pre_charge"},
				{domain.FieldChargeAmount, "charge_amount"},
			},
		},
		AIPwrUsage: TargetTable{
			Table: tables.AIPwrUsage,
			Key:   "ymdhms",
			Columns: []ColumnMapping{
				{domain.FieldPwrUsage, "pwr_usage"},
				{domain.FieldPwrForecast, "pwr_forecase"},
			},
		},
	}
}

// target resolves the table written for a domain target
func (s Schema) target(t domain.Target) (TargetTable, bool) {
	switch t {
	case domain.TargetSolarPower:
		return s.AISolarPower, true
	case domain.TargetESSCharge:
		return s.AIESSCharge, true
	case domain.TargetPowerUsage:
		return s.AIPwrUsage, true
	case domain.TargetESSForecast:
		// the forecast is written back into the battery stat table under V_TIME
		return TargetTable{
			Table:        s.BMSDailyStat.Table,
			Key:          s.BMSDailyStat.VTime,
			KeyKind:      KeyCompactDate,
			Columns:      []ColumnMapping{{domain.FieldForecastQuantity, s.BMSDailyStat.ForecastQuantity}},
			TextValues:   true,
			VerifyFilter: quote(s.BMSDailyStat.ForecastQuantity) + " IS NOT NULL",
		}, true
	}
	return TargetTable{}, false
}

// quote sanitizes a possibly schema-qualified identifier
func quote(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

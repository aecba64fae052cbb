package domain

import (
	"context"
	"time"
)

// Store is the backing store of the aggregation engine.
// Implementations own connection lifecycle; the engine never holds a connection
// outside of Within.
type Store interface {
	// Within runs fn as one unit of work on a single connection.
	// The unit commits when fn returns nil and rolls back otherwise.
	Within(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Recent returns up to limit rows of a target table, newest key first
	Recent(ctx context.Context, target Target, limit int) (RecordSet, error)

	// Health checks store connectivity
	Health(ctx context.Context) error
}

// Tx is the set of reads and writes available inside a unit of work
type Tx interface {
	// SolarWeather returns solar rows inner-joined to weather rows on equal timestamp,
	// restricted to the window on the solar timestamp
	SolarWeather(ctx context.Context, w Window) ([]SolarWeatherReading, error)

	// Solar returns solar rows inside the window ordered by timestamp
	Solar(ctx context.Context, w Window) ([]SolarReading, error)

	// Meter returns smart-meter rows inside the window ordered by use time
	Meter(ctx context.Context, w Window) ([]MeterReading, error)

	// Battery returns battery stat rows filed under the day ordered by creation time
	Battery(ctx context.Context, day Day) ([]BatteryStat, error)

	// Upsert writes only the given columns of the row addressed by key.
	// Columns not listed keep whatever an earlier write stored.
	Upsert(ctx context.Context, target Target, key time.Time, values []FieldValue) (Change, error)
}

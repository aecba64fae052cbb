package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-5, 0, 10))
	assert.Equal(t, 10, Clamp(50, 0, 10))
	assert.Equal(t, 7, Clamp(7, 0, 10))
}

func TestParseLimit(t *testing.T) {
	n, err := ParseLimit("", 10, 1000)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	n, err = ParseLimit("5000", 10, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, n)

	n, err = ParseLimit("0", 10, 1000)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = ParseLimit("-3", 10, 1000)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = ParseLimit("ten", 10, 1000)
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	days, err := DaysBetween("2024-02-27", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01"}, days)

	days, err = DaysBetween("2025-09-20", "2025-09-20")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-09-20"}, days)
}

func TestDaysBetween_Errors(t *testing.T) {
	_, err := DaysBetween("2025-09-21", "2025-09-20")
	assert.Error(t, err)

	_, err = DaysBetween("2025-02-30", "2025-03-01")
	assert.Error(t, err)

	_, err = DaysBetween("1900-01-01", "2100-01-01")
	assert.Error(t, err)
}

package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2025-03", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2025-03", m.String())
	assert.True(t, m.Start().Equal(date(2025, 3, 1)))
	assert.True(t, m.End().Equal(date(2025, 4, 1)))

	for _, bad := range []string{"", "2025-13", "03-2025", "2025/03"} {
		_, err := ParseMonth(bad, time.UTC)
		assert.Error(t, err, bad)
	}
}

func TestMonthContains(t *testing.T) {
	m := NewMonth(2025, time.February, time.UTC)

	assert.True(t, m.Contains(date(2025, 2, 1)))
	assert.True(t, m.Contains(time.Date(2025, 2, 28, 23, 59, 59, 0, time.UTC)))
	assert.False(t, m.Contains(date(2025, 3, 1)))
	assert.False(t, m.Contains(date(2024, 2, 15)), "same month of another year")
}

func TestMonthArithmetic(t *testing.T) {
	december := NewMonth(2024, time.December, time.UTC)
	jan := december.AddDate(0, 1)

	assert.Equal(t, "2025-01", jan.String())
	assert.True(t, jan.Equal(MonthOf(time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC))))
	assert.False(t, jan.Equal(december))
	assert.True(t, Month{}.IsZero())
	assert.Equal(t, time.UTC, NewMonth(2025, time.May, nil).Location())
}

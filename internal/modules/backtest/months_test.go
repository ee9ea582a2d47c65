package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthsBetween(t *testing.T) {
	assert.Equal(t, 1, monthsBetween(date(2020, time.January, 1), date(2020, time.January, 31)))
	assert.Equal(t, 12, monthsBetween(date(2020, time.January, 15), date(2020, time.December, 1)))
	assert.Equal(t, 13, monthsBetween(date(2020, time.December, 31), date(2021, time.December, 1)))
	assert.Equal(t, 0, monthsBetween(date(2021, time.January, 1), date(2020, time.January, 1)))
}

func TestMonthsIn(t *testing.T) {
	months := monthsIn(date(2020, time.November, 20), date(2021, time.February, 10))

	require.Len(t, months, 4)
	assert.Equal(t, date(2020, time.November, 1), months[0])
	assert.Equal(t, date(2021, time.February, 1), months[3])
}

func TestMonthStartEnd(t *testing.T) {
	assert.Equal(t, date(2020, time.February, 1), monthStart(date(2020, time.February, 29)))
	assert.Equal(t, date(2020, time.February, 29), monthEnd(date(2020, time.February, 3))) // leap year
	assert.Equal(t, date(2021, time.February, 28), monthEnd(date(2021, time.February, 3)))
}

func TestIsDividendMonth(t *testing.T) {
	assert.True(t, isDividendMonth(date(2020, time.March, 1)))
	assert.True(t, isDividendMonth(date(2020, time.August, 1)))
	assert.True(t, isDividendMonth(date(2020, time.October, 1)))

	assert.False(t, isDividendMonth(date(2020, time.January, 1)))
	assert.False(t, isDividendMonth(date(2020, time.December, 1)))
}

func TestRebalanceFrequencyInterval(t *testing.T) {
	assert.Equal(t, 1, RebalanceMonthly.monthInterval())
	assert.Equal(t, 3, RebalanceQuarterly.monthInterval())
	assert.Equal(t, 12, RebalanceYearly.monthInterval())
	assert.Equal(t, 0, RebalanceFrequency("daily").monthInterval())
}

package historical

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestMemoryProvider_UnknownTicker(t *testing.T) {
	p := NewMemoryProvider()

	series, err := p.GetSeries("NOPE")
	require.NoError(t, err)
	assert.Nil(t, series)

	events, err := p.GetDividendEvents("NOPE")
	require.NoError(t, err)
	assert.Nil(t, events)
}

func TestMemoryProvider_SortsOnWrite(t *testing.T) {
	p := NewMemoryProvider()
	p.SetSeries("VWCE", []PricePoint{
		{Date: day(2020, time.March, 15), AdjClose: decimal.NewFromInt(103)},
		{Date: day(2020, time.January, 15), AdjClose: decimal.NewFromInt(101)},
		{Date: day(2020, time.February, 15), AdjClose: decimal.NewFromInt(102)},
	})

	series, err := p.GetSeries("VWCE")
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, day(2020, time.January, 15), series[0].Date)
	assert.Equal(t, day(2020, time.March, 15), series[2].Date)
}

func TestMemoryProvider_DividendEventsSorted(t *testing.T) {
	p := NewMemoryProvider()
	p.SetDividendEvents("VWCE", []DividendEvent{
		{Date: day(2020, time.September, 1), Amount: decimal.NewFromFloat(0.40)},
		{Date: day(2020, time.March, 1), Amount: decimal.NewFromFloat(0.35)},
	})

	events, err := p.GetDividendEvents("VWCE")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, day(2020, time.March, 1), events[0].Date)
	assert.True(t, events[0].Amount.Equal(decimal.NewFromFloat(0.35)))
}

func TestMemoryProvider_WriteDoesNotMutateInput(t *testing.T) {
	p := NewMemoryProvider()
	input := []PricePoint{
		{Date: day(2020, time.February, 15), AdjClose: decimal.NewFromInt(102)},
		{Date: day(2020, time.January, 15), AdjClose: decimal.NewFromInt(101)},
	}
	p.SetSeries("VWCE", input)

	// The provider sorts a copy, not the caller's slice
	assert.Equal(t, day(2020, time.February, 15), input[0].Date)
}

package historical

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Prefetch loads the series and dividend events for every ticker into an
// in-memory snapshot, fetching tickers concurrently.
//
// Each ticker's data is independent and read-only at this stage, so parallel
// fetching is safe. The returned snapshot is the only provider the simulation
// stages touch, which keeps a run deterministic even if the underlying store
// changes while the run is in flight.
func Prefetch(provider SeriesProvider, tickers []string, log zerolog.Logger) (*MemoryProvider, error) {
	snapshot := NewMemoryProvider()

	var wg sync.WaitGroup
	errs := make([]error, len(tickers))

	for i, ticker := range tickers {
		wg.Add(1)
		go func(i int, ticker string) {
			defer wg.Done()

			series, err := provider.GetSeries(ticker)
			if err != nil {
				errs[i] = fmt.Errorf("failed to fetch series for %s: %w", ticker, err)
				return
			}
			snapshot.SetSeries(ticker, series)

			events, err := provider.GetDividendEvents(ticker)
			if err != nil {
				errs[i] = fmt.Errorf("failed to fetch dividend events for %s: %w", ticker, err)
				return
			}
			if events != nil {
				snapshot.SetDividendEvents(ticker, events)
			}
		}(i, ticker)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	log.Debug().Int("tickers", len(tickers)).Msg("Prefetched historical series")
	return snapshot, nil
}

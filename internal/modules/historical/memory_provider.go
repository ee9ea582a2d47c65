package historical

import (
	"sort"
	"sync"
)

// MemoryProvider is a SeriesProvider backed by in-memory maps.
//
// It serves two purposes: synthetic data in tests, and the snapshot target of
// the concurrent prefetcher (see Prefetch). Reads are safe for concurrent use;
// writes are expected to happen before the provider is handed to the engine.
type MemoryProvider struct {
	mu        sync.RWMutex
	series    map[string][]PricePoint
	dividends map[string][]DividendEvent
}

// NewMemoryProvider creates an empty in-memory provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		series:    make(map[string][]PricePoint),
		dividends: make(map[string][]DividendEvent),
	}
}

// SetSeries stores a price series for a ticker, sorted by date ascending
func (p *MemoryProvider) SetSeries(ticker string, points []PricePoint) {
	sorted := make([]PricePoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	p.mu.Lock()
	defer p.mu.Unlock()
	p.series[ticker] = sorted
}

// SetDividendEvents stores actual dividend events for a ticker, sorted by date ascending
func (p *MemoryProvider) SetDividendEvents(ticker string, events []DividendEvent) {
	sorted := make([]DividendEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dividends[ticker] = sorted
}

// GetSeries returns the stored price series for a ticker (nil if unknown)
func (p *MemoryProvider) GetSeries(ticker string) ([]PricePoint, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.series[ticker], nil
}

// GetDividendEvents returns stored dividend events for a ticker.
// Returns nil when the ticker has no event history, which tells the
// simulator to fall back to the assumed yield model.
func (p *MemoryProvider) GetDividendEvents(ticker string) ([]DividendEvent, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dividends[ticker], nil
}

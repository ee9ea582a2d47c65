package events

import "time"

// RunReporter emits throttled progress events for a single backtest run.
// Throttling keeps a fast simulation from flooding the bus; the final
// month always bypasses the throttle so clients see 100%.
type RunReporter struct {
	manager     *Manager
	runID       string
	lastReport  time.Time
	minInterval time.Duration
}

// NewRunReporter creates a reporter for a run. Default throttle is 100ms
// (10 updates/sec max).
func NewRunReporter(manager *Manager, runID string) *RunReporter {
	return &RunReporter{
		manager:     manager,
		runID:       runID,
		minInterval: 100 * time.Millisecond,
	}
}

// Started emits a RunStarted event
func (r *RunReporter) Started(months int) {
	if r.manager == nil {
		return
	}
	r.manager.EmitTyped(RunStarted, "backtest", &RunStartedData{
		RunID:  r.runID,
		Months: months,
	})
}

// Report emits a progress event (throttled to prevent flooding).
// Completion always bypasses the throttle.
func (r *RunReporter) Report(current, total int, message string) {
	if r.manager == nil {
		return
	}

	now := time.Now()
	if now.Sub(r.lastReport) < r.minInterval && current != total {
		return
	}
	r.lastReport = now

	r.manager.EmitTyped(RunProgress, "backtest", &RunProgressData{
		RunID:   r.runID,
		Current: current,
		Total:   total,
		Message: message,
	})
}

// Completed emits a RunCompleted event
func (r *RunReporter) Completed(months int, finalValue string) {
	if r.manager == nil {
		return
	}
	r.manager.EmitTyped(RunCompleted, "backtest", &RunCompletedData{
		RunID:      r.runID,
		Months:     months,
		FinalValue: finalValue,
	})
}

// Failed emits a RunFailed event
func (r *RunReporter) Failed(err error) {
	if r.manager == nil || err == nil {
		return
	}
	r.manager.EmitTyped(RunFailed, "backtest", &RunFailedData{
		RunID: r.runID,
		Error: err.Error(),
	})
}

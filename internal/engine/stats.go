package engine

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"argus/automation-engine/internal/safety"
)

// Histogram range: 1ms to 10 minutes, 3 significant figures.
const (
	histMin     = 1
	histMax     = int64(10 * time.Minute / time.Millisecond)
	histSigFigs = 3
)

// LatencyStats summarizes dispatch latency for one action type, in
// milliseconds.
type LatencyStats struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean_ms"`
	P50   int64   `json:"p50_ms"`
	P95   int64   `json:"p95_ms"`
	P99   int64   `json:"p99_ms"`
	Max   int64   `json:"max_ms"`
}

// Stats is the engine-wide status snapshot.
type Stats struct {
	QueueLength     int                     `json:"queue_length"`
	QueueCapacity   int                     `json:"queue_capacity"`
	CurrentID       string                  `json:"current_execution_id,omitempty"`
	ExecutionCounts map[string]int          `json:"execution_counts"`
	Safety          safety.Stats            `json:"safety"`
	ActionLatency   map[string]LatencyStats `json:"action_latency"`
}

// recordLatency records one dispatch duration into the action type's
// histogram. Out-of-range values are clamped by the histogram itself.
func (e *Executor) recordLatency(actionType string, elapsed time.Duration) {
	e.histMu.Lock()
	defer e.histMu.Unlock()
	h, ok := e.histograms[actionType]
	if !ok {
		h = hdrhistogram.New(histMin, histMax, histSigFigs)
		e.histograms[actionType] = h
	}
	ms := elapsed.Milliseconds()
	if ms < histMin {
		ms = histMin
	}
	if ms > histMax {
		ms = histMax
	}
	_ = h.RecordValue(ms)
}

// Stats returns a snapshot of queue depth, execution states, safety state
// and per-action-type latency percentiles.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	counts := make(map[string]int)
	for _, execution := range e.executions {
		counts[string(execution.State)]++
	}
	currentID := e.currentID
	e.mu.Unlock()

	e.histMu.Lock()
	latency := make(map[string]LatencyStats, len(e.histograms))
	for actionType, h := range e.histograms {
		latency[actionType] = LatencyStats{
			Count: h.TotalCount(),
			Mean:  h.Mean(),
			P50:   h.ValueAtQuantile(50),
			P95:   h.ValueAtQuantile(95),
			P99:   h.ValueAtQuantile(99),
			Max:   h.Max(),
		}
	}
	e.histMu.Unlock()

	return Stats{
		QueueLength:     len(e.queue),
		QueueCapacity:   cap(e.queue),
		CurrentID:       currentID,
		ExecutionCounts: counts,
		Safety:          e.guard.Stats(),
		ActionLatency:   latency,
	}
}

// VerificationSuccessRate exposes the verifier's aggregate success rate, 0
// when no verifier is configured.
func (e *Executor) VerificationSuccessRate() float64 {
	if e.verifier == nil {
		return 0
	}
	return e.verifier.SuccessRate()
}

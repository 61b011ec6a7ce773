// Package feedback analyzes finished executions, maintains per-workflow
// confidence and failure counters, and produces adjusted workflow copies.
package feedback

import (
	"sync"

	"argus/automation-engine/pkg/types"
)

const (
	// defaultConfidence is the starting confidence for an unseen workflow.
	defaultConfidence = 0.5

	// maxHistory bounds the per-workflow execution history.
	maxHistory = 100

	// maxAdjustments bounds the per-workflow applied-adjustment history.
	maxAdjustments = 50
)

// Store holds the accumulated feedback state per workflow. Implementations
// must be safe for concurrent use.
type Store interface {
	// Confidence returns the workflow's confidence, defaultConfidence if unseen.
	Confidence(workflowID string) float64
	// SetConfidence stores the workflow's confidence.
	SetConfidence(workflowID string, confidence float64)

	// FailureCount returns the counter for one failure class.
	FailureCount(workflowID, class string) int
	// IncrementFailure bumps the counter for one failure class.
	IncrementFailure(workflowID, class string)

	// ConsecutiveFailures returns the current consecutive-failure streak.
	ConsecutiveFailures(workflowID string) int

	// RecordOutcome appends a bounded history entry and updates the
	// consecutive-failure streak.
	RecordOutcome(workflowID string, summary types.ExecutionSummary)
	// History returns a copy of the bounded execution history.
	History(workflowID string) []types.ExecutionSummary

	// RecordAdjustments appends applied adjustments to the bounded history.
	RecordAdjustments(workflowID string, adjustments []types.Adjustment)
	// Adjustments returns a copy of the bounded adjustment history.
	Adjustments(workflowID string) []types.Adjustment

	// Clear drops all state for one workflow.
	Clear(workflowID string)
	// ClearAll drops all state.
	ClearAll()
}

type workflowRecord struct {
	confidence          float64
	confidenceSet       bool
	failureCounts       map[string]int
	consecutiveFailures int
	history             []types.ExecutionSummary
	adjustments         []types.Adjustment
}

// MemoryStore is the in-process Store implementation.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*workflowRecord
}

// NewMemoryStore creates an empty in-memory feedback store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*workflowRecord)}
}

func (s *MemoryStore) record(workflowID string) *workflowRecord {
	r, ok := s.records[workflowID]
	if !ok {
		r = &workflowRecord{failureCounts: make(map[string]int)}
		s.records[workflowID] = r
	}
	return r
}

// Confidence implements Store.
func (s *MemoryStore) Confidence(workflowID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[workflowID]; ok && r.confidenceSet {
		return r.confidence
	}
	return defaultConfidence
}

// SetConfidence implements Store.
func (s *MemoryStore) SetConfidence(workflowID string, confidence float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.record(workflowID)
	r.confidence = confidence
	r.confidenceSet = true
}

// FailureCount implements Store.
func (s *MemoryStore) FailureCount(workflowID, class string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[workflowID]; ok {
		return r.failureCounts[class]
	}
	return 0
}

// IncrementFailure implements Store.
func (s *MemoryStore) IncrementFailure(workflowID, class string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(workflowID).failureCounts[class]++
}

// ConsecutiveFailures implements Store.
func (s *MemoryStore) ConsecutiveFailures(workflowID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[workflowID]; ok {
		return r.consecutiveFailures
	}
	return 0
}

// RecordOutcome implements Store.
func (s *MemoryStore) RecordOutcome(workflowID string, summary types.ExecutionSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.record(workflowID)
	r.history = append(r.history, summary)
	if len(r.history) > maxHistory {
		r.history = r.history[len(r.history)-maxHistory:]
	}
	if summary.Success {
		r.consecutiveFailures = 0
	} else {
		r.consecutiveFailures++
	}
}

// History implements Store.
func (s *MemoryStore) History(workflowID string) []types.ExecutionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[workflowID]; ok {
		return append([]types.ExecutionSummary(nil), r.history...)
	}
	return nil
}

// RecordAdjustments implements Store.
func (s *MemoryStore) RecordAdjustments(workflowID string, adjustments []types.Adjustment) {
	if len(adjustments) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.record(workflowID)
	r.adjustments = append(r.adjustments, adjustments...)
	if len(r.adjustments) > maxAdjustments {
		r.adjustments = r.adjustments[len(r.adjustments)-maxAdjustments:]
	}
}

// Adjustments implements Store.
func (s *MemoryStore) Adjustments(workflowID string) []types.Adjustment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[workflowID]; ok {
		return append([]types.Adjustment(nil), r.adjustments...)
	}
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(workflowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, workflowID)
}

// ClearAll implements Store.
func (s *MemoryStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*workflowRecord)
}

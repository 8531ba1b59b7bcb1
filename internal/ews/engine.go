package ews

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sapang3/vision-crowd/internal/contracts"
)

// ErrOutOfOrder is returned when a sample does not advance the timestamp of
// the previously ingested one. The engine never reorders; late samples are
// the feed's problem.
var ErrOutOfOrder = errors.New("sample timestamp does not advance the ingest stream")

// Engine is the snapshot orchestrator: the single stateful coordinator
// tying normalizer, risk calculator, alert machine and history together.
// One ingestion path writes; any number of readers may call Latest and
// History concurrently and always observe a complete snapshot with its
// matching alert level.
type Engine struct {
	cfg Config
	now func() time.Time

	mu      sync.RWMutex
	norm    *normalizer
	machine *AlertMachine
	history *History
	lastTS  time.Time
	hasLast bool
}

// New validates the configuration and builds an engine starting at Green
// with an empty history. A broken weight vector or alert ladder is a fatal
// startup defect, surfaced here.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:     cfg,
		now:     now,
		norm:    newNormalizer(cfg.Normalizer),
		machine: NewAlertMachine(cfg.Thresholds),
		history: NewHistory(cfg.HistoryCapacity),
	}, nil
}

// Ingest processes one raw sample: normalize, score, step the alert state,
// append to history and publish as latest, atomically with respect to
// readers. Samples must arrive with strictly increasing timestamps; a stale
// sample is rejected with ErrOutOfOrder and leaves all state untouched.
func (e *Engine) Ingest(sample contracts.RawSample) (contracts.RiskSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.hasLast && !sample.Timestamp.After(e.lastTS) {
		return contracts.RiskSnapshot{}, fmt.Errorf("%w: %s not after %s",
			ErrOutOfOrder, sample.Timestamp.Format(time.RFC3339Nano), e.lastTS.Format(time.RFC3339Nano))
	}

	indices, degraded := e.norm.Normalize(sample, e.now())
	physical := PhysicalRisk(indices, e.cfg.Weights)
	intention := BehavioralIntention(indices, e.cfg.Behavior)
	extended := ExtendedRisk(physical, intention, e.cfg.Blend)
	level := e.machine.Step(extended)

	snapshot := contracts.RiskSnapshot{
		ID:           uuid.NewString(),
		Timestamp:    sample.Timestamp,
		Zone:         sample.Zone,
		Phase:        sample.Phase,
		IndexSet:     indices,
		BI:           intention,
		PhysicalRisk: physical,
		ExtendedRisk: extended,
		Alert:        level,
		Degraded:     degraded,
	}

	e.history.Append(snapshot)
	e.lastTS = sample.Timestamp
	e.hasLast = true

	return snapshot, nil
}

// Latest returns the most recent published snapshot. Idempotent between
// ingests.
func (e *Engine) Latest() (contracts.RiskSnapshot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.history.Latest()
}

// History returns up to k snapshots in chronological order, oldest first.
func (e *Engine) History(k int) []contracts.RiskSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.history.Last(k)
}

// Level reports the current alert level without a snapshot.
func (e *Engine) Level() contracts.AlertLevel {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.machine.Level()
}

// Capacity is the configured ring-buffer size N.
func (e *Engine) Capacity() int {
	return e.cfg.HistoryCapacity
}

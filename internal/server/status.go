package server

import (
	"context"
	"sync"
	"time"
)

// Job phases reported by JobStatus.
const (
	PhaseStarting = "starting"
	PhaseEncoding = "encoding"
	PhaseDone     = "done"
	PhaseFailed   = "failed"
)

// JobStatus tracks one encode run.
type JobStatus struct {
	mu       sync.RWMutex
	typeName string
	phase    string
	started  time.Time
	now      func() time.Time
}

// Ensure implementation satisfies interface at compile time.
var _ HealthChecker = (*JobStatus)(nil)

func NewJobStatus(typeName string) *JobStatus {
	return &JobStatus{typeName: typeName, phase: PhaseStarting, started: time.Now(), now: time.Now}
}

func (s *JobStatus) SetPhase(phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
}

func (s *JobStatus) Phase() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

func (s *JobStatus) Liveness() bool {
	return s.Phase() != PhaseFailed
}

func (s *JobStatus) Readiness(context.Context) bool {
	return s.Phase() == PhaseEncoding
}

func (s *JobStatus) Status() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]string{
		"type_name": s.typeName,
		"phase":     s.phase,
		"elapsed":   s.now().Sub(s.started).Truncate(time.Millisecond).String(),
	}
}

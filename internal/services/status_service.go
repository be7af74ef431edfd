package services

import (
	"sync"
	"time"

	"github.com/osvaldoandrade/skinup/internal/tracker"
	"github.com/osvaldoandrade/skinup/pkg/domain"
)

type RunStatus struct {
	RunID     string           `json:"runId"`
	State     tracker.State    `json:"state"`
	JobID     domain.JobHandle `json:"jobId,omitempty"`
	Attempts  int              `json:"attempts"`
	Error     string           `json:"error,omitempty"`
	ErrorKind domain.ErrorKind `json:"errorKind,omitempty"`
	StartedAt time.Time        `json:"startedAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// StatusService keeps the latest state of the current run for the local
// status endpoint. Artifacts are not retained.
type StatusService interface {
	tracker.Notifier
	Snapshot() (RunStatus, bool)
}

type statusService struct {
	mu      sync.RWMutex
	current *RunStatus
}

func NewStatusService() StatusService {
	return &statusService{}
}

func (s *statusService) Notify(ev tracker.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.RunID != ev.RunID {
		s.current = &RunStatus{RunID: ev.RunID, StartedAt: ev.At}
	}
	st := s.current
	st.State = ev.State
	st.Attempts = ev.Attempt
	st.UpdatedAt = ev.At
	if ev.Job != "" {
		st.JobID = ev.Job
	}
	if ev.Err != nil {
		st.Error = ev.Err.Error()
		st.ErrorKind = domain.KindOf(ev.Err)
	}
}

func (s *statusService) Snapshot() (RunStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return RunStatus{}, false
	}
	return *s.current, true
}

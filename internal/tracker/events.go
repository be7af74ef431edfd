package tracker

import (
	"time"

	"github.com/osvaldoandrade/skinup/pkg/domain"
)

type State string

const (
	StateStart     State = "START"
	StateSubmitted State = "SUBMITTED"
	StatePolling   State = "POLLING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

type EventType string

const (
	EventSubmitting EventType = "SUBMITTING"
	EventQueued     EventType = "QUEUED"
	EventProcessing EventType = "PROCESSING"
	EventCompleted  EventType = "COMPLETED"
	EventFailed     EventType = "FAILED"
)

// Event marks a state transition of one run. Attempt is the number of polls
// issued so far; it is zero when the submission resolved immediately.
type Event struct {
	Type     EventType
	State    State
	RunID    string
	Job      domain.JobHandle
	Attempt  int
	Artifact domain.Artifact
	Err      error
	At       time.Time
}

type Notifier interface {
	Notify(ev Event)
}

type NotifierFunc func(ev Event)

func (f NotifierFunc) Notify(ev Event) { f(ev) }

// Notifiers fans an event out to every non-nil notifier in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ev Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ev)
		}
	}
}

type discard struct{}

func (discard) Notify(Event) {}

package domain

// JobHandle names an in-flight job on the remote service.
type JobHandle string

func (j JobHandle) String() string { return string(j) }

// Artifact is the generated skin texture. Both values are passed through verbatim.
type Artifact struct {
	Texture   string `json:"texture"`
	Signature string `json:"signature"`
}

type SubmissionKind string

const (
	SubmissionImmediate SubmissionKind = "IMMEDIATE"
	SubmissionDeferred  SubmissionKind = "DEFERRED"
)

// SubmissionResult is the first answer of the service: either a finished
// Artifact or a JobHandle to poll. Exactly one of them is set.
type SubmissionResult struct {
	Kind     SubmissionKind
	Artifact Artifact
	Job      JobHandle
}

func Immediate(a Artifact) SubmissionResult {
	return SubmissionResult{Kind: SubmissionImmediate, Artifact: a}
}

func Deferred(job JobHandle) SubmissionResult {
	return SubmissionResult{Kind: SubmissionDeferred, Job: job}
}

type PollStatus string

const (
	PollProcessing PollStatus = "PROCESSING"
	PollResolved   PollStatus = "RESOLVED"
	PollFailed     PollStatus = "FAILED"
)

// PollOutcome is the answer to a single status check of a JobHandle.
// Reason is only meaningful when Status is PollFailed.
type PollOutcome struct {
	Status   PollStatus
	Artifact Artifact
	Reason   string
}

func (o PollOutcome) Terminal() bool {
	return o.Status == PollResolved || o.Status == PollFailed
}

func StillProcessing() PollOutcome { return PollOutcome{Status: PollProcessing} }

func Resolved(a Artifact) PollOutcome { return PollOutcome{Status: PollResolved, Artifact: a} }

func Failed(reason string) PollOutcome { return PollOutcome{Status: PollFailed, Reason: reason} }

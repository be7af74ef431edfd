package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/osvaldoandrade/skinup/internal/metrics"
	"github.com/osvaldoandrade/skinup/internal/tracing"
	"github.com/osvaldoandrade/skinup/pkg/domain"
)

const DefaultInterval = time.Second

// Transport is the subset of the MineSkin client the tracker drives.
type Transport interface {
	Submit(ctx context.Context, path string, credential string) (domain.SubmissionResult, error)
	Poll(ctx context.Context, job domain.JobHandle, credential string) (domain.PollOutcome, error)
}

type Options struct {
	// Interval is the pause before every poll. Defaults to one second.
	Interval time.Duration
	// MaxAttempts bounds the number of polls; zero polls until a terminal outcome.
	MaxAttempts int
	// Timeout bounds a whole run; zero means no deadline.
	Timeout  time.Duration
	Notifier Notifier
	Logger   *slog.Logger
	Now      func() time.Time
}

// Tracker drives one upload from file to artifact. It holds no per-run state,
// so a single Tracker may serve sequential runs.
type Tracker struct {
	transport   Transport
	interval    time.Duration
	maxAttempts int
	timeout     time.Duration
	notifier    Notifier
	logger      *slog.Logger
	now         func() time.Time
}

func New(transport Transport, opts Options) *Tracker {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxAttempts < 0 {
		opts.MaxAttempts = 0
	}
	if opts.Timeout < 0 {
		opts.Timeout = 0
	}
	if opts.Notifier == nil {
		opts.Notifier = discard{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		transport:   transport,
		interval:    opts.Interval,
		maxAttempts: opts.MaxAttempts,
		timeout:     opts.Timeout,
		notifier:    opts.Notifier,
		logger:      opts.Logger,
		now:         opts.Now,
	}
}

// run carries the state of a single invocation.
type run struct {
	t          *Tracker
	id         string
	credential string
	logger     *slog.Logger
	span       trace.Span
	state      State
	job        domain.JobHandle
	attempt    int
	started    time.Time
}

// Run submits the file at path and waits until the service yields an artifact
// or a terminal error. Exactly one of the two is returned.
func (t *Tracker) Run(ctx context.Context, path string, credential string) (domain.Artifact, error) {
	ctx, r, cancel := t.begin(ctx, "tracker.run", credential)
	defer cancel()
	defer r.span.End()

	r.emit(EventSubmitting, domain.Artifact{}, nil)
	res, err := t.transport.Submit(ctx, path, credential)
	if err != nil {
		return r.fail(err)
	}
	r.transition(StateSubmitted)

	switch res.Kind {
	case domain.SubmissionImmediate:
		return r.complete(res.Artifact)
	case domain.SubmissionDeferred:
		if res.Job == "" {
			return r.fail(domain.NewError("submit", domain.KindProtocol, domain.ErrEmptyResponse))
		}
		r.job = res.Job
		tracing.Job(r.span, r.job)
		r.emit(EventQueued, domain.Artifact{}, nil)
		return r.poll(ctx)
	default:
		return r.fail(domain.NewError("submit", domain.KindProtocol, fmt.Errorf("unknown submission kind %q", res.Kind)))
	}
}

// Resume polls a job issued by an earlier submission.
func (t *Tracker) Resume(ctx context.Context, job domain.JobHandle, credential string) (domain.Artifact, error) {
	ctx, r, cancel := t.begin(ctx, "tracker.resume", credential)
	defer cancel()
	defer r.span.End()

	if job == "" {
		return r.fail(domain.NewError("resume", domain.KindProtocol, errors.New("empty job handle")))
	}
	r.job = job
	tracing.Job(r.span, job)
	r.transition(StateSubmitted)
	r.emit(EventQueued, domain.Artifact{}, nil)
	return r.poll(ctx)
}

func (t *Tracker) begin(ctx context.Context, spanName string, credential string) (context.Context, *run, context.CancelFunc) {
	cancel := context.CancelFunc(func() {})
	if t.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
	}
	id := uuid.NewString()
	ctx, span := tracing.Tracer().Start(ctx, spanName, trace.WithAttributes(tracing.AttrRunID.String(id)))
	r := &run{
		t:          t,
		id:         id,
		credential: credential,
		logger:     t.logger.With("run_id", id),
		span:       span,
		state:      StateStart,
		started:    t.now(),
	}
	return ctx, r, cancel
}

func (r *run) poll(ctx context.Context) (domain.Artifact, error) {
	r.transition(StatePolling)
	for {
		if err := sleepOrDone(ctx, r.t.interval); err != nil {
			return r.fail(contextError(r.job, err))
		}
		r.attempt++
		out, err := r.t.transport.Poll(ctx, r.job, r.credential)
		if err != nil {
			return r.fail(err)
		}
		metrics.PollsTotal.WithLabelValues(string(out.Status)).Inc()

		switch out.Status {
		case domain.PollResolved:
			return r.complete(out.Artifact)
		case domain.PollFailed:
			reason := out.Reason
			if reason == "" {
				reason = "job failed"
			}
			return r.fail(&domain.Error{Op: "poll", Kind: domain.KindRemoteJob, Job: r.job, Err: errors.New(reason)})
		}

		r.emit(EventProcessing, domain.Artifact{}, nil)
		if r.t.maxAttempts > 0 && r.attempt >= r.t.maxAttempts {
			return r.fail(&domain.Error{Op: "poll", Kind: domain.KindTimeout, Job: r.job, Err: fmt.Errorf("job still processing after %d polls", r.attempt)})
		}
	}
}

func (r *run) transition(s State) {
	r.logger.Debug("tracker state", "from", r.state, "to", s, "job_id", r.job, "attempt", r.attempt)
	r.state = s
}

func (r *run) emit(typ EventType, a domain.Artifact, err error) {
	r.t.notifier.Notify(Event{
		Type:     typ,
		State:    r.state,
		RunID:    r.id,
		Job:      r.job,
		Attempt:  r.attempt,
		Artifact: a,
		Err:      err,
		At:       r.t.now(),
	})
}

func (r *run) complete(a domain.Artifact) (domain.Artifact, error) {
	r.transition(StateCompleted)
	r.observe("completed")
	tracing.Finish(r.span, nil)
	r.emit(EventCompleted, a, nil)
	return a, nil
}

func (r *run) fail(err error) (domain.Artifact, error) {
	r.transition(StateFailed)
	kind := domain.KindOf(err)
	if kind == "" {
		kind = "unknown"
	}
	r.observe(string(kind))
	tracing.Finish(r.span, err)
	r.logger.Warn("upload failed", "job_id", r.job, "attempt", r.attempt, "kind", kind, "err", err)
	r.emit(EventFailed, domain.Artifact{}, err)
	return domain.Artifact{}, err
}

func (r *run) observe(outcome string) {
	metrics.RunsTotal.WithLabelValues(outcome).Inc()
	metrics.RunDurationSeconds.WithLabelValues(outcome).Observe(r.t.now().Sub(r.started).Seconds())
}

func contextError(job domain.JobHandle, err error) error {
	kind := domain.KindCanceled
	if errors.Is(err, context.DeadlineExceeded) {
		kind = domain.KindTimeout
	}
	return &domain.Error{Op: "poll", Kind: kind, Job: job, Err: err}
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package extraction_engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/Examina/internal/core"
	"github.com/markdave123-py/Examina/internal/logging"
)

// Decision is what the retry loop does with a failed call.
type Decision int

const (
	// DecisionRetry is for throttling: fail over once or back off.
	DecisionRetry Decision = iota
	// DecisionAbort gives up on the chunk.
	DecisionAbort
	// DecisionModelGone gives up on the chunk and reports the model to the selector.
	DecisionModelGone
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real-time Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
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

// RetryPolicy bounds attempts per call and spaces throttled retries exponentially.
type RetryPolicy struct {
	BaseDelay  time.Duration
	MaxRetries int
	Classify   func(error) Decision
}

// DefaultRetryPolicy is 3 attempts with a 5s base delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{BaseDelay: 5 * time.Second, MaxRetries: 3, Classify: ClassifyError}
}

// ClassifyError maps provider errors to retry decisions.
func ClassifyError(err error) Decision {
	switch {
	case core.IsRateLimited(err):
		return DecisionRetry
	case core.IsModelUnavailable(err):
		return DecisionModelGone
	default:
		return DecisionAbort
	}
}

// Backoff returns BaseDelay * 2^(attempt-1).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay << (attempt - 1)
}

func (p RetryPolicy) classify(err error) Decision {
	if p.Classify == nil {
		return ClassifyError(err)
	}
	return p.Classify(err)
}

// Outcome of a single completion attempt.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeError       Outcome = "error"
)

// Attempt records one completion call for logging and observers.
type Attempt struct {
	Stage      string
	Chunk      int
	Number     int
	Credential core.Credential
	Model      string
	Outcome    Outcome
	Elapsed    time.Duration
	Delay      time.Duration
	FailedOver bool
	Err        error
}

// Call is one unit of work for the orchestrator.
type Call struct {
	Stage  string // "questions" or "title"
	Chunk  int
	Prompt string
}

// Run holds state shared by every call of one extraction.
type Run struct {
	failedOver atomic.Bool
}

// FailedOver reports whether this run switched credentials.
func (r *Run) FailedOver() bool { return r.failedOver.Load() }

// RetryOrchestrator drives completion calls with bounded retries, exponential
// backoff on throttling and a single credential failover per run.
type RetryOrchestrator struct {
	selector    core.ModelSelector
	policy      RetryPolicy
	sleep       Sleeper
	callTimeout time.Duration
	onAttempt   func(Attempt)
	now         func() time.Time
	log         *zap.Logger
}

func NewRetryOrchestrator(selector core.ModelSelector, policy RetryPolicy, sleep Sleeper, callTimeout time.Duration, log *zap.Logger) *RetryOrchestrator {
	if sleep == nil {
		sleep = SleepContext
	}
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = 1
	}
	return &RetryOrchestrator{
		selector:    selector,
		policy:      policy,
		sleep:       sleep,
		callTimeout: callTimeout,
		now:         time.Now,
		log:         logging.OrNop(log),
	}
}

// CallWithRetry returns the raw completion text, or a *core.ChunkError once
// the call is abandoned.
func (o *RetryOrchestrator) CallWithRetry(ctx context.Context, run *Run, call Call) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= o.policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", &core.ChunkError{Chunk: call.Chunk, Err: err}
		}

		sel := o.selector.Active()
		rec := Attempt{Stage: call.Stage, Chunk: call.Chunk, Number: attempt, Credential: sel.Credential, Model: sel.Model}

		text, elapsed, err := o.complete(ctx, sel, call.Prompt)
		rec.Elapsed = elapsed
		if err == nil {
			rec.Outcome = OutcomeSuccess
			o.record(rec)
			return text, nil
		}
		lastErr = err
		rec.Err = err

		switch o.policy.classify(err) {
		case DecisionRetry:
			rec.Outcome = OutcomeRateLimited

			if attempt == 1 && !run.failedOver.Load() && o.selector.SwitchToFallback() {
				run.failedOver.Store(true)
				rec.FailedOver = true
				o.record(rec)
				o.log.Warn("model.failover",
					zap.String("stage", call.Stage),
					zap.Int("chunk", call.Chunk),
					zap.String("from", string(sel.Credential)))
				// the switch does not use up an attempt
				attempt = 0
				continue
			}

			if attempt == o.policy.MaxRetries {
				o.record(rec)
				continue
			}
			rec.Delay = o.policy.Backoff(attempt)
			o.record(rec)
			if err := o.sleep(ctx, rec.Delay); err != nil {
				return "", &core.ChunkError{Chunk: call.Chunk, Err: err}
			}

		case DecisionModelGone:
			rec.Outcome = OutcomeError
			o.record(rec)
			o.selector.MarkUnavailable(sel.Model)
			return "", &core.ChunkError{Chunk: call.Chunk, Err: fmt.Errorf("%w: %w", core.ErrModelUnavailable, err)}

		default:
			rec.Outcome = OutcomeError
			o.record(rec)
			return "", &core.ChunkError{Chunk: call.Chunk, Err: err}
		}
	}

	return "", &core.ChunkError{Chunk: call.Chunk, Err: fmt.Errorf("retries exhausted: %w", lastErr)}
}

func (o *RetryOrchestrator) complete(ctx context.Context, sel core.Selection, prompt string) (string, time.Duration, error) {
	if sel.Client == nil {
		return "", 0, core.ErrNotConfigured
	}
	callCtx := ctx
	if o.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
	}
	start := o.now()
	text, err := sel.Client.Complete(callCtx, sel.Model, prompt)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("completion call timed out after %s: %w", o.callTimeout, err)
	}
	return text, o.now().Sub(start), err
}

func (o *RetryOrchestrator) record(a Attempt) {
	fields := []zap.Field{
		zap.String("stage", a.Stage),
		zap.Int("chunk", a.Chunk),
		zap.Int("attempt", a.Number),
		zap.String("credential", string(a.Credential)),
		zap.String("model", a.Model),
		zap.String("outcome", string(a.Outcome)),
		zap.Duration("elapsed", a.Elapsed),
	}
	switch a.Outcome {
	case OutcomeSuccess:
		o.log.Debug("extract.call.ok", fields...)
	case OutcomeRateLimited:
		o.log.Warn("extract.call.retry", append(fields, zap.Duration("delay", a.Delay), zap.Error(a.Err))...)
	default:
		o.log.Warn("extract.call.failed", append(fields, zap.Error(a.Err))...)
	}
	if o.onAttempt != nil {
		o.onAttempt(a)
	}
}

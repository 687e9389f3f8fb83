package gojob

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-loans/core"
)

const dedupPolicyDrop = "drop"

// BackgroundService is the part of the loans service driven by jobs.
type BackgroundService interface {
	RunReminders(ctx context.Context, asOf time.Time) (core.ReminderResult, error)
	DispatchOutbox(ctx context.Context, batchSize int) (core.DispatchStats, error)
}

// NewRemindersRunMessage builds a reminder scan job. Runs for the same UTC
// day share an idempotency key.
func NewRemindersRunMessage(asOf time.Time) *core.JobExecutionMessage {
	asOf = asOf.UTC()
	return &core.JobExecutionMessage{
		JobID:          JobIDRemindersRun,
		ScriptPath:     JobIDRemindersRun,
		Parameters:     map[string]any{"as_of": asOf.Format(time.RFC3339)},
		IdempotencyKey: JobIDRemindersRun + ":" + asOf.Format(time.DateOnly),
		DedupPolicy:    dedupPolicyDrop,
	}
}

// NewOutboxDispatchMessage builds an outbox dispatch job. A batchSize <= 0
// defers to the service configuration.
func NewOutboxDispatchMessage(batchSize int) *core.JobExecutionMessage {
	params := map[string]any{}
	if batchSize > 0 {
		params["batch_size"] = batchSize
	}
	return &core.JobExecutionMessage{
		JobID:      JobIDOutboxDispatch,
		ScriptPath: JobIDOutboxDispatch,
		Parameters: params,
	}
}

// Runner executes loans job messages against a BackgroundService.
type Runner struct {
	service BackgroundService
	policy  RetryPolicy
	hook    core.JobWorkerHook
	now     func() time.Time
}

func NewRunner(service BackgroundService, policy RetryPolicy, hook core.JobWorkerHook) *Runner {
	return &Runner{service: service, policy: policy, hook: hook, now: time.Now}
}

// Execute runs msg. Unknown job IDs are rejected without touching the
// service.
func (r *Runner) Execute(ctx context.Context, msg *core.JobExecutionMessage) error {
	if r == nil || r.service == nil {
		return fmt.Errorf("gojob: background service is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	switch strings.TrimSpace(msg.JobID) {
	case JobIDRemindersRun:
		asOf, err := timeParam(msg.Parameters, "as_of")
		if err != nil {
			return err
		}
		if asOf.IsZero() {
			asOf = r.clock()
		}
		_, err = r.service.RunReminders(ctx, asOf.UTC())
		return err
	case JobIDOutboxDispatch:
		batchSize, err := intParam(msg.Parameters, "batch_size")
		if err != nil {
			return err
		}
		_, err = r.service.DispatchOutbox(ctx, batchSize)
		return err
	default:
		return fmt.Errorf("gojob: unknown job id %q", msg.JobID)
	}
}

// ProcessNext dequeues one delivery, runs it and settles it. attempt is the
// delivery attempt used to bound retries.
func (r *Runner) ProcessNext(ctx context.Context, dequeuer core.JobDequeuer, attempt int) error {
	if dequeuer == nil {
		return fmt.Errorf("gojob: dequeuer is required")
	}
	delivery, err := dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}

	startedAt := r.clock()
	event := core.JobWorkerEvent{Message: delivery.Message(), Attempt: attempt, StartedAt: startedAt}
	r.onStart(ctx, event)

	runErr := r.Execute(ctx, delivery.Message())
	event.Duration = r.clock().Sub(startedAt)
	if runErr == nil {
		r.onSuccess(ctx, event)
		return delivery.Ack(ctx)
	}

	event.Err = runErr
	opts := r.policy.NormalizeAttempt(core.JobNackOptions{
		Delay:   r.policy.MaxDelay,
		Requeue: true,
		Reason:  runErr.Error(),
	}, attempt)
	event.Delay = opts.Delay
	if opts.Requeue {
		r.onRetry(ctx, event)
	} else {
		r.onFailure(ctx, event)
	}
	if err := delivery.Nack(ctx, opts); err != nil {
		return fmt.Errorf("gojob: nack after %v: %w", runErr, err)
	}
	return runErr
}

func (r *Runner) clock() time.Time {
	if r.now == nil {
		return time.Now().UTC()
	}
	return r.now().UTC()
}

func (r *Runner) onStart(ctx context.Context, event core.JobWorkerEvent) {
	if r.hook != nil {
		r.hook.OnStart(ctx, event)
	}
}

func (r *Runner) onSuccess(ctx context.Context, event core.JobWorkerEvent) {
	if r.hook != nil {
		r.hook.OnSuccess(ctx, event)
	}
}

func (r *Runner) onRetry(ctx context.Context, event core.JobWorkerEvent) {
	if r.hook != nil {
		r.hook.OnRetry(ctx, event)
	}
}

func (r *Runner) onFailure(ctx context.Context, event core.JobWorkerEvent) {
	if r.hook != nil {
		r.hook.OnFailure(ctx, event)
	}
}

func timeParam(params map[string]any, key string) (time.Time, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return time.Time{}, nil
	}
	switch value := raw.(type) {
	case time.Time:
		return value, nil
	case string:
		if strings.TrimSpace(value) == "" {
			return time.Time{}, nil
		}
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
		if err != nil {
			return time.Time{}, fmt.Errorf("gojob: parameter %s: %w", key, err)
		}
		return parsed, nil
	default:
		return time.Time{}, fmt.Errorf("gojob: parameter %s has unsupported type %T", key, raw)
	}
}

func intParam(params map[string]any, key string) (int, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return 0, nil
	}
	switch value := raw.(type) {
	case int:
		return value, nil
	case int64:
		return int(value), nil
	case float64:
		return int(value), nil
	case json.Number:
		n, err := value.Int64()
		if err != nil {
			return 0, fmt.Errorf("gojob: parameter %s: %w", key, err)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("gojob: parameter %s: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("gojob: parameter %s has unsupported type %T", key, raw)
	}
}

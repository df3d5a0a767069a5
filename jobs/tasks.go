package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSweepExpire ages out pending holds past their expiry.
	TaskSweepExpire = "sweep:expire"
	// TaskSweepComplete completes confirmed bookings past checkout.
	TaskSweepComplete = "sweep:complete"
)

// SweepPayload bounds a single sweep run.
type SweepPayload struct {
	Limit int `json:"limit"`
}

// DefaultSweepLimit caps how many rows one sweep run touches.
const DefaultSweepLimit = 500

// NewSweepExpireTask constructs an expiry sweep task.
func NewSweepExpireTask(payload SweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSweepExpire, data), nil
}

// NewSweepCompleteTask constructs a completion sweep task.
func NewSweepCompleteTask(payload SweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSweepComplete, data), nil
}

package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TaskArchiveInactiveLeads = "leads.archive_inactive"

// ArchiveInactivePayload carries the inactivity window of one sweep.
type ArchiveInactivePayload struct {
	AfterSeconds int64 `json:"afterSeconds"`
}

// After returns the window as a duration.
func (p ArchiveInactivePayload) After() time.Duration {
	return time.Duration(p.AfterSeconds) * time.Second
}

func NewArchiveInactiveTask(after time.Duration) (*asynq.Task, error) {
	if after <= 0 {
		return nil, fmt.Errorf("archive window must be positive, got %s", after)
	}
	data, err := json.Marshal(ArchiveInactivePayload{AfterSeconds: int64(after / time.Second)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskArchiveInactiveLeads, data), nil
}

func ParseArchiveInactivePayload(task *asynq.Task) (ArchiveInactivePayload, error) {
	var payload ArchiveInactivePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ArchiveInactivePayload{}, err
	}
	if payload.AfterSeconds <= 0 {
		return ArchiveInactivePayload{}, fmt.Errorf("archive window must be positive")
	}
	return payload, nil
}

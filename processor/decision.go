// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package processor

import (
	"time"

	"github.com/xcherryio/taskexpiry/persistence"
)

type Action string

const (
	ActionNone       Action = "none"
	ActionSchedule   Action = "schedule"
	ActionCancel     Action = "cancel"
	ActionReschedule Action = "reschedule"
)

// Decision is what a change record implies for the trigger of its task
type Decision struct {
	Action Action
	Key    persistence.TaskKey
	// Deadline is set for ActionSchedule and ActionReschedule
	Deadline time.Time
	// Reason explains a decision that is not the obvious one
	Reason string
}

const (
	reasonPastDeadline = "deadline is not in the future"
	reasonNotPending   = "task is not pending"
	reasonWasTerminal  = "task was already terminal"
	reasonSameDeadline = "deadline unchanged"
)

// Decide maps a validated change record to an action, given the current time.
// It is a pure function of its inputs.
func Decide(record persistence.ChangeRecord, now time.Time) Decision {
	switch record.EventType {
	case persistence.EventTypeInsert:
		return decideInsert(*record.NewImage, now)
	case persistence.EventTypeModify:
		return decideModify(*record.OldImage, *record.NewImage, now)
	case persistence.EventTypeRemove:
		old := *record.OldImage
		if old.Status != persistence.TaskStatusPending {
			return Decision{Action: ActionNone, Key: old.Key(), Reason: reasonWasTerminal}
		}
		return Decision{Action: ActionCancel, Key: old.Key()}
	default:
		return Decision{Action: ActionNone, Reason: "unknown event type"}
	}
}

func decideInsert(task persistence.Task, now time.Time) Decision {
	if task.Status != persistence.TaskStatusPending {
		return Decision{Action: ActionNone, Key: task.Key(), Reason: reasonNotPending}
	}
	if !task.Deadline.After(now) {
		return Decision{Action: ActionNone, Key: task.Key(), Reason: reasonPastDeadline}
	}
	return Decision{Action: ActionSchedule, Key: task.Key(), Deadline: task.Deadline}
}

func decideModify(old, task persistence.Task, now time.Time) Decision {
	if old.Status != persistence.TaskStatusPending {
		return Decision{Action: ActionNone, Key: task.Key(), Reason: reasonWasTerminal}
	}
	if task.Status != persistence.TaskStatusPending {
		return Decision{Action: ActionCancel, Key: task.Key()}
	}
	if task.Deadline.Equal(old.Deadline) {
		return Decision{Action: ActionNone, Key: task.Key(), Reason: reasonSameDeadline}
	}
	if !task.Deadline.After(now) {
		// the old trigger must go, the new one is skipped
		return Decision{Action: ActionCancel, Key: task.Key(), Reason: reasonPastDeadline}
	}
	return Decision{Action: ActionReschedule, Key: task.Key(), Deadline: task.Deadline}
}

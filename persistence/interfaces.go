// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package persistence

import (
	"context"
)

type (
	// TaskStore is for operating on the tasks. The pipeline never creates or edits
	// tasks, it only moves Pending tasks to Expired with a conditional write.
	TaskStore interface {
		Close() error

		// ExpireIfPending sets the status (and its derived index field) to Expired
		// only if the stored status is still Pending.
		// A missing task or a task in another status is not an error, Expired is false then.
		ExpireIfPending(ctx context.Context, request ExpireTaskRequest) (*ExpireTaskResponse, error)
		GetTask(ctx context.Context, key TaskKey) (*GetTaskResponse, error)
		ListOverduePendingTasks(ctx context.Context, request ListOverduePendingTasksRequest) (*ListOverduePendingTasksResponse, error)
	}

	// TriggerStore is the durable registry of deferred triggers, keyed by name
	TriggerStore interface {
		Close() error

		// UpsertTrigger creates the trigger or overwrites the one with the same name
		UpsertTrigger(ctx context.Context, trigger Trigger) error
		// DeleteTrigger returns false if there was no trigger with the name
		DeleteTrigger(ctx context.Context, name string) (bool, error)
		GetTrigger(ctx context.Context, name string) (*GetTriggerResponse, error)

		// GetTriggersUpToTime loads the triggers due up to a time, ordered by fire time
		GetTriggersUpToTime(ctx context.Context, request GetTriggersUpToTimeRequest) (*GetTriggersResponse, error)
		// GetTriggersBySequence loads triggers changed after a known sequence, ordered by sequence
		GetTriggersBySequence(ctx context.Context, request GetTriggersBySequenceRequest) (*GetTriggersResponse, error)

		// CompleteFiredTrigger deletes a fired trigger unless it was rescheduled meanwhile
		CompleteFiredTrigger(ctx context.Context, request CompleteFiredTriggerRequest) error
		// BackoffFiredTrigger moves a failed trigger to a later fire time unless it was rescheduled meanwhile
		BackoffFiredTrigger(ctx context.Context, request BackoffFiredTriggerRequest) error
	}
)

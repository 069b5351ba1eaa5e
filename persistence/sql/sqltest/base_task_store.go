// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package sqltest

import (
	"context"
	"fmt"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xcherryio/taskexpiry/extensions"
	"github.com/xcherryio/taskexpiry/persistence"
)

// TaskStoreExpiryTest runs the conditional expiry against a real database.
// session is used to seed tasks, the task store never creates them.
func TaskStoreExpiryTest(ass *assert.Assertions, session extensions.SQLDBSession, store persistence.TaskStore) {
	ctx := context.Background()
	ownerId := fmt.Sprintf("owner-%v", time.Now().UnixNano())
	deadline := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)

	pending := extensions.TaskRow{
		OwnerId:     ownerId,
		TaskId:      "pending-task",
		Description: "file taxes",
		Deadline:    deadline,
		Status:      string(persistence.TaskStatusPending),
		CreatedAt:   deadline.Add(-time.Hour),
	}
	completed := pending
	completed.TaskId = "completed-task"
	completed.Status = string(persistence.TaskStatusCompleted)
	ass.Nil(session.InsertTask(ctx, pending))
	ass.Nil(session.InsertTask(ctx, completed))

	overdue, err := store.ListOverduePendingTasks(ctx, persistence.ListOverduePendingTasksRequest{
		DeadlineInclusive: time.Now().UTC(),
		PageSize:          1000,
	})
	ass.Nil(err)
	ass.True(containsTask(overdue.Tasks, ownerId, "pending-task"))
	ass.False(containsTask(overdue.Tasks, ownerId, "completed-task"))

	pendingKey := persistence.TaskKey{OwnerId: ownerId, TaskId: "pending-task"}
	resp, err := store.ExpireIfPending(ctx, persistence.ExpireTaskRequest{Key: pendingKey})
	ass.Nil(err)
	ass.True(resp.Expired)
	ass.Equal(persistence.TaskStatusExpired, resp.Task.Status)
	ass.Equal("file taxes", resp.Task.Description)
	ass.True(deadline.Equal(resp.Task.Deadline))

	// a second firing is a no-op
	resp, err = store.ExpireIfPending(ctx, persistence.ExpireTaskRequest{Key: pendingKey})
	ass.Nil(err)
	ass.False(resp.Expired)

	got, err := store.GetTask(ctx, pendingKey)
	ass.Nil(err)
	ass.Equal(persistence.TaskStatusExpired, got.Task.Status)

	// terminal and missing tasks are left alone
	resp, err = store.ExpireIfPending(ctx, persistence.ExpireTaskRequest{
		Key: persistence.TaskKey{OwnerId: ownerId, TaskId: "completed-task"},
	})
	ass.Nil(err)
	ass.False(resp.Expired)

	missingKey := persistence.TaskKey{OwnerId: ownerId, TaskId: "missing-task"}
	resp, err = store.ExpireIfPending(ctx, persistence.ExpireTaskRequest{Key: missingKey})
	ass.Nil(err)
	ass.False(resp.Expired)

	got, err = store.GetTask(ctx, missingKey)
	ass.Nil(err)
	ass.True(got.NotExists)
}

func containsTask(tasks []persistence.Task, ownerId, taskId string) bool {
	for _, t := range tasks {
		if t.OwnerId == ownerId && t.TaskId == taskId {
			return true
		}
	}
	return false
}

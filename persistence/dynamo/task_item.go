// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package dynamo

import (
	"fmt"

	"github.com/xcherryio/taskexpiry/persistence"
)

const (
	attrPK            = "PK"
	attrSK            = "SK"
	attrStatusIndexPK = "GSI1PK"
	attrStatusIndexSK = "GSI1SK"
	attrStatus        = "status"
)

// TaskItem is the single table layout of a task:
// PK=USER#<ownerId>, SK=TASK#<taskId>, GSI1PK=<status>, GSI1SK=<deadline>
type TaskItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	GSI1PK      string `dynamodbav:"GSI1PK"`
	GSI1SK      string `dynamodbav:"GSI1SK"`
	TaskId      string `dynamodbav:"taskId"`
	UserId      string `dynamodbav:"userId"`
	Description string `dynamodbav:"description"`
	Status      string `dynamodbav:"status"`
	Deadline    string `dynamodbav:"deadline"`
	CreatedAt   string `dynamodbav:"date"`
}

func NewTaskItem(task persistence.Task) TaskItem {
	key := task.Key()
	deadline := persistence.FormatTimestamp(task.Deadline)
	return TaskItem{
		PK:          key.PartitionKey(),
		SK:          key.SortKey(),
		GSI1PK:      string(task.Status),
		GSI1SK:      deadline,
		TaskId:      task.TaskId,
		UserId:      task.OwnerId,
		Description: task.Description,
		Status:      string(task.Status),
		Deadline:    deadline,
		CreatedAt:   persistence.FormatTimestamp(task.CreatedAt),
	}
}

// ToTask maps the item back, the ids fall back to the key attributes
func (ti TaskItem) ToTask() (persistence.Task, error) {
	task := persistence.Task{
		TaskId:      ti.TaskId,
		OwnerId:     ti.UserId,
		Description: ti.Description,
		Status:      persistence.TaskStatus(ti.Status),
	}
	if task.TaskId == "" || task.OwnerId == "" {
		key, err := persistence.TaskKeyFromParts(ti.PK, ti.SK)
		if err != nil {
			return persistence.Task{}, err
		}
		task.TaskId, task.OwnerId = key.TaskId, key.OwnerId
	}
	if ti.Deadline != "" {
		deadline, err := persistence.ParseTimestamp(ti.Deadline)
		if err != nil {
			return persistence.Task{}, fmt.Errorf("task %v: %w", task.TaskId, err)
		}
		task.Deadline = deadline
	}
	if ti.CreatedAt != "" {
		// informational only
		if createdAt, err := persistence.ParseTimestamp(ti.CreatedAt); err == nil {
			task.CreatedAt = createdAt
		}
	}
	return task, nil
}

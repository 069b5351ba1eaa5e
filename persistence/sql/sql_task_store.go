// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package sql

import (
	"context"

	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/extensions"
	"github.com/xcherryio/taskexpiry/persistence"
)

type sqlTaskStoreImpl struct {
	session extensions.SQLDBSession
	logger  log.Logger
}

func NewSQLTaskStore(sqlConfig config.SQL, logger log.Logger) (persistence.TaskStore, error) {
	session, err := extensions.NewSQLSession(&sqlConfig)
	if err != nil {
		return nil, err
	}
	return newSQLTaskStore(session, logger), nil
}

func newSQLTaskStore(session extensions.SQLDBSession, logger log.Logger) *sqlTaskStoreImpl {
	return &sqlTaskStoreImpl{
		session: session,
		logger:  logger,
	}
}

func (p sqlTaskStoreImpl) Close() error {
	return p.session.Close()
}

func (p sqlTaskStoreImpl) ExpireIfPending(
	ctx context.Context, request persistence.ExpireTaskRequest,
) (*persistence.ExpireTaskResponse, error) {
	row, err := p.session.UpdateTaskStatusIfMatch(ctx, extensions.TaskStatusUpdateFilter{
		OwnerId:        request.Key.OwnerId,
		TaskId:         request.Key.TaskId,
		ExpectedStatus: string(persistence.TaskStatusPending),
		NewStatus:      string(persistence.TaskStatusExpired),
	})
	if err != nil {
		if p.session.IsNotFoundError(err) {
			// either gone or not Pending anymore, both are fine
			p.logger.Debug("task is not pending, skip expiring",
				tag.TaskId(request.Key.TaskId), tag.OwnerId(request.Key.OwnerId))
			return &persistence.ExpireTaskResponse{Expired: false}, nil
		}
		return nil, err
	}
	task := rowToTask(row)
	return &persistence.ExpireTaskResponse{
		Expired: true,
		Task:    &task,
	}, nil
}

func (p sqlTaskStoreImpl) GetTask(
	ctx context.Context, key persistence.TaskKey,
) (*persistence.GetTaskResponse, error) {
	row, err := p.session.SelectTask(ctx, key.OwnerId, key.TaskId)
	if err != nil {
		if p.session.IsNotFoundError(err) {
			return &persistence.GetTaskResponse{NotExists: true}, nil
		}
		return nil, err
	}
	task := rowToTask(row)
	return &persistence.GetTaskResponse{Task: &task}, nil
}

func (p sqlTaskStoreImpl) ListOverduePendingTasks(
	ctx context.Context, request persistence.ListOverduePendingTasksRequest,
) (*persistence.ListOverduePendingTasksResponse, error) {
	rows, err := p.session.BatchSelectTasksByStatusAndDeadline(ctx, extensions.TaskStatusDeadlineSelectFilter{
		Status:            string(persistence.TaskStatusPending),
		DeadlineInclusive: request.DeadlineInclusive,
		PageSize:          request.PageSize,
	})
	if err != nil {
		return nil, err
	}
	tasks := make([]persistence.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, rowToTask(row))
	}
	return &persistence.ListOverduePendingTasksResponse{Tasks: tasks}, nil
}

func rowToTask(row extensions.TaskRow) persistence.Task {
	return persistence.Task{
		TaskId:      row.TaskId,
		OwnerId:     row.OwnerId,
		Description: row.Description,
		Deadline:    row.Deadline,
		Status:      persistence.TaskStatus(row.Status),
		CreatedAt:   row.CreatedAt,
	}
}

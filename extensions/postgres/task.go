// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package postgres

import (
	"context"

	"github.com/xcherryio/taskexpiry/extensions"
)

const taskColumns = `owner_id, task_id, description, deadline, status, status_index, created_at`

const insertTaskQuery = `INSERT INTO task_expiry_tasks
	(owner_id, task_id, description, deadline, status, status_index, created_at) VALUES
	(:owner_id, :task_id, :description, :deadline, :status, :status_index, :created_at)`

func (d dbSession) InsertTask(ctx context.Context, row extensions.TaskRow) error {
	row.StatusIndex = row.Status
	_, err := d.db.NamedExecContext(ctx, insertTaskQuery, row)
	return err
}

const selectTaskQuery = `SELECT ` + taskColumns + `
	FROM task_expiry_tasks WHERE owner_id = $1 AND task_id = $2`

func (d dbSession) SelectTask(ctx context.Context, ownerId, taskId string) (extensions.TaskRow, error) {
	var row extensions.TaskRow
	err := d.db.GetContext(ctx, &row, selectTaskQuery, ownerId, taskId)
	return normalizeTaskRow(row), err
}

// the status and its index column always move together
const updateTaskStatusIfMatchQuery = `UPDATE task_expiry_tasks
	SET status = $3, status_index = $3
	WHERE owner_id = $1 AND task_id = $2 AND status = $4
	RETURNING ` + taskColumns

func (d dbSession) UpdateTaskStatusIfMatch(
	ctx context.Context, filter extensions.TaskStatusUpdateFilter,
) (extensions.TaskRow, error) {
	var row extensions.TaskRow
	err := d.db.GetContext(ctx, &row, updateTaskStatusIfMatchQuery,
		filter.OwnerId, filter.TaskId, filter.NewStatus, filter.ExpectedStatus)
	return normalizeTaskRow(row), err
}

const batchSelectTasksByStatusAndDeadlineQuery = `SELECT ` + taskColumns + `
	FROM task_expiry_tasks WHERE status_index = $1 AND deadline <= $2
	ORDER BY deadline ASC LIMIT $3`

func (d dbSession) BatchSelectTasksByStatusAndDeadline(
	ctx context.Context, filter extensions.TaskStatusDeadlineSelectFilter,
) ([]extensions.TaskRow, error) {
	var rows []extensions.TaskRow
	err := d.db.SelectContext(ctx, &rows, batchSelectTasksByStatusAndDeadlineQuery,
		filter.Status, filter.DeadlineInclusive, filter.PageSize)
	for i := range rows {
		rows[i] = normalizeTaskRow(rows[i])
	}
	return rows, err
}

func normalizeTaskRow(row extensions.TaskRow) extensions.TaskRow {
	row.Deadline = fromPostgresDateTime(row.Deadline)
	row.CreatedAt = fromPostgresDateTime(row.CreatedAt)
	return row
}

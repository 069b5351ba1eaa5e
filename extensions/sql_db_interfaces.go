// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package extensions

import (
	"context"

	"github.com/xcherryio/taskexpiry/config"
)

type SQLDBExtension interface {
	// StartDBSession starts the session for regular business logic
	StartDBSession(cfg *config.SQL) (SQLDBSession, error)
	// StartAdminDBSession starts the session for admin operation like DDL
	StartAdminDBSession(cfg *config.SQL) (SQLAdminDBSession, error)
}

type SQLDBSession interface {
	taskCRUD
	triggerCRUD
	ErrorChecker

	Close() error
}

type SQLAdminDBSession interface {
	CreateDatabase(ctx context.Context, database string) error
	DropDatabase(ctx context.Context, database string) error
	// MigrateSchema applies every pending schema migration shipped with the extension
	MigrateSchema(ctx context.Context) error
	// SchemaVersion returns the version of the last applied migration
	SchemaVersion(ctx context.Context) (int64, error)
	Close() error
}

type taskCRUD interface {
	// InsertTask is only used by tools and tests, tasks are owned by the task API
	InsertTask(ctx context.Context, row TaskRow) error
	SelectTask(ctx context.Context, ownerId, taskId string) (TaskRow, error)
	// UpdateTaskStatusIfMatch returns sql.ErrNoRows(see IsNotFoundError) when the
	// task does not exist or its status does not match
	UpdateTaskStatusIfMatch(ctx context.Context, filter TaskStatusUpdateFilter) (TaskRow, error)
	BatchSelectTasksByStatusAndDeadline(ctx context.Context, filter TaskStatusDeadlineSelectFilter) ([]TaskRow, error)
}

type triggerCRUD interface {
	UpsertTrigger(ctx context.Context, row TriggerRowForUpsert) error
	DeleteTrigger(ctx context.Context, name string) (int64, error)
	DeleteTriggerIfSequenceMatch(ctx context.Context, name string, sequence int64) (int64, error)
	UpdateTriggerFireTimeIfSequenceMatch(ctx context.Context, row TriggerRowForBackoff) (int64, error)
	SelectTrigger(ctx context.Context, name string) (TriggerRow, error)
	BatchSelectTriggersByFireTime(ctx context.Context, filter TriggerFireTimeSelectFilter) ([]TriggerRow, error)
	BatchSelectTriggersBySequence(ctx context.Context, filter TriggerSequenceSelectFilter) ([]TriggerRow, error)
}

type ErrorChecker interface {
	IsDupEntryError(err error) bool
	IsNotFoundError(err error) bool
	IsTimeoutError(err error) bool
	IsThrottlingError(err error) bool
}

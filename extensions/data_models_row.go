// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package extensions

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

type (
	// TaskRow maps to task_expiry_tasks.
	// StatusIndex mirrors Status and is what the (status, deadline) index is built on,
	// both are written together.
	TaskRow struct {
		OwnerId     string
		TaskId      string
		Description string
		Deadline    time.Time
		Status      string
		StatusIndex string
		CreatedAt   time.Time
	}

	TaskStatusUpdateFilter struct {
		OwnerId        string
		TaskId         string
		ExpectedStatus string
		NewStatus      string
	}

	TaskStatusDeadlineSelectFilter struct {
		Status            string
		DeadlineInclusive time.Time
		PageSize          int32
	}

	// TriggerRow maps to task_expiry_triggers
	TriggerRow struct {
		Name     string
		FireAt   time.Time
		Sequence int64
		Attempts int32
		Payload  types.JSONText
	}

	TriggerRowForUpsert struct {
		Name    string
		FireAt  time.Time
		Payload types.JSONText
	}

	TriggerRowForBackoff struct {
		Name       string
		Sequence   int64
		NextFireAt time.Time
		Attempts   int32
	}

	TriggerFireTimeSelectFilter struct {
		MaxFireTimeInclusive time.Time
		PageSize             int32
	}

	TriggerSequenceSelectFilter struct {
		MinSequenceInclusive int64
		MaxFireTimeInclusive time.Time
		PageSize             int32
	}
)

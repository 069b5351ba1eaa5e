// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package persistence

import "time"

type (
	ExpireTaskRequest struct {
		Key TaskKey
	}

	ExpireTaskResponse struct {
		// Expired is false when the task was not Pending or did not exist
		Expired bool
		// Task is the task after the update, only set when Expired is true
		Task *Task
	}

	GetTaskResponse struct {
		NotExists bool
		Task      *Task
	}

	ListOverduePendingTasksRequest struct {
		// DeadlineInclusive selects Pending tasks with deadline <= this
		DeadlineInclusive time.Time
		PageSize          int32
	}

	ListOverduePendingTasksResponse struct {
		// Tasks are ordered by deadline
		Tasks []Task
	}

	GetTriggerResponse struct {
		NotExists bool
		Trigger   *Trigger
	}

	GetTriggersUpToTimeRequest struct {
		MaxFireTimeInclusive time.Time
		PageSize             int32
	}

	GetTriggersBySequenceRequest struct {
		MinSequenceInclusive int64
		MaxFireTimeInclusive time.Time
		PageSize             int32
	}

	GetTriggersResponse struct {
		Triggers []Trigger
		// MaxFireTimeInclusive is the latest fire time in Triggers
		MaxFireTimeInclusive time.Time
		// MaxSequenceInclusive is the largest sequence in Triggers
		MaxSequenceInclusive int64
		// indicates if the response is full page or not
		FullPage bool
	}

	CompleteFiredTriggerRequest struct {
		Name     string
		Sequence int64
	}

	BackoffFiredTriggerRequest struct {
		Name       string
		Sequence   int64
		NextFireAt time.Time
		Attempts   int32
	}
)

// NewGetTriggersResponse fills the summary fields from the loaded triggers
func NewGetTriggersResponse(triggers []Trigger, pageSize int32) *GetTriggersResponse {
	resp := &GetTriggersResponse{
		Triggers: triggers,
		FullPage: pageSize > 0 && int32(len(triggers)) == pageSize,
	}
	for _, t := range triggers {
		if t.FireAt.After(resp.MaxFireTimeInclusive) {
			resp.MaxFireTimeInclusive = t.FireAt
		}
		if t.Sequence > resp.MaxSequenceInclusive {
			resp.MaxSequenceInclusive = t.Sequence
		}
	}
	return resp
}

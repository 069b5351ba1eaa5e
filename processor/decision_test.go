// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package processor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xcherryio/taskexpiry/persistence"
)

var (
	testNow    = time.Date(2025, 9, 29, 18, 0, 0, 0, time.UTC)
	inOneHour  = testNow.Add(time.Hour)
	inTwoHours = testNow.Add(2 * time.Hour)
	anHourAgo  = testNow.Add(-time.Hour)
)

func task(status persistence.TaskStatus, deadline time.Time) *persistence.Task {
	return &persistence.Task{
		TaskId:      "t-1",
		OwnerId:     "u-1",
		Description: "write the report",
		Deadline:    deadline,
		Status:      status,
		CreatedAt:   testNow.Add(-24 * time.Hour),
	}
}

func insert(newImage *persistence.Task) persistence.ChangeRecord {
	return persistence.ChangeRecord{RecordId: "r-1", EventType: persistence.EventTypeInsert, NewImage: newImage}
}

func modify(oldImage, newImage *persistence.Task) persistence.ChangeRecord {
	return persistence.ChangeRecord{
		RecordId: "r-1", EventType: persistence.EventTypeModify, OldImage: oldImage, NewImage: newImage,
	}
}

func remove(oldImage *persistence.Task) persistence.ChangeRecord {
	return persistence.ChangeRecord{RecordId: "r-1", EventType: persistence.EventTypeRemove, OldImage: oldImage}
}

func TestDecide(t *testing.T) {
	key := persistence.TaskKey{OwnerId: "u-1", TaskId: "t-1"}
	pending := persistence.TaskStatusPending
	completed := persistence.TaskStatusCompleted
	expired := persistence.TaskStatusExpired

	tests := []struct {
		name     string
		record   persistence.ChangeRecord
		action   Action
		deadline time.Time
	}{
		{"insert pending", insert(task(pending, inOneHour)), ActionSchedule, inOneHour},
		{"insert pending past deadline", insert(task(pending, anHourAgo)), ActionNone, time.Time{}},
		{"insert pending deadline is now", insert(task(pending, testNow)), ActionNone, time.Time{}},
		{"insert completed", insert(task(completed, inOneHour)), ActionNone, time.Time{}},
		{"insert expired", insert(task(expired, anHourAgo)), ActionNone, time.Time{}},
		{"pending to completed", modify(task(pending, inOneHour), task(completed, inOneHour)), ActionCancel, time.Time{}},
		{"pending to expired", modify(task(pending, anHourAgo), task(expired, anHourAgo)), ActionCancel, time.Time{}},
		{"pending same deadline", modify(task(pending, inOneHour), task(pending, inOneHour)), ActionNone, time.Time{}},
		{"pending new deadline", modify(task(pending, inOneHour), task(pending, inTwoHours)), ActionReschedule, inTwoHours},
		{"pending new deadline in the past", modify(task(pending, inOneHour), task(pending, anHourAgo)), ActionCancel, time.Time{}},
		{"completed to anything", modify(task(completed, inOneHour), task(completed, inTwoHours)), ActionNone, time.Time{}},
		{"expired to anything", modify(task(expired, anHourAgo), task(expired, anHourAgo)), ActionNone, time.Time{}},
		{"remove pending", remove(task(pending, inOneHour)), ActionCancel, time.Time{}},
		{"remove completed", remove(task(completed, inOneHour)), ActionNone, time.Time{}},
		{"remove expired", remove(task(expired, anHourAgo)), ActionNone, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Decide(tt.record, testNow)
			assert.Equal(t, tt.action, decision.Action)
			assert.Equal(t, key, decision.Key)
			assert.True(t, tt.deadline.Equal(decision.Deadline), "deadline %v", decision.Deadline)
		})
	}
}

func TestDecideExplainsSkippedSchedules(t *testing.T) {
	decision := Decide(insert(task(persistence.TaskStatusPending, anHourAgo)), testNow)
	assert.Equal(t, reasonPastDeadline, decision.Reason)

	decision = Decide(modify(
		task(persistence.TaskStatusPending, inOneHour), task(persistence.TaskStatusPending, anHourAgo),
	), testNow)
	assert.Equal(t, reasonPastDeadline, decision.Reason)

	decision = Decide(remove(task(persistence.TaskStatusExpired, anHourAgo)), testNow)
	assert.Equal(t, reasonWasTerminal, decision.Reason)
}

func TestFireTimeFor(t *testing.T) {
	minute := time.Minute
	onTheMinute := time.Date(2025, 9, 29, 19, 0, 0, 0, time.UTC)

	assert.Equal(t, onTheMinute, FireTimeFor(onTheMinute, minute))
	assert.Equal(t, onTheMinute.Add(minute), FireTimeFor(onTheMinute.Add(time.Second), minute))
	assert.Equal(t, onTheMinute.Add(minute), FireTimeFor(onTheMinute.Add(59*time.Second+time.Millisecond), minute))

	zoned := time.Date(2025, 9, 29, 21, 0, 30, 0, time.FixedZone("CEST", 2*3600))
	fireAt := FireTimeFor(zoned, minute)
	assert.Equal(t, time.UTC, fireAt.Location())
	assert.Equal(t, onTheMinute.Add(minute), fireAt)

	exact := onTheMinute.Add(1234 * time.Millisecond)
	assert.Equal(t, exact, FireTimeFor(exact, 0))
}

func TestTriggerName(t *testing.T) {
	assert.Equal(t, "TaskExpiry-t-1", TriggerName("TaskExpiry-", "t-1"))
	assert.Equal(t, TriggerName("TaskExpiry-", "t-1"), TriggerName("TaskExpiry-", "t-1"))
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package persistence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageKeyRoundTrip(t *testing.T) {
	key := TaskKey{OwnerId: "u-1", TaskId: "t-1"}
	assert.Equal(t, "USER#u-1", key.PartitionKey())
	assert.Equal(t, "TASK#t-1", key.SortKey())
	assert.Equal(t, "USER#u-1|TASK#t-1", key.StorageKey())

	parsed, err := ParseStorageKey(key.StorageKey())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)
}

func TestParseStorageKeyRejectsBadKeys(t *testing.T) {
	for _, k := range []string{"", "USER#u-1", "USER#|TASK#t", "USER#u|TASK#", "OWNER#u|TASK#t", "USER#u|PROFILE#p"} {
		_, err := ParseStorageKey(k)
		assert.Error(t, err, k)
	}
}

func TestTriggerPayloadValidate(t *testing.T) {
	payload := NewTriggerPayload(TaskKey{OwnerId: "u-1", TaskId: "t-1"})
	require.NoError(t, payload.Validate())
	assert.Equal(t, TaskKey{OwnerId: "u-1", TaskId: "t-1"}, payload.Key())

	missing := payload
	missing.StorageKey = ""
	assert.True(t, errors.Is(missing.Validate(), ErrMalformedPayload))

	mismatched := payload
	mismatched.TaskId = "t-2"
	assert.True(t, errors.Is(mismatched.Validate(), ErrMalformedPayload))
}

func TestChangeRecordValidate(t *testing.T) {
	pending := &Task{TaskId: "t-1", OwnerId: "u-1", Status: TaskStatusPending, Deadline: time.Now().Add(time.Hour)}
	completed := &Task{TaskId: "t-1", OwnerId: "u-1", Status: TaskStatusCompleted}

	valid := []ChangeRecord{
		{RecordId: "r", EventType: EventTypeInsert, NewImage: pending},
		{RecordId: "r", EventType: EventTypeModify, OldImage: pending, NewImage: completed},
		{RecordId: "r", EventType: EventTypeRemove, OldImage: completed},
	}
	for _, r := range valid {
		assert.NoError(t, r.Validate(), r.EventType)
	}

	invalid := []ChangeRecord{
		{EventType: EventTypeInsert, NewImage: pending},
		{RecordId: "r", EventType: "TRUNCATE", NewImage: pending},
		{RecordId: "r", EventType: EventTypeInsert},
		{RecordId: "r", EventType: EventTypeModify, NewImage: pending},
		{RecordId: "r", EventType: EventTypeRemove, NewImage: pending},
		{RecordId: "r", EventType: EventTypeInsert, NewImage: &Task{TaskId: "t-1", OwnerId: "u-1", Status: TaskStatusPending}},
		{RecordId: "r", EventType: EventTypeInsert, NewImage: &Task{TaskId: "t-1", OwnerId: "u-1", Status: "Archived"}},
		{RecordId: "r", EventType: EventTypeModify, OldImage: pending, NewImage: &Task{TaskId: "t-2", OwnerId: "u-1", Status: TaskStatusCompleted}},
	}
	for i, r := range invalid {
		assert.ErrorIs(t, r.Validate(), ErrMalformedRecord, "case %d", i)
	}
}

func TestChangeRecordTaskId(t *testing.T) {
	assert.Equal(t, "t-1", ChangeRecord{NewImage: &Task{TaskId: "t-1"}}.TaskId())
	assert.Equal(t, "t-2", ChangeRecord{OldImage: &Task{TaskId: "t-2"}}.TaskId())
	assert.Equal(t, "", ChangeRecord{}.TaskId())
}

func TestNewGetTriggersResponse(t *testing.T) {
	base := time.Date(2025, 9, 29, 18, 56, 0, 0, time.UTC)
	resp := NewGetTriggersResponse([]Trigger{
		{Name: "a", FireAt: base, Sequence: 7},
		{Name: "b", FireAt: base.Add(time.Minute), Sequence: 3},
	}, 2)
	assert.True(t, resp.FullPage)
	assert.Equal(t, base.Add(time.Minute), resp.MaxFireTimeInclusive)
	assert.Equal(t, int64(7), resp.MaxSequenceInclusive)

	assert.False(t, NewGetTriggersResponse(nil, 2).FullPage)
}

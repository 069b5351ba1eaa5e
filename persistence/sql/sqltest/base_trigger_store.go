// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package sqltest

import (
	"context"
	"fmt"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xcherryio/taskexpiry/persistence"
)

func TriggerStoreTest(ass *assert.Assertions, store persistence.TriggerStore) {
	ctx := context.Background()
	taskId := fmt.Sprintf("task-%v", time.Now().UnixNano())
	name := "TaskExpiry-" + taskId
	fireAt := time.Now().UTC().Add(-time.Second).Truncate(time.Second)
	payload := persistence.NewTriggerPayload(persistence.TaskKey{OwnerId: "owner-1", TaskId: taskId})

	ass.Nil(store.UpsertTrigger(ctx, persistence.Trigger{Name: name, FireAt: fireAt, Payload: payload}))
	first := mustGetTrigger(ass, store, name)
	ass.True(fireAt.Equal(first.FireAt))
	ass.Equal(payload, first.Payload)

	// same fire time keeps the sequence
	ass.Nil(store.UpsertTrigger(ctx, persistence.Trigger{Name: name, FireAt: fireAt, Payload: payload}))
	ass.Equal(first.Sequence, mustGetTrigger(ass, store, name).Sequence)

	due, err := store.GetTriggersUpToTime(ctx, persistence.GetTriggersUpToTimeRequest{
		MaxFireTimeInclusive: time.Now().UTC(),
		PageSize:             1000,
	})
	ass.Nil(err)
	ass.True(containsTrigger(due.Triggers, name, first.Sequence))

	// a reschedule takes a new sequence, the old copy can no longer complete it
	rescheduledAt := fireAt.Add(time.Hour)
	ass.Nil(store.UpsertTrigger(ctx, persistence.Trigger{Name: name, FireAt: rescheduledAt, Payload: payload}))
	second := mustGetTrigger(ass, store, name)
	ass.Greater(second.Sequence, first.Sequence)
	ass.True(rescheduledAt.Equal(second.FireAt))

	changed, err := store.GetTriggersBySequence(ctx, persistence.GetTriggersBySequenceRequest{
		MinSequenceInclusive: first.Sequence + 1,
		MaxFireTimeInclusive: rescheduledAt,
		PageSize:             1000,
	})
	ass.Nil(err)
	ass.True(containsTrigger(changed.Triggers, name, second.Sequence))

	ass.Nil(store.CompleteFiredTrigger(ctx, persistence.CompleteFiredTriggerRequest{Name: name, Sequence: first.Sequence}))
	ass.Equal(second.Sequence, mustGetTrigger(ass, store, name).Sequence)

	nextFireAt := rescheduledAt.Add(time.Minute)
	ass.Nil(store.BackoffFiredTrigger(ctx, persistence.BackoffFiredTriggerRequest{
		Name: name, Sequence: second.Sequence, NextFireAt: nextFireAt, Attempts: 1,
	}))
	backedOff := mustGetTrigger(ass, store, name)
	ass.True(nextFireAt.Equal(backedOff.FireAt))
	ass.Equal(int32(1), backedOff.Attempts)

	ass.Nil(store.CompleteFiredTrigger(ctx, persistence.CompleteFiredTriggerRequest{Name: name, Sequence: second.Sequence}))
	resp, err := store.GetTrigger(ctx, name)
	ass.Nil(err)
	ass.True(resp.NotExists)

	// cancelling a missing trigger is not an error
	deleted, err := store.DeleteTrigger(ctx, name)
	ass.Nil(err)
	ass.False(deleted)

	ass.Nil(store.UpsertTrigger(ctx, persistence.Trigger{Name: name, FireAt: fireAt, Payload: payload}))
	deleted, err = store.DeleteTrigger(ctx, name)
	ass.Nil(err)
	ass.True(deleted)
}

func mustGetTrigger(ass *assert.Assertions, store persistence.TriggerStore, name string) persistence.Trigger {
	resp, err := store.GetTrigger(context.Background(), name)
	ass.Nil(err)
	if resp == nil || resp.Trigger == nil {
		ass.Fail("trigger not found", name)
		return persistence.Trigger{}
	}
	return *resp.Trigger
}

func containsTrigger(triggers []persistence.Trigger, name string, sequence int64) bool {
	for _, t := range triggers {
		if t.Name == name && t.Sequence == sequence {
			return true
		}
	}
	return false
}

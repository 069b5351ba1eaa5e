// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package sql

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/extensions"
	"github.com/xcherryio/taskexpiry/persistence"
)

// fakeSession overrides only what a test needs, calling anything else panics
type fakeSession struct {
	extensions.SQLDBSession

	updateTaskStatusIfMatch func(filter extensions.TaskStatusUpdateFilter) (extensions.TaskRow, error)
	selectTriggersByTime    func(filter extensions.TriggerFireTimeSelectFilter) ([]extensions.TriggerRow, error)
	deleteTrigger           func(name string) (int64, error)
	upserted                []extensions.TriggerRowForUpsert
}

func (f *fakeSession) UpdateTaskStatusIfMatch(
	_ context.Context, filter extensions.TaskStatusUpdateFilter,
) (extensions.TaskRow, error) {
	return f.updateTaskStatusIfMatch(filter)
}

func (f *fakeSession) BatchSelectTriggersByFireTime(
	_ context.Context, filter extensions.TriggerFireTimeSelectFilter,
) ([]extensions.TriggerRow, error) {
	return f.selectTriggersByTime(filter)
}

func (f *fakeSession) DeleteTrigger(_ context.Context, name string) (int64, error) {
	return f.deleteTrigger(name)
}

func (f *fakeSession) UpsertTrigger(_ context.Context, row extensions.TriggerRowForUpsert) error {
	f.upserted = append(f.upserted, row)
	return nil
}

func (f *fakeSession) IsNotFoundError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func TestExpireIfPendingUpdatesOnlyPendingTasks(t *testing.T) {
	deadline := time.Date(2025, 9, 29, 18, 56, 0, 0, time.UTC)
	session := &fakeSession{
		updateTaskStatusIfMatch: func(filter extensions.TaskStatusUpdateFilter) (extensions.TaskRow, error) {
			assert.Equal(t, "Pending", filter.ExpectedStatus)
			assert.Equal(t, "Expired", filter.NewStatus)
			return extensions.TaskRow{
				OwnerId: filter.OwnerId, TaskId: filter.TaskId, Description: "file taxes",
				Deadline: deadline, Status: filter.NewStatus, StatusIndex: filter.NewStatus,
			}, nil
		},
	}
	store := newSQLTaskStore(session, log.NewNoopLogger())

	resp, err := store.ExpireIfPending(context.Background(), persistence.ExpireTaskRequest{
		Key: persistence.TaskKey{OwnerId: "u-1", TaskId: "t-1"},
	})
	require.NoError(t, err)
	assert.True(t, resp.Expired)
	assert.Equal(t, persistence.TaskStatusExpired, resp.Task.Status)
	assert.Equal(t, "file taxes", resp.Task.Description)
	assert.True(t, deadline.Equal(resp.Task.Deadline))
}

func TestExpireIfPendingConditionFailureIsNotAnError(t *testing.T) {
	session := &fakeSession{
		updateTaskStatusIfMatch: func(extensions.TaskStatusUpdateFilter) (extensions.TaskRow, error) {
			return extensions.TaskRow{}, sql.ErrNoRows
		},
	}
	store := newSQLTaskStore(session, log.NewNoopLogger())

	resp, err := store.ExpireIfPending(context.Background(), persistence.ExpireTaskRequest{
		Key: persistence.TaskKey{OwnerId: "u-1", TaskId: "t-1"},
	})
	require.NoError(t, err)
	assert.False(t, resp.Expired)
	assert.Nil(t, resp.Task)
}

func TestExpireIfPendingSurfacesOtherErrors(t *testing.T) {
	session := &fakeSession{
		updateTaskStatusIfMatch: func(extensions.TaskStatusUpdateFilter) (extensions.TaskRow, error) {
			return extensions.TaskRow{}, context.DeadlineExceeded
		},
	}
	store := newSQLTaskStore(session, log.NewNoopLogger())

	_, err := store.ExpireIfPending(context.Background(), persistence.ExpireTaskRequest{
		Key: persistence.TaskKey{OwnerId: "u-1", TaskId: "t-1"},
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTriggerStoreRoundTripsPayload(t *testing.T) {
	session := &fakeSession{}
	store := newSQLTriggerStore(session, log.NewNoopLogger())
	payload := persistence.NewTriggerPayload(persistence.TaskKey{OwnerId: "u-1", TaskId: "t-1"})
	fireAt := time.Date(2025, 9, 29, 18, 56, 0, 0, time.FixedZone("CEST", 2*3600))

	require.NoError(t, store.UpsertTrigger(context.Background(), persistence.Trigger{
		Name: "TaskExpiry-t-1", FireAt: fireAt, Payload: payload,
	}))
	require.Len(t, session.upserted, 1)
	assert.Equal(t, time.UTC, session.upserted[0].FireAt.Location())
	assert.JSONEq(t, `{"taskId":"t-1","ownerId":"u-1","storageKey":"USER#u-1|TASK#t-1"}`, string(session.upserted[0].Payload))

	session.selectTriggersByTime = func(filter extensions.TriggerFireTimeSelectFilter) ([]extensions.TriggerRow, error) {
		return []extensions.TriggerRow{
			{Name: "TaskExpiry-t-1", FireAt: fireAt.UTC(), Sequence: 4, Payload: session.upserted[0].Payload},
			{Name: "TaskExpiry-bad", FireAt: fireAt.UTC(), Sequence: 5, Payload: types.JSONText(`not json`)},
		}, nil
	}
	resp, err := store.GetTriggersUpToTime(context.Background(), persistence.GetTriggersUpToTimeRequest{
		MaxFireTimeInclusive: fireAt.Add(time.Minute), PageSize: 2,
	})
	require.NoError(t, err)
	require.Len(t, resp.Triggers, 2)
	assert.Equal(t, payload, resp.Triggers[0].Payload)
	assert.Error(t, resp.Triggers[1].Payload.Validate(), "unreadable payload is handed over empty")
	assert.True(t, resp.FullPage)
	assert.Equal(t, int64(5), resp.MaxSequenceInclusive)
}

func TestDeleteTriggerReportsMissing(t *testing.T) {
	session := &fakeSession{
		deleteTrigger: func(name string) (int64, error) { return 0, nil },
	}
	store := newSQLTriggerStore(session, log.NewNoopLogger())

	deleted, err := store.DeleteTrigger(context.Background(), "TaskExpiry-t-1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

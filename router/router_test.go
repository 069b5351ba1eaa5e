// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/persistence"
	"github.com/xcherryio/taskexpiry/stream"
)

// fakePublisher fails the given number of PublishBatch calls, then succeeds
type fakePublisher struct {
	sync.Mutex
	failures  int
	failIndex int
	batches   [][]QueueMessage
}

func (p *fakePublisher) PublishBatch(_ context.Context, msgs []QueueMessage) []error {
	p.Lock()
	defer p.Unlock()
	p.batches = append(p.batches, msgs)
	errs := make([]error, len(msgs))
	if p.failures > 0 {
		p.failures--
		errs[p.failIndex] = errors.New("producer is closed")
	}
	return errs
}

func (p *fakePublisher) Close() {}

func (p *fakePublisher) batchCount() int {
	p.Lock()
	defer p.Unlock()
	return len(p.batches)
}

func encodedInsert(t *testing.T, recordId, taskId string) []byte {
	raw, err := stream.NativeCodec{}.Encode(persistence.ChangeRecord{
		RecordId:  recordId,
		EventType: persistence.EventTypeInsert,
		NewImage: &persistence.Task{
			TaskId:   taskId,
			OwnerId:  "u-1",
			Deadline: time.Date(2025, 9, 29, 19, 0, 0, 0, time.UTC),
			Status:   persistence.TaskStatusPending,
		},
	})
	require.NoError(t, err)
	return raw
}

func TestRouteBatchForwardsRecordsUnmodified(t *testing.T) {
	publisher := &fakePublisher{}
	router := NewRouter(stream.NativeCodec{}, publisher, log.NewNoopLogger())
	raws := [][]byte{encodedInsert(t, "r-1", "t-1"), encodedInsert(t, "r-2", "t-2")}

	result := router.RouteBatch(context.Background(), raws)

	assert.False(t, result.Failed())
	require.Len(t, publisher.batches, 1)
	assert.Equal(t, []QueueMessage{
		{Payload: raws[0], DedupId: "r-1", OrderingKey: "t-1"},
		{Payload: raws[1], DedupId: "r-2", OrderingKey: "t-2"},
	}, publisher.batches[0])
}

func TestRouteBatchFailsWholeBatchOnAnyError(t *testing.T) {
	publisher := &fakePublisher{failures: 1, failIndex: 1}
	router := NewRouter(stream.NativeCodec{}, publisher, log.NewNoopLogger())

	result := router.RouteBatch(context.Background(), [][]byte{
		encodedInsert(t, "r-1", "t-1"), encodedInsert(t, "r-2", "t-2"),
	})

	assert.True(t, result.Failed())
	assert.NoError(t, result.Records[0].Err)
	assert.Error(t, result.Records[1].Err)
	assert.ErrorContains(t, result.Err(), "record r-2")
}

func TestRouteBatchDropsUnreadableRecords(t *testing.T) {
	publisher := &fakePublisher{}
	router := NewRouter(stream.NativeCodec{}, publisher, log.NewNoopLogger())

	result := router.RouteBatch(context.Background(), [][]byte{
		[]byte("garbage"), encodedInsert(t, "r-2", "t-2"),
	})

	assert.False(t, result.Failed())
	assert.True(t, result.Records[0].Dropped)
	assert.Equal(t, "r-2", result.Records[1].RecordId)
	require.Len(t, publisher.batches, 1)
	assert.Len(t, publisher.batches[0], 1)

	result = router.RouteBatch(context.Background(), [][]byte{[]byte("garbage")})
	assert.False(t, result.Failed())
	assert.Len(t, publisher.batches, 1)
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package stream

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/persistence"
)

const nativeModify = `{
  "recordId": "rec-2",
  "eventType": "MODIFY",
  "oldImage": {"taskId": "t-1", "ownerId": "u-1", "description": "file taxes",
               "deadline": "2025-09-29T18:56", "status": "Pending"},
  "newImage": {"taskId": "t-1", "ownerId": "u-1", "description": "file taxes",
               "deadline": "2025-09-30T09:00:00+02:00", "status": "Pending",
               "createdAt": "2025-09-01T10:00:00Z"}
}`

func TestNativePeek(t *testing.T) {
	header, err := NativeCodec{}.Peek([]byte(nativeModify))
	require.NoError(t, err)
	assert.Equal(t, RecordHeader{RecordId: "rec-2", OrderingKey: "t-1"}, header)

	header, err = NativeCodec{}.Peek([]byte(`{"recordId":"rec-3","eventType":"REMOVE","oldImage":{"taskId":"t-9"}}`))
	require.NoError(t, err)
	assert.Equal(t, "t-9", header.OrderingKey)

	_, err = NativeCodec{}.Peek([]byte(`{"eventType":"INSERT"}`))
	assert.True(t, errors.Is(err, persistence.ErrMalformedRecord))

	_, err = NativeCodec{}.Peek([]byte(`not json`))
	assert.True(t, errors.Is(err, persistence.ErrMalformedRecord))
}

func TestNativeDecode(t *testing.T) {
	record, err := NativeCodec{}.Decode([]byte(nativeModify))
	require.NoError(t, err)

	assert.Equal(t, "rec-2", record.RecordId)
	assert.Equal(t, persistence.EventTypeModify, record.EventType)
	require.NotNil(t, record.OldImage)
	require.NotNil(t, record.NewImage)
	assert.Equal(t, time.Date(2025, 9, 29, 18, 56, 0, 0, time.UTC), record.OldImage.Deadline)
	assert.Equal(t, time.Date(2025, 9, 30, 7, 0, 0, 0, time.UTC), record.NewImage.Deadline)
	assert.Equal(t, time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC), record.NewImage.CreatedAt)
	assert.Equal(t, "t-1", record.TaskId())
}

func TestNativeDecodeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"bad json":        `{"recordId":`,
		"unknown event":   `{"recordId":"r","eventType":"UPSERT","newImage":{"taskId":"t","ownerId":"u","status":"Completed"}}`,
		"insert no image": `{"recordId":"r","eventType":"INSERT"}`,
		"bad deadline":    `{"recordId":"r","eventType":"INSERT","newImage":{"taskId":"t","ownerId":"u","status":"Pending","deadline":"tomorrow"}}`,
		"pending no dl":   `{"recordId":"r","eventType":"INSERT","newImage":{"taskId":"t","ownerId":"u","status":"Pending"}}`,
		"unknown status":  `{"recordId":"r","eventType":"REMOVE","oldImage":{"taskId":"t","ownerId":"u","status":"Archived"}}`,
		"different tasks": `{"recordId":"r","eventType":"MODIFY","oldImage":{"taskId":"a","ownerId":"u","status":"Completed"},"newImage":{"taskId":"b","ownerId":"u","status":"Completed"}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NativeCodec{}.Decode([]byte(raw))
			assert.True(t, errors.Is(err, persistence.ErrMalformedRecord), "got %v", err)
		})
	}
}

func TestNativeEncodeDecode(t *testing.T) {
	record := persistence.ChangeRecord{
		RecordId:  "rec-1",
		EventType: persistence.EventTypeInsert,
		NewImage: &persistence.Task{
			TaskId:      "t-1",
			OwnerId:     "u-1",
			Description: "file taxes",
			Deadline:    time.Date(2025, 9, 29, 18, 56, 0, 0, time.UTC),
			Status:      persistence.TaskStatusPending,
		},
	}
	raw, err := NativeCodec{}.Encode(record)
	require.NoError(t, err)

	decoded, err := NativeCodec{}.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, record, decoded)
}

func TestNewCodec(t *testing.T) {
	codec, err := NewCodec(config.ChangeStreamFormatNative)
	require.NoError(t, err)
	assert.IsType(t, NativeCodec{}, codec)

	codec, err = NewCodec(config.ChangeStreamFormatDynamoDB)
	require.NoError(t, err)
	assert.IsType(t, DynamoDBStreamCodec{}, codec)

	_, err = NewCodec("avro")
	assert.Error(t, err)
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package stream

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xcherryio/taskexpiry/persistence"
)

const ddbModifyCompleted = `{
  "eventID": "c81e728d9d4c2f636f067f89cc14862c",
  "eventName": "MODIFY",
  "dynamodb": {
    "Keys": {"PK": {"S": "USER#u-1"}, "SK": {"S": "TASK#t-1"}},
    "OldImage": {
      "PK": {"S": "USER#u-1"}, "SK": {"S": "TASK#t-1"},
      "GSI1PK": {"S": "Pending"}, "GSI1SK": {"S": "2025-09-29T18:56:00+00:00"},
      "taskId": {"S": "t-1"}, "userId": {"S": "u-1"},
      "description": {"S": "file taxes"}, "status": {"S": "Pending"},
      "deadline": {"S": "2025-09-29T18:56:00+00:00"}, "date": {"S": "2025-09-01"}
    },
    "NewImage": {
      "PK": {"S": "USER#u-1"}, "SK": {"S": "TASK#t-1"},
      "GSI1PK": {"S": "Completed"}, "GSI1SK": {"S": "2025-09-29T18:56:00+00:00"},
      "taskId": {"S": "t-1"}, "userId": {"S": "u-1"},
      "description": {"S": "file taxes"}, "status": {"S": "Completed"},
      "deadline": {"S": "2025-09-29T18:56:00+00:00"}, "version": {"N": "3"}
    },
    "SequenceNumber": "111",
    "StreamViewType": "NEW_AND_OLD_IMAGES"
  }
}`

const ddbInsertProfile = `{
  "eventID": "p-1",
  "eventName": "INSERT",
  "dynamodb": {
    "Keys": {"PK": {"S": "USER#u-1"}, "SK": {"S": "PROFILE"}},
    "NewImage": {"PK": {"S": "USER#u-1"}, "SK": {"S": "PROFILE"}, "email": {"S": "a@b.c"}}
  }
}`

func TestDynamoDBPeek(t *testing.T) {
	header, err := DynamoDBStreamCodec{}.Peek([]byte(ddbModifyCompleted))
	require.NoError(t, err)
	assert.Equal(t, RecordHeader{RecordId: "c81e728d9d4c2f636f067f89cc14862c", OrderingKey: "t-1"}, header)

	// non task items are still forwarded, grouped by their own key
	header, err = DynamoDBStreamCodec{}.Peek([]byte(ddbInsertProfile))
	require.NoError(t, err)
	assert.Equal(t, "USER#u-1|PROFILE", header.OrderingKey)

	_, err = DynamoDBStreamCodec{}.Peek([]byte(`{"eventName":"INSERT"}`))
	assert.True(t, errors.Is(err, persistence.ErrMalformedRecord))
}

func TestDynamoDBDecode(t *testing.T) {
	record, err := DynamoDBStreamCodec{}.Decode([]byte(ddbModifyCompleted))
	require.NoError(t, err)

	assert.Equal(t, persistence.EventTypeModify, record.EventType)
	require.NotNil(t, record.OldImage)
	require.NotNil(t, record.NewImage)
	assert.Equal(t, persistence.TaskStatusPending, record.OldImage.Status)
	assert.Equal(t, persistence.TaskStatusCompleted, record.NewImage.Status)
	assert.Equal(t, "u-1", record.NewImage.OwnerId)
	assert.Equal(t, "file taxes", record.NewImage.Description)
	assert.Equal(t, time.Date(2025, 9, 29, 18, 56, 0, 0, time.UTC), record.NewImage.Deadline)
}

func TestDynamoDBDecodeRemove(t *testing.T) {
	raw := `{"eventID":"e-3","eventName":"REMOVE","dynamodb":{
	  "Keys":{"PK":{"S":"USER#u-2"},"SK":{"S":"TASK#t-2"}},
	  "OldImage":{"PK":{"S":"USER#u-2"},"SK":{"S":"TASK#t-2"},"status":{"S":"Pending"},
	              "deadline":{"S":"2025-09-29T18:56"}}}}`

	record, err := DynamoDBStreamCodec{}.Decode([]byte(raw))
	require.NoError(t, err)
	assert.Nil(t, record.NewImage)
	// ids come from the key when the attributes are absent
	assert.Equal(t, "t-2", record.OldImage.TaskId)
	assert.Equal(t, "u-2", record.OldImage.OwnerId)
}

func TestDynamoDBDecodeSkipsNonTaskItems(t *testing.T) {
	_, err := DynamoDBStreamCodec{}.Decode([]byte(ddbInsertProfile))
	assert.True(t, errors.Is(err, persistence.ErrNotTaskRecord))
}

func TestDynamoDBDecodeRejectsBadDeadline(t *testing.T) {
	raw := `{"eventID":"e-4","eventName":"INSERT","dynamodb":{
	  "NewImage":{"PK":{"S":"USER#u"},"SK":{"S":"TASK#t"},"status":{"S":"Pending"},"deadline":{"S":"someday"}}}}`

	_, err := DynamoDBStreamCodec{}.Decode([]byte(raw))
	assert.True(t, errors.Is(err, persistence.ErrMalformedRecord))
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/persistence"
)

type fakeClient struct {
	updateItem func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	getItem    func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	query      func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
}

func (f *fakeClient) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return f.updateItem(in)
}

func (f *fakeClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return f.getItem(in)
}

func (f *fakeClient) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return f.query(in)
}

var testTableConfig = config.DynamoDBConfig{
	Region:          "us-east-1",
	TableName:       "TodoTable",
	StatusIndexName: "GSI1",
}

func newTestItem(t *testing.T, status persistence.TaskStatus) map[string]types.AttributeValue {
	item, err := attributevalue.MarshalMap(NewTaskItem(persistence.Task{
		TaskId:      "t-1",
		OwnerId:     "u-1",
		Description: "file taxes",
		Deadline:    time.Date(2025, 9, 29, 18, 56, 0, 0, time.UTC),
		Status:      status,
	}))
	require.NoError(t, err)
	return item
}

func TestExpireIfPendingSendsConditionalUpdate(t *testing.T) {
	client := &fakeClient{
		updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			assert.Equal(t, "TodoTable", aws.ToString(in.TableName))
			assert.Equal(t, "#st = :pending", aws.ToString(in.ConditionExpression))
			assert.Equal(t, "SET #st = :expired, GSI1PK = :expired", aws.ToString(in.UpdateExpression))
			assert.Equal(t, types.ReturnValueAllNew, in.ReturnValues)
			assert.Equal(t, &types.AttributeValueMemberS{Value: "USER#u-1"}, in.Key["PK"])
			assert.Equal(t, &types.AttributeValueMemberS{Value: "TASK#t-1"}, in.Key["SK"])
			return &dynamodb.UpdateItemOutput{Attributes: newTestItem(t, persistence.TaskStatusExpired)}, nil
		},
	}
	store := NewDynamoTaskStoreWithClient(client, testTableConfig, log.NewNoopLogger())

	resp, err := store.ExpireIfPending(context.Background(), persistence.ExpireTaskRequest{
		Key: persistence.TaskKey{OwnerId: "u-1", TaskId: "t-1"},
	})
	require.NoError(t, err)
	assert.True(t, resp.Expired)
	assert.Equal(t, "file taxes", resp.Task.Description)
	assert.Equal(t, persistence.TaskStatusExpired, resp.Task.Status)
	assert.True(t, time.Date(2025, 9, 29, 18, 56, 0, 0, time.UTC).Equal(resp.Task.Deadline))
}

func TestExpireIfPendingConditionFailed(t *testing.T) {
	client := &fakeClient{
		updateItem: func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		},
	}
	store := NewDynamoTaskStoreWithClient(client, testTableConfig, log.NewNoopLogger())

	resp, err := store.ExpireIfPending(context.Background(), persistence.ExpireTaskRequest{
		Key: persistence.TaskKey{OwnerId: "u-1", TaskId: "t-1"},
	})
	require.NoError(t, err)
	assert.False(t, resp.Expired)
}

func TestExpireIfPendingSurfacesThrottling(t *testing.T) {
	throttled := &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}
	client := &fakeClient{
		updateItem: func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			return nil, throttled
		},
	}
	store := NewDynamoTaskStoreWithClient(client, testTableConfig, log.NewNoopLogger())

	_, err := store.ExpireIfPending(context.Background(), persistence.ExpireTaskRequest{
		Key: persistence.TaskKey{OwnerId: "u-1", TaskId: "t-1"},
	})
	assert.True(t, errors.Is(err, throttled))
}

func TestGetTask(t *testing.T) {
	client := &fakeClient{
		getItem: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			if in.Key["SK"].(*types.AttributeValueMemberS).Value == "TASK#t-1" {
				return &dynamodb.GetItemOutput{Item: newTestItem(t, persistence.TaskStatusPending)}, nil
			}
			return &dynamodb.GetItemOutput{}, nil
		},
	}
	store := NewDynamoTaskStoreWithClient(client, testTableConfig, log.NewNoopLogger())

	resp, err := store.GetTask(context.Background(), persistence.TaskKey{OwnerId: "u-1", TaskId: "t-1"})
	require.NoError(t, err)
	assert.Equal(t, persistence.TaskStatusPending, resp.Task.Status)

	resp, err = store.GetTask(context.Background(), persistence.TaskKey{OwnerId: "u-1", TaskId: "t-2"})
	require.NoError(t, err)
	assert.True(t, resp.NotExists)
}

func TestListOverduePendingTasksQueriesStatusIndex(t *testing.T) {
	now := time.Date(2025, 9, 29, 19, 0, 0, 0, time.UTC)
	client := &fakeClient{
		query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			assert.Equal(t, "GSI1", aws.ToString(in.IndexName))
			assert.Equal(t, "GSI1PK = :pending AND GSI1SK <= :now", aws.ToString(in.KeyConditionExpression))
			assert.Equal(t, &types.AttributeValueMemberS{Value: "2025-09-29T19:00:00.000000+00:00"}, in.ExpressionAttributeValues[":now"])
			assert.Equal(t, int32(50), aws.ToInt32(in.Limit))
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{newTestItem(t, persistence.TaskStatusPending)}}, nil
		},
	}
	store := NewDynamoTaskStoreWithClient(client, testTableConfig, log.NewNoopLogger())

	resp, err := store.ListOverduePendingTasks(context.Background(), persistence.ListOverduePendingTasksRequest{
		DeadlineInclusive: now,
		PageSize:          50,
	})
	require.NoError(t, err)
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, "t-1", resp.Tasks[0].TaskId)
}

func TestTaskItemFallsBackToKeys(t *testing.T) {
	task, err := TaskItem{PK: "USER#u-9", SK: "TASK#t-9", Status: "Pending", Deadline: "2025-09-29T18:56:00Z"}.ToTask()
	require.NoError(t, err)
	assert.Equal(t, "u-9", task.OwnerId)
	assert.Equal(t, "t-9", task.TaskId)

	_, err = TaskItem{PK: "USER#u-9", SK: "PROFILE#p"}.ToTask()
	assert.Error(t, err)
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/persistence"
)

// Client is the subset of the DynamoDB API used by the store
type Client interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type dynamoTaskStoreImpl struct {
	client          Client
	tableName       string
	statusIndexName string
	logger          log.Logger
}

func NewDynamoTaskStore(ctx context.Context, cfg config.DynamoDBConfig, logger log.Logger) (persistence.TaskStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewDynamoTaskStoreWithClient(client, cfg, logger), nil
}

func NewDynamoTaskStoreWithClient(client Client, cfg config.DynamoDBConfig, logger log.Logger) persistence.TaskStore {
	return &dynamoTaskStoreImpl{
		client:          client,
		tableName:       cfg.TableName,
		statusIndexName: cfg.StatusIndexName,
		logger:          logger,
	}
}

func (s *dynamoTaskStoreImpl) Close() error {
	return nil
}

func (s *dynamoTaskStoreImpl) ExpireIfPending(
	ctx context.Context, request persistence.ExpireTaskRequest,
) (*persistence.ExpireTaskResponse, error) {
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key:       itemKey(request.Key),
		// the status index partition moves with the status
		UpdateExpression:    aws.String("SET #st = :expired, " + attrStatusIndexPK + " = :expired"),
		ConditionExpression: aws.String("#st = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#st": attrStatus,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expired": &types.AttributeValueMemberS{Value: string(persistence.TaskStatusExpired)},
			":pending": &types.AttributeValueMemberS{Value: string(persistence.TaskStatusPending)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			// a missing item fails the condition as well
			s.logger.Debug("task is not pending, skip expiring",
				tag.TaskId(request.Key.TaskId), tag.OwnerId(request.Key.OwnerId))
			return &persistence.ExpireTaskResponse{Expired: false}, nil
		}
		return nil, err
	}

	task, err := itemToTask(out.Attributes)
	if err != nil {
		// the write happened, only the read back is unusable
		s.logger.Warn("failed to read back expired task", tag.TaskId(request.Key.TaskId), tag.Error(err))
		task = persistence.Task{
			TaskId:  request.Key.TaskId,
			OwnerId: request.Key.OwnerId,
			Status:  persistence.TaskStatusExpired,
		}
	}
	return &persistence.ExpireTaskResponse{
		Expired: true,
		Task:    &task,
	}, nil
}

func (s *dynamoTaskStoreImpl) GetTask(
	ctx context.Context, key persistence.TaskKey,
) (*persistence.GetTaskResponse, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return &persistence.GetTaskResponse{NotExists: true}, nil
	}
	task, err := itemToTask(out.Item)
	if err != nil {
		return nil, err
	}
	return &persistence.GetTaskResponse{Task: &task}, nil
}

func (s *dynamoTaskStoreImpl) ListOverduePendingTasks(
	ctx context.Context, request persistence.ListOverduePendingTasksRequest,
) (*persistence.ListOverduePendingTasksResponse, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(s.statusIndexName),
		KeyConditionExpression: aws.String(attrStatusIndexPK + " = :pending AND " + attrStatusIndexSK + " <= :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: string(persistence.TaskStatusPending)},
			":now":     &types.AttributeValueMemberS{Value: persistence.FormatTimestamp(request.DeadlineInclusive)},
		},
		ScanIndexForward: aws.Bool(true),
		Limit:            aws.Int32(request.PageSize),
	})
	if err != nil {
		return nil, err
	}

	tasks := make([]persistence.Task, 0, len(out.Items))
	for _, item := range out.Items {
		task, err := itemToTask(item)
		if err != nil {
			s.logger.Warn("skip unreadable task item", tag.Error(err))
			continue
		}
		tasks = append(tasks, task)
	}
	return &persistence.ListOverduePendingTasksResponse{Tasks: tasks}, nil
}

func itemKey(key persistence.TaskKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: key.PartitionKey()},
		attrSK: &types.AttributeValueMemberS{Value: key.SortKey()},
	}
}

func itemToTask(item map[string]types.AttributeValue) (persistence.Task, error) {
	var ti TaskItem
	if err := attributevalue.UnmarshalMap(item, &ti); err != nil {
		return persistence.Task{}, err
	}
	return ti.ToTask()
}

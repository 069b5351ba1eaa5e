// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package stream

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/xcherryio/taskexpiry/persistence"
	"github.com/xcherryio/taskexpiry/persistence/dynamo"
)

// DynamoDBStreamCodec reads DynamoDB stream records as exported to the change stream:
//
//	{"eventID": "...", "eventName": "MODIFY",
//	 "dynamodb": {"Keys": {...}, "OldImage": {"PK": {"S": "USER#u-1"}, ...}, "NewImage": {...}}}
//
// Items that are not tasks (sort key not TASK#) share the table and are
// rejected with persistence.ErrNotTaskRecord.
type DynamoDBStreamCodec struct{}

type ddbStreamRecord struct {
	EventID   string `json:"eventID"`
	EventName string `json:"eventName"`
	DynamoDB  struct {
		Keys     ddbImage `json:"Keys"`
		OldImage ddbImage `json:"OldImage"`
		NewImage ddbImage `json:"NewImage"`
	} `json:"dynamodb"`
}

type ddbImage map[string]ddbAttributeValue

// ddbAttributeValue is the JSON form of an attribute value. Only scalar
// types appear in task items.
type ddbAttributeValue struct {
	S    *string `json:"S,omitempty"`
	N    *string `json:"N,omitempty"`
	BOOL *bool   `json:"BOOL,omitempty"`
	NULL *bool   `json:"NULL,omitempty"`
}

func (DynamoDBStreamCodec) Peek(raw []byte) (RecordHeader, error) {
	record, err := unmarshalDDBRecord(raw)
	if err != nil {
		return RecordHeader{}, err
	}
	pk, sk := record.keys()
	if pk == "" || sk == "" {
		return RecordHeader{}, malformed("record %v has no item key", record.EventID)
	}
	header := RecordHeader{RecordId: record.EventID}
	if key, err := persistence.TaskKeyFromParts(pk, sk); err == nil {
		header.OrderingKey = key.TaskId
	} else {
		header.OrderingKey = pk + "|" + sk
	}
	return header, nil
}

func (DynamoDBStreamCodec) Decode(raw []byte) (persistence.ChangeRecord, error) {
	record, err := unmarshalDDBRecord(raw)
	if err != nil {
		return persistence.ChangeRecord{}, err
	}
	if _, sk := record.keys(); !persistence.IsTaskSortKey(sk) {
		return persistence.ChangeRecord{}, fmt.Errorf("%w: sort key %q", persistence.ErrNotTaskRecord, sk)
	}

	changeRecord := persistence.ChangeRecord{
		RecordId:  record.EventID,
		EventType: persistence.EventType(record.EventName),
	}
	if changeRecord.OldImage, err = record.DynamoDB.OldImage.toTask(); err != nil {
		return persistence.ChangeRecord{}, err
	}
	if changeRecord.NewImage, err = record.DynamoDB.NewImage.toTask(); err != nil {
		return persistence.ChangeRecord{}, err
	}
	if err := changeRecord.Validate(); err != nil {
		return persistence.ChangeRecord{}, err
	}
	return changeRecord, nil
}

func unmarshalDDBRecord(raw []byte) (*ddbStreamRecord, error) {
	var record ddbStreamRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, malformed("invalid json: %v", err)
	}
	if record.EventID == "" {
		return nil, malformed("missing eventID")
	}
	return &record, nil
}

// keys returns PK and SK from Keys, falling back to the images
func (r *ddbStreamRecord) keys() (pk, sk string) {
	for _, image := range []ddbImage{r.DynamoDB.Keys, r.DynamoDB.NewImage, r.DynamoDB.OldImage} {
		pk, sk = image.str("PK"), image.str("SK")
		if pk != "" && sk != "" {
			return pk, sk
		}
	}
	return "", ""
}

func (img ddbImage) str(name string) string {
	if v, ok := img[name]; ok && v.S != nil {
		return *v.S
	}
	return ""
}

func (img ddbImage) toTask() (*persistence.Task, error) {
	if len(img) == 0 {
		return nil, nil
	}
	item := make(map[string]types.AttributeValue, len(img))
	for name, v := range img {
		switch {
		case v.S != nil:
			item[name] = &types.AttributeValueMemberS{Value: *v.S}
		case v.N != nil:
			item[name] = &types.AttributeValueMemberN{Value: *v.N}
		case v.BOOL != nil:
			item[name] = &types.AttributeValueMemberBOOL{Value: *v.BOOL}
		case v.NULL != nil:
			item[name] = &types.AttributeValueMemberNULL{Value: *v.NULL}
		}
	}

	var taskItem dynamo.TaskItem
	if err := attributevalue.UnmarshalMap(item, &taskItem); err != nil {
		return nil, malformed("unreadable image: %v", err)
	}
	task, err := taskItem.ToTask()
	if err != nil {
		return nil, malformed("%v", err)
	}
	return &task, nil
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package stream

import (
	"encoding/json"

	"github.com/xcherryio/taskexpiry/persistence"
)

// NativeCodec reads and writes the JSON envelope
//
//	{"recordId": "...", "eventType": "MODIFY", "oldImage": {...}, "newImage": {...}}
//
// where an image is {"taskId", "ownerId", "description", "deadline", "status", "createdAt"}
type NativeCodec struct{}

type nativeRecord struct {
	RecordId  string       `json:"recordId"`
	EventType string       `json:"eventType"`
	OldImage  *nativeImage `json:"oldImage,omitempty"`
	NewImage  *nativeImage `json:"newImage,omitempty"`
}

type nativeImage struct {
	TaskId      string `json:"taskId"`
	OwnerId     string `json:"ownerId"`
	Description string `json:"description,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

func (NativeCodec) Peek(raw []byte) (RecordHeader, error) {
	var record nativeRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return RecordHeader{}, malformed("invalid json: %v", err)
	}
	if record.RecordId == "" {
		return RecordHeader{}, malformed("missing recordId")
	}
	header := RecordHeader{RecordId: record.RecordId}
	if record.NewImage != nil && record.NewImage.TaskId != "" {
		header.OrderingKey = record.NewImage.TaskId
	} else if record.OldImage != nil {
		header.OrderingKey = record.OldImage.TaskId
	}
	if header.OrderingKey == "" {
		return RecordHeader{}, malformed("record %v has no task id", record.RecordId)
	}
	return header, nil
}

func (NativeCodec) Decode(raw []byte) (persistence.ChangeRecord, error) {
	var record nativeRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return persistence.ChangeRecord{}, malformed("invalid json: %v", err)
	}
	changeRecord := persistence.ChangeRecord{
		RecordId:  record.RecordId,
		EventType: persistence.EventType(record.EventType),
	}
	var err error
	if changeRecord.OldImage, err = record.OldImage.toTask(); err != nil {
		return persistence.ChangeRecord{}, err
	}
	if changeRecord.NewImage, err = record.NewImage.toTask(); err != nil {
		return persistence.ChangeRecord{}, err
	}
	if err := changeRecord.Validate(); err != nil {
		return persistence.ChangeRecord{}, err
	}
	return changeRecord, nil
}

// Encode writes the record in the native format
func (NativeCodec) Encode(record persistence.ChangeRecord) ([]byte, error) {
	return json.Marshal(nativeRecord{
		RecordId:  record.RecordId,
		EventType: string(record.EventType),
		OldImage:  fromTask(record.OldImage),
		NewImage:  fromTask(record.NewImage),
	})
}

func (img *nativeImage) toTask() (*persistence.Task, error) {
	if img == nil {
		return nil, nil
	}
	task := &persistence.Task{
		TaskId:      img.TaskId,
		OwnerId:     img.OwnerId,
		Description: img.Description,
		Status:      persistence.TaskStatus(img.Status),
	}
	if img.Deadline != "" {
		deadline, err := persistence.ParseTimestamp(img.Deadline)
		if err != nil {
			return nil, malformed("task %v: %v", img.TaskId, err)
		}
		task.Deadline = deadline
	}
	if img.CreatedAt != "" {
		if createdAt, err := persistence.ParseTimestamp(img.CreatedAt); err == nil {
			task.CreatedAt = createdAt
		}
	}
	return task, nil
}

func fromTask(task *persistence.Task) *nativeImage {
	if task == nil {
		return nil
	}
	img := &nativeImage{
		TaskId:      task.TaskId,
		OwnerId:     task.OwnerId,
		Description: task.Description,
		Status:      string(task.Status),
	}
	if !task.Deadline.IsZero() {
		img.Deadline = persistence.FormatTimestamp(task.Deadline)
	}
	if !task.CreatedAt.IsZero() {
		img.CreatedAt = persistence.FormatTimestamp(task.CreatedAt)
	}
	return img
}

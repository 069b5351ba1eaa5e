// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package persistence

import (
	"fmt"
	"strings"
	"time"
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "Pending"
	TaskStatusCompleted TaskStatus = "Completed"
	TaskStatusExpired   TaskStatus = "Expired"
)

func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusCompleted, TaskStatusExpired:
		return true
	default:
		return false
	}
}

func (s TaskStatus) String() string {
	return string(s)
}

type Task struct {
	TaskId      string
	OwnerId     string
	Description string
	// Deadline is always in UTC
	Deadline  time.Time
	Status    TaskStatus
	CreatedAt time.Time
}

func (t Task) Key() TaskKey {
	return TaskKey{OwnerId: t.OwnerId, TaskId: t.TaskId}
}

const (
	ownerKeyPrefix   = "USER#"
	taskKeyPrefix    = "TASK#"
	storageKeyJoiner = "|"
)

// TaskKey is the storage key of a task. Tasks are partitioned by owner.
type TaskKey struct {
	OwnerId string
	TaskId  string
}

// PartitionKey renders the owner part of the key, e.g. USER#u-1
func (k TaskKey) PartitionKey() string {
	return ownerKeyPrefix + k.OwnerId
}

// SortKey renders the task part of the key, e.g. TASK#t-1
func (k TaskKey) SortKey() string {
	return taskKeyPrefix + k.TaskId
}

// StorageKey renders the full key, e.g. USER#u-1|TASK#t-1
func (k TaskKey) StorageKey() string {
	return k.PartitionKey() + storageKeyJoiner + k.SortKey()
}

// IsTaskSortKey tells whether a sort key belongs to a task item
func IsTaskSortKey(sk string) bool {
	return strings.HasPrefix(sk, taskKeyPrefix) && len(sk) > len(taskKeyPrefix)
}

// TaskKeyFromParts builds the key from the partition and sort key
func TaskKeyFromParts(pk, sk string) (TaskKey, error) {
	if !strings.HasPrefix(pk, ownerKeyPrefix) || len(pk) == len(ownerKeyPrefix) {
		return TaskKey{}, fmt.Errorf("invalid partition key %q", pk)
	}
	if !IsTaskSortKey(sk) {
		return TaskKey{}, fmt.Errorf("invalid sort key %q", sk)
	}
	return TaskKey{
		OwnerId: strings.TrimPrefix(pk, ownerKeyPrefix),
		TaskId:  strings.TrimPrefix(sk, taskKeyPrefix),
	}, nil
}

func ParseStorageKey(key string) (TaskKey, error) {
	pk, sk, found := strings.Cut(key, storageKeyJoiner)
	if !found {
		return TaskKey{}, fmt.Errorf("invalid storage key %q", key)
	}
	return TaskKeyFromParts(pk, sk)
}

type EventType string

const (
	EventTypeInsert EventType = "INSERT"
	EventTypeModify EventType = "MODIFY"
	EventTypeRemove EventType = "REMOVE"
)

// ChangeRecord is one entry of the task store change stream
type ChangeRecord struct {
	// RecordId is unique per change and is used as the deduplication id
	RecordId  string
	EventType EventType
	// OldImage is set for MODIFY and REMOVE
	OldImage *Task
	// NewImage is set for INSERT and MODIFY
	NewImage *Task
}

// TaskId returns the id of the task this record belongs to
func (r ChangeRecord) TaskId() string {
	if r.NewImage != nil && r.NewImage.TaskId != "" {
		return r.NewImage.TaskId
	}
	if r.OldImage != nil {
		return r.OldImage.TaskId
	}
	return ""
}

func (r ChangeRecord) Validate() error {
	if r.RecordId == "" {
		return fmt.Errorf("%w: missing record id", ErrMalformedRecord)
	}
	switch r.EventType {
	case EventTypeInsert:
		return validateImage("new", r.NewImage)
	case EventTypeModify:
		if err := validateImage("old", r.OldImage); err != nil {
			return err
		}
		if err := validateImage("new", r.NewImage); err != nil {
			return err
		}
		if r.OldImage.TaskId != r.NewImage.TaskId {
			return fmt.Errorf("%w: images belong to different tasks", ErrMalformedRecord)
		}
		return nil
	case EventTypeRemove:
		return validateImage("old", r.OldImage)
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrMalformedRecord, r.EventType)
	}
}

func validateImage(which string, image *Task) error {
	if image == nil {
		return fmt.Errorf("%w: missing %v image", ErrMalformedRecord, which)
	}
	if image.TaskId == "" || image.OwnerId == "" {
		return fmt.Errorf("%w: %v image is missing the task key", ErrMalformedRecord, which)
	}
	if !image.Status.IsValid() {
		return fmt.Errorf("%w: %v image has unknown status %q", ErrMalformedRecord, which, image.Status)
	}
	if image.Status == TaskStatusPending && image.Deadline.IsZero() {
		return fmt.Errorf("%w: %v image is pending without a deadline", ErrMalformedRecord, which)
	}
	return nil
}

// TriggerPayload is what a trigger hands to the expiry executor when it fires
type TriggerPayload struct {
	TaskId     string `json:"taskId"`
	OwnerId    string `json:"ownerId"`
	StorageKey string `json:"storageKey"`
}

func NewTriggerPayload(key TaskKey) TriggerPayload {
	return TriggerPayload{
		TaskId:     key.TaskId,
		OwnerId:    key.OwnerId,
		StorageKey: key.StorageKey(),
	}
}

func (p TriggerPayload) Validate() error {
	if p.TaskId == "" || p.OwnerId == "" || p.StorageKey == "" {
		return fmt.Errorf("%w: taskId, ownerId and storageKey are all required", ErrMalformedPayload)
	}
	key, err := ParseStorageKey(p.StorageKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if key.TaskId != p.TaskId || key.OwnerId != p.OwnerId {
		return fmt.Errorf("%w: storage key does not match the task", ErrMalformedPayload)
	}
	return nil
}

// Key returns the task key. Validate must pass first.
func (p TriggerPayload) Key() TaskKey {
	return TaskKey{OwnerId: p.OwnerId, TaskId: p.TaskId}
}

// Trigger is a one-shot deferred callback, at most one per task
type Trigger struct {
	Name    string
	FireAt  time.Time
	Payload TriggerPayload
	// Sequence changes whenever the trigger is rescheduled,
	// so a stale copy loaded before the change can be told apart
	Sequence int64
	// Attempts is the number of failed firings so far
	Attempts int32
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package router

import "context"

// QueueMessage is the envelope of one change record on the delivery queue
type QueueMessage struct {
	// Payload is the raw change record, forwarded unmodified
	Payload []byte
	// DedupId is the record id
	DedupId string
	// OrderingKey is the task id, messages with the same key keep their relative order
	OrderingKey string
}

// DeliveryPublisher enqueues messages onto the ordered delivery queue
type DeliveryPublisher interface {
	// PublishBatch enqueues the messages in order. The returned slice has
	// one entry per message, nil for the ones that were enqueued.
	PublishBatch(ctx context.Context, msgs []QueueMessage) []error
	Close()
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package router

import (
	"context"
	"fmt"

	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/stream"
	"go.uber.org/multierr"
)

// Router forwards raw change records to the delivery queue. It reads only
// the record header and carries no business logic.
type Router struct {
	codec     stream.Codec
	publisher DeliveryPublisher
	logger    log.Logger
}

type RecordResult struct {
	RecordId string
	// Dropped is set for a record that could not be read, it is never retried
	Dropped bool
	Err     error
}

type BatchResult struct {
	Records []RecordResult
}

// Failed tells whether any record of the batch failed to be enqueued,
// in which case the whole batch must be routed again
func (r BatchResult) Failed() bool {
	return r.Err() != nil
}

func (r BatchResult) Err() error {
	var errs error
	for _, record := range r.Records {
		if record.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("record %v: %w", record.RecordId, record.Err))
		}
	}
	return errs
}

func NewRouter(codec stream.Codec, publisher DeliveryPublisher, logger log.Logger) *Router {
	return &Router{
		codec:     codec,
		publisher: publisher,
		logger:    logger,
	}
}

func (r *Router) RouteBatch(ctx context.Context, raws [][]byte) BatchResult {
	result := BatchResult{Records: make([]RecordResult, len(raws))}

	var msgs []QueueMessage
	var msgIndexes []int
	for i, raw := range raws {
		header, err := r.codec.Peek(raw)
		if err != nil {
			r.logger.Error("dropping unreadable change record", tag.Error(err), tag.Value(string(raw)))
			result.Records[i] = RecordResult{Dropped: true}
			continue
		}
		result.Records[i] = RecordResult{RecordId: header.RecordId}
		msgs = append(msgs, QueueMessage{
			Payload:     raw,
			DedupId:     header.RecordId,
			OrderingKey: header.OrderingKey,
		})
		msgIndexes = append(msgIndexes, i)
	}

	if len(msgs) == 0 {
		return result
	}
	errs := r.publisher.PublishBatch(ctx, msgs)
	for j, err := range errs {
		if err != nil {
			result.Records[msgIndexes[j]].Err = err
		}
	}
	return result
}

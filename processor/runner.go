// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package processor

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/persistence"
	"github.com/xcherryio/taskexpiry/stream"
)

// Delivery is one record handed over by the delivery queue
type Delivery struct {
	RecordId    string
	OrderingKey string
	Payload     []byte
	Ack         func()
	Nack        func()
}

// Runner dispatches deliveries to workers. Deliveries with the same ordering key
// always go to the same worker, so the records of a task are handled in order.
type Runner struct {
	cfg       config.ProcessorConfig
	codec     stream.Codec
	processor Processor
	dedup     Deduplicator
	logger    log.Logger

	workerChans []chan Delivery
	wg          sync.WaitGroup
	startOnce   sync.Once
	stopOnce    sync.Once
}

func NewRunner(
	cfg config.ProcessorConfig, codec stream.Codec, processor Processor, dedup Deduplicator, logger log.Logger,
) *Runner {
	workerChans := make([]chan Delivery, cfg.Concurrency)
	for i := range workerChans {
		workerChans[i] = make(chan Delivery, cfg.WorkerBufferSize)
	}
	return &Runner{
		cfg:         cfg,
		codec:       codec,
		processor:   processor,
		dedup:       dedup,
		logger:      logger,
		workerChans: workerChans,
	}
}

func (r *Runner) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		for i, ch := range r.workerChans {
			r.wg.Add(1)
			go r.work(ctx, i, ch)
		}
	})
}

// Dispatch blocks when the worker of the delivery is busy, which applies
// back pressure to the consumer
func (r *Runner) Dispatch(ctx context.Context, delivery Delivery) {
	ch := r.workerChans[r.workerIndex(delivery.OrderingKey)]
	select {
	case ch <- delivery:
	case <-ctx.Done():
		// not acked, the queue redelivers it
	}
}

// Stop lets the workers finish what was dispatched. Dispatch must not be called after.
func (r *Runner) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() {
		for _, ch := range r.workerChans {
			close(ch)
		}
	})
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) work(ctx context.Context, workerId int, ch <-chan Delivery) {
	defer r.wg.Done()
	logger := r.logger.WithTags(tag.WorkerId(workerId))
	for delivery := range ch {
		if ctx.Err() != nil {
			// shutting down, leave it to redelivery
			continue
		}
		if r.handleUntilDone(ctx, delivery, logger) {
			delivery.Ack()
		} else {
			delivery.Nack()
		}
	}
}

// handleUntilDone retries a retryable delivery in place, so no later record of the
// same task is handled before it. It returns false only when ctx is done.
func (r *Runner) handleUntilDone(ctx context.Context, delivery Delivery, logger log.Logger) bool {
	for attempt := int32(1); ; attempt++ {
		result := r.Handle(ctx, delivery)
		logger.Debug("handled delivery", tag.RecordId(delivery.RecordId), tag.Outcome(result.String()))
		if result.ShouldAck() {
			return true
		}
		logger.Warn("failed to process change record, retrying",
			tag.RecordId(delivery.RecordId), tag.Attempts(attempt), tag.Backoff(r.cfg.RetryInterval))
		timer := time.NewTimer(r.cfg.RetryInterval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return false
		}
	}
}

// Handle decodes and processes one delivery, it never acks or nacks
func (r *Runner) Handle(ctx context.Context, delivery Delivery) Result {
	logger := r.logger.WithTags(tag.RecordId(delivery.RecordId))

	record, err := r.codec.Decode(delivery.Payload)
	if err != nil {
		if errors.Is(err, persistence.ErrNotTaskRecord) {
			logger.Debug("skip change record of a non task item", tag.Error(err))
		} else {
			logger.Error("dropping malformed change record", tag.Error(err))
		}
		return ResultPermanent
	}

	processed, err := r.dedup.IsProcessed(ctx, record.RecordId)
	if err != nil {
		logger.Warn("failed to check the dedup window, processing anyway", tag.Error(err))
	} else if processed {
		logger.Debug("skip duplicated change record")
		return ResultSuccess
	}

	result := r.processor.Process(ctx, record)
	if result == ResultSuccess {
		if err := r.dedup.MarkProcessed(ctx, record.RecordId); err != nil {
			logger.Warn("failed to mark change record processed", tag.Error(err))
		}
	}
	return result
}

func (r *Runner) workerIndex(orderingKey string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(orderingKey))
	return int(h.Sum32() % uint32(len(r.workerChans)))
}

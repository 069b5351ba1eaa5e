// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/xcherryio/taskexpiry/common/clock"
	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/expiry"
	"github.com/xcherryio/taskexpiry/persistence"
)

type triggerConcurrentProcessor struct {
	rootCtx              context.Context
	cfg                  config.TriggerQueueConfig
	triggerToProcessChan chan persistence.Trigger
	completionChan       chan<- TriggerCompletion
	store                persistence.TriggerStore
	executor             expiry.Executor
	timeSource           clock.TimeSource
	logger               log.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTriggerConcurrentProcessor(
	ctx context.Context, cfg config.TriggerQueueConfig, store persistence.TriggerStore,
	executor expiry.Executor, timeSource clock.TimeSource, logger log.Logger,
) TriggerProcessor {
	ctx, cancel := context.WithCancel(ctx)
	return &triggerConcurrentProcessor{
		rootCtx:              ctx,
		cfg:                  cfg,
		triggerToProcessChan: make(chan persistence.Trigger, cfg.ProcessorBufferSize),
		store:                store,
		executor:             executor,
		timeSource:           timeSource,
		logger:               logger,
		cancel:               cancel,
	}
}

func (w *triggerConcurrentProcessor) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *triggerConcurrentProcessor) GetTriggersToProcessChan() chan<- persistence.Trigger {
	return w.triggerToProcessChan
}

func (w *triggerConcurrentProcessor) SetCompletionChan(completionChan chan<- TriggerCompletion) {
	w.completionChan = completionChan
}

func (w *triggerConcurrentProcessor) Start() error {
	concurrency := w.cfg.ProcessorConcurrency

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case <-w.rootCtx.Done():
					return
				case trigger, ok := <-w.triggerToProcessChan:
					if !ok {
						return
					}
					completion := w.processTrigger(trigger)
					select {
					case w.completionChan <- completion:
					case <-w.rootCtx.Done():
						return
					}
				}
			}
		}()
	}
	return nil
}

// processTrigger never fails. A trigger that could not be completed or backed off
// stays in the store and is fired again by a later preload.
func (w *triggerConcurrentProcessor) processTrigger(trigger persistence.Trigger) TriggerCompletion {
	logger := w.logger.WithTags(tag.TriggerName(trigger.Name), tag.Sequence(trigger.Sequence))
	completion := TriggerCompletion{Trigger: trigger}

	current, err := w.store.GetTrigger(w.rootCtx, trigger.Name)
	if err != nil {
		logger.Warn("failed to check the fired trigger, will fire again on next preload", tag.Error(err))
		return completion
	}
	if current.NotExists || current.Trigger.Sequence != trigger.Sequence {
		// cancelled or rescheduled after it was loaded
		logger.Debug("skip the stale trigger")
		return completion
	}

	logger.Debug("fire trigger", tag.TaskId(trigger.Payload.TaskId))
	outcome, err := w.executor.Execute(w.rootCtx, trigger.Payload)
	if err == nil {
		logger.Info("trigger fired", tag.TaskId(trigger.Payload.TaskId), tag.Outcome(string(outcome)))
		w.completeFiredTrigger(trigger, logger)
		return completion
	}
	if errors.Is(err, persistence.ErrMalformedPayload) {
		logger.Error("dropping trigger with malformed payload", tag.Error(err))
		w.completeFiredTrigger(trigger, logger)
		return completion
	}

	attempts := trigger.Attempts + 1
	backoff, shouldRetry := GetNextBackoff(attempts, w.cfg.RetryPolicy)
	if !shouldRetry {
		logger.Error("giving up the trigger after max attempts",
			tag.TaskId(trigger.Payload.TaskId), tag.Attempts(attempts), tag.Error(err))
		w.completeFiredTrigger(trigger, logger)
		return completion
	}

	nextFireAt := w.timeSource.Now().Add(backoff)
	logger.Warn("failed to fire trigger, backing off",
		tag.Attempts(attempts), tag.Backoff(backoff), tag.Error(err))
	err = w.store.BackoffFiredTrigger(w.rootCtx, persistence.BackoffFiredTriggerRequest{
		Name:       trigger.Name,
		Sequence:   trigger.Sequence,
		NextFireAt: nextFireAt,
		Attempts:   attempts,
	})
	if err != nil {
		logger.Warn("failed to back off trigger, will fire again on next preload", tag.Error(err))
		return completion
	}

	completion.Trigger.FireAt = nextFireAt
	completion.Trigger.Attempts = attempts
	completion.Retry = true
	return completion
}

func (w *triggerConcurrentProcessor) completeFiredTrigger(trigger persistence.Trigger, logger log.Logger) {
	err := w.store.CompleteFiredTrigger(w.rootCtx, persistence.CompleteFiredTriggerRequest{
		Name:     trigger.Name,
		Sequence: trigger.Sequence,
	})
	if err != nil {
		// the executor is idempotent, firing again is harmless
		logger.Warn("failed to delete fired trigger, will fire again on next preload", tag.Error(err))
	}
}

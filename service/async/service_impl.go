// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package async

import (
	"context"

	"github.com/xcherryio/taskexpiry/common/clock"
	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/engine"
	"github.com/xcherryio/taskexpiry/expiry"
	"github.com/xcherryio/taskexpiry/persistence"
	"go.uber.org/multierr"
)

type asyncService struct {
	rootCtx context.Context

	notifier engine.TriggerNotifier
	executor expiry.Executor

	triggerQueue     engine.TriggerQueue
	triggerProcessor engine.TriggerProcessor

	cfg    config.ExpiryServiceConfig
	logger log.Logger
}

func NewAsyncServiceImpl(
	rootCtx context.Context, triggerStore persistence.TriggerStore, executor expiry.Executor,
	cfg config.ExpiryServiceConfig, logger log.Logger,
) Service {
	timeSource := clock.NewRealTimeSource()

	triggerProcessor := engine.NewTriggerConcurrentProcessor(
		rootCtx, cfg.TriggerQueue, triggerStore, executor, timeSource, logger)
	triggerQueue := engine.NewTriggerQueueImpl(
		rootCtx, cfg.TriggerQueue, triggerStore, triggerProcessor, timeSource, logger)

	return &asyncService{
		triggerQueue:     triggerQueue,
		triggerProcessor: triggerProcessor,

		notifier: newLocalTriggerNotifier(triggerQueue),
		executor: executor,

		rootCtx: rootCtx,
		cfg:     cfg,
		logger:  logger,
	}
}

func (a asyncService) Start() error {
	err := a.triggerProcessor.Start()
	if err != nil {
		a.logger.Error("fail to start trigger processor", tag.Error(err))
		return err
	}
	err = a.triggerQueue.Start()
	if err != nil {
		a.logger.Error("fail to start trigger queue", tag.Error(err))
		return err
	}
	return nil
}

func (a asyncService) NotifyPollingTriggers(req engine.NotifyTriggersRequest) {
	a.triggerQueue.TriggerPollingTriggers(req)
}

func (a asyncService) Fire(ctx context.Context, payload persistence.TriggerPayload) (expiry.Outcome, error) {
	return a.executor.Execute(ctx, payload)
}

func (a asyncService) GetNotifier() engine.TriggerNotifier {
	return a.notifier
}

func (a asyncService) Stop(ctx context.Context) error {
	err1 := a.triggerQueue.Stop(ctx)
	err2 := a.triggerProcessor.Stop(ctx)

	return multierr.Combine(err1, err2)
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package processor

import (
	"context"

	"github.com/xcherryio/taskexpiry/common/clock"
	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/engine"
	"github.com/xcherryio/taskexpiry/persistence"
)

// Processor turns one change record into trigger registry commands
type Processor interface {
	Process(ctx context.Context, record persistence.ChangeRecord) Result
}

type processorImpl struct {
	registry   engine.TriggerRegistry
	cfg        config.ProcessorConfig
	timeSource clock.TimeSource
	logger     log.Logger
}

func NewProcessor(
	registry engine.TriggerRegistry, cfg config.ProcessorConfig, timeSource clock.TimeSource, logger log.Logger,
) Processor {
	return &processorImpl{
		registry:   registry,
		cfg:        cfg,
		timeSource: timeSource,
		logger:     logger,
	}
}

func (p *processorImpl) Process(ctx context.Context, record persistence.ChangeRecord) Result {
	decision := Decide(record, p.timeSource.Now())
	name := TriggerName(p.cfg.TriggerNamePrefix, decision.Key.TaskId)
	logger := p.logger.WithTags(
		tag.RecordId(record.RecordId),
		tag.EventType(string(record.EventType)),
		tag.TaskId(decision.Key.TaskId),
		tag.Action(string(decision.Action)),
	)

	switch decision.Action {
	case ActionSchedule:
		if err := p.schedule(ctx, name, decision); err != nil {
			logger.Warn("failed to schedule trigger", tag.Error(err))
			return ResultRetryable
		}
	case ActionCancel:
		if err := p.cancel(ctx, name); err != nil {
			logger.Warn("failed to cancel trigger", tag.Error(err))
			return ResultRetryable
		}
	case ActionReschedule:
		// cancel first, a task never has two live triggers
		if err := p.cancel(ctx, name); err != nil {
			logger.Warn("failed to cancel trigger for rescheduling", tag.Error(err))
			return ResultRetryable
		}
		if err := p.schedule(ctx, name, decision); err != nil {
			logger.Warn("failed to schedule rescheduled trigger", tag.Error(err))
			return ResultRetryable
		}
	}

	if decision.Reason != "" {
		logger.Info("processed change record", tag.Message(decision.Reason))
	} else {
		logger.Info("processed change record")
	}
	return ResultSuccess
}

func (p *processorImpl) schedule(ctx context.Context, name string, decision Decision) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.RegistryTimeout)
	defer cancel()
	return p.registry.Register(ctx, engine.RegisterTriggerRequest{
		Name:    name,
		FireAt:  FireTimeFor(decision.Deadline, p.cfg.TriggerGranularity),
		Payload: persistence.NewTriggerPayload(decision.Key),
	})
}

func (p *processorImpl) cancel(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.RegistryTimeout)
	defer cancel()
	return p.registry.Cancel(ctx, name)
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package processor

import (
	"context"

	"github.com/xcherryio/taskexpiry/common/clock"
	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/engine"
	taskprocessor "github.com/xcherryio/taskexpiry/processor"
	"github.com/xcherryio/taskexpiry/stream"
	"go.uber.org/multierr"
)

// Server consumes the delivery queue and keeps the trigger registry in sync with the tasks
type Server struct {
	consumer taskprocessor.DeliveryConsumer
	dedup    taskprocessor.Deduplicator
}

// NewProcessorServer takes a registry so that the bootstrap decides how new
// triggers are announced to the expiry service
func NewProcessorServer(
	rootCtx context.Context, cfg config.Config, registry engine.TriggerRegistry, logger log.Logger,
) (*Server, error) {
	format := config.ChangeStreamFormatNative
	if cfg.ChangeStream != nil {
		format = cfg.ChangeStream.Format
	}
	codec, err := stream.NewCodec(format)
	if err != nil {
		return nil, err
	}
	dedup, err := taskprocessor.NewDeduplicator(rootCtx, cfg.Dedup)
	if err != nil {
		return nil, err
	}

	p := taskprocessor.NewProcessor(registry, cfg.Processor, clock.NewRealTimeSource(), logger)
	runner := taskprocessor.NewRunner(cfg.Processor, codec, p, dedup, logger)
	return &Server{
		consumer: taskprocessor.NewPulsarDeliveryConsumer(cfg.DeliveryQueue.Pulsar, runner, logger),
		dedup:    dedup,
	}, nil
}

func (s *Server) Start(rootCtx context.Context) error {
	return s.consumer.Start(rootCtx)
}

func (s *Server) Stop(_ context.Context) error {
	return multierr.Combine(s.consumer.Stop(), s.dedup.Close())
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package router

import (
	"context"

	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/config"
	taskrouter "github.com/xcherryio/taskexpiry/router"
	"github.com/xcherryio/taskexpiry/stream"
	"go.uber.org/multierr"
)

// Server moves the change stream onto the delivery queue
type Server struct {
	source    *taskrouter.KafkaSource
	publisher taskrouter.DeliveryPublisher
	logger    log.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRouterServer(cfg config.Config, logger log.Logger) (*Server, error) {
	codec, err := stream.NewCodec(cfg.ChangeStream.Format)
	if err != nil {
		return nil, err
	}
	publisher, err := taskrouter.NewPulsarPublisher(cfg.DeliveryQueue.Pulsar)
	if err != nil {
		return nil, err
	}
	reader := taskrouter.NewKafkaReader(cfg.ChangeStream.Kafka)

	return &Server{
		source:    taskrouter.NewKafkaSource(reader, taskrouter.NewRouter(codec, publisher, logger), cfg.Router, logger),
		publisher: publisher,
		logger:    logger,
		done:      make(chan struct{}),
	}, nil
}

func (s *Server) Start(rootCtx context.Context) error {
	ctx, cancel := context.WithCancel(rootCtx)
	s.cancel = cancel
	go func() {
		defer close(s.done)
		if err := s.source.Run(ctx); err != nil {
			s.logger.Error("change stream source stopped", tag.Error(err))
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	var err error
	select {
	case <-s.done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	err = multierr.Append(err, s.source.Close())
	s.publisher.Close()
	return err
}

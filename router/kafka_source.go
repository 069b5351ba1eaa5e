// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package router

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/config"
)

// MessageReader is the subset of kafka.Reader used by the source
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaReader(cfg config.KafkaConfig) *kafka.Reader {
	minBytes := cfg.MinBytes
	if minBytes == 0 {
		minBytes = 1
	}
	maxBytes := cfg.MaxBytes
	if maxBytes == 0 {
		maxBytes = 10e6
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: minBytes,
		MaxBytes: maxBytes,
		// manual commits, the offset only moves after a batch is routed
		CommitInterval: 0,
	})
}

// KafkaSource reads the change stream in batches and commits a batch
// only after every record of it is enqueued
type KafkaSource struct {
	reader MessageReader
	router *Router
	cfg    config.RouterConfig
	logger log.Logger
}

func NewKafkaSource(reader MessageReader, router *Router, cfg config.RouterConfig, logger log.Logger) *KafkaSource {
	return &KafkaSource{
		reader: reader,
		router: router,
		cfg:    cfg,
		logger: logger,
	}
}

// Run routes batches until the context is done. Fetch errors are retried
// every RetryInterval, the reader resumes from the last committed offset.
func (s *KafkaSource) Run(ctx context.Context) error {
	for {
		batch, err := s.fetchBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("failed to fetch from change stream, will retry", tag.Error(err))
			if !s.wait(ctx) {
				return nil
			}
			continue
		}

		if !s.routeUntilDone(ctx, batch) {
			// not committed, the batch is read again after a restart
			return nil
		}

		commitCtx, cancel := context.WithTimeout(context.Background(), s.cfg.RetryInterval)
		err = s.reader.CommitMessages(commitCtx, batch...)
		cancel()
		if err != nil {
			// the records are routed again later, duplicates are harmless
			s.logger.Warn("failed to commit routed batch", tag.Error(err), tag.Count(len(batch)))
		}
	}
}

func (s *KafkaSource) Close() error {
	return s.reader.Close()
}

// routeUntilDone returns false only when the context is done first
func (s *KafkaSource) routeUntilDone(ctx context.Context, batch []kafka.Message) bool {
	raws := make([][]byte, len(batch))
	for i, msg := range batch {
		raws[i] = msg.Value
	}
	last := batch[len(batch)-1]

	for {
		result := s.router.RouteBatch(ctx, raws)
		if !result.Failed() {
			s.logger.Debug("routed batch", tag.Count(len(batch)),
				tag.Partition(last.Partition), tag.Offset(last.Offset))
			return true
		}
		s.logger.Warn("failed to route batch, will retry the whole batch",
			tag.Error(result.Err()), tag.Count(len(batch)),
			tag.Partition(last.Partition), tag.Offset(last.Offset))

		if !s.wait(ctx) {
			return false
		}
	}
}

// wait sleeps RetryInterval, it returns false when the context is done first
func (s *KafkaSource) wait(ctx context.Context) bool {
	timer := time.NewTimer(s.cfg.RetryInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// fetchBatch blocks for the first message, then waits at most BatchWait to fill the batch
func (s *KafkaSource) fetchBatch(ctx context.Context) ([]kafka.Message, error) {
	first, err := s.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	batch := []kafka.Message{first}

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.BatchWait)
	defer cancel()
	for len(batch) < s.cfg.BatchSize {
		msg, err := s.reader.FetchMessage(waitCtx)
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
				// route what was fetched, the error shows up again on the next fetch
				s.logger.Warn("failed to fill batch", tag.Error(err), tag.Count(len(batch)))
			}
			break
		}
		batch = append(batch, msg)
	}
	return batch, nil
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package sweeper

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/xcherryio/taskexpiry/common/clock"
	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/expiry"
	"github.com/xcherryio/taskexpiry/persistence"
	"go.uber.org/multierr"
)

// Sweeper periodically expires Pending tasks whose deadline has passed
// without a trigger, e.g. tasks inserted with a deadline in the past.
// It goes through the same conditional executor as the triggers do,
// so running both at the same time is safe.
type Sweeper struct {
	store      persistence.TaskStore
	executor   expiry.Executor
	cfg        config.SweeperConfig
	timeSource clock.TimeSource
	logger     log.Logger
	cron       *cron.Cron
}

func NewSweeper(
	store persistence.TaskStore, executor expiry.Executor, cfg config.SweeperConfig,
	timeSource clock.TimeSource, logger log.Logger,
) (*Sweeper, error) {
	s := &Sweeper{
		store:      store,
		executor:   executor,
		cfg:        cfg,
		timeSource: timeSource,
		logger:     logger,
		cron:       cron.New(),
	}

	_, err := s.cron.AddFunc(cfg.Schedule, func() {
		if _, err := s.SweepOnce(context.Background()); err != nil {
			s.logger.Error("overdue sweep failed", tag.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweeper schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("sweeper started", tag.Value(s.cfg.Schedule))
}

func (s *Sweeper) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info("sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SweepOnce handles one page of overdue tasks and returns how many it expired
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	resp, err := s.store.ListOverduePendingTasks(ctx, persistence.ListOverduePendingTasksRequest{
		DeadlineInclusive: s.timeSource.Now(),
		PageSize:          s.cfg.PageSize,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue tasks: %w", err)
	}

	expired := 0
	var errs []error
	for _, task := range resp.Tasks {
		outcome, err := s.executor.Execute(ctx, persistence.NewTriggerPayload(task.Key()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if outcome == expiry.OutcomeExpired {
			expired++
		}
	}

	if len(resp.Tasks) > 0 {
		s.logger.Info("overdue sweep done", tag.Count(len(resp.Tasks)), tag.Value(expired))
	}
	return expired, multierr.Combine(errs...)
}

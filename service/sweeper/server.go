// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package sweeper

import (
	"context"

	"github.com/xcherryio/taskexpiry/common/clock"
	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/expiry"
	"github.com/xcherryio/taskexpiry/persistence"
	tasksweeper "github.com/xcherryio/taskexpiry/sweeper"
)

type Server struct {
	sweeper *tasksweeper.Sweeper
}

func NewSweeperServer(
	cfg config.SweeperConfig, store persistence.TaskStore, executor expiry.Executor, logger log.Logger,
) (*Server, error) {
	s, err := tasksweeper.NewSweeper(store, executor, cfg, clock.NewRealTimeSource(), logger)
	if err != nil {
		return nil, err
	}
	return &Server{sweeper: s}, nil
}

func (s *Server) Start(_ context.Context) error {
	s.sweeper.Start()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.sweeper.Stop(ctx)
}

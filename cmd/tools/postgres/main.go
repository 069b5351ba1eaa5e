// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/extensions/postgres/postgrestool"
)

// main runs the schema tool of the task and trigger tables, an interrupt
// cancels a running migration
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	logger := log.NewDevelopmentLogger()

	err := postgrestool.BuildCLIOptions().RunContext(ctx, os.Args)
	stop()
	if err != nil {
		logger.Fatal("postgres schema tool failed", tag.Error(err))
	}
}

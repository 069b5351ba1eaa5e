// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package notification

import (
	"context"

	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
)

// LogSender writes messages to the log, for local runs
type LogSender struct {
	logger log.Logger
}

func NewLogSender(logger log.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("notification",
		tag.Recipient(msg.Recipient), tag.Subject(msg.Subject), tag.Message(msg.Body))
	return nil
}

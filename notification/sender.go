// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package notification

import (
	"context"
	"fmt"

	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/config"
)

// Message is what is delivered to a task owner
type Message struct {
	Recipient string
	Subject   string
	Body      string
}

// Sender delivers messages over one channel. Delivery is best effort
// and callers are expected to log the error rather than fail.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender creates the sender of the configured channel
func NewSender(ctx context.Context, cfg config.NotificationConfig, logger log.Logger) (Sender, error) {
	switch cfg.Channel {
	case config.NotificationChannelSES:
		return NewSESSender(ctx, *cfg.SES)
	case config.NotificationChannelLog, "":
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unsupported notification channel %v", cfg.Channel)
	}
}

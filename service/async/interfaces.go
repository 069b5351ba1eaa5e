// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package async

import (
	"context"

	"github.com/xcherryio/taskexpiry/engine"
	"github.com/xcherryio/taskexpiry/expiry"
	"github.com/xcherryio/taskexpiry/persistence"
)

type Server interface {
	// Start will start running on the background
	Start() error
	Stop(ctx context.Context) error
}

// Service fires the due triggers of the expiry service
type Service interface {
	Start() error
	// NotifyPollingTriggers tells the trigger queue about newly registered triggers
	NotifyPollingTriggers(req engine.NotifyTriggersRequest)
	// Fire runs the expiry executor directly, for schedulers outside of this service
	Fire(ctx context.Context, payload persistence.TriggerPayload) (expiry.Outcome, error)
	// GetNotifier returns a notifier for registries running in the same process
	GetNotifier() engine.TriggerNotifier
	Stop(ctx context.Context) error
}

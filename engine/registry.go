// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/persistence"
)

type triggerRegistryImpl struct {
	store    persistence.TriggerStore
	notifier TriggerNotifier
	logger   log.Logger
}

func NewTriggerRegistry(
	store persistence.TriggerStore, notifier TriggerNotifier, logger log.Logger,
) TriggerRegistry {
	return &triggerRegistryImpl{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

func (r *triggerRegistryImpl) Register(ctx context.Context, request RegisterTriggerRequest) error {
	err := r.store.UpsertTrigger(ctx, persistence.Trigger{
		Name:    request.Name,
		FireAt:  request.FireAt,
		Payload: request.Payload,
	})
	if err != nil {
		return fmt.Errorf("failed to register trigger %v: %w", request.Name, err)
	}
	r.logger.Debug("trigger registered", tag.TriggerName(request.Name), tag.FireAt(request.FireAt))

	if r.notifier != nil {
		r.notifier.NotifyNewTriggers(NotifyTriggersRequest{
			FireAts: []time.Time{request.FireAt},
		})
	}
	return nil
}

func (r *triggerRegistryImpl) Cancel(ctx context.Context, name string) error {
	deleted, err := r.store.DeleteTrigger(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to cancel trigger %v: %w", name, err)
	}
	if !deleted {
		// already fired, never created or cancelled before
		r.logger.Debug("trigger to cancel does not exist", tag.TriggerName(name))
	}
	return nil
}

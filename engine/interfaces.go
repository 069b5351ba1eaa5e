// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package engine

import (
	"context"
	"time"

	"github.com/xcherryio/taskexpiry/persistence"
)

type (
	// TriggerRegistry registers and cancels deferred triggers by name.
	// Firing invokes the expiry executor with the trigger payload.
	TriggerRegistry interface {
		// Register creates the trigger, or overwrites the one with the same name
		Register(ctx context.Context, request RegisterTriggerRequest) error
		// Cancel removes the trigger. A missing trigger is not an error.
		Cancel(ctx context.Context, name string) error
	}

	RegisterTriggerRequest struct {
		Name    string
		FireAt  time.Time
		Payload persistence.TriggerPayload
	}

	// TriggerNotifier is to notify the poller(TriggerQueue) that there are new triggers
	// so that they can be loaded without waiting for the next preload.
	// This is needed because registering a trigger and polling happen in different threads
	// or even in different processes.
	// Note that this is not guaranteed to be atomic. The notification is "best effort".
	TriggerNotifier interface {
		NotifyNewTriggers(request NotifyTriggersRequest)
	}

	NotifyTriggersRequest struct {
		FireAts []time.Time `json:"fireAts"`
	}

	// TriggerQueue loads the due triggers and hands them to the TriggerProcessor on time
	TriggerQueue interface {
		Start() error
		// TriggerPollingTriggers exposes an API to be called by TriggerNotifier
		TriggerPollingTriggers(request NotifyTriggersRequest)
		Stop(ctx context.Context) error
	}

	TriggerProcessor interface {
		Start() error
		Stop(context.Context) error

		// GetTriggersToProcessChan exposed a channel for the queue to send fired triggers to processor
		GetTriggersToProcessChan() chan<- persistence.Trigger

		// SetCompletionChan sets the channel where every processed trigger is reported back
		SetCompletionChan(completionChan chan<- TriggerCompletion)
	}

	// TriggerCompletion reports a processed trigger back to the queue
	TriggerCompletion struct {
		Trigger persistence.Trigger
		// Retry is set when the trigger was moved to Trigger.FireAt to try again
		Retry bool
	}
)

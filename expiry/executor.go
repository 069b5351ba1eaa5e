// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package expiry

import (
	"context"
	"fmt"

	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/notification"
	"github.com/xcherryio/taskexpiry/persistence"
)

type Outcome string

const (
	// OutcomeExpired means this invocation moved the task from Pending to Expired
	OutcomeExpired Outcome = "expired"
	// OutcomeNotPending means the task was completed, deleted or already expired
	OutcomeNotPending Outcome = "not-pending"
)

// Executor is invoked by a fired trigger. It is safe to invoke any number
// of times for the same payload, only the first one can observe a Pending task.
type Executor interface {
	// Execute returns an error wrapping persistence.ErrMalformedPayload for payloads
	// that can never succeed. Any other error is transient and worth a retry.
	Execute(ctx context.Context, payload persistence.TriggerPayload) (Outcome, error)
}

type executorImpl struct {
	store    persistence.TaskStore
	sender   notification.Sender
	contacts notification.ContactResolver
	cfg      config.ExpiryServiceConfig
	logger   log.Logger
}

func NewExecutor(
	store persistence.TaskStore, sender notification.Sender, contacts notification.ContactResolver,
	cfg config.ExpiryServiceConfig, logger log.Logger,
) Executor {
	return &executorImpl{
		store:    store,
		sender:   sender,
		contacts: contacts,
		cfg:      cfg,
		logger:   logger,
	}
}

func (e *executorImpl) Execute(ctx context.Context, payload persistence.TriggerPayload) (Outcome, error) {
	if err := payload.Validate(); err != nil {
		return "", err
	}
	logger := e.logger.WithTags(tag.TaskId(payload.TaskId), tag.OwnerId(payload.OwnerId))

	storeCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	resp, err := e.store.ExpireIfPending(storeCtx, persistence.ExpireTaskRequest{Key: payload.Key()})
	if err != nil {
		return "", fmt.Errorf("failed to expire task %v: %w", payload.TaskId, err)
	}
	if !resp.Expired {
		logger.Info("task is no longer pending, nothing to expire")
		return OutcomeNotPending, nil
	}

	task := resp.Task
	if task == nil {
		task = e.readBack(storeCtx, payload, logger)
	}
	logger.Info("task expired", tag.Deadline(task.Deadline))

	e.notify(ctx, *task, logger)
	return OutcomeExpired, nil
}

// readBack is used when the store did not return the updated task
func (e *executorImpl) readBack(
	ctx context.Context, payload persistence.TriggerPayload, logger log.Logger,
) *persistence.Task {
	resp, err := e.store.GetTask(ctx, payload.Key())
	switch {
	case err != nil:
		logger.Warn("failed to read back the expired task", tag.Error(err))
	case resp.NotExists:
		logger.Warn("expired task was deleted before it was read back")
	default:
		return resp.Task
	}
	return &persistence.Task{
		TaskId:  payload.TaskId,
		OwnerId: payload.OwnerId,
		Status:  persistence.TaskStatusExpired,
	}
}

// notify never fails the execution, the transition already happened
func (e *executorImpl) notify(ctx context.Context, task persistence.Task, logger log.Logger) {
	recipient, ok := e.contacts.Resolve(task.OwnerId)
	if !ok {
		logger.Warn("no contact for the task owner, skip notification")
		return
	}
	msg := notification.ExpiredTaskMessage(task, recipient)

	sendCtx, cancel := context.WithTimeout(ctx, e.cfg.NotificationTimeout)
	defer cancel()
	if err := e.sender.Send(sendCtx, msg); err != nil {
		logger.Error("failed to send expiry notification", tag.Recipient(recipient), tag.Error(err))
		return
	}
	logger.Debug("expiry notification sent", tag.Recipient(recipient))
}

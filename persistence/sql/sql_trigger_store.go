// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package sql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xcherryio/taskexpiry/common/log"
	"github.com/xcherryio/taskexpiry/common/log/tag"
	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/extensions"
	"github.com/xcherryio/taskexpiry/persistence"
)

type sqlTriggerStoreImpl struct {
	session extensions.SQLDBSession
	logger  log.Logger
}

func NewSQLTriggerStore(sqlConfig config.SQL, logger log.Logger) (persistence.TriggerStore, error) {
	session, err := extensions.NewSQLSession(&sqlConfig)
	if err != nil {
		return nil, err
	}
	return newSQLTriggerStore(session, logger), nil
}

func newSQLTriggerStore(session extensions.SQLDBSession, logger log.Logger) *sqlTriggerStoreImpl {
	return &sqlTriggerStoreImpl{
		session: session,
		logger:  logger,
	}
}

func (p sqlTriggerStoreImpl) Close() error {
	return p.session.Close()
}

func (p sqlTriggerStoreImpl) UpsertTrigger(ctx context.Context, trigger persistence.Trigger) error {
	payload, err := json.Marshal(trigger.Payload)
	if err != nil {
		return err
	}
	return p.session.UpsertTrigger(ctx, extensions.TriggerRowForUpsert{
		Name:    trigger.Name,
		FireAt:  trigger.FireAt.UTC(),
		Payload: payload,
	})
}

func (p sqlTriggerStoreImpl) DeleteTrigger(ctx context.Context, name string) (bool, error) {
	deleted, err := p.session.DeleteTrigger(ctx, name)
	if err != nil {
		return false, err
	}
	return deleted > 0, nil
}

func (p sqlTriggerStoreImpl) GetTrigger(ctx context.Context, name string) (*persistence.GetTriggerResponse, error) {
	row, err := p.session.SelectTrigger(ctx, name)
	if err != nil {
		if p.session.IsNotFoundError(err) {
			return &persistence.GetTriggerResponse{NotExists: true}, nil
		}
		return nil, err
	}
	trigger, err := rowToTrigger(row)
	if err != nil {
		p.logger.Error("trigger has unreadable payload", tag.TriggerName(row.Name), tag.Error(err))
	}
	return &persistence.GetTriggerResponse{Trigger: &trigger}, nil
}

func (p sqlTriggerStoreImpl) GetTriggersUpToTime(
	ctx context.Context, request persistence.GetTriggersUpToTimeRequest,
) (*persistence.GetTriggersResponse, error) {
	rows, err := p.session.BatchSelectTriggersByFireTime(ctx, extensions.TriggerFireTimeSelectFilter{
		MaxFireTimeInclusive: request.MaxFireTimeInclusive,
		PageSize:             request.PageSize,
	})
	if err != nil {
		return nil, err
	}
	return p.createGetTriggersResponse(rows, request.PageSize), nil
}

func (p sqlTriggerStoreImpl) GetTriggersBySequence(
	ctx context.Context, request persistence.GetTriggersBySequenceRequest,
) (*persistence.GetTriggersResponse, error) {
	rows, err := p.session.BatchSelectTriggersBySequence(ctx, extensions.TriggerSequenceSelectFilter{
		MinSequenceInclusive: request.MinSequenceInclusive,
		MaxFireTimeInclusive: request.MaxFireTimeInclusive,
		PageSize:             request.PageSize,
	})
	if err != nil {
		return nil, err
	}
	return p.createGetTriggersResponse(rows, request.PageSize), nil
}

func (p sqlTriggerStoreImpl) CompleteFiredTrigger(
	ctx context.Context, request persistence.CompleteFiredTriggerRequest,
) error {
	deleted, err := p.session.DeleteTriggerIfSequenceMatch(ctx, request.Name, request.Sequence)
	if err != nil {
		return err
	}
	if deleted == 0 {
		p.logger.Debug("fired trigger was rescheduled or cancelled meanwhile, keep it",
			tag.TriggerName(request.Name), tag.Sequence(request.Sequence))
	}
	return nil
}

func (p sqlTriggerStoreImpl) BackoffFiredTrigger(
	ctx context.Context, request persistence.BackoffFiredTriggerRequest,
) error {
	updated, err := p.session.UpdateTriggerFireTimeIfSequenceMatch(ctx, extensions.TriggerRowForBackoff{
		Name:       request.Name,
		Sequence:   request.Sequence,
		NextFireAt: request.NextFireAt.UTC(),
		Attempts:   request.Attempts,
	})
	if err != nil {
		return err
	}
	if updated == 0 {
		p.logger.Debug("fired trigger was rescheduled or cancelled meanwhile, skip backoff",
			tag.TriggerName(request.Name), tag.Sequence(request.Sequence))
	}
	return nil
}

// A row with an unreadable payload is still returned, with an empty payload,
// so that the processor drops it as malformed instead of it being reloaded forever.
func (p sqlTriggerStoreImpl) createGetTriggersResponse(
	rows []extensions.TriggerRow, pageSize int32,
) *persistence.GetTriggersResponse {
	triggers := make([]persistence.Trigger, 0, len(rows))
	for _, row := range rows {
		trigger, err := rowToTrigger(row)
		if err != nil {
			p.logger.Error("trigger has unreadable payload", tag.TriggerName(row.Name), tag.Error(err))
		}
		triggers = append(triggers, trigger)
	}
	return persistence.NewGetTriggersResponse(triggers, pageSize)
}

func rowToTrigger(row extensions.TriggerRow) (persistence.Trigger, error) {
	trigger := persistence.Trigger{
		Name:     row.Name,
		FireAt:   row.FireAt,
		Sequence: row.Sequence,
		Attempts: row.Attempts,
	}
	if err := json.Unmarshal(row.Payload, &trigger.Payload); err != nil {
		return trigger, fmt.Errorf("%w: %v", persistence.ErrMalformedPayload, err)
	}
	return trigger, nil
}

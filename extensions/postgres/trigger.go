// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package postgres

import (
	"context"

	"github.com/xcherryio/taskexpiry/extensions"
)

const triggerColumns = `name, fire_at, sequence, attempts, payload`

// A new sequence is only taken when the fire time changes, so registering
// the same deadline twice leaves an already loaded trigger valid.
const upsertTriggerQuery = `INSERT INTO task_expiry_triggers
	(name, fire_at, payload) VALUES
	(:name, :fire_at, :payload)
	ON CONFLICT (name) DO UPDATE SET
		payload = EXCLUDED.payload,
		sequence = CASE WHEN task_expiry_triggers.fire_at = EXCLUDED.fire_at
			THEN task_expiry_triggers.sequence
			ELSE nextval('task_expiry_trigger_sequence') END,
		attempts = CASE WHEN task_expiry_triggers.fire_at = EXCLUDED.fire_at
			THEN task_expiry_triggers.attempts
			ELSE 0 END,
		fire_at = EXCLUDED.fire_at`

func (d dbSession) UpsertTrigger(ctx context.Context, row extensions.TriggerRowForUpsert) error {
	_, err := d.db.NamedExecContext(ctx, upsertTriggerQuery, row)
	return err
}

const deleteTriggerQuery = `DELETE FROM task_expiry_triggers WHERE name = $1`

func (d dbSession) DeleteTrigger(ctx context.Context, name string) (int64, error) {
	result, err := d.db.ExecContext(ctx, deleteTriggerQuery, name)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteTriggerIfSequenceMatchQuery = `DELETE FROM task_expiry_triggers WHERE name = $1 AND sequence = $2`

func (d dbSession) DeleteTriggerIfSequenceMatch(ctx context.Context, name string, sequence int64) (int64, error) {
	result, err := d.db.ExecContext(ctx, deleteTriggerIfSequenceMatchQuery, name, sequence)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateTriggerFireTimeIfSequenceMatchQuery = `UPDATE task_expiry_triggers
	SET fire_at = $3, attempts = $4
	WHERE name = $1 AND sequence = $2`

func (d dbSession) UpdateTriggerFireTimeIfSequenceMatch(
	ctx context.Context, row extensions.TriggerRowForBackoff,
) (int64, error) {
	result, err := d.db.ExecContext(ctx, updateTriggerFireTimeIfSequenceMatchQuery,
		row.Name, row.Sequence, row.NextFireAt, row.Attempts)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const selectTriggerQuery = `SELECT ` + triggerColumns + ` FROM task_expiry_triggers WHERE name = $1`

func (d dbSession) SelectTrigger(ctx context.Context, name string) (extensions.TriggerRow, error) {
	var row extensions.TriggerRow
	err := d.db.GetContext(ctx, &row, selectTriggerQuery, name)
	row.FireAt = fromPostgresDateTime(row.FireAt)
	return row, err
}

const batchSelectTriggersByFireTimeQuery = `SELECT ` + triggerColumns + `
	FROM task_expiry_triggers WHERE fire_at <= $1
	ORDER BY fire_at ASC, sequence ASC LIMIT $2`

func (d dbSession) BatchSelectTriggersByFireTime(
	ctx context.Context, filter extensions.TriggerFireTimeSelectFilter,
) ([]extensions.TriggerRow, error) {
	var rows []extensions.TriggerRow
	err := d.db.SelectContext(ctx, &rows, batchSelectTriggersByFireTimeQuery,
		filter.MaxFireTimeInclusive, filter.PageSize)
	return normalizeTriggerRows(rows), err
}

const batchSelectTriggersBySequenceQuery = `SELECT ` + triggerColumns + `
	FROM task_expiry_triggers WHERE sequence >= $1 AND fire_at <= $2
	ORDER BY sequence ASC LIMIT $3`

func (d dbSession) BatchSelectTriggersBySequence(
	ctx context.Context, filter extensions.TriggerSequenceSelectFilter,
) ([]extensions.TriggerRow, error) {
	var rows []extensions.TriggerRow
	err := d.db.SelectContext(ctx, &rows, batchSelectTriggersBySequenceQuery,
		filter.MinSequenceInclusive, filter.MaxFireTimeInclusive, filter.PageSize)
	return normalizeTriggerRows(rows), err
}

func normalizeTriggerRows(rows []extensions.TriggerRow) []extensions.TriggerRow {
	for i := range rows {
		rows[i].FireAt = fromPostgresDateTime(rows[i].FireAt)
	}
	return rows
}

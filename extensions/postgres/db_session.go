// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package postgres

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/xcherryio/taskexpiry/extensions"
)

type dbSession struct {
	db *sqlx.DB
}

var _ extensions.SQLDBSession = (*dbSession)(nil)

func newDBSession(db *sqlx.DB) *dbSession {
	return &dbSession{
		db: db,
	}
}

func (d dbSession) Close() error {
	return d.db.Close()
}

// timestamptz columns come back in the session time zone
func fromPostgresDateTime(t time.Time) time.Time {
	return t.UTC()
}

// Apache License 2.0

// Copyright (c) XDBLab organization

// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.    

package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/xcherryio/taskexpiry/extensions"
	"github.com/xcherryio/taskexpiry/extensions/postgres/schema"
)

// NOTE we have to use %v because postgres doesn't accept placeholders for identifiers
const createDatabaseQuery = "CREATE DATABASE %v"

const dropDatabaseQuery = "DROP DATABASE IF EXISTS %v"

type adminDBSession struct {
	db *sqlx.DB
}

var _ extensions.SQLAdminDBSession = (*adminDBSession)(nil)

func newAdminDBSession(db *sqlx.DB) *adminDBSession {
	return &adminDBSession{
		db: db,
	}
}

func (a adminDBSession) CreateDatabase(ctx context.Context, database string) error {
	_, err := a.db.ExecContext(ctx, fmt.Sprintf(createDatabaseQuery, database))
	return err
}

func (a adminDBSession) DropDatabase(ctx context.Context, database string) error {
	_, err := a.db.ExecContext(ctx, fmt.Sprintf(dropDatabaseQuery, database))
	return err
}

func (a adminDBSession) MigrateSchema(ctx context.Context) error {
	if err := prepareGoose(); err != nil {
		return err
	}
	return goose.UpContext(ctx, a.db.DB, schema.MigrationsDir)
}

func (a adminDBSession) SchemaVersion(ctx context.Context) (int64, error) {
	if err := prepareGoose(); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, a.db.DB)
}

func (a adminDBSession) Close() error {
	return a.db.Close()
}

func prepareGoose() error {
	goose.SetBaseFS(schema.Migrations)
	return goose.SetDialect(ExtensionName)
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package tests

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/xcherryio/taskexpiry/config"
	"github.com/xcherryio/taskexpiry/extensions"
	"github.com/xcherryio/taskexpiry/extensions/postgres"
	"github.com/xcherryio/taskexpiry/extensions/postgres/postgrestool"
)

var sqlConfig *config.SQL

// skipReason is set when no local postgres is reachable
var skipReason string

func TestMain(m *testing.M) {
	testDBName := fmt.Sprintf("test%v", time.Now().UnixNano())
	fmt.Println("using database name ", testDBName)

	sqlConfig = &config.SQL{
		ConnectAddr:     fmt.Sprintf("%v:%v", postgrestool.DefaultEndpoint, postgrestool.DefaultPort),
		User:            postgrestool.DefaultUserName,
		Password:        postgrestool.DefaultPassword,
		DBExtensionName: postgres.ExtensionName,
		DatabaseName:    testDBName,
	}

	ctx := context.Background()
	if err := extensions.CreateDatabase(ctx, *sqlConfig, testDBName); err != nil {
		skipReason = fmt.Sprintf("postgres is not available: %v", err)
		os.Exit(m.Run())
	}

	if err := extensions.SetupSchema(ctx, sqlConfig); err != nil {
		panic(err)
	}

	resultCode := m.Run()
	fmt.Println("finished running persistence test with status code", resultCode)

	_ = extensions.DropDatabase(ctx, *sqlConfig, testDBName)
	fmt.Println("testing database deleted")
	os.Exit(resultCode)
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package postgrestool

import (
	"github.com/urfave/cli/v2"
	"github.com/xcherryio/taskexpiry/extensions"
	"github.com/xcherryio/taskexpiry/extensions/postgres"
)

const DefaultEndpoint = "127.0.0.1"
const DefaultPort = 5432
const DefaultUserName = "taskexpiry"
const DefaultPassword = "taskexpiry"
const DefaultDatabaseName = "taskexpiry"

// BuildCLIOptions builds the options for cli
func BuildCLIOptions() *cli.App {

	app := cli.NewApp()

	app.Name = "task expiry postgres tool"
	app.Usage = "tool for managing the task expiry database on postgres"

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    extensions.CLIFlagEndpoint,
			Aliases: []string{"e"},
			Value:   DefaultEndpoint,
			Usage:   "hostname or ip address of sql host to connect to postgres",
		},
		&cli.IntFlag{
			Name:    extensions.CLIFlagPort,
			Aliases: []string{"p"},
			Value:   DefaultPort,
			Usage:   "port of sql host to connect to postgres",
		},
		&cli.StringFlag{
			Name:    extensions.CLIFlagUser,
			Aliases: []string{"u"},
			Value:   DefaultUserName,
			Usage:   "user name used for authentication when connecting to postgres",
		},
		&cli.StringFlag{
			Name:    extensions.CLIFlagPassword,
			Aliases: []string{"pw"},
			Value:   DefaultPassword,
			EnvVars: []string{"TASKEXPIRY_DB_PASSWORD"},
			Usage:   "password used for authentication when connecting to postgres",
		},
		&cli.StringFlag{
			Name:    extensions.CLIFlagDatabase,
			Aliases: []string{"db"},
			Value:   DefaultDatabaseName,
			Usage:   "name of the postgres database",
		},
		&cli.StringFlag{
			Name:  extensions.CLIFlagSSLMode,
			Value: "disable",
			Usage: "sslmode of the connection",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:    "create-database",
			Aliases: []string{"create"},
			Usage:   "creates a database",
			Action: func(c *cli.Context) error {
				return extensions.CreateDatabaseByCli(c, postgres.ExtensionName)
			},
		},
		{
			Name:    "install-schema",
			Aliases: []string{"install", "migrate"},
			Usage:   "applies all pending schema migrations to a database",
			Action: func(c *cli.Context) error {
				return extensions.SetupSchemaByCli(c, postgres.ExtensionName)
			},
		},
		{
			Name:  "drop-database",
			Usage: "drops a database",
			Action: func(c *cli.Context) error {
				return extensions.DropDatabaseByCli(c, postgres.ExtensionName)
			},
		},
	}

	return app
}

// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/xcherryio/taskexpiry/cmd/server/bootstrap"
	"github.com/xcherryio/taskexpiry/config"

	_ "github.com/xcherryio/taskexpiry/extensions/postgres" // import postgres extension
)

func main() {
	app := &cli.App{
		Name:  "task expiry server",
		Usage: "start the task expiry pipeline",
		Action: func(c *cli.Context) error {
			bootstrap.StartTaskExpiryServerCli(c)
			return nil
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  bootstrap.FlagConfig,
				Value: "./config/development.yaml",
				Usage: "the config to start the server",
			},
			&cli.StringFlag{
				Name: bootstrap.FlagService,
				Value: fmt.Sprintf("%v,%v,%v",
					config.ServiceNameRouter, config.ServiceNameProcessor, config.ServiceNameExpiry),
				Usage: "the services to start, separated by comma: router, processor, expiry, sweeper",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/flowqio/flowq/cmd/server/bootstrap"

	_ "github.com/flowqio/flowq/extensions/postgres" // import postgres extension
)

func main() {
	app := &cli.App{
		Name:  "FlowQ server",
		Usage: "start the FlowQ server",
		Action: func(c *cli.Context) error {
			bootstrap.StartFlowQServerCli(c)
			return nil
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  bootstrap.FlagConfig,
				Value: "./config/development-postgres.yaml",
				Usage: "the config to start FlowQ server",
			},
			&cli.StringFlag{
				Name:  bootstrap.FlagService,
				Value: fmt.Sprintf("%v,%v", bootstrap.ApiServiceName, bootstrap.AsyncServiceName),
				Usage: "the services to start, separated by comma",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

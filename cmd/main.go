/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/blnkfinance/portalsync"
	"github.com/blnkfinance/portalsync/config"
	"github.com/blnkfinance/portalsync/database"
	"github.com/blnkfinance/portalsync/internal/notification"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// PortalSyncCLI is the command-line application wrapping the root command.
type PortalSyncCLI struct {
	cmd *cobra.Command
}

// syncInstance holds the engine and configuration shared by every subcommand.
type syncInstance struct {
	sync *portalsync.PortalSync
	cnf  *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and builds the sync engine before any
// command runs.
func preRun(app *syncInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		if !needsEngine(cmd) {
			app.cnf = cnf
			return nil
		}

		engine, err := setupPortalSync(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.sync = engine
		app.cnf = cnf
		return nil
	}
}

// needsEngine is false for commands that only read the configuration or talk
// to Postgres directly.
func needsEngine(cmd *cobra.Command) bool {
	if cmd.Name() == "config" {
		return false
	}
	return !(cmd.HasParent() && cmd.Parent().Name() == "migrate")
}

func setupPortalSync(cfg *config.Configuration) (*portalsync.PortalSync, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	engine, err := portalsync.NewPortalSync(db)
	if err != nil {
		return nil, fmt.Errorf("error creating portal sync: %v", err)
	}
	return engine, nil
}

func NewCLI() *PortalSyncCLI {
	var configFile string
	app := &syncInstance{}

	var rootCmd = &cobra.Command{
		Use:   "portalsync",
		Short: "Bidirectional sync between field collection data and the Collection Portal",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./portalsync.json", "Configuration file for portalsync")
	rootCmd.PersistentPreRunE = preRun(app, &configFile)

	rootCmd.AddCommand(serverCommands(app))
	rootCmd.AddCommand(sweepCommands(app))
	rootCmd.AddCommand(migrateCommands(app))
	rootCmd.AddCommand(configCommands(app))

	return &PortalSyncCLI{cmd: rootCmd}
}

func (p PortalSyncCLI) executeCLI() {
	if err := p.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}

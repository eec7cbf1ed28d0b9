/*
Copyright (c) Facebook, Inc. and its affiliates.

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

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/driftwatch/driftwatch/dispatch"
	"github.com/driftwatch/driftwatch/probe"
	"github.com/driftwatch/driftwatch/setup"
)

var setupConfigFlag string

func init() {
	RootCmd.AddCommand(setupCmd)
	setupCmd.Flags().StringVarP(&setupConfigFlag, "config", "c", "", "path to the config file")
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure the platform time-sync service and reference pools",
	Run: func(_ *cobra.Command, _ []string) {
		cfg, err := dispatch.PrepareConfig(dispatch.ModeFast, setupConfigFlag, true)
		if err != nil {
			log.Fatal(err)
		}
		closer := dispatch.SetupLogging(cfg.LogFile, verbose)
		defer closer()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := setup.New(probe.ExecRunner{}, cfg.Pools).Run(ctx); err != nil {
			log.Fatal(err)
		}
	},
}

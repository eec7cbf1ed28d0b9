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
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/driftwatch/driftwatch/dispatch"
	"github.com/driftwatch/driftwatch/memo"
	"github.com/driftwatch/driftwatch/probe"
	"github.com/driftwatch/driftwatch/stats"
)

var (
	runModeFlag           string
	runConfigFlag         string
	runOnceFlag           bool
	runMonitoringPortFlag int
)

func init() {
	RootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runModeFlag, "mode", "m", dispatch.ModeFast,
		fmt.Sprintf("%s|%s|%s", dispatch.ModeFast, dispatch.ModeUltrafast, dispatch.ModeLazy))
	runCmd.Flags().StringVarP(&runConfigFlag, "config", "c", "", "path to the config file")
	runCmd.Flags().BoolVar(&runOnceFlag, "once", false, "run a single cycle even in a looping mode")
	runCmd.Flags().IntVar(&runMonitoringPortFlag, "monitoringport", 0, "port to serve prometheus metrics on, 0 disables")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Measure clock skew against the reference and correct it",
	Run: func(_ *cobra.Command, _ []string) {
		cfg, err := dispatch.PrepareConfig(runModeFlag, runConfigFlag, runOnceFlag)
		if err != nil {
			// invalid configuration is the only fatal condition
			log.Fatal(err)
		}
		if runMonitoringPortFlag != 0 {
			cfg.MonitoringPort = runMonitoringPortFlag
		}
		closer := dispatch.SetupLogging(cfg.LogFile, verbose)
		defer closer()

		adapter, err := probe.NewAdapter(probe.ExecRunner{}, cfg.ReferenceServer)
		if err != nil {
			log.Warnf("%v", err)
			adapter = probe.UnavailableAdapter{}
		}
		d := dispatch.New(cfg, adapter, memo.NewStore(cfg.MemoFile), stats.NewExporter())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.LoopForever {
			if err := d.Run(ctx); err != nil {
				log.Fatal(err)
			}
			return
		}
		res := d.RunOnce(ctx)
		printSummary(adapter.Name(), res)
	},
}

// printSummary renders the one-shot outcome as a table
func printSummary(tool string, res *dispatch.CycleResult) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"tool", "skew (ns)", "previous (ns)", "band", "action"})
	if res == nil {
		table.Append([]string{tool, "-", "-", color.RedString("unmeasured"), "-"})
	} else {
		action := res.Action
		if action == "" {
			action = "-"
		}
		table.Append([]string{
			tool,
			strconv.FormatInt(res.SkewNS, 10),
			strconv.FormatInt(res.PrevSkewNS, 10),
			colorBand(res),
			action,
		})
	}
	table.Render()
}

func colorBand(res *dispatch.CycleResult) string {
	s := res.Band.String()
	if res.Action != "" {
		return color.YellowString(s)
	}
	return color.GreenString(s)
}

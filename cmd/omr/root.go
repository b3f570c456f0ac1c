// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianOMR/pkg/logging"
	"github.com/AleutianAI/AleutianOMR/pkg/ux"
	"github.com/AleutianAI/AleutianOMR/services/omr/config"
	"github.com/AleutianAI/AleutianOMR/services/omr/engine"
	"github.com/AleutianAI/AleutianOMR/services/omr/telemetry"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app holds what every subcommand shares once the root command ran.
type app struct {
	configPath string
	logLevel   string
	logJSON    bool
	logDir     string
	logExport  string
	snapshots  bool

	cfg      config.Config
	logger   *logging.Logger
	out      *ux.Printer
	shutdown func(context.Context) error
}

func (a *app) engine() *engine.Engine {
	return engine.New(a.cfg, engine.WithSnapshots(a.snapshots))
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "omr",
		Short:         "Interpret music symbols into measures, voices and durations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
	}
	root.SetContext(context.Background())

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (YAML or JSON)")
	flags.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.BoolVar(&a.logJSON, "log-json", false, "log as JSON")
	flags.StringVar(&a.logDir, "log-dir", "", "also log to a daily file in this directory")
	flags.StringVar(&a.logExport, "log-export", "", "also export logs as JSON lines to this file")
	flags.BoolVar(&a.snapshots, "snapshots", false, "include graph snapshots in results")

	root.AddCommand(
		newProcessCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return err
	}
	var exporter logging.LogExporter
	if a.logExport != "" {
		f, err := os.OpenFile(a.logExport, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return fmt.Errorf("open log export: %w", err)
		}
		exporter = logging.NewWriterExporter(f)
	}
	a.logger = logging.New(logging.Config{
		Level:    level,
		JSON:     a.logJSON,
		LogDir:   a.logDir,
		Service:  "omr",
		Exporter: exporter,
	})
	a.logger.Install()
	a.out = ux.Stdout()

	a.cfg, err = config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version
	a.shutdown, err = telemetry.Init(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	return nil
}

func (a *app) teardown() error {
	var err error
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = a.shutdown(ctx)
	}
	if a.logger != nil {
		_ = a.logger.Close()
	}
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "omr", version)
		},
	}
}

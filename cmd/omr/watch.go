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
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianOMR/services/omr/engine"
	"github.com/AleutianAI/AleutianOMR/services/omr/input"
	"github.com/AleutianAI/AleutianOMR/services/omr/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		outDir string
		format string
	)
	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Interpret page files as they appear in a directory",
		Long: `Interpret the page files present in DIR, then every page file created
or modified there, until interrupted. Each page is processed on its own.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unknown output format %q", format)
			}
			dir := args[0]
			if outDir == "" {
				outDir = dir
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pw := &pageWatcher{engine: a.engine(), app: a, outDir: outDir, format: format}
			w, err := watch.New(dir, nil, nil)
			if err != nil {
				return err
			}
			existing, err := w.Existing()
			if err != nil {
				return err
			}
			pw.process(ctx, existing)

			w.SetHandler(func(events []watch.Event) {
				pw.process(ctx, watch.Pages(events))
			})
			if err := w.Start(ctx); err != nil {
				return err
			}
			a.out.Info("watching %s", dir)
			<-ctx.Done()
			w.Stop()
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory for result files (default DIR)")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "result format: json or yaml")
	return cmd
}

// pageWatcher processes the page files reported by a watcher.
type pageWatcher struct {
	engine *engine.Engine
	app    *app
	outDir string
	format string
}

func (pw *pageWatcher) process(ctx context.Context, paths []string) {
	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		if isResult(path) {
			continue
		}
		if err := pw.processFile(ctx, path); err != nil {
			pw.app.out.Error("%s: %v", path, err)
			slog.Warn("page failed", "path", path, "error", err)
		}
	}
}

func (pw *pageWatcher) processFile(ctx context.Context, path string) error {
	p, err := input.Load(path)
	if err != nil {
		return err
	}
	res, err := pw.engine.ProcessPage(ctx, p, nil)
	if res == nil {
		return err
	}
	report(pw.app.out, path, res)
	if werr := writeResult(resultPath(pw.outDir, path, pw.format), res, pw.format); werr != nil {
		return werr
	}
	return err
}

// isResult reports whether path is a result file written by omr.
func isResult(path string) bool {
	return strings.HasSuffix(path, ".result.json") || strings.HasSuffix(path, ".result.yaml")
}

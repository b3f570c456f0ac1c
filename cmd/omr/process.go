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
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianOMR/services/omr/input"
)

func newProcessCmd(a *app) *cobra.Command {
	var (
		outDir string
		format string
	)
	cmd := &cobra.Command{
		Use:   "process FILE...",
		Short: "Interpret page files as one book",
		Long: `Interpret page files in order, carrying the measure duration from
one page to the next, and report the measure stacks of each page.

With --out, one result file per page is written to the directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, files []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unknown output format %q", format)
			}
			pages := make([]*input.Page, 0, len(files))
			for _, f := range files {
				p, err := input.Load(f)
				if err != nil {
					return fmt.Errorf("%s: %w", f, err)
				}
				pages = append(pages, p)
			}

			results, err := a.engine().ProcessBook(cmd.Context(), pages)
			for i, res := range results {
				report(a.out, files[i], res)
				if outDir == "" {
					continue
				}
				path := resultPath(outDir, files[i], format)
				if werr := writeResult(path, res, format); werr != nil {
					return werr
				}
				slog.Debug("result written", "page", res.PageID, "path", path)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory for result files")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "result format: json or yaml")
	return cmd
}

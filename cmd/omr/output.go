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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianOMR/pkg/ux"
	"github.com/AleutianAI/AleutianOMR/services/omr/engine"
	"github.com/AleutianAI/AleutianOMR/services/omr/rational"
	"github.com/AleutianAI/AleutianOMR/services/omr/sheet"
)

// resultPath returns the result file for a page file: same base name,
// ".result.json" or ".result.yaml", in dir.
func resultPath(dir, source, format string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(dir, base+".result."+format)
}

// writeResult writes a page result as JSON or YAML.
func writeResult(path string, res *engine.PageResult, format string) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case "json":
		data, err = json.MarshalIndent(res, "", "  ")
	case "yaml":
		// Through JSON, so that YAML keys follow the json tags.
		var raw []byte
		if raw, err = json.Marshal(res); err == nil {
			var doc any
			if err = json.Unmarshal(raw, &doc); err == nil {
				data, err = yaml.Marshal(doc)
			}
		}
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// report prints the stacks of a page and its anomalies.
func report(p *ux.Printer, source string, res *engine.PageResult) {
	p.Title(fmt.Sprintf("Page %d  %s", res.PageID, source))
	for _, s := range res.Failed() {
		p.Error("system %d: %s", s.ID, s.Error)
	}

	if res.Page == nil {
		return
	}

	var (
		rows     [][]string
		abnormal []bool
	)
	for _, st := range res.Page.Stacks() {
		sys, _ := res.Page.SystemOf(st)
		idx := 0
		if sys != nil {
			idx = sys.StackIndex(st)
		}
		rows = append(rows, []string{
			st.PageID(idx),
			strconv.Itoa(st.System),
			ratio(st.Expected),
			ratio(st.Actual),
			strconv.Itoa(len(st.Voices())),
			special(st),
		})
		abnormal = append(abnormal, st.Abnormal)
	}
	p.Table([]string{"stack", "system", "expected", "actual", "voices", "note"}, rows,
		func(row int) bool { return row >= 0 && row < len(abnormal) && abnormal[row] })

	if len(res.Anomalies) == 0 {
		p.Success("page %d: %d stacks, durations consistent", res.PageID, len(rows))
		return
	}
	for _, a := range res.Anomalies {
		p.Warning("stack %s: expected %s, got %s", a.Stack, a.Expected, a.Actual)
	}
}

func ratio(r *rational.Rational) string {
	if r == nil {
		return "-"
	}
	return r.String()
}

func special(st *sheet.MeasureStack) string {
	if st.Abnormal {
		return "abnormal"
	}
	if st.Special != sheet.SpecialNone {
		return st.Special.String()
	}
	return ""
}

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
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianOMR/pkg/ux"
	"github.com/AleutianAI/AleutianOMR/services/omr/config"
	"github.com/AleutianAI/AleutianOMR/services/omr/engine"
	"github.com/AleutianAI/AleutianOMR/services/omr/input"
)

// Two stacks in 2/4: the second holds a single quarter rest.
const shortPage = `{
  "id": 1,
  "interline": 20,
  "systems": [{
    "id": 1,
    "staves": [{"id": 1, "left": 0, "right": 1000, "top": 100, "interline": 20, "header_stop": 100}],
    "parts": [{"id": 1, "staves": [1]}],
    "barlines": [{"x": 500}, {"x": 995}],
    "evaluations": [
      {"shape": "TIME_TWO_FOUR", "box": {"x": 60, "y": 100, "w": 16, "h": 80}, "grade": 0.9},
      {"shape": "QUARTER_REST", "box": {"x": 200, "y": 125, "w": 10, "h": 30}, "grade": 0.8},
      {"shape": "QUARTER_REST", "box": {"x": 300, "y": 125, "w": 10, "h": 30}, "grade": 0.8},
      {"shape": "QUARTER_REST", "box": {"x": 600, "y": 125, "w": 10, "h": 30}, "grade": 0.8}
    ]
  }]
}`

func writePage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(shortPage), 0o644))
	return path
}

func processed(t *testing.T) *engine.PageResult {
	t.Helper()
	p, err := input.Decode(bytes.NewBufferString(shortPage), input.FormatJSON)
	require.NoError(t, err)
	res, err := engine.New(config.DefaultConfig()).ProcessPage(t.Context(), p, nil)
	require.NoError(t, err)
	return res
}

func quietEnv(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "none")
	t.Setenv("OTEL_METRICS_EXPORTER", "none")
	t.Setenv("OMR_OUTPUT", "machine")
}

func TestResultPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "p1.result.json"), resultPath("out", "/in/p1.yaml", "json"))
	assert.Equal(t, filepath.Join("out", "p1.result.yaml"), resultPath("out", "p1.json", "yaml"))
}

func TestIsResult(t *testing.T) {
	assert.True(t, isResult("/x/p1.result.json"))
	assert.True(t, isResult("p1.result.yaml"))
	assert.False(t, isResult("p1.json"))
}

func TestWriteResult(t *testing.T) {
	res := processed(t)
	dir := t.TempDir()

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "a", "p.result.json")
		require.NoError(t, writeResult(path, res, "json"))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Contains(t, doc, "anomalies")
		assert.Contains(t, doc, "systems")
	})

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "p.result.yaml")
		require.NoError(t, writeResult(path, res, "yaml"))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, yaml.Unmarshal(data, &doc))
		assert.Contains(t, doc, "anomalies")
	})

	t.Run("unknown format", func(t *testing.T) {
		assert.Error(t, writeResult(filepath.Join(dir, "p.xml"), res, "xml"))
	})
}

func TestReport(t *testing.T) {
	res := processed(t)
	var buf bytes.Buffer
	report(ux.NewPrinter(&buf, true), "p1.json", res)

	out := buf.String()
	assert.Contains(t, out, "stack\tsystem\texpected\tactual")
	assert.Contains(t, out, "WARN: stack")
	assert.Contains(t, out, "expected 1/2, got 1/4")
}

func TestReport_NilPage(t *testing.T) {
	var buf bytes.Buffer
	report(ux.NewPrinter(&buf, false), "p1.json", &engine.PageResult{PageID: 3})
	assert.Contains(t, buf.String(), "Page 3")
}

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "omr dev\n", buf.String())
}

func TestProcessCmd(t *testing.T) {
	quietEnv(t)
	in := t.TempDir()
	out := t.TempDir()
	p1 := writePage(t, in, "p1.json")
	p2 := writePage(t, in, "p2.json")

	root := newRootCmd()
	root.SetArgs([]string{"process", p1, p2, "--out", out, "--format", "yaml", "--log-level", "error"})
	require.NoError(t, root.Execute())

	for _, name := range []string{"p1.result.yaml", "p2.result.yaml"} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}
}

func TestProcessCmd_Errors(t *testing.T) {
	quietEnv(t)
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"id": 1}`), 0o644))

	tests := []struct {
		name string
		args []string
	}{
		{"no files", []string{"process"}},
		{"invalid page", []string{"process", bad}},
		{"missing file", []string{"process", filepath.Join(dir, "none.json")}},
		{"bad format", []string{"process", writePage(t, dir, "p.json"), "--format", "xml"}},
		{"bad log level", []string{"process", writePage(t, dir, "q.json"), "--log-level", "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd()
			root.SetArgs(tt.args)
			assert.Error(t, root.Execute())
		})
	}
}

func TestPageWatcher_Process(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	p1 := writePage(t, in, "p1.json")
	res := writePage(t, in, "p0.result.json")

	var buf bytes.Buffer
	pw := &pageWatcher{
		engine: engine.New(config.DefaultConfig()),
		app:    &app{out: ux.NewPrinter(&buf, true)},
		outDir: out,
		format: "json",
	}
	pw.process(t.Context(), []string{p1, res, filepath.Join(in, "gone.json")})

	_, err := os.Stat(filepath.Join(out, "p1.result.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "p0.result.result.json"))
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, buf.String(), "gone.json")
}

func TestProcessCmd_LogExport(t *testing.T) {
	quietEnv(t)
	defer slog.SetDefault(slog.Default())

	dir := t.TempDir()
	page := writePage(t, dir, "p1.json")
	export := filepath.Join(dir, "omr.jsonl")

	root := newRootCmd()
	root.SetArgs([]string{"process", page, "--log-level", "info", "--log-export", export})
	require.NoError(t, root.Execute())

	data, err := os.ReadFile(export)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"page processed"`)
	assert.Contains(t, string(data), `"service":"omr"`)
}

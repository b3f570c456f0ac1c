// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.25, cfg.HeadStem.MaxXInGap)
	assert.Equal(t, 0.2, cfg.Overlap.MaxOverlapDxRatio)
	assert.Equal(t, 0.25, cfg.Overlap.MaxOverlapAreaRatio)
	assert.Equal(t, 0.8, cfg.Factory.IntrinsicRatio)
}

func TestLoadConfig_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeFile(t, "omr.yaml", `
overlap:
  max_overlap_dx_ratio: 0.3
engine:
  parallelism: 2
switches:
  fingerings: false
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.3, cfg.Overlap.MaxOverlapDxRatio)
	assert.Equal(t, 0.25, cfg.Overlap.MaxOverlapAreaRatio)
	assert.Equal(t, 2, cfg.Engine.Parallelism)
	assert.False(t, cfg.Switches["fingerings"])
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeFile(t, "omr.json", `{"factory": {"intrinsic_ratio": 0.7}}`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.Factory.IntrinsicRatio)
}

func TestLoadConfig_Unparsable(t *testing.T) {
	path := writeFile(t, "bad.yaml", "engine: [unterminated")
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("OMR_PARALLELISM", "8")
	t.Setenv("OMR_INTRINSIC_RATIO", "0.5")
	t.Setenv("OMR_SWITCH_LYRICS", "0")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Engine.Parallelism)
	assert.Equal(t, 0.5, cfg.Factory.IntrinsicRatio)
	assert.False(t, cfg.Switches["lyrics"])
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"interline", func(c *Config) { c.Scale.DefaultInterline = 0 }},
		{"gap", func(c *Config) { c.HeadStem.MaxYGap = 0 }},
		{"ratio above one", func(c *Config) { c.Overlap.MaxOverlapAreaRatio = 1.5 }},
		{"negative grade", func(c *Config) { c.HeadStem.MinGrade = -0.1 }},
		{"parallelism", func(c *Config) { c.Engine.Parallelism = 0 }},
		{"limits", func(c *Config) { c.Engine.MaxRelations = 0 }},
		{"unknown switch", func(c *Config) { c.Switches = map[string]bool{"tablature": true} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestSwitches_Inheritance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Switches = map[string]bool{"frets": false}

	book := cfg.BookSwitches()
	sheet := book.Child()

	assert.False(t, sheet.Value(Frets))
	assert.True(t, sheet.Value(Articulations))
	assert.False(t, sheet.IsSet(Frets))

	sheet.Set(Frets, true)
	assert.True(t, sheet.Value(Frets))
	assert.False(t, book.Value(Frets))

	sheet.Unset(Frets)
	assert.False(t, sheet.Value(Frets))
}

func TestSwitches_ApplyUnknown(t *testing.T) {
	err := DefaultSwitches().Child().Apply(map[string]bool{"bogus": true})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseSwitch(t *testing.T) {
	s, ok := ParseSwitch("Pluckings")
	require.True(t, ok)
	assert.Equal(t, Pluckings, s)
	assert.Equal(t, "pluckings", s.String())

	_, ok = ParseSwitch("")
	assert.False(t, ok)

	values := DefaultSwitches().Values()
	assert.Len(t, values, int(NumSwitches))
	assert.True(t, values["lyrics"])
}

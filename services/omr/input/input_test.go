// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package input

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianOMR/services/omr/shape"
)

const samplePage = `id: 1
interline: 20
systems:
  - id: 1
    staves:
      - {id: 1, left: 0, right: 1000, top: 100, interline: 20, header_stop: 100}
    parts:
      - {id: 1, name: Piano, staves: [1]}
    barlines:
      - {x: 500}
      - {x: 990, shape: FINAL_BARLINE, width: 8}
    symbols:
      - {shape: STEM, box: {x: 210, y: 110, w: 2, h: 60}, staff: 1, grade: 0.9}
    evaluations:
      - {shape: QUARTER_REST, box: {x: 300, y: 130, w: 10, h: 30}, grade: 0.8}
    manual:
      - {shape: BREATH_MARK, box: {x: 480, y: 80, w: 8, h: 10}, staff: 1}
`

func TestDecodeYAML(t *testing.T) {
	p, err := Decode(strings.NewReader(samplePage), FormatYAML)
	require.NoError(t, err)
	require.Len(t, p.Systems, 1)

	sys := p.Systems[0]
	assert.Equal(t, 20, p.Interline)
	require.Len(t, sys.Barlines, 2)
	assert.Equal(t, shape.ThinBarline, sys.Barlines[0].BarShape())
	assert.Equal(t, 3, sys.Barlines[0].BarWidth())
	assert.Equal(t, shape.FinalBarline, sys.Barlines[1].BarShape())
	assert.Equal(t, 8, sys.Barlines[1].BarWidth())
	assert.Equal(t, shape.Stem, sys.Symbols[0].ShapeValue())
	assert.Equal(t, shape.QuarterRest, sys.Evaluations[0].ShapeValue())
	require.Len(t, sys.Manual, 1)
	assert.Equal(t, shape.BreathMark, sys.Manual[0].ShapeValue())
	assert.Equal(t, 1, sys.Manual[0].Staff)
	assert.Equal(t, 480, sys.Manual[0].Box.Rect().X)

	g := sys.Evaluations[0].Glyph()
	assert.Equal(t, 300, g.Bounds().X)
	assert.Equal(t, 30, g.Bounds().H)

	staves := sys.SheetStaves()
	require.Len(t, staves, 1)
	assert.Equal(t, 100, staves[0].HeaderStop)
	parts := sys.SheetParts()
	require.Len(t, parts, 1)
	assert.Equal(t, "Piano", parts[0].Name)
	assert.Equal(t, []int{1}, parts[0].Staves)
}

func TestDecodeJSON(t *testing.T) {
	data := `{"id": 2, "systems": [{"id": 1,
		"staves": [{"id": 1, "left": 0, "right": 800, "top": 50, "interline": 18}],
		"parts": [{"id": 1, "staves": [1]}]}]}`
	p, err := Decode(strings.NewReader(data), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 2, p.ID)
	assert.Equal(t, 0, p.Interline)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
		target error
	}{
		{"garbage", "{{{", FormatYAML, ErrDecode},
		{"unknown field", `{"id": 1, "bogus": true}`, FormatJSON, ErrDecode},
		{"no systems", "id: 1\n", FormatYAML, ErrInvalidPage},
		{"unknown shape", strings.Replace(samplePage, "QUARTER_REST", "KAZOO", 1), FormatYAML, ErrInvalidPage},
		{"unknown forced shape", strings.Replace(samplePage, "BREATH_MARK", "KAZOO", 1), FormatYAML, ErrInvalidPage},
		{"empty forced box", strings.Replace(samplePage, "w: 8, h: 10", "w: 8, h: 0", 1), FormatYAML, ErrInvalidPage},
		{"bad grade", strings.Replace(samplePage, "grade: 0.8", "grade: 1.5", 1), FormatYAML, ErrInvalidPage},
		{"empty box", strings.Replace(samplePage, "w: 10, h: 30", "w: 0, h: 30", 1), FormatYAML, ErrInvalidPage},
		{"right before left", strings.Replace(samplePage, "right: 1000", "right: 0", 1), FormatYAML, ErrInvalidPage},
		{"unknown switch", "switches: {kazoo: true}\n" + samplePage, FormatYAML, ErrInvalidPage},
		{"unknown part staff", strings.Replace(samplePage, "staves: [1]", "staves: [1, 2]", 1), FormatYAML, ErrInvalidPage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.data), tt.format)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePage), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, p.ID)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatOf("a/b/page.JSON"))
	assert.Equal(t, FormatYAML, FormatOf("page.yml"))
	assert.Equal(t, FormatYAML, FormatOf("page"))
}

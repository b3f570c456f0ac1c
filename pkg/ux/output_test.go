// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMachineOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)
	assert.True(t, p.Machine())

	p.Title("hidden")
	p.Success("page %d", 1)
	p.Warning("stack %s", "2")
	p.Error("boom")
	p.Info("plain")
	p.Table([]string{"stack", "actual"}, [][]string{{"1", "3/4"}}, nil)

	assert.Equal(t, "OK: page 1\nWARN: stack 2\nERROR: boom\nplain\nstack\tactual\n1\t3/4\n", buf.String())
}

func TestStyledOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.Title("Page 1")
	p.Success("done")
	p.Table([]string{"stack", "actual"}, [][]string{{"1", "1"}, {"2", "3/4"}}, func(row int) bool { return row == 1 })

	out := buf.String()
	assert.Contains(t, out, "Page 1")
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "3/4")
	assert.Contains(t, out, "stack")
}

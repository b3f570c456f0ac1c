// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the engine configuration: calibration constants,
// processing switches and engine limits.
//
// Configuration is loaded once and passed by value into each system's
// processing call. Nothing in this package keeps process-wide state.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a configuration value is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete engine configuration.
type Config struct {
	// Scale holds page scale defaults.
	Scale ScaleConfig `json:"scale" yaml:"scale"`

	// HeadStem holds head-stem connection tolerances.
	HeadStem HeadStemConfig `json:"head_stem" yaml:"head_stem"`

	// Overlap holds head overlap thresholds.
	Overlap OverlapConfig `json:"overlap" yaml:"overlap"`

	// Dots holds dot classification tolerances.
	Dots DotsConfig `json:"dots" yaml:"dots"`

	// Links holds symbol-to-neighbor tolerances.
	Links LinksConfig `json:"links" yaml:"links"`

	// Factory holds symbol factory parameters.
	Factory FactoryConfig `json:"factory" yaml:"factory"`

	// Rhythm holds rhythm engine parameters.
	Rhythm RhythmConfig `json:"rhythm" yaml:"rhythm"`

	// Engine holds page pipeline parameters.
	Engine EngineConfig `json:"engine" yaml:"engine"`

	// Switches holds book-level switch overrides, by switch name.
	Switches map[string]bool `json:"switches,omitempty" yaml:"switches,omitempty"`
}

// ScaleConfig holds page scale defaults.
type ScaleConfig struct {
	// DefaultInterline is used when a page does not provide its interline.
	// Default: 20
	DefaultInterline int `json:"default_interline" yaml:"default_interline"`
}

// HeadStemConfig holds head-stem gap maxima, in interline fractions.
type HeadStemConfig struct {
	// MaxXInGap is the maximum overlap of the stem into the head.
	MaxXInGap float64 `json:"max_x_in_gap" yaml:"max_x_in_gap"`

	// MaxXOutGap is the maximum horizontal gap between head and stem.
	MaxXOutGap float64 `json:"max_x_out_gap" yaml:"max_x_out_gap"`

	// MaxYGap is the maximum vertical gap between head and stem end.
	MaxYGap float64 `json:"max_y_gap" yaml:"max_y_gap"`

	// Manual variants apply to user-forced heads.
	ManualMaxXInGap  float64 `json:"manual_max_x_in_gap" yaml:"manual_max_x_in_gap"`
	ManualMaxXOutGap float64 `json:"manual_max_x_out_gap" yaml:"manual_max_x_out_gap"`
	ManualMaxYGap    float64 `json:"manual_max_y_gap" yaml:"manual_max_y_gap"`

	// XWeight and YWeight weigh the gap impacts in the relation grade.
	XWeight float64 `json:"x_weight" yaml:"x_weight"`
	YWeight float64 `json:"y_weight" yaml:"y_weight"`

	// MinGrade is the minimum acceptable relation grade.
	MinGrade float64 `json:"min_grade" yaml:"min_grade"`
}

// OverlapConfig holds head overlap thresholds.
type OverlapConfig struct {
	// ShrinkHoriRatio and ShrinkVertRatio shrink head boxes for overlap tests.
	ShrinkHoriRatio float64 `json:"shrink_hori_ratio" yaml:"shrink_hori_ratio"`
	ShrinkVertRatio float64 `json:"shrink_vert_ratio" yaml:"shrink_vert_ratio"`

	// MaxOverlapDxRatio is the shared width ratio above which heads overlap.
	MaxOverlapDxRatio float64 `json:"max_overlap_dx_ratio" yaml:"max_overlap_dx_ratio"`

	// MaxOverlapAreaRatio is the shared area ratio above which heads overlap.
	MaxOverlapAreaRatio float64 `json:"max_overlap_area_ratio" yaml:"max_overlap_area_ratio"`
}

// DotsConfig holds dot tolerances, in interline fractions.
type DotsConfig struct {
	// MaxAugmentationDx is the maximum gap between a note and its dot.
	MaxAugmentationDx float64 `json:"max_augmentation_dx" yaml:"max_augmentation_dx"`

	// MaxAugmentationDy is the maximum vertical shift of a dot from its note.
	MaxAugmentationDy float64 `json:"max_augmentation_dy" yaml:"max_augmentation_dy"`

	// MaxDoubleDotDx is the maximum gap between two dots of a double dot.
	MaxDoubleDotDx float64 `json:"max_double_dot_dx" yaml:"max_double_dot_dx"`

	// MaxRepeatDotDx is the maximum gap between a repeat dot and its barline.
	MaxRepeatDotDx float64 `json:"max_repeat_dot_dx" yaml:"max_repeat_dot_dx"`

	// MaxStaccatoDy is the maximum gap between a staccato dot and its chord.
	MaxStaccatoDy float64 `json:"max_staccato_dy" yaml:"max_staccato_dy"`

	// AugmentationGrade, RepeatGrade, StaccatoGrade and FermataGrade scale
	// the dot grade for each reading.
	AugmentationGrade float64 `json:"augmentation_grade" yaml:"augmentation_grade"`
	RepeatGrade       float64 `json:"repeat_grade" yaml:"repeat_grade"`
	StaccatoGrade     float64 `json:"staccato_grade" yaml:"staccato_grade"`
	FermataGrade      float64 `json:"fermata_grade" yaml:"fermata_grade"`
}

// LinksConfig holds tolerances used when linking symbols at creation.
type LinksConfig struct {
	// MaxAlterDx is the maximum gap between an accidental and its head.
	MaxAlterDx float64 `json:"max_alter_dx" yaml:"max_alter_dx"`

	// MaxAlterDy is the maximum vertical shift between accidental and head.
	MaxAlterDy float64 `json:"max_alter_dy" yaml:"max_alter_dy"`

	// MaxFlagDx is the maximum gap between a flag and its stem.
	MaxFlagDx float64 `json:"max_flag_dx" yaml:"max_flag_dx"`

	// MaxMarkerDx is the maximum gap between a marker and its barline.
	MaxMarkerDx float64 `json:"max_marker_dx" yaml:"max_marker_dx"`

	// MaxChordDy is the maximum vertical gap between a mark and its chord.
	MaxChordDy float64 `json:"max_chord_dy" yaml:"max_chord_dy"`
}

// FactoryConfig holds symbol factory parameters.
type FactoryConfig struct {
	// IntrinsicRatio scales classifier grades into intrinsic grades.
	// Default: 0.8
	IntrinsicRatio float64 `json:"intrinsic_ratio" yaml:"intrinsic_ratio"`

	// MinGrade is the minimum evaluation grade worth a symbol.
	MinGrade float64 `json:"min_grade" yaml:"min_grade"`
}

// RhythmConfig holds rhythm engine parameters.
type RhythmConfig struct {
	// SlotMargin is the maximum abscissa gap, in interline fraction,
	// between chords of the same slot.
	SlotMargin float64 `json:"slot_margin" yaml:"slot_margin"`
}

// EngineConfig holds page pipeline parameters.
type EngineConfig struct {
	// Parallelism is the maximum number of systems processed at once.
	// Default: 4
	Parallelism int `json:"parallelism" yaml:"parallelism"`

	// MaxInters bounds the graph size of each system.
	MaxInters int `json:"max_inters" yaml:"max_inters"`

	// MaxRelations bounds the relation count of each system.
	MaxRelations int `json:"max_relations" yaml:"max_relations"`

	// StackMargin is the distance, in interline fraction, under which a
	// barline column is taken as the system start or end.
	// Default: 1.0
	StackMargin float64 `json:"stack_margin" yaml:"stack_margin"`
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		Scale: ScaleConfig{
			DefaultInterline: 20,
		},
		HeadStem: HeadStemConfig{
			MaxXInGap:        0.25,
			MaxXOutGap:       0.2,
			MaxYGap:          0.8,
			ManualMaxXInGap:  0.35,
			ManualMaxXOutGap: 0.3,
			ManualMaxYGap:    1.2,
			XWeight:          3,
			YWeight:          1,
			MinGrade:         0.3,
		},
		Overlap: OverlapConfig{
			ShrinkHoriRatio:     0.5,
			ShrinkVertRatio:     0.5,
			MaxOverlapDxRatio:   0.2,
			MaxOverlapAreaRatio: 0.25,
		},
		Dots: DotsConfig{
			MaxAugmentationDx: 1.5,
			MaxAugmentationDy: 0.8,
			MaxDoubleDotDx:    1.0,
			MaxRepeatDotDx:    1.5,
			MaxStaccatoDy:     2.0,
			AugmentationGrade: 1.0,
			RepeatGrade:       1.0,
			StaccatoGrade:     0.9,
			FermataGrade:      1.0,
		},
		Links: LinksConfig{
			MaxAlterDx:  1.5,
			MaxAlterDy:  0.5,
			MaxFlagDx:   0.5,
			MaxMarkerDx: 3.0,
			MaxChordDy:  3.0,
		},
		Factory: FactoryConfig{
			IntrinsicRatio: 0.8,
			MinGrade:       0.1,
		},
		Rhythm: RhythmConfig{
			SlotMargin: 0.5,
		},
		Engine: EngineConfig{
			Parallelism:  4,
			MaxInters:    200_000,
			MaxRelations: 1_000_000,
			StackMargin:  1.0,
		},
	}
}

// LoadConfig loads the configuration from file and environment.
//
// Description:
//
//	Starts from defaults, applies the file (YAML, falling back to JSON;
//	a missing file keeps the defaults), applies OMR_* environment
//	variables, then validates.
//
// Inputs:
//
//	path - Config file path. Empty means no file.
//
// Outputs:
//
//	Config - The loaded configuration.
//	error - Non-nil if the file cannot be parsed or validation fails.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	loadConfigFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

func loadConfigFromEnv(cfg *Config) {
	if v := os.Getenv("OMR_DEFAULT_INTERLINE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Scale.DefaultInterline = i
		}
	}
	if v := os.Getenv("OMR_INTRINSIC_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Factory.IntrinsicRatio = f
		}
	}
	if v := os.Getenv("OMR_MAX_OVERLAP_DX_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Overlap.MaxOverlapDxRatio = f
		}
	}
	if v := os.Getenv("OMR_MAX_OVERLAP_AREA_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Overlap.MaxOverlapAreaRatio = f
		}
	}
	if v := os.Getenv("OMR_HEAD_STEM_MIN_GRADE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.HeadStem.MinGrade = f
		}
	}
	if v := os.Getenv("OMR_PARALLELISM"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Engine.Parallelism = i
		}
	}
	if v := os.Getenv("OMR_MAX_INTERS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxInters = i
		}
	}
	for s := range NumSwitches {
		if v := os.Getenv("OMR_SWITCH_" + strings.ToUpper(s.String())); v != "" {
			if cfg.Switches == nil {
				cfg.Switches = make(map[string]bool)
			}
			cfg.Switches[s.String()] = v == "true" || v == "1"
		}
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Scale.DefaultInterline < 1 {
		return fmt.Errorf("%w: default_interline must be >= 1", ErrInvalidConfig)
	}
	for name, v := range map[string]float64{
		"head_stem.max_x_in_gap":   c.HeadStem.MaxXInGap,
		"head_stem.max_x_out_gap":  c.HeadStem.MaxXOutGap,
		"head_stem.max_y_gap":      c.HeadStem.MaxYGap,
		"dots.max_augmentation_dx": c.Dots.MaxAugmentationDx,
		"rhythm.slot_margin":       c.Rhythm.SlotMargin,
		"engine.stack_margin":      c.Engine.StackMargin,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be > 0", ErrInvalidConfig, name)
		}
	}
	for name, v := range map[string]float64{
		"head_stem.min_grade":            c.HeadStem.MinGrade,
		"overlap.max_overlap_dx_ratio":   c.Overlap.MaxOverlapDxRatio,
		"overlap.max_overlap_area_ratio": c.Overlap.MaxOverlapAreaRatio,
		"overlap.shrink_hori_ratio":      c.Overlap.ShrinkHoriRatio,
		"overlap.shrink_vert_ratio":      c.Overlap.ShrinkVertRatio,
		"factory.intrinsic_ratio":        c.Factory.IntrinsicRatio,
		"factory.min_grade":              c.Factory.MinGrade,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be in [0,1]", ErrInvalidConfig, name)
		}
	}
	if c.Engine.Parallelism < 1 {
		return fmt.Errorf("%w: parallelism must be >= 1", ErrInvalidConfig)
	}
	if c.Engine.MaxInters < 1 || c.Engine.MaxRelations < 1 {
		return fmt.Errorf("%w: graph limits must be >= 1", ErrInvalidConfig)
	}
	for name := range c.Switches {
		if _, ok := ParseSwitch(name); !ok {
			return fmt.Errorf("%w: unknown switch %q", ErrInvalidConfig, name)
		}
	}
	return nil
}

// BookSwitches returns the book level of the switch chain, inheriting
// from the defaults.
func (c Config) BookSwitches() *ProcessingSwitches {
	book := DefaultSwitches().Child()
	// Names were checked by Validate.
	_ = book.Apply(c.Switches)
	return book
}

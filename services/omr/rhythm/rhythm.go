// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rhythm

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianOMR/services/omr/config"
	"github.com/AleutianAI/AleutianOMR/services/omr/rational"
	"github.com/AleutianAI/AleutianOMR/services/omr/sheet"
)

var tracer = otel.Tracer("aleutian.omr.rhythm")

// Anomaly describes a stack whose actual duration disagrees with the
// expected one.
type Anomaly struct {
	// System is the ID of the owning system.
	System int `json:"system" yaml:"system"`

	// Stack is the page display ID of the stack.
	Stack string `json:"stack" yaml:"stack"`

	Expected rational.Rational `json:"expected" yaml:"expected"`
	Actual   rational.Rational `json:"actual" yaml:"actual"`

	// Excess is positive for a stack too long, negative for one too short.
	Excess rational.Rational `json:"excess" yaml:"excess"`

	stack *sheet.MeasureStack
}

// Engine computes slots, voices and durations.
type Engine struct {
	cfg   config.RhythmConfig
	scale sheet.Scale
}

// New creates an engine for pages at the given scale.
func New(cfg config.Config, scale sheet.Scale) *Engine {
	if scale.Interline <= 0 {
		scale.Interline = cfg.Scale.DefaultInterline
	}
	return &Engine{cfg: cfg.Rhythm, scale: scale}
}

// ProcessSystem rebuilds the rhythm of every stack of the system.
//
// Description:
//
//	Each stack is reset, then its chords are grouped into slots and
//	voices and its actual duration is set. A stack without slots gets a
//	zero actual duration. Expected durations are left to CheckPage.
//
// Errors:
//
//	ErrNoMeasure - a chord lies on a staff the stack has no measure for
//
// Thread Safety:
//
//	Safe to call concurrently for distinct systems.
func (e *Engine) ProcessSystem(ctx context.Context, sys *sheet.System) error {
	_, span := tracer.Start(ctx, "rhythm.ProcessSystem",
		trace.WithAttributes(
			attribute.Int("omr.system", sys.ID),
			attribute.Int("omr.stacks", len(sys.Stacks)),
		),
	)
	defer span.End()

	for _, stack := range sys.Stacks {
		if err := e.ProcessStack(sys, stack); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "stack rhythm failed")
			return fmt.Errorf("stack %s: %w", stack, err)
		}
	}
	return nil
}

// ProcessStack rebuilds the slots, voices and actual duration of one
// stack.
func (e *Engine) ProcessStack(sys *sheet.System, stack *sheet.MeasureStack) error {
	stack.ResetRhythm()
	entries, wholeRests, err := collect(sys, stack)
	if err != nil {
		return err
	}
	slots, groups := buildSlots(entries, e.scale.ToPixels(e.cfg.SlotMargin))
	buildVoices(stack, slots, groups, wholeRests)
	stack.Slots = slots
	stack.SetActual(stack.SlotsDuration())

	slog.Debug("stack rhythm",
		slog.Int("system", sys.ID),
		slog.String("stack", stack.String()),
		slog.Int("slots", len(slots)),
		slog.Int("voices", len(stack.Voices())),
		slog.String("actual", stack.Actual.String()),
	)
	return nil
}

// CheckPage sets the expected durations of the page stacks and flags the
// anomalies.
//
// Description:
//
//	Stacks are visited in reading order. The expected duration comes
//	from the time signature in force, found backward through the page,
//	or from carried when the page has none yet. Then:
//
//	  - the last stack of a system, without any chord, is cautionary;
//	  - a voice longer than expected makes the stack abnormal;
//	  - a stack shorter than expected is a pickup when it starts the
//	    page, or the first half of a measure when it ends with a right
//	    repeat and the next stack completes it; otherwise it is abnormal.
//
//	A stack with zero actual duration (whole rests only, or empty) is
//	never short. Stacks without expected duration are only validated.
//	The page stacks are numbered at the end.
//
// Inputs:
//
//	carried - The measure duration in force at the end of the previous
//	page, nil for the first page.
//
// Outputs:
//
//	*rational.Rational - The measure duration in force at the end of this
//	page, to carry to the next one.
//	[]Anomaly - The abnormal stacks, in reading order.
func (e *Engine) CheckPage(ctx context.Context, page *sheet.Page, carried *rational.Rational) (*rational.Rational, []Anomaly) {
	_, span := tracer.Start(ctx, "rhythm.CheckPage",
		trace.WithAttributes(attribute.Int("omr.page", page.ID)),
	)
	defer span.End()

	var anomalies []Anomaly
	first := page.FirstStack()
	current := carried
	for _, stack := range page.Stacks() {
		stack.Special = sheet.SpecialNone
	}
	for _, stack := range page.Stacks() {
		sys := page.System(stack.System)
		if ts, _ := page.CurrentTimeSignature(stack); ts != nil {
			if d, err := TimeDuration(ts); err == nil {
				current = &d
			} else {
				slog.Warn("ignoring time signature",
					slog.Int("system", stack.System),
					slog.String("error", err.Error()),
				)
			}
		}
		if current != nil {
			stack.SetExpected(*current)
		}
		if stack.Actual == nil {
			// Rhythm failed for this system.
			continue
		}
		if stack.Special == sheet.SecondHalf {
			stack.Validate()
			continue
		}
		if a, ok := e.checkStack(page, sys, stack, stack == first); !ok {
			anomalies = append(anomalies, a)
		}
		stack.Validate()
	}

	page.NumberStacks()
	stacks := page.Stacks()
	for i := range anomalies {
		a := &anomalies[i]
		for j, st := range stacks {
			if st == a.stack {
				a.Stack = st.PageID(j)
				break
			}
		}
		slog.Info("stack anomaly",
			slog.Int("system", a.System),
			slog.String("stack", a.Stack),
			slog.String("excess", a.Excess.String()),
		)
	}
	span.SetAttributes(attribute.Int("omr.anomalies", len(anomalies)))
	return current, anomalies
}

// checkStack applies the duration rules to one stack. It reports false
// with the anomaly when the stack is abnormal.
func (e *Engine) checkStack(page *sheet.Page, sys *sheet.System, stack *sheet.MeasureStack, pageStart bool) (Anomaly, bool) {
	if sys != nil && sys.StackIndex(stack) > 0 && sys.LastStack() == stack && len(stack.Chords()) == 0 {
		stack.Special = sheet.Cautionary
		return Anomaly{}, true
	}
	if stack.Expected == nil {
		return Anomaly{}, true
	}
	expected, actual := *stack.Expected, *stack.Actual
	anomaly := Anomaly{System: stack.System, Expected: expected, Actual: actual, stack: stack}

	if excess := stack.CheckDuration(); excess != nil {
		stack.SetExcess(*excess)
		anomaly.Excess = *excess
		return anomaly, false
	}
	if actual.Sign() <= 0 || !actual.Less(expected) {
		return Anomaly{}, true
	}

	if pageStart {
		stack.Special = sheet.Pickup
		return Anomaly{}, true
	}
	if stack.IsRepeat(sheet.Right) {
		if next := page.FollowingInPage(stack); next != nil && next.Actual != nil &&
			actual.Plus(*next.Actual).Equal(expected) {
			stack.Special = sheet.FirstHalf
			next.Special = sheet.SecondHalf
			return Anomaly{}, true
		}
	}

	excess := actual.Minus(expected)
	stack.SetExcess(excess)
	anomaly.Excess = excess
	return anomaly, false
}

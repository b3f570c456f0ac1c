// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sig

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for graph mutations.
var meter = otel.Meter("aleutian.omr.sig")

// Metrics for graph mutations.
var (
	intersAdded    metric.Int64Counter
	intersRemoved  metric.Int64Counter
	relationsAdded metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		intersAdded, err = meter.Int64Counter(
			"omr_sig_inters_added_total",
			metric.WithDescription("Total number of inters inserted into a SIG"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		intersRemoved, err = meter.Int64Counter(
			"omr_sig_inters_removed_total",
			metric.WithDescription("Total number of inters removed from a SIG"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		relationsAdded, err = meter.Int64Counter(
			"omr_sig_relations_added_total",
			metric.WithDescription("Total number of relations inserted into a SIG"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordInterAdded(ctx context.Context, kind Kind) {
	if err := initMetrics(); err != nil {
		return
	}
	intersAdded.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())))
}

func recordInterRemoved(ctx context.Context, kind Kind) {
	if err := initMetrics(); err != nil {
		return
	}
	intersRemoved.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())))
}

func recordRelationAdded(ctx context.Context, kind RelationKind) {
	if err := initMetrics(); err != nil {
		return
	}
	relationsAdded.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())))
}

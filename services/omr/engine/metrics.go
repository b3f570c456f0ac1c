// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pagesProcessed counts processed pages.
	// Labels: status (ok, partial, failed)
	pagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omr",
		Subsystem: "engine",
		Name:      "pages_total",
		Help:      "Total pages processed",
	}, []string{"status"})

	// systemDuration measures the parallel phase of one system.
	systemDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "omr",
		Subsystem: "engine",
		Name:      "system_duration_seconds",
		Help:      "Time to interpret one system",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	// systemFailures counts systems that could not be processed.
	// Labels: reason (error, panic)
	systemFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omr",
		Subsystem: "engine",
		Name:      "system_failures_total",
		Help:      "Total systems that failed",
	}, []string{"reason"})

	// intersRemoved counts Inters removed by disambiguation.
	intersRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "omr",
		Subsystem: "engine",
		Name:      "inters_removed_total",
		Help:      "Total Inters removed by overlap resolution and late checks",
	})

	// stackAnomalies counts stacks whose duration does not match.
	// Labels: kind (excess, missing)
	stackAnomalies = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omr",
		Subsystem: "engine",
		Name:      "stack_anomalies_total",
		Help:      "Total measure stacks with a duration anomaly",
	}, []string{"kind"})
)

// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "themove_searches_total",
		Help: "Search pipeline runs by outcome (results, no_matches, error, timeout).",
	}, []string{"outcome"})

	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "themove_search_duration_seconds",
		Help:    "End-to-end search pipeline latency.",
		Buckets: prometheus.DefBuckets,
	})

	searchResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "themove_search_results",
		Help:    "Number of results included in the reply message.",
		Buckets: []float64{0, 1, 2, 3, 4, 5},
	})
)

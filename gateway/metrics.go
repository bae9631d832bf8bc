// Copyright 2025 b1link
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "b1link_gateway_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		},
		[]string{"route", "status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "b1link_gateway_request_duration_milliseconds",
			Help:    "Request duration in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"route"},
	)
	promB1Operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "b1link_sapb1_operations_total",
			Help: "SAP B1 operations by operation name and result",
		},
		[]string{"operation", "result"},
	)
	promRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "b1link_gateway_rate_limited_total",
			Help: "Requests rejected by the per-caller rate limit",
		},
	)
)

func init() {
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promB1Operations)
	prometheus.MustRegister(promRateLimited)
}

func observeOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	promB1Operations.WithLabelValues(operation, result).Inc()
}

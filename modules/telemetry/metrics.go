// Copyright 2025 Nhat-Nguyen Nguyen
//
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

package telemetry

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// timed is a call counter paired with a latency histogram in milliseconds.
type timed struct {
	total    metric.Int64Counter
	duration metric.Float64Histogram
}

func newTimed(meter metric.Meter, prefix, unit, what string) (timed, error) {
	total, err := meter.Int64Counter(prefix+"_total",
		metric.WithDescription("Total number of "+what),
		metric.WithUnit(unit),
	)
	if err != nil {
		return timed{}, err
	}
	duration, err := meter.Float64Histogram(prefix+"_duration",
		metric.WithDescription("Duration of "+what),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return timed{}, err
	}
	return timed{total: total, duration: duration}, nil
}

func (t timed) record(ctx context.Context, d time.Duration, attrs metric.MeasurementOption) {
	t.total.Add(ctx, 1, attrs)
	t.duration.Record(ctx, float64(d)/float64(time.Millisecond), attrs)
}

// HTTPMetrics instruments every request the server answers.
type HTTPMetrics struct {
	requests timed
	size     metric.Int64Histogram
}

func NewHTTPMetrics(serviceName string) (*HTTPMetrics, error) {
	meter := otel.Meter(serviceName)

	requests, err := newTimed(meter, "http_server_requests", "{request}", "HTTP requests")
	if err != nil {
		return nil, err
	}
	size, err := meter.Int64Histogram("http_server_response_size",
		metric.WithDescription("HTTP response size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}
	return &HTTPMetrics{requests: requests, size: size}, nil
}

// RecordRequest records one answered request. endpoint must be low
// cardinality, a route pattern rather than a raw path.
func (m *HTTPMetrics) RecordRequest(ctx context.Context, method, endpoint string, status int, d time.Duration, bytes int64) {
	attrs := metric.WithAttributes(
		attribute.String("http_method", method),
		attribute.String("http_endpoint", endpoint),
		attribute.String("http_status_code", strconv.Itoa(status)),
	)
	m.requests.record(ctx, d, attrs)
	if bytes > 0 {
		m.size.Record(ctx, bytes, attrs)
	}
}

// ReferenceMetrics instruments lookups against the user and catalog
// services.
type ReferenceMetrics struct {
	lookups timed
}

func NewReferenceMetrics(serviceName string) (*ReferenceMetrics, error) {
	lookups, err := newTimed(otel.Meter(serviceName), "reference_lookups", "{lookup}", "remote reference lookups")
	if err != nil {
		return nil, err
	}
	return &ReferenceMetrics{lookups: lookups}, nil
}

// RecordLookup records one lookup. outcome is found, not_found, timeout or
// transport_error. A nil receiver records nothing.
func (m *ReferenceMetrics) RecordLookup(ctx context.Context, service, pattern, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.lookups.record(ctx, d, metric.WithAttributes(
		attribute.String("rpc_service", service),
		attribute.String("rpc_pattern", pattern),
		attribute.String("outcome", outcome),
	))
}

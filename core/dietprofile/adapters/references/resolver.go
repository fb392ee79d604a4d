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

// Package references resolves athlete, food and diet type ids against the
// services that own them.
package references

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"dietprofile/core/dietprofile/domain"
	"dietprofile/modules/rpc"
	"dietprofile/modules/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var _ domain.ReferenceResolver = (*Resolver)(nil)

// DefaultTimeout bounds every lookup.
const DefaultTimeout = 5 * time.Second

type (
	// Sender is the transport, usually an *rpc.Client.
	Sender interface {
		Name() string
		Send(ctx context.Context, pattern rpc.Pattern, data any) (json.RawMessage, error)
	}

	// Lookup describes one "get by id" message.
	Lookup struct {
		Kind     domain.ReferenceKind
		Pattern  rpc.Pattern
		KeyField string
	}

	Resolver struct {
		sender  Sender
		lookup  Lookup
		timeout time.Duration
		metrics *telemetry.ReferenceMetrics
		tracer  trace.Tracer

		// concurrent lookups of the same id share one round trip
		group singleflight.Group
	}

	Option func(*Resolver)
)

func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithMetrics(m *telemetry.ReferenceMetrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

func NewResolver(sender Sender, lookup Lookup, opts ...Option) *Resolver {
	r := &Resolver{
		sender:  sender,
		lookup:  lookup,
		timeout: DefaultTimeout,
		tracer:  otel.Tracer("dietprofile/references"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve implements domain.ReferenceResolver.
func (r *Resolver) Resolve(ctx context.Context, id int64) (*domain.RemoteEntity, error) {
	route := r.lookup.Pattern.Route()
	ctx, span := r.tracer.Start(ctx, "reference.resolve",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.service", r.sender.Name()),
			attribute.String("rpc.pattern", route),
			attribute.String("reference.kind", string(r.lookup.Kind)),
			attribute.Int64("reference.id", id),
		),
	)
	defer span.End()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// The shared call gets its own deadline so one caller going away does not
	// fail the others waiting on it.
	ch := r.group.DoChan(strconv.FormatInt(id, 10), func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.sender.Send(callCtx, r.lookup.Pattern, map[string]int64{r.lookup.KeyField: id})
	})

	var (
		raw json.RawMessage
		err error
	)
	select {
	case res := <-ch:
		raw, _ = res.Val.(json.RawMessage)
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	entity, outcome, err := r.classify(id, raw, err)
	r.metrics.RecordLookup(ctx, r.sender.Name(), route, outcome, time.Since(start))
	span.SetAttributes(attribute.String("reference.outcome", outcome))
	if err != nil && outcome != "not_found" {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	return entity, err
}

func (r *Resolver) classify(id int64, raw json.RawMessage, err error) (*domain.RemoteEntity, string, error) {
	switch {
	case err == nil && absent(raw):
		return nil, "not_found", fmt.Errorf("%w: %s %d", domain.ErrReferenceNotFound, r.lookup.Kind, id)
	case err == nil:
		return &domain.RemoteEntity{Kind: r.lookup.Kind, ID: id, Payload: raw}, "found", nil
	case errors.Is(err, rpc.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return nil, "timeout", fmt.Errorf("%w: %s %d from %s after %s", domain.ErrTimeout, r.lookup.Kind, id, r.sender.Name(), r.timeout)
	default:
		return nil, "transport_error", fmt.Errorf("%w: %s %d from %s: %w", domain.ErrTransport, r.lookup.Kind, id, r.sender.Name(), err)
	}
}

// absent reports an empty answer. The owning services answer a missing id
// with nothing, null, or another falsy JSON value.
func absent(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "false", "0", `""`:
		return true
	}
	return false
}

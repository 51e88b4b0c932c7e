/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package adapter connects a shmkv manager to external observability
// systems.
package adapter

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/srediag/shmkv/api"
	"github.com/srediag/shmkv/pkg/shmkv"
)

const instrumentationName = "github.com/srediag/shmkv"

// OTelManager decorates an api.Manager with OpenTelemetry spans, an
// operation counter and a latency histogram, both labelled by op and
// result code. Instruments live under shmkv.client so they do not clash
// with the region collector's shmkv_operations_total when both are
// exported through one prometheus registry.
type OTelManager struct {
	next     api.Manager
	tracer   trace.Tracer
	ops      metric.Int64Counter
	duration metric.Float64Histogram
}

var _ api.Manager = (*OTelManager)(nil)

// NewOTelManager wraps next. Nil providers fall back to no-op ones.
func NewOTelManager(next api.Manager, mp metric.MeterProvider, tp trace.TracerProvider) (*OTelManager, error) {
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}
	meter := mp.Meter(instrumentationName)
	ops, err := meter.Int64Counter("shmkv.client.operations",
		metric.WithDescription("Operations issued against the shared table."),
		metric.WithUnit("{operation}"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("shmkv.client.operation.duration",
		metric.WithDescription("Time spent in an operation, lock wait included."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &OTelManager{
		next:     next,
		tracer:   tp.Tracer(instrumentationName),
		ops:      ops,
		duration: duration,
	}, nil
}

func (o *OTelManager) observe(op string, attrs []attribute.KeyValue, fn func() error) error {
	ctx, span := o.tracer.Start(context.Background(), "shmkv."+op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	set := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("result", shmkv.CodeOf(err).String()),
	)
	o.ops.Add(ctx, 1, set)
	o.duration.Record(ctx, elapsed.Seconds(), set)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func keyAttr(key int32) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.Int("shmkv.key", int(key))}
}

func (o *OTelManager) Insert(key int32, value string) error {
	return o.observe("insert", keyAttr(key), func() error { return o.next.Insert(key, value) })
}

func (o *OTelManager) Update(key int32, value string) error {
	return o.observe("update", keyAttr(key), func() error { return o.next.Update(key, value) })
}

func (o *OTelManager) Upsert(key int32, value string) error {
	return o.observe("upsert", keyAttr(key), func() error { return o.next.Upsert(key, value) })
}

func (o *OTelManager) Lookup(key int32) string {
	var value string
	_ = o.observe("lookup", keyAttr(key), func() error {
		value = o.next.Lookup(key)
		return nil
	})
	return value
}

func (o *OTelManager) Remove(key int32) error {
	return o.observe("remove", keyAttr(key), func() error { return o.next.Remove(key) })
}

func (o *OTelManager) Contains(key int32) bool {
	var ok bool
	_ = o.observe("contains", keyAttr(key), func() error {
		ok = o.next.Contains(key)
		return nil
	})
	return ok
}

func (o *OTelManager) BatchUpdate(entries map[int32]string) int {
	var n int
	attrs := []attribute.KeyValue{attribute.Int("shmkv.batch.size", len(entries))}
	_ = o.observe("batch_update", attrs, func() error {
		n = o.next.BatchUpdate(entries)
		return nil
	})
	return n
}

func (o *OTelManager) BatchLookup() map[int32]string {
	var out map[int32]string
	_ = o.observe("batch_lookup", nil, func() error {
		out = o.next.BatchLookup()
		return nil
	})
	return out
}

func (o *OTelManager) Clear() error {
	return o.observe("clear", nil, o.next.Clear)
}

func (o *OTelManager) Count() int { return o.next.Count() }

func (o *OTelManager) LoadFactor() float64 { return o.next.LoadFactor() }

func (o *OTelManager) PrintStats(w io.Writer) error { return o.next.PrintStats(w) }

// Close closes the wrapped manager.
func (o *OTelManager) Close() error { return o.next.Close() }

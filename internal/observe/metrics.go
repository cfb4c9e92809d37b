// Package observe holds the observability plumbing shared by spellin's
// packages: OTel metric instruments, tracing helpers, trace-aware logging and
// the HTTP middleware that ties them together.
//
// Instruments are created from any [metric.MeterProvider]; [InitProvider]
// installs one that feeds a Prometheus registry. Code that is not handed a
// [Metrics] uses [DefaultMetrics], which records on the global provider.
// Tests build their own with [NewMetrics] and an SDK manual reader.
package observe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/spellin"

// Values of the "status" attribute.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics groups spellin's instruments. Safe for concurrent use.
type Metrics struct {
	// Spelling.
	SpellDuration  metric.Float64Histogram // seconds per Spell call
	SpellRequests  metric.Int64Counter     // {table}
	SpellTokens    metric.Int64Counter     // {kind=word|break}
	SpellFallbacks metric.Int64Counter

	// Favourites.
	FavouriteOps        metric.Int64Counter     // {op, status}
	FavouriteOpDuration metric.Float64Histogram // {op}
	FavouriteOverwrites metric.Int64Counter

	ConfigReloads metric.Int64Counter // {status}

	// HTTPRequestDuration is recorded by [Middleware] with method, path
	// (chi route pattern) and status.
	HTTPRequestDuration metric.Float64Histogram
}

// Local work and file round trips finish well under a millisecond; postgres
// lands in the low milliseconds.
var latencyBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1}

// instruments creates instruments on one meter and collects every error.
type instruments struct {
	meter metric.Meter
	errs  []error
}

func (in *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc))
	in.errs = append(in.errs, err)
	return c
}

func (in *instruments) seconds(name, desc string, buckets ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit("s")}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := in.meter.Float64Histogram(name, opts...)
	in.errs = append(in.errs, err)
	return h
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	in := &instruments{meter: mp.Meter(meterName)}
	m := &Metrics{
		SpellDuration:  in.seconds("spellin.spell.duration", "Latency of spelling one input.", latencyBuckets...),
		SpellRequests:  in.counter("spellin.spell.requests", "Spell calls by alphabet table."),
		SpellTokens:    in.counter("spellin.spell.tokens", "Tokens emitted by kind."),
		SpellFallbacks: in.counter("spellin.spell.fallbacks", "Characters spelled with the fallback word."),

		FavouriteOps:        in.counter("spellin.favourites.ops", "Favourites store operations by op and status."),
		FavouriteOpDuration: in.seconds("spellin.favourites.op.duration", "Latency of favourites store operations by op.", latencyBuckets...),
		FavouriteOverwrites: in.counter("spellin.favourites.overwrites", "Favourites that replaced an existing entry."),

		ConfigReloads: in.counter("spellin.config.reloads", "Configuration hot reloads by status."),

		HTTPRequestDuration: in.seconds("spellin.http.request.duration", "HTTP request latency by method, route and status."),
	}
	if err := errors.Join(in.errs...); err != nil {
		return nil, fmt.Errorf("observe: create instruments: %w", err)
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics lazily creates one [Metrics] on [otel.GetMeterProvider].
// The global provider delegates, so instruments created before
// [InitProvider] still reach its exporter.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic(err)
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// RecordSpell records one Spell call on table with its token counts.
func (m *Metrics) RecordSpell(ctx context.Context, table string, words, breaks, fallbacks int, d time.Duration) {
	m.SpellRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("table", table)))
	m.SpellDuration.Record(ctx, d.Seconds())
	for kind, n := range map[string]int{"word": words, "break": breaks} {
		if n > 0 {
			m.SpellTokens.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
		}
	}
	if fallbacks > 0 {
		m.SpellFallbacks.Add(ctx, int64(fallbacks))
	}
}

// RecordFavouriteOp records op's outcome and latency. A nil err counts as
// [StatusOK].
func (m *Metrics) RecordFavouriteOp(ctx context.Context, op string, err error, d time.Duration) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	opAttr := attribute.String("op", op)
	m.FavouriteOps.Add(ctx, 1, metric.WithAttributes(opAttr, attribute.String("status", status)))
	m.FavouriteOpDuration.Record(ctx, d.Seconds(), metric.WithAttributes(opAttr))
}

// RecordFavouriteOverwrite counts an Add that replaced an existing entry.
func (m *Metrics) RecordFavouriteOverwrite(ctx context.Context) {
	m.FavouriteOverwrites.Add(ctx, 1)
}

// RecordConfigReload counts a reload attempt with status [StatusOK] or
// [StatusError].
func (m *Metrics) RecordConfigReload(ctx context.Context, status string) {
	m.ConfigReloads.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

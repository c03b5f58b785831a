package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of the engine's instruments.
const MeterName = "github.com/roach88/smtcache/internal/engine"

// Metrics records cache and solver activity.
//
// A nil *Metrics records nothing.
type Metrics struct {
	lookups      metric.Int64Counter
	roundtrips   metric.Int64Counter
	roundtripDur metric.Float64Histogram
}

var (
	outcomeHit  = metric.WithAttributes(attribute.String("outcome", "hit"))
	outcomeMiss = metric.WithAttributes(attribute.String("outcome", "miss"))
)

// NewMetrics creates the engine's instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(MeterName)

	lookups, err := meter.Int64Counter(
		"smtcache.lookups",
		metric.WithDescription("Cache lookups for cacheable commands"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	roundtrips, err := meter.Int64Counter(
		"smtcache.solver.roundtrips",
		metric.WithDescription("Lines forwarded to the solver that awaited a reply"),
		metric.WithUnit("{roundtrip}"),
	)
	if err != nil {
		return nil, err
	}

	roundtripDur, err := meter.Float64Histogram(
		"smtcache.solver.roundtrip_ms",
		metric.WithDescription("Time from forwarding a line to receiving its reply"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		lookups:      lookups,
		roundtrips:   roundtrips,
		roundtripDur: roundtripDur,
	}, nil
}

func (m *Metrics) recordLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.lookups.Add(ctx, 1, outcomeHit)
		return
	}
	m.lookups.Add(ctx, 1, outcomeMiss)
}

func (m *Metrics) recordRoundtrip(ctx context.Context, kind string, d time.Duration) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(attribute.String("kind", kind))
	m.roundtrips.Add(ctx, 1, opt)
	m.roundtripDur.Record(ctx, float64(d.Microseconds())/1000.0, opt)
}

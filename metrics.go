package gotlive

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/ZaguanLabs/gotlive"

var langKey = attribute.Key("gotlive.lang")

// instruments holds the engine's counters. With no meter provider installed
// by the host they are no-ops.
type instruments struct {
	calls     metric.Int64Counter
	coalesced metric.Int64Counter
	retries   metric.Int64Counter
	degraded  metric.Int64Counter
	stale     metric.Int64Counter
	hits      metric.Int64Counter
	misses    metric.Int64Counter
}

func newInstruments(mp metric.MeterProvider) (*instruments, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName, metric.WithInstrumentationVersion(Version))

	ins := &instruments{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&ins.calls, "gotlive.queue.calls", "Outbound translation calls"},
		{&ins.coalesced, "gotlive.queue.coalesced", "Requests attached to an existing job"},
		{&ins.retries, "gotlive.queue.retries", "Retries scheduled after a failed call"},
		{&ins.degraded, "gotlive.queue.degraded", "Keys that fell back to source text"},
		{&ins.stale, "gotlive.queue.stale", "Requests dropped after a language change"},
		{&ins.hits, "gotlive.cache.hits", "Translation cache hits"},
		{&ins.misses, "gotlive.cache.misses", "Translation cache misses"},
	}

	for _, c := range counters {
		m, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1"))
		if err != nil {
			return nil, fmt.Errorf("creating counter %s: %w", c.name, err)
		}
		*c.dst = m
	}
	return ins, nil
}

func (ins *instruments) add(c metric.Int64Counter, n int, lang string) {
	if n <= 0 {
		return
	}
	c.Add(context.Background(), int64(n), metric.WithAttributes(langKey.String(lang)))
}

package crawl

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of crawl metrics.
const meterName = "github.com/cjdelisle/cjdnswalk/internal/crawl"

// crawlMetrics holds the instruments a session records to.
type crawlMetrics struct {
	// sent counts query sends, first attempts and retries alike.
	sent metric.Int64Counter

	// retried counts sends after the first.
	retried metric.Int64Counter

	// abandoned counts queries that exhausted their retries.
	abandoned metric.Int64Counter

	// accepted counts responses matched to an outstanding query.
	accepted metric.Int64Counter

	// dropped counts inbound messages that were not accepted.
	dropped metric.Int64Counter

	// probes counts key pings sent.
	probes metric.Int64Counter
}

func newCrawlMetrics(mp metric.MeterProvider) (*crawlMetrics, error) {
	meter := mp.Meter(meterName)
	m := &crawlMetrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.sent, "cjdnswalk.queries.sent", "Queries sent to nodes, including retries"},
		{&m.retried, "cjdnswalk.queries.retried", "Query sends after the first attempt"},
		{&m.abandoned, "cjdnswalk.queries.abandoned", "Queries dropped after exhausting retries"},
		{&m.accepted, "cjdnswalk.responses.accepted", "Responses matched to an outstanding query"},
		{&m.dropped, "cjdnswalk.responses.dropped", "Inbound messages that were stale, duplicate or malformed"},
		{&m.probes, "cjdnswalk.probes.sent", "Key pings sent along unresponsive routes"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit("1"),
		)
		if err != nil {
			return nil, fmt.Errorf("create %s counter: %w", c.name, err)
		}
		*c.dst = counter
	}
	return m, nil
}

func queryAttr(kind string) metric.AddOption {
	return metric.WithAttributes(attribute.String("query", kind))
}

package train

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/openato/onboard/internal/train"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	ticks       metric.Int64Counter
	trips       metric.Int64Counter
	modeCommits metric.Int64Counter
	finalDemand metric.Int64Histogram
	speed       metric.Float64Gauge
	target      metric.Float64Gauge
}

// newMetrics uses the global meter, which is a no-op unless a provider was installed.
func newMetrics() (*metrics, error) {
	m := meter()
	var (
		ms  metrics
		err error
	)

	ms.ticks, err = m.Int64Counter(
		"atc.ticks",
		metric.WithDescription("Total control ticks processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	ms.trips, err = m.Int64Counter(
		"atc.atp.trips",
		metric.WithDescription("Protection trips to emergency brake"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating trip counter: %w", err)
	}

	ms.modeCommits, err = m.Int64Counter(
		"atc.mode.commits",
		metric.WithDescription("Committed operating mode changes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating mode commit counter: %w", err)
	}

	ms.finalDemand, err = m.Int64Histogram(
		"atc.demand.final",
		metric.WithDescription("Arbitrated notch demand per tick"),
		metric.WithExplicitBucketBoundaries(-9, -8, -6, -4, -2, -1, 0, 1, 2, 3, 4, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("creating demand histogram: %w", err)
	}

	ms.speed, err = m.Float64Gauge(
		"atc.speed",
		metric.WithDescription("Vehicle speed"),
		metric.WithUnit("km/h"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating speed gauge: %w", err)
	}

	ms.target, err = m.Float64Gauge(
		"atc.speed.target",
		metric.WithDescription("Effective protection target speed"),
		metric.WithUnit("km/h"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating target gauge: %w", err)
	}

	return &ms, nil
}

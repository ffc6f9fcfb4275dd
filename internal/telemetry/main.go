// Package telemetry exposes process-wide counters for the dispatcher,
// broker and scorer binaries: packages claimed, timed out, and per-path
// analyzer failures. It stays usable with no collector configured by
// falling back to the otel no-op meter provider.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.GetMeterProvider().Meter("wheelbarrow")
var meterLock = sync.Mutex{}
var counters = make(map[string]metric.Int64Counter)
var upDownCounters = make(map[string]metric.Int64UpDownCounter)

const (
	PackagesClaimedCounter  = "wheelbarrow.packages.claimed"
	PackagesDoneCounter     = "wheelbarrow.packages.done"
	PackagesFailedCounter   = "wheelbarrow.packages.failed"
	PackagesTimedOutCounter = "wheelbarrow.packages.timed_out"
	AnalyzerFailuresCounter = "wheelbarrow.analyzer.failures"
	ActiveWorkersGauge      = "wheelbarrow.workers.active"
)

func CreateCounter(name, desc, unit string) error {
	meterLock.Lock()
	defer meterLock.Unlock()

	if _, exists := counters[name]; exists {
		return fmt.Errorf("counter %s already exists", name)
	}

	counter, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		return err
	}

	counters[name] = counter
	return nil
}

func GetCounter(name string) (metric.Int64Counter, error) {
	meterLock.Lock()
	defer meterLock.Unlock()

	if counter, ok := counters[name]; ok {
		return counter, nil
	}

	return nil, fmt.Errorf("counter %s does not exist", name)
}

func CreateUpDownCounter(name, desc, unit string) error {
	meterLock.Lock()
	defer meterLock.Unlock()

	if _, exists := upDownCounters[name]; exists {
		return fmt.Errorf("counter %s already exists", name)
	}

	counter, err := meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		return err
	}

	upDownCounters[name] = counter
	return nil
}

func GetUpDownCounter(name string) (metric.Int64UpDownCounter, error) {
	meterLock.Lock()
	defer meterLock.Unlock()

	if counter, ok := upDownCounters[name]; ok {
		return counter, nil
	}

	return nil, fmt.Errorf("counter %s does not exist", name)
}

// Incr adds delta to the named counter if it has been created,
// silently doing nothing otherwise -- callers that fire counters from
// deep in the broker/dispatcher lifecycle shouldn't have to thread
// CreateCounter errors through every call site.
func Incr(ctx context.Context, name string, delta int64) {
	counter, err := GetCounter(name)
	if err != nil {
		return
	}
	counter.Add(ctx, delta)
}

// IncrUpDown mirrors Incr for up-down counters (e.g. active worker
// gauges), silently doing nothing if name was never created.
func IncrUpDown(ctx context.Context, name string, delta int64) {
	counter, err := GetUpDownCounter(name)
	if err != nil {
		return
	}
	counter.Add(ctx, delta)
}

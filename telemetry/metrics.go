/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	eventsPersistedCounterName    = "eventsourced.events.persisted"
	persistFailuresCounterName    = "eventsourced.persist.failures"
	snapshotsSavedCounterName     = "eventsourced.snapshots.saved"
	snapshotsFailedCounterName    = "eventsourced.snapshots.failed"
	recoveryDurationHistogramName = "eventsourced.recovery.duration"
	recoveryEventsCounterName     = "eventsourced.recovery.events"

	persistenceIDKey = "persistence_id"
)

var nopMeter = noop.NewMeterProvider().Meter(instrumentationName)

// Metrics defines the instruments recording persistence activity
type Metrics struct {
	// counts the events durably appended to the event log
	EventsPersisted metric.Int64Counter
	// counts the failed appends
	PersistFailures metric.Int64Counter
	// counts the snapshots written to the snapshot store
	SnapshotsSaved metric.Int64Counter
	// counts the snapshots that could not be written
	SnapshotsFailed metric.Int64Counter
	// captures the time spent rebuilding the state at startup
	RecoveryDuration metric.Float64Histogram
	// counts the events replayed during recovery
	RecoveryEvents metric.Int64Counter
}

// NewMetrics creates an instance of Metrics
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	metrics := new(Metrics)
	var err error

	if metrics.EventsPersisted, err = meter.Int64Counter(
		eventsPersistedCounterName,
		metric.WithDescription("The total number of events persisted"),
	); err != nil {
		return nil, fmt.Errorf("failed to create events persisted instrument, %w", err)
	}

	if metrics.PersistFailures, err = meter.Int64Counter(
		persistFailuresCounterName,
		metric.WithDescription("The total number of failed event appends"),
	); err != nil {
		return nil, fmt.Errorf("failed to create persist failures instrument, %w", err)
	}

	if metrics.SnapshotsSaved, err = meter.Int64Counter(
		snapshotsSavedCounterName,
		metric.WithDescription("The total number of snapshots saved"),
	); err != nil {
		return nil, fmt.Errorf("failed to create snapshots saved instrument, %w", err)
	}

	if metrics.SnapshotsFailed, err = meter.Int64Counter(
		snapshotsFailedCounterName,
		metric.WithDescription("The total number of snapshots that could not be saved"),
	); err != nil {
		return nil, fmt.Errorf("failed to create snapshots failed instrument, %w", err)
	}

	if metrics.RecoveryDuration, err = meter.Float64Histogram(
		recoveryDurationHistogramName,
		metric.WithDescription("The latency of recovery in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create recovery duration instrument, %w", err)
	}

	if metrics.RecoveryEvents, err = meter.Int64Counter(
		recoveryEventsCounterName,
		metric.WithDescription("The total number of events replayed during recovery"),
	); err != nil {
		return nil, fmt.Errorf("failed to create recovery events instrument, %w", err)
	}

	return metrics, nil
}

// RecordPersisted records a successful append of count events
func (m *Metrics) RecordPersisted(ctx context.Context, persistenceID string, count int) {
	m.EventsPersisted.Add(ctx, int64(count), attributes(persistenceID))
}

// RecordPersistFailure records a failed append
func (m *Metrics) RecordPersistFailure(ctx context.Context, persistenceID string) {
	m.PersistFailures.Add(ctx, 1, attributes(persistenceID))
}

// RecordSnapshot records the outcome of a snapshot write
func (m *Metrics) RecordSnapshot(ctx context.Context, persistenceID string, err error) {
	if err != nil {
		m.SnapshotsFailed.Add(ctx, 1, attributes(persistenceID))
		return
	}
	m.SnapshotsSaved.Add(ctx, 1, attributes(persistenceID))
}

// RecordRecovery records a completed recovery
func (m *Metrics) RecordRecovery(ctx context.Context, persistenceID string, replayed int, elapsed time.Duration) {
	m.RecoveryEvents.Add(ctx, int64(replayed), attributes(persistenceID))
	m.RecoveryDuration.Record(ctx, float64(elapsed)/float64(time.Millisecond), metric.WithAttributes(attribute.String(persistenceIDKey, persistenceID)))
}

func attributes(persistenceID string) metric.AddOption {
	return metric.WithAttributes(attribute.String(persistenceIDKey, persistenceID))
}

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

package actor

import (
	"time"

	"github.com/tochemey/eventsourced/internal/compression"
	"github.com/tochemey/eventsourced/internal/validation"
	"github.com/tochemey/eventsourced/log"
	"github.com/tochemey/eventsourced/telemetry"
)

// Compression names the algorithm applied to snapshot payloads
type Compression = compression.Algorithm

const (
	// NoCompression stores snapshots as marshalled by the state
	NoCompression = compression.None
	// ZstdCompression compresses snapshots with Zstandard
	ZstdCompression = compression.Zstd
	// BrotliCompression compresses snapshots with brotli
	BrotliCompression = compression.Brotli
)

const (
	// DefaultSnapshotRetryDelay is the initial backoff between two snapshot write attempts
	DefaultSnapshotRetryDelay = 100 * time.Millisecond
	// DefaultSnapshotRetryMaxDelay caps the backoff between two snapshot write attempts
	DefaultSnapshotRetryMaxDelay = 2 * time.Second
)

// spawnConfig holds the settings of a persistent actor
type spawnConfig struct {
	logger            log.Logger
	observer          Observer
	snapshotEvery     uint64
	retryAttempts     int
	retryInitialDelay time.Duration
	retryMaxDelay     time.Duration
	compression       Compression
	telemetry         *telemetry.Telemetry
	askTimeout        time.Duration
}

// enforce compilation error
var _ validation.Validator = (*spawnConfig)(nil)

func newSpawnConfig() *spawnConfig {
	return &spawnConfig{
		logger:            log.DefaultLogger,
		retryAttempts:     1,
		retryInitialDelay: DefaultSnapshotRetryDelay,
		retryMaxDelay:     DefaultSnapshotRetryMaxDelay,
		compression:       NoCompression,
	}
}

// Validate checks the settings once every option is applied
func (c *spawnConfig) Validate() error {
	_, compressionErr := compression.ParseAlgorithm(string(c.compression))
	return validation.New(validation.AllErrors()).
		AddAssertion(c.logger != nil, "the logger is required").
		AddAssertion(c.retryAttempts >= 1, "the snapshot retry attempts must be at least 1").
		AddAssertion(c.retryInitialDelay >= 0, "the snapshot retry delay must not be negative").
		AddAssertion(c.retryMaxDelay >= c.retryInitialDelay, "the snapshot retry max delay must not be lower than the initial delay").
		AddAssertion(compressionErr == nil, "the snapshot compression is not supported").
		AddAssertion(c.askTimeout >= 0, "the ask timeout must not be negative").
		Validate()
}

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(config *spawnConfig)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(config *spawnConfig)

// Apply applies the option
func (f OptionFunc) Apply(c *spawnConfig) {
	f(c)
}

// WithLogger sets the actor logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(c *spawnConfig) {
		c.logger = logger
	})
}

// WithObserver sets the observer notified by inspect commands.
// By default the state is written to the logger.
func WithObserver(observer Observer) Option {
	return OptionFunc(func(c *spawnConfig) {
		c.observer = observer
	})
}

// WithSnapshotEvery requests a snapshot every time the sequence number crosses a multiple of n.
// Zero, the default, leaves snapshots to checkpoint commands.
func WithSnapshotEvery(n uint64) Option {
	return OptionFunc(func(c *spawnConfig) {
		c.snapshotEvery = n
	})
}

// WithSnapshotRetry sets the number of attempts of a snapshot write and the exponential backoff between them.
// A single attempt is made by default.
func WithSnapshotRetry(attempts int, initialDelay, maxDelay time.Duration) Option {
	return OptionFunc(func(c *spawnConfig) {
		c.retryAttempts = attempts
		c.retryInitialDelay = initialDelay
		c.retryMaxDelay = maxDelay
	})
}

// WithSnapshotCompression sets the compression applied to snapshot payloads
func WithSnapshotCompression(algorithm Compression) Option {
	return OptionFunc(func(c *spawnConfig) {
		c.compression = algorithm
	})
}

// WithTelemetry sets the OpenTelemetry providers used by the actor
func WithTelemetry(telemetry *telemetry.Telemetry) Option {
	return OptionFunc(func(c *spawnConfig) {
		c.telemetry = telemetry
	})
}

// WithAskTimeout bounds Ask calls made with a context that has no deadline.
// Zero, the default, waits for as long as the context allows.
func WithAskTimeout(timeout time.Duration) Option {
	return OptionFunc(func(c *spawnConfig) {
		c.askTimeout = timeout
	})
}

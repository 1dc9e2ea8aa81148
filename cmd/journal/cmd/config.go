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

package cmd

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/tochemey/eventsourced/actor"
	"github.com/tochemey/eventsourced/internal/compression"
	"github.com/tochemey/eventsourced/internal/validation"
	"github.com/tochemey/eventsourced/log"
	"github.com/tochemey/eventsourced/persistence"
)

// Config is read from the environment
type Config struct {
	Path          string    `env:"JOURNAL_PATH" envDefault:"journal.db"`
	PersistenceID string    `env:"JOURNAL_PERSISTENCE_ID" envDefault:"sample-id-3"`
	LogLevel      log.Level `env:"JOURNAL_LOG_LEVEL" envDefault:"info"`
	SnapshotEvery uint64    `env:"JOURNAL_SNAPSHOT_EVERY" envDefault:"0"`
	Compression   string    `env:"JOURNAL_COMPRESSION" envDefault:"none"`
}

// enforce compilation error
var _ validation.Validator = (*Config)(nil)

// LoadConfig parses the environment into a validated Config
func LoadConfig() (*Config, error) {
	config := new(Config)
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	_, err := compression.ParseAlgorithm(c.Compression)
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("JOURNAL_PATH", c.Path)).
		AddValidator(validation.NewIDValidator(c.PersistenceID)).
		AddAssertion(err == nil, fmt.Sprintf("unsupported compression %q", c.Compression)).
		Validate()
}

// options turns the configuration into actor options
func (c *Config) options(logger log.Logger, observer actor.Observer) []actor.Option {
	algorithm, _ := compression.ParseAlgorithm(c.Compression)
	return []actor.Option{
		actor.WithLogger(logger),
		actor.WithObserver(observer),
		actor.WithSnapshotEvery(c.SnapshotEvery),
		actor.WithSnapshotCompression(algorithm),
	}
}

func (c *Config) persistenceID() persistence.ID {
	return persistence.ID(c.PersistenceID)
}

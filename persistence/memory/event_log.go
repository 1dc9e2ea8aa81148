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

package memory

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	gerrors "github.com/tochemey/eventsourced/errors"
	"github.com/tochemey/eventsourced/persistence"
)

// EventLog is an in-process persistence.EventLog.
// It keeps every event in memory and is meant for tests and local development.
type EventLog struct {
	mu     sync.RWMutex
	events map[persistence.ID][]*persistence.Event
	closed *atomic.Bool
}

// enforce compilation error
var _ persistence.EventLog = (*EventLog)(nil)

// NewEventLog creates an instance of EventLog
func NewEventLog() *EventLog {
	return &EventLog{
		events: make(map[persistence.ID][]*persistence.Event),
		closed: atomic.NewBool(false),
	}
}

// Append stores the batch of events atomically
func (x *EventLog) Append(_ context.Context, events ...*persistence.Event) error {
	if x.closed.Load() {
		return gerrors.ErrStoreClosed
	}

	persistenceID, err := persistence.CheckBatch(events)
	if err != nil || len(events) == 0 {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	stored := x.events[persistenceID]
	if err := persistence.CheckContiguous(uint64(len(stored)), events...); err != nil {
		return err
	}

	for _, event := range events {
		stored = append(stored, event.Clone())
	}
	x.events[persistenceID] = stored
	return nil
}

// ReadFrom returns the events stored after the given sequence number
func (x *EventLog) ReadFrom(ctx context.Context, persistenceID persistence.ID, after uint64) (persistence.EventIterator, error) {
	if x.closed.Load() {
		return nil, gerrors.ErrStoreClosed
	}

	if err := persistenceID.Validate(); err != nil {
		return nil, err
	}

	return persistence.NewPagedIterator(ctx, persistenceID, after, 0, func(_ context.Context, after uint64, _ int) ([]*persistence.Event, error) {
		x.mu.RLock()
		defer x.mu.RUnlock()

		// sequence numbers start at 1 and are gapless so the position of an event is seq-1
		stored := x.events[persistenceID]
		if after >= uint64(len(stored)) {
			return nil, nil
		}

		page := make([]*persistence.Event, 0, uint64(len(stored))-after)
		for _, event := range stored[after:] {
			page = append(page, event.Clone())
		}
		return page, nil
	}), nil
}

// HighestSequenceNr returns the sequence number of the last stored event
func (x *EventLog) HighestSequenceNr(_ context.Context, persistenceID persistence.ID) (uint64, error) {
	if x.closed.Load() {
		return 0, gerrors.ErrStoreClosed
	}

	if err := persistenceID.Validate(); err != nil {
		return 0, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	return uint64(len(x.events[persistenceID])), nil
}

// Close marks the event log as closed. Stored events are kept.
func (x *EventLog) Close(context.Context) error {
	x.closed.Store(true)
	return nil
}

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

package persistence

import (
	"context"
)

// EventLog is the append-only, per persistence id ordered store of events.
//
// Implementations must be safe for concurrent use. A given persistence id is only
// ever written by a single actor at a time.
type EventLog interface {
	// Append durably stores a batch of events belonging to the same persistence id.
	// The batch is all-or-nothing: either every event is stored and becomes visible to
	// subsequent reads, or none is. The first event must carry the highest stored
	// sequence number plus one and the following ones must be contiguous, otherwise
	// the append fails with an out of order sequence error.
	// Appending an empty batch is a no-op.
	Append(ctx context.Context, events ...*Event) error
	// ReadFrom returns the events of the given persistence id whose sequence number is
	// strictly greater than after, in ascending order.
	ReadFrom(ctx context.Context, persistenceID ID, after uint64) (EventIterator, error)
	// HighestSequenceNr returns the sequence number of the last stored event, or zero
	// when the log is empty.
	HighestSequenceNr(ctx context.Context, persistenceID ID) (uint64, error)
	// Close releases the resources held by the event log
	Close(ctx context.Context) error
}

// EventIterator is a finite, non-restartable cursor over a range of events.
//
//	it, err := log.ReadFrom(ctx, id, 0)
//	if err != nil { ... }
//	defer it.Close()
//	for it.Next() {
//		event := it.Event()
//	}
//	if err := it.Err(); err != nil { ... }
type EventIterator interface {
	// Next advances the iterator. It returns false when the range is exhausted or an error occurred.
	Next() bool
	// Event returns the current event
	Event() *Event
	// Err returns the error that stopped the iteration, if any
	Err() error
	// Close releases the resources held by the iterator
	Close() error
}

// ReadAll drains the events of the given persistence id after a sequence number
func ReadAll(ctx context.Context, log EventLog, persistenceID ID, after uint64) ([]*Event, error) {
	it, err := log.ReadFrom(ctx, persistenceID, after)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var events []*Event
	for it.Next() {
		events = append(events, it.Event())
	}
	return events, it.Err()
}

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

	"go.uber.org/multierr"

	gerrors "github.com/tochemey/eventsourced/errors"
)

// PageFunc fetches at most limit events whose sequence number is strictly greater than after,
// in ascending order. A limit of zero means no limit. An empty page ends the iteration.
type PageFunc func(ctx context.Context, after uint64, limit int) ([]*Event, error)

// PagedIterator is an EventIterator that lazily pulls events page by page.
//
// It checks every event it yields: the persistence id must match and the sequence
// number must follow the previous one. A violation stops the iteration and is
// reported by Err as an out of order sequence error.
type PagedIterator struct {
	ctx           context.Context
	persistenceID ID
	cursor        uint64
	pageSize      int
	fetch         PageFunc
	closers       []func() error

	buffer    []*Event
	current   *Event
	err       error
	exhausted bool
	closed    bool
}

// enforce compilation error
var _ EventIterator = (*PagedIterator)(nil)

// NewPagedIterator creates an iterator over the events of persistenceID after the given sequence number.
// When pageSize is zero the whole range is fetched in a single call.
func NewPagedIterator(ctx context.Context, persistenceID ID, after uint64, pageSize int, fetch PageFunc) *PagedIterator {
	return &PagedIterator{
		ctx:           ctx,
		persistenceID: persistenceID,
		cursor:        after,
		pageSize:      pageSize,
		fetch:         fetch,
	}
}

// NewSliceIterator creates an iterator over an in-memory range of events
func NewSliceIterator(persistenceID ID, after uint64, events []*Event) *PagedIterator {
	return NewPagedIterator(context.Background(), persistenceID, after, 0, func(context.Context, uint64, int) ([]*Event, error) {
		return events, nil
	})
}

// OnClose registers a function run when the iterator is closed
func (x *PagedIterator) OnClose(fn func() error) *PagedIterator {
	x.closers = append(x.closers, fn)
	return x
}

// Next advances the iterator
func (x *PagedIterator) Next() bool {
	if x.err != nil || x.closed {
		return false
	}

	for len(x.buffer) == 0 {
		if x.exhausted {
			x.current = nil
			return false
		}

		if err := x.ctx.Err(); err != nil {
			x.err = err
			return false
		}

		page, err := x.fetch(x.ctx, x.cursor, x.pageSize)
		if err != nil {
			x.err = err
			return false
		}

		if len(page) == 0 || x.pageSize <= 0 {
			x.exhausted = true
		}
		x.buffer = page
	}

	event := x.buffer[0]
	x.buffer[0] = nil
	x.buffer = x.buffer[1:]

	if event == nil || event.PersistenceID != x.persistenceID {
		x.err = gerrors.ErrMixedPersistenceIDs
		return false
	}

	if expected := x.cursor + 1; event.SequenceNumber != expected {
		x.err = gerrors.NewErrOutOfOrderSequence(x.persistenceID.String(), expected, event.SequenceNumber)
		return false
	}

	x.cursor = event.SequenceNumber
	x.current = event
	return true
}

// Event returns the current event
func (x *PagedIterator) Event() *Event {
	return x.current
}

// Err returns the error that stopped the iteration
func (x *PagedIterator) Err() error {
	return x.err
}

// Close releases the iterator. It is safe to call more than once.
func (x *PagedIterator) Close() error {
	if x.closed {
		return nil
	}
	x.closed = true
	x.buffer = nil
	x.current = nil

	var err error
	for _, closer := range x.closers {
		err = multierr.Append(err, closer())
	}
	return err
}

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

// Package storetest provides the conformance suite that every EventLog and
// SnapshotStore implementation must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/eventsourced/errors"
	"github.com/tochemey/eventsourced/persistence"
)

// EventLogFactory returns a fresh, empty event log for a sub-test
type EventLogFactory func(t *testing.T) persistence.EventLog

// SnapshotStoreFactory returns a fresh, empty snapshot store for a sub-test
type SnapshotStoreFactory func(t *testing.T) persistence.SnapshotStore

// NewEvents builds count events for persistenceID starting at sequence number from
func NewEvents(persistenceID persistence.ID, from uint64, count int) []*persistence.Event {
	now := time.Now().UTC()
	events := make([]*persistence.Event, 0, count)
	for i := 0; i < count; i++ {
		seq := from + uint64(i)
		events = append(events, &persistence.Event{
			PersistenceID:  persistenceID,
			SequenceNumber: seq,
			Manifest:       "type.googleapis.com/google.protobuf.StringValue",
			Payload:        []byte(fmt.Sprintf("event-%d", seq)),
			Timestamp:      now,
		})
	}
	return events
}

func readAll(t *testing.T, log persistence.EventLog, persistenceID persistence.ID, after uint64) []*persistence.Event {
	t.Helper()
	events, err := persistence.ReadAll(context.Background(), log, persistenceID, after)
	require.NoError(t, err)
	return events
}

func sequenceNumbers(events []*persistence.Event) []uint64 {
	out := make([]uint64, 0, len(events))
	for _, event := range events {
		out = append(out, event.SequenceNumber)
	}
	return out
}

func span(from, to uint64) []uint64 {
	out := make([]uint64, 0, to-from+1)
	for seq := from; seq <= to; seq++ {
		out = append(out, seq)
	}
	return out
}

// RunEventLog runs the event log conformance suite
func RunEventLog(t *testing.T, factory EventLogFactory) {
	ctx := context.Background()
	const persistenceID = persistence.ID("sample-id-3")

	t.Run("With empty log", func(t *testing.T) {
		log := factory(t)
		highest, err := log.HighestSequenceNr(ctx, persistenceID)
		require.NoError(t, err)
		assert.Zero(t, highest)
		assert.Empty(t, readAll(t, log, persistenceID, 0))
	})
	t.Run("With append and read", func(t *testing.T) {
		log := factory(t)
		expected := NewEvents(persistenceID, 1, 3)
		require.NoError(t, log.Append(ctx, expected...))

		highest, err := log.HighestSequenceNr(ctx, persistenceID)
		require.NoError(t, err)
		assert.EqualValues(t, 3, highest)

		actual := readAll(t, log, persistenceID, 0)
		require.Len(t, actual, 3)
		for i, event := range actual {
			assert.Equal(t, expected[i].PersistenceID, event.PersistenceID)
			assert.Equal(t, expected[i].SequenceNumber, event.SequenceNumber)
			assert.Equal(t, expected[i].Manifest, event.Manifest)
			assert.Equal(t, expected[i].Payload, event.Payload)
			assert.WithinDuration(t, expected[i].Timestamp, event.Timestamp, time.Microsecond)
		}
	})
	t.Run("With read strictly after a sequence number", func(t *testing.T) {
		log := factory(t)
		require.NoError(t, log.Append(ctx, NewEvents(persistenceID, 1, 2)...))
		require.NoError(t, log.Append(ctx, NewEvents(persistenceID, 3, 3)...))

		assert.Equal(t, []uint64{3, 4, 5}, sequenceNumbers(readAll(t, log, persistenceID, 2)))
		assert.Equal(t, []uint64{5}, sequenceNumbers(readAll(t, log, persistenceID, 4)))
		assert.Empty(t, readAll(t, log, persistenceID, 5))
		assert.Empty(t, readAll(t, log, persistenceID, 100))
	})
	t.Run("With a long log", func(t *testing.T) {
		log := factory(t)
		var next uint64 = 1
		for _, size := range []int{1, 50, 7, 100, 92} {
			require.NoError(t, log.Append(ctx, NewEvents(persistenceID, next, size)...))
			next += uint64(size)
		}
		assert.Equal(t, span(1, 250), sequenceNumbers(readAll(t, log, persistenceID, 0)))
		assert.Equal(t, span(101, 250), sequenceNumbers(readAll(t, log, persistenceID, 100)))
	})
	t.Run("With empty append", func(t *testing.T) {
		log := factory(t)
		require.NoError(t, log.Append(ctx))
		highest, err := log.HighestSequenceNr(ctx, persistenceID)
		require.NoError(t, err)
		assert.Zero(t, highest)
	})
	t.Run("With a gap", func(t *testing.T) {
		log := factory(t)
		require.NoError(t, log.Append(ctx, NewEvents(persistenceID, 1, 2)...))
		err := log.Append(ctx, NewEvents(persistenceID, 4, 1)...)
		require.ErrorIs(t, err, gerrors.ErrOutOfOrderSequence)
		assert.Equal(t, []uint64{1, 2}, sequenceNumbers(readAll(t, log, persistenceID, 0)))
	})
	t.Run("With a duplicate", func(t *testing.T) {
		log := factory(t)
		require.NoError(t, log.Append(ctx, NewEvents(persistenceID, 1, 2)...))
		err := log.Append(ctx, NewEvents(persistenceID, 2, 2)...)
		require.ErrorIs(t, err, gerrors.ErrOutOfOrderSequence)
		highest, err := log.HighestSequenceNr(ctx, persistenceID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, highest)
	})
	t.Run("With first append not starting at one", func(t *testing.T) {
		log := factory(t)
		require.ErrorIs(t, log.Append(ctx, NewEvents(persistenceID, 2, 1)...), gerrors.ErrOutOfOrderSequence)
		assert.Empty(t, readAll(t, log, persistenceID, 0))
	})
	t.Run("With a gap inside the batch", func(t *testing.T) {
		log := factory(t)
		events := NewEvents(persistenceID, 1, 3)
		events[2].SequenceNumber = 5
		require.ErrorIs(t, log.Append(ctx, events...), gerrors.ErrOutOfOrderSequence)
		assert.Empty(t, readAll(t, log, persistenceID, 0))
	})
	t.Run("With mixed persistence ids", func(t *testing.T) {
		log := factory(t)
		events := NewEvents(persistenceID, 1, 2)
		events[1].PersistenceID = "other"
		require.ErrorIs(t, log.Append(ctx, events...), gerrors.ErrMixedPersistenceIDs)
		assert.Empty(t, readAll(t, log, persistenceID, 0))
		assert.Empty(t, readAll(t, log, "other", 0))
	})
	t.Run("With invalid persistence id", func(t *testing.T) {
		log := factory(t)
		require.ErrorIs(t, log.Append(ctx, NewEvents("not valid", 1, 1)...), gerrors.ErrInvalidPersistenceID)
		_, err := log.ReadFrom(ctx, "not valid", 0)
		require.ErrorIs(t, err, gerrors.ErrInvalidPersistenceID)
		_, err = log.HighestSequenceNr(ctx, "")
		require.ErrorIs(t, err, gerrors.ErrInvalidPersistenceID)
	})
	t.Run("With isolated persistence ids", func(t *testing.T) {
		log := factory(t)
		require.NoError(t, log.Append(ctx, NewEvents("a", 1, 2)...))
		require.NoError(t, log.Append(ctx, NewEvents("b", 1, 5)...))
		// a prefix of another id must not leak into it
		require.NoError(t, log.Append(ctx, NewEvents("a1", 1, 1)...))

		assert.Equal(t, []uint64{1, 2}, sequenceNumbers(readAll(t, log, "a", 0)))
		assert.Equal(t, span(1, 5), sequenceNumbers(readAll(t, log, "b", 0)))
		assert.Equal(t, []uint64{1}, sequenceNumbers(readAll(t, log, "a1", 0)))

		highest, err := log.HighestSequenceNr(ctx, "a")
		require.NoError(t, err)
		assert.EqualValues(t, 2, highest)
	})
	t.Run("With racing writers", func(t *testing.T) {
		log := factory(t)
		require.NoError(t, log.Append(ctx, NewEvents(persistenceID, 1, 1)...))

		const writers = 8
		var (
			wg        sync.WaitGroup
			succeeded = atomic.NewInt32(0)
			rejected  = atomic.NewInt32(0)
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := log.Append(ctx, NewEvents(persistenceID, 2, 2)...)
				switch {
				case err == nil:
					succeeded.Inc()
				case errors.Is(err, gerrors.ErrOutOfOrderSequence):
					rejected.Inc()
				}
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 1, succeeded.Load())
		assert.EqualValues(t, writers-1, rejected.Load())
		assert.Equal(t, []uint64{1, 2, 3}, sequenceNumbers(readAll(t, log, persistenceID, 0)))
	})
	t.Run("With closed log", func(t *testing.T) {
		log := factory(t)
		require.NoError(t, log.Close(ctx))
		require.ErrorIs(t, log.Append(ctx, NewEvents(persistenceID, 1, 1)...), gerrors.ErrStoreClosed)
		_, err := log.ReadFrom(ctx, persistenceID, 0)
		require.ErrorIs(t, err, gerrors.ErrStoreClosed)
		_, err = log.HighestSequenceNr(ctx, persistenceID)
		require.ErrorIs(t, err, gerrors.ErrStoreClosed)
	})
}

// RunSnapshotStore runs the snapshot store conformance suite
func RunSnapshotStore(t *testing.T, factory SnapshotStoreFactory) {
	ctx := context.Background()
	const persistenceID = persistence.ID("sample-id-3")

	snapshot := func(persistenceID persistence.ID, seq uint64) *persistence.Snapshot {
		return &persistence.Snapshot{
			PersistenceID:  persistenceID,
			SequenceNumber: seq,
			Manifest:       "actor.ReceivedState",
			Encoding:       "zstd",
			Payload:        []byte(fmt.Sprintf("state-%d", seq)),
			Timestamp:      time.Now().UTC(),
		}
	}

	t.Run("With no snapshot", func(t *testing.T) {
		store := factory(t)
		actual, err := store.LoadLatest(ctx, persistenceID)
		require.NoError(t, err)
		assert.Nil(t, actual)
	})
	t.Run("With save and load", func(t *testing.T) {
		store := factory(t)
		expected := snapshot(persistenceID, 2)
		require.NoError(t, store.Save(ctx, expected))

		actual, err := store.LoadLatest(ctx, persistenceID)
		require.NoError(t, err)
		require.NotNil(t, actual)
		assert.Equal(t, expected.PersistenceID, actual.PersistenceID)
		assert.Equal(t, expected.SequenceNumber, actual.SequenceNumber)
		assert.Equal(t, expected.Manifest, actual.Manifest)
		assert.Equal(t, expected.Encoding, actual.Encoding)
		assert.Equal(t, expected.Payload, actual.Payload)
		assert.WithinDuration(t, expected.Timestamp, actual.Timestamp, time.Microsecond)
	})
	t.Run("With latest by sequence number", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Save(ctx, snapshot(persistenceID, 2)))
		require.NoError(t, store.Save(ctx, snapshot(persistenceID, 9)))
		// an older snapshot is kept as history and never shadows the latest
		require.NoError(t, store.Save(ctx, snapshot(persistenceID, 5)))

		actual, err := store.LoadLatest(ctx, persistenceID)
		require.NoError(t, err)
		require.NotNil(t, actual)
		assert.EqualValues(t, 9, actual.SequenceNumber)
		assert.Equal(t, []byte("state-9"), actual.Payload)
	})
	t.Run("With isolated persistence ids", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Save(ctx, snapshot("a", 3)))
		require.NoError(t, store.Save(ctx, snapshot("a1", 7)))

		actual, err := store.LoadLatest(ctx, "a")
		require.NoError(t, err)
		require.NotNil(t, actual)
		assert.EqualValues(t, 3, actual.SequenceNumber)

		actual, err = store.LoadLatest(ctx, "b")
		require.NoError(t, err)
		assert.Nil(t, actual)
	})
	t.Run("With invalid persistence id", func(t *testing.T) {
		store := factory(t)
		require.ErrorIs(t, store.Save(ctx, snapshot("not valid", 1)), gerrors.ErrInvalidPersistenceID)
		_, err := store.LoadLatest(ctx, "")
		require.ErrorIs(t, err, gerrors.ErrInvalidPersistenceID)
	})
	t.Run("With closed store", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close(ctx))
		require.ErrorIs(t, store.Save(ctx, snapshot(persistenceID, 1)), gerrors.ErrStoreClosed)
		_, err := store.LoadLatest(ctx, persistenceID)
		require.ErrorIs(t, err, gerrors.ErrStoreClosed)
	})
}

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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/eventsourced/persistence"
	"github.com/tochemey/eventsourced/persistence/storetest"
)

func TestEventLog(t *testing.T) {
	storetest.RunEventLog(t, func(t *testing.T) persistence.EventLog {
		log := NewEventLog()
		t.Cleanup(func() { _ = log.Close(context.Background()) })
		return log
	})
}

func TestSnapshotStore(t *testing.T) {
	storetest.RunSnapshotStore(t, func(t *testing.T) persistence.SnapshotStore {
		store := NewSnapshotStore()
		t.Cleanup(func() { _ = store.Close(context.Background()) })
		return store
	})
}

func TestEventLogIsolation(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog()
	events := storetest.NewEvents("id", 1, 1)
	require.NoError(t, log.Append(ctx, events...))

	// mutating the caller's copy must not alter the stored event
	events[0].Payload[0] = 'X'
	stored, err := persistence.ReadAll(ctx, log, "id", 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, byte('e'), stored[0].Payload[0])
}

func TestSnapshotHistory(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore()
	for _, seq := range []uint64{4, 1, 9, 4} {
		require.NoError(t, store.Save(ctx, &persistence.Snapshot{PersistenceID: "id", SequenceNumber: seq}))
	}
	assert.Equal(t, 3, store.Len("id"))
}

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
	"sort"
	"sync"

	"go.uber.org/atomic"

	gerrors "github.com/tochemey/eventsourced/errors"
	"github.com/tochemey/eventsourced/persistence"
)

// SnapshotStore is an in-process persistence.SnapshotStore.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[persistence.ID][]*persistence.Snapshot
	closed    *atomic.Bool
}

// enforce compilation error
var _ persistence.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates an instance of SnapshotStore
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		snapshots: make(map[persistence.ID][]*persistence.Snapshot),
		closed:    atomic.NewBool(false),
	}
}

// Save stores the snapshot. History is kept ordered by sequence number.
func (x *SnapshotStore) Save(_ context.Context, snapshot *persistence.Snapshot) error {
	if x.closed.Load() {
		return gerrors.ErrStoreClosed
	}

	if err := snapshot.PersistenceID.Validate(); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	items := x.snapshots[snapshot.PersistenceID]
	// a snapshot with the same sequence number replaces the previous one
	idx := sort.Search(len(items), func(i int) bool {
		return items[i].SequenceNumber >= snapshot.SequenceNumber
	})
	if idx < len(items) && items[idx].SequenceNumber == snapshot.SequenceNumber {
		items[idx] = snapshot.Clone()
		return nil
	}

	items = append(items, nil)
	copy(items[idx+1:], items[idx:])
	items[idx] = snapshot.Clone()
	x.snapshots[snapshot.PersistenceID] = items
	return nil
}

// LoadLatest returns the snapshot with the highest sequence number
func (x *SnapshotStore) LoadLatest(_ context.Context, persistenceID persistence.ID) (*persistence.Snapshot, error) {
	if x.closed.Load() {
		return nil, gerrors.ErrStoreClosed
	}

	if err := persistenceID.Validate(); err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	items := x.snapshots[persistenceID]
	if len(items) == 0 {
		return nil, nil
	}
	return items[len(items)-1].Clone(), nil
}

// Len returns the number of snapshots kept for the given persistence id
func (x *SnapshotStore) Len(persistenceID persistence.ID) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.snapshots[persistenceID])
}

// Close marks the snapshot store as closed
func (x *SnapshotStore) Close(context.Context) error {
	x.closed.Store(true)
	return nil
}

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

// SnapshotStore keeps point-in-time copies of actor states.
//
// Stores retain history. LoadLatest always returns the snapshot with the highest
// sequence number, so saving an older snapshot never shadows a newer one.
// Implementations must be safe for concurrent use.
type SnapshotStore interface {
	// Save durably stores the snapshot
	Save(ctx context.Context, snapshot *Snapshot) error
	// LoadLatest returns the snapshot with the highest sequence number for the given
	// persistence id. It returns nil and no error when there is none.
	LoadLatest(ctx context.Context, persistenceID ID) (*Snapshot, error)
	// Close releases the resources held by the snapshot store
	Close(ctx context.Context) error
}

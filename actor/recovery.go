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
	"context"

	"github.com/tochemey/eventsourced/persistence"
)

// recovery is a single step fed to a recovering actor.
// The only implementations are snapshotOffer and eventReplay.
type recovery interface {
	sequenceNr() uint64
}

// snapshotOffer hands over the latest snapshot. It comes first, at most once.
type snapshotOffer struct {
	snapshot *persistence.Snapshot
}

// eventReplay hands over an event persisted after the offered snapshot
type eventReplay struct {
	event *persistence.Event
}

func (s snapshotOffer) sequenceNr() uint64 { return s.snapshot.SequenceNumber }
func (e eventReplay) sequenceNr() uint64   { return e.event.SequenceNumber }

// recoveryStream emits the latest snapshot, if any, followed by every event stored after it in order.
// It stops at the first error returned by emit.
func recoveryStream(ctx context.Context, persistenceID persistence.ID, snapshots persistence.SnapshotStore, events persistence.EventLog, emit func(recovery) error) error {
	snapshot, err := snapshots.LoadLatest(ctx, persistenceID)
	if err != nil {
		return err
	}

	var after uint64
	if snapshot != nil {
		if err := emit(snapshotOffer{snapshot: snapshot}); err != nil {
			return err
		}
		after = snapshot.SequenceNumber
	}

	iterator, err := events.ReadFrom(ctx, persistenceID, after)
	if err != nil {
		return err
	}
	defer iterator.Close()

	for iterator.Next() {
		if err := emit(eventReplay{event: iterator.Event()}); err != nil {
			return err
		}
	}
	return iterator.Err()
}

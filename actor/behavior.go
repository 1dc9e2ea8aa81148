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

	"google.golang.org/protobuf/proto"

	"github.com/tochemey/eventsourced/persistence"
)

// Behavior defines a persistent actor.
type Behavior interface {
	// PersistenceID returns the stable identifier under which the actor events and snapshots are stored.
	PersistenceID() persistence.ID
	// EmptyState returns the state of an actor that has never persisted anything.
	// A fresh instance is expected on every call.
	EmptyState() State
	// HandleCommand validates a domain command against the current state and returns
	// the events to persist. Returning no event leaves the actor unchanged.
	// The state must be treated as read-only: changes only happen through State.Apply
	// once the events are durably stored.
	// An error rejects the command and nothing is persisted.
	HandleCommand(ctx context.Context, command proto.Message, state State) ([]proto.Message, error)
}

// RecoveryHandler is an optional interface a Behavior can implement to be notified
// once the actor has rebuilt its state.
type RecoveryHandler interface {
	// RecoveryCompleted is called once, before any command is handled, with the
	// recovered state and the sequence number of the last event folded into it.
	RecoveryCompleted(ctx context.Context, state State, sequenceNr uint64)
}

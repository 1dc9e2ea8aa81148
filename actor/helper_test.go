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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/tochemey/eventsourced/log"
	"github.com/tochemey/eventsourced/persistence"
)

var errBoom = errors.New("boom")

// failingEventLog rejects appends carrying a given message
type failingEventLog struct {
	persistence.EventLog
	rejected string
}

func (x *failingEventLog) Append(ctx context.Context, events ...*persistence.Event) error {
	for _, event := range events {
		decoded, err := decodeEvent(event)
		if err != nil {
			return err
		}

		if value, ok := decoded.(*wrapperspb.StringValue); ok && value.GetValue() == x.rejected {
			return errBoom
		}
	}
	return x.EventLog.Append(ctx, events...)
}

// failingSnapshotStore fails the first failures saves
type failingSnapshotStore struct {
	persistence.SnapshotStore
	failures *atomic.Int32
	attempts *atomic.Int32
}

func newFailingSnapshotStore(store persistence.SnapshotStore, failures int32) *failingSnapshotStore {
	return &failingSnapshotStore{
		SnapshotStore: store,
		failures:      atomic.NewInt32(failures),
		attempts:      atomic.NewInt32(0),
	}
}

func (x *failingSnapshotStore) Save(ctx context.Context, snapshot *persistence.Snapshot) error {
	x.attempts.Inc()
	if x.failures.Dec() >= 0 {
		return errBoom
	}
	return x.SnapshotStore.Save(ctx, snapshot)
}

// staticEventLog replays a fixed set of events, whatever their numbering
type staticEventLog struct {
	persistence.EventLog
	events  []*persistence.Event
	highest uint64
}

func (x *staticEventLog) ReadFrom(_ context.Context, persistenceID persistence.ID, after uint64) (persistence.EventIterator, error) {
	return persistence.NewSliceIterator(persistenceID, after, x.events), nil
}

func (x *staticEventLog) HighestSequenceNr(context.Context, persistence.ID) (uint64, error) {
	return x.highest, nil
}

// gatedBehavior blocks its commands until the gate is opened
type gatedBehavior struct {
	*ReceivedBehavior
	gate    chan struct{}
	entered chan struct{}
}

func newGatedBehavior(persistenceID persistence.ID) *gatedBehavior {
	return &gatedBehavior{
		ReceivedBehavior: NewReceivedBehavior(persistenceID),
		gate:             make(chan struct{}),
		entered:          make(chan struct{}, 16),
	}
}

func (b *gatedBehavior) HandleCommand(ctx context.Context, command proto.Message, state State) ([]proto.Message, error) {
	b.entered <- struct{}{}
	<-b.gate
	return b.ReceivedBehavior.HandleCommand(ctx, command, state)
}

// panickingBehavior panics on the "panic" message
type panickingBehavior struct {
	*ReceivedBehavior
}

func (b *panickingBehavior) HandleCommand(ctx context.Context, command proto.Message, state State) ([]proto.Message, error) {
	if value, ok := command.(*wrapperspb.StringValue); ok && value.GetValue() == "panic" {
		panic("handler panicked")
	}
	return b.ReceivedBehavior.HandleCommand(ctx, command, state)
}

// explodingState panics when applying the "explode" message
type explodingState struct {
	*ReceivedState
}

func (s *explodingState) Apply(event proto.Message) {
	if value, ok := event.(*wrapperspb.StringValue); ok && value.GetValue() == "explode" {
		panic("apply panicked")
	}
	s.ReceivedState.Apply(event)
}

func (s *explodingState) Copy() State {
	return &explodingState{ReceivedState: s.ReceivedState.Copy().(*ReceivedState)}
}

type explodingBehavior struct {
	*ReceivedBehavior
}

func (b *explodingBehavior) EmptyState() State {
	return &explodingState{ReceivedState: NewReceivedState()}
}

// recordingBehavior records the outcome of the recovery
type recordingBehavior struct {
	*ReceivedBehavior
	mu         sync.Mutex
	calls      int
	recovered  []string
	sequenceNr uint64
}

func (b *recordingBehavior) RecoveryCompleted(_ context.Context, state State, sequenceNr uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.recovered = state.(*ReceivedState).Messages()
	b.sequenceNr = sequenceNr
}

// recordingObserver keeps the states it is notified with
type recordingObserver struct {
	mu     sync.Mutex
	states []State
}

func (o *recordingObserver) Observe(_ context.Context, _ persistence.ID, _ uint64, state State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, state)
}

func (o *recordingObserver) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.states)
}

func spawnReceived(ctx context.Context, t *testing.T, eventLog persistence.EventLog, snapshotStore persistence.SnapshotStore, opts ...Option) *PID {
	t.Helper()
	opts = append([]Option{WithLogger(log.DiscardLogger)}, opts...)
	pid, err := Spawn(ctx, NewReceivedBehavior(DefaultReceivedID), eventLog, snapshotStore, opts...)
	require.NoError(t, err)
	require.NotNil(t, pid)
	return pid
}

func send(ctx context.Context, t *testing.T, pid *PID, messages ...string) *Reply {
	t.Helper()
	var reply *Reply
	for _, message := range messages {
		var (
			err     error
			command = commandFor(message)
		)

		reply, err = pid.Ask(ctx, command)
		require.NoError(t, err)
		require.NotNil(t, reply)
	}
	return reply
}

func commandFor(message string) Command {
	switch message {
	case "print":
		return Inspect()
	case "snap":
		return Checkpoint()
	default:
		return Domain(wrapperspb.String(message))
	}
}

func messagesOf(t *testing.T, reply *Reply) []string {
	t.Helper()
	state, ok := reply.State.(*ReceivedState)
	require.True(t, ok)
	return state.Messages()
}

func shutdown(ctx context.Context, t *testing.T, pid *PID) {
	t.Helper()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, pid.Shutdown(ctx))
}

// foldEvents replays the given messages on an empty ReceivedState
func foldEvents(messages ...string) *ReceivedState {
	state := NewReceivedState()
	for _, message := range messages {
		state.Apply(wrapperspb.String(message))
	}
	return state
}

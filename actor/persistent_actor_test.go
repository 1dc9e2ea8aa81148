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
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	gerrors "github.com/tochemey/eventsourced/errors"
	"github.com/tochemey/eventsourced/log"
	"github.com/tochemey/eventsourced/persistence"
	"github.com/tochemey/eventsourced/persistence/memory"
)

func TestPersistentActor(t *testing.T) {
	t.Run("with empty recovery", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		eventLog := memory.NewEventLog()
		snapshotStore := memory.NewSnapshotStore()

		pid := spawnReceived(ctx, t, eventLog, snapshotStore)
		reply := send(ctx, t, pid, "print")
		assert.Zero(t, reply.SequenceNr)
		assert.Empty(t, messagesOf(t, reply))
		assert.Zero(t, reply.Persisted)

		shutdown(ctx, t, pid)
	})
	t.Run("with snapshot and restart", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		eventLog := memory.NewEventLog()
		snapshotStore := memory.NewSnapshotStore()

		pid := spawnReceived(ctx, t, eventLog, snapshotStore)
		reply := send(ctx, t, pid, "a", "b", "snap", "c")
		assert.EqualValues(t, 3, reply.SequenceNr)
		assert.Equal(t, []string{"a", "b", "c"}, messagesOf(t, reply))
		shutdown(ctx, t, pid)

		snapshot, err := snapshotStore.LoadLatest(ctx, DefaultReceivedID)
		require.NoError(t, err)
		require.NotNil(t, snapshot)
		assert.EqualValues(t, 2, snapshot.SequenceNumber)

		// restart
		pid = spawnReceived(ctx, t, eventLog, snapshotStore)
		reply = send(ctx, t, pid, "print")
		assert.EqualValues(t, 3, reply.SequenceNr)
		assert.Equal(t, []string{"a", "b", "c"}, messagesOf(t, reply))
		assert.Equal(t, "[a b c]", reply.State.(*ReceivedState).String())

		// the next event follows the recovered ones
		reply = send(ctx, t, pid, "d")
		assert.EqualValues(t, 4, reply.SequenceNr)
		shutdown(ctx, t, pid)

		events, err := persistence.ReadAll(ctx, eventLog, DefaultReceivedID, 0)
		require.NoError(t, err)
		require.Len(t, events, 4)
	})
	t.Run("with failing append", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		eventLog := memory.NewEventLog()
		snapshotStore := memory.NewSnapshotStore()
		failing := &failingEventLog{EventLog: eventLog, rejected: "d"}

		pid := spawnReceived(ctx, t, failing, snapshotStore)
		send(ctx, t, pid, "a", "b", "c")

		reply, err := pid.Ask(ctx, Domain(wrapperspb.String("d")))
		require.Error(t, err)
		assert.Nil(t, reply)
		assert.ErrorIs(t, err, gerrors.ErrPersistFailure)
		assert.ErrorIs(t, err, errBoom)

		// nothing moved
		reply = send(ctx, t, pid, "print")
		assert.EqualValues(t, 3, reply.SequenceNr)
		assert.Equal(t, []string{"a", "b", "c"}, messagesOf(t, reply))

		highest, err := eventLog.HighestSequenceNr(ctx, DefaultReceivedID)
		require.NoError(t, err)
		assert.EqualValues(t, 3, highest)

		// the actor keeps working after a failed persist
		reply = send(ctx, t, pid, "e")
		assert.EqualValues(t, 4, reply.SequenceNr)
		assert.Equal(t, []string{"a", "b", "c", "e"}, messagesOf(t, reply))
		shutdown(ctx, t, pid)
	})
	t.Run("with rejected command", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		eventLog := memory.NewEventLog()

		pid := spawnReceived(ctx, t, eventLog, memory.NewSnapshotStore())
		reply, err := pid.Ask(ctx, Domain(wrapperspb.Int32(1)))
		require.Error(t, err)
		assert.Nil(t, reply)
		assert.NotErrorIs(t, err, gerrors.ErrPersistFailure)

		reply, err = pid.Ask(ctx, Domain(nil))
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrUnhandled)
		assert.Nil(t, reply)

		reply, err = pid.Ask(ctx, Command{})
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrUnhandled)
		assert.Nil(t, reply)

		highest, err := eventLog.HighestSequenceNr(ctx, DefaultReceivedID)
		require.NoError(t, err)
		assert.Zero(t, highest)
		shutdown(ctx, t, pid)
	})
	t.Run("with empty message", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		eventLog := memory.NewEventLog()
		snapshotStore := memory.NewSnapshotStore()

		pid := spawnReceived(ctx, t, eventLog, snapshotStore)
		reply := send(ctx, t, pid, "a", "", "snap", "")
		assert.EqualValues(t, 3, reply.SequenceNr)
		assert.Equal(t, 1, reply.Persisted)
		shutdown(ctx, t, pid)

		pid = spawnReceived(ctx, t, eventLog, snapshotStore)
		reply = send(ctx, t, pid, "print")
		assert.Equal(t, []string{"a", "", ""}, messagesOf(t, reply))
		assert.Equal(t, "[a  ]", reply.State.(*ReceivedState).String())
		shutdown(ctx, t, pid)
	})
	t.Run("with deterministic recovery", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		eventLog := memory.NewEventLog()
		snapshotStore := memory.NewSnapshotStore()

		messages := []string{"a", "b", "c", "d", "e", "f", "g"}
		pid := spawnReceived(ctx, t, eventLog, snapshotStore)
		send(ctx, t, pid, messages...)
		shutdown(ctx, t, pid)

		for i := 0; i < 3; i++ {
			pid := spawnReceived(ctx, t, eventLog, snapshotStore)
			reply := send(ctx, t, pid, "print")
			assert.EqualValues(t, len(messages), reply.SequenceNr)
			assert.Equal(t, messages, messagesOf(t, reply))
			shutdown(ctx, t, pid)
		}
	})
	t.Run("with snapshot at every position", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		messages := []string{"a", "b", "c", "d", "e", "f"}
		events, err := encodeEvents(DefaultReceivedID, 1, toEvents(messages), time.Now().UTC())
		require.NoError(t, err)

		for k := 0; k <= len(messages); k++ {
			eventLog := memory.NewEventLog()
			snapshotStore := memory.NewSnapshotStore()
			require.NoError(t, eventLog.Append(ctx, events...))

			if k > 0 {
				snapshot, err := encodeSnapshot(DefaultReceivedID, uint64(k), foldEvents(messages[:k]...), ZstdCompression, time.Now().UTC())
				require.NoError(t, err)
				require.NoError(t, snapshotStore.Save(ctx, snapshot))
			}

			pid := spawnReceived(ctx, t, eventLog, snapshotStore)
			reply := send(ctx, t, pid, "print")
			assert.EqualValues(t, len(messages), reply.SequenceNr, "snapshot at %d", k)
			assert.Equal(t, messages, messagesOf(t, reply), "snapshot at %d", k)
			shutdown(ctx, t, pid)
		}
	})
	t.Run("with gapless concurrent commands", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		eventLog := memory.NewEventLog()
		pid := spawnReceived(ctx, t, eventLog, memory.NewSnapshotStore())

		const senders, perSender = 8, 25
		eg, ctx := errgroup.WithContext(ctx)
		for i := 0; i < senders; i++ {
			eg.Go(func() error {
				for j := 0; j < perSender; j++ {
					command := Domain(wrapperspb.String(fmt.Sprintf("%d-%d", i, j)))
					if _, err := pid.Ask(ctx, command); err != nil {
						return err
					}
				}
				return nil
			})
		}
		require.NoError(t, eg.Wait())

		ctx = context.TODO()
		reply := send(ctx, t, pid, "print")
		assert.EqualValues(t, senders*perSender, reply.SequenceNr)
		assert.Len(t, messagesOf(t, reply), senders*perSender)
		shutdown(ctx, t, pid)

		events, err := persistence.ReadAll(ctx, eventLog, DefaultReceivedID, 0)
		require.NoError(t, err)
		require.Len(t, events, senders*perSender)
		for i, event := range events {
			assert.EqualValues(t, i+1, event.SequenceNumber)
		}
	})
	t.Run("with concurrent asks and checkpoints", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		const rounds, senders, perSender = 20, 8, 20

		for round := 0; round < rounds; round++ {
			eventLog := memory.NewEventLog()
			snapshotStore := memory.NewSnapshotStore()
			pid := spawnReceived(ctx, t, eventLog, snapshotStore)

			eg, egCtx := errgroup.WithContext(ctx)
			for i := 0; i < senders; i++ {
				eg.Go(func() error {
					for j := 0; j < perSender; j++ {
						if _, err := pid.Ask(egCtx, Domain(wrapperspb.String(fmt.Sprintf("%d-%d", i, j)))); err != nil {
							return err
						}
						if err := pid.Tell(egCtx, Checkpoint()); err != nil {
							return err
						}
					}
					return nil
				})
			}
			require.NoError(t, eg.Wait())
			shutdown(ctx, t, pid)

			// the last checkpoint follows every persisted event
			snapshot, err := snapshotStore.LoadLatest(ctx, DefaultReceivedID)
			require.NoError(t, err)
			require.NotNil(t, snapshot)
			assert.EqualValues(t, senders*perSender, snapshot.SequenceNumber)

			highest, err := eventLog.HighestSequenceNr(ctx, DefaultReceivedID)
			require.NoError(t, err)
			assert.EqualValues(t, senders*perSender, highest)
		}
	})
	t.Run("with checkpoint before any event", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		buffer := new(bytes.Buffer)
		logger := log.NewZap(log.DebugLevel, buffer)
		snapshotStore := memory.NewSnapshotStore()

		pid, err := Spawn(ctx, NewReceivedBehavior(DefaultReceivedID), memory.NewEventLog(), snapshotStore, WithLogger(logger))
		require.NoError(t, err)

		reply := send(ctx, t, pid, "snap")
		assert.Zero(t, reply.SequenceNr)
		shutdown(ctx, t, pid)

		assert.Zero(t, snapshotStore.Len(DefaultReceivedID))
		require.NoError(t, logger.Flush())
		assert.Contains(t, buffer.String(), "checkpoint ignored: no event persisted yet")
	})
	t.Run("with tell", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		pid := spawnReceived(ctx, t, memory.NewEventLog(), memory.NewSnapshotStore())

		require.NoError(t, pid.Tell(ctx, commandFor("a")))
		// a rejected command is logged and does not stop the following ones
		require.NoError(t, pid.Tell(ctx, Domain(wrapperspb.Int32(1))))
		require.NoError(t, pid.Tell(ctx, commandFor("b")))

		// commands are handled in order so the ask observes every tell
		reply := send(ctx, t, pid, "print")
		assert.Equal(t, []string{"a", "b"}, messagesOf(t, reply))
		shutdown(ctx, t, pid)
	})
	t.Run("with inspect observer", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		observer := new(recordingObserver)
		pid := spawnReceived(ctx, t, memory.NewEventLog(), memory.NewSnapshotStore(), WithObserver(observer))

		send(ctx, t, pid, "a", "print", "b", "print")
		require.Equal(t, 2, observer.Len())

		// observed states are independent copies
		first := observer.states[0].(*ReceivedState)
		assert.Equal(t, []string{"a"}, first.Messages())
		first.Apply(wrapperspb.String("mutated"))

		reply := send(ctx, t, pid, "print")
		assert.Equal(t, []string{"a", "b"}, messagesOf(t, reply))
		shutdown(ctx, t, pid)
	})
	t.Run("with reply state copy", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		pid := spawnReceived(ctx, t, memory.NewEventLog(), memory.NewSnapshotStore())

		reply := send(ctx, t, pid, "a")
		reply.State.Apply(wrapperspb.String("mutated"))

		reply = send(ctx, t, pid, "print")
		assert.Equal(t, []string{"a"}, messagesOf(t, reply))
		shutdown(ctx, t, pid)
	})
	t.Run("with recovery handler", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		eventLog := memory.NewEventLog()
		snapshotStore := memory.NewSnapshotStore()

		pid := spawnReceived(ctx, t, eventLog, snapshotStore)
		send(ctx, t, pid, "a", "b")
		shutdown(ctx, t, pid)

		behavior := &recordingBehavior{ReceivedBehavior: NewReceivedBehavior(DefaultReceivedID)}
		pid, err := Spawn(ctx, behavior, eventLog, snapshotStore, WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		assert.Equal(t, 1, behavior.calls)
		assert.Equal(t, []string{"a", "b"}, behavior.recovered)
		assert.EqualValues(t, 2, behavior.sequenceNr)
		shutdown(ctx, t, pid)
	})
	t.Run("with auto snapshot", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		eventLog := memory.NewEventLog()
		snapshotStore := memory.NewSnapshotStore()

		pid := spawnReceived(ctx, t, eventLog, snapshotStore, WithSnapshotEvery(3), WithSnapshotCompression(BrotliCompression))
		send(ctx, t, pid, "a", "b", "c", "d", "e", "f", "g")
		shutdown(ctx, t, pid)

		snapshot, err := snapshotStore.LoadLatest(ctx, DefaultReceivedID)
		require.NoError(t, err)
		require.NotNil(t, snapshot)
		assert.EqualValues(t, 6, snapshot.SequenceNumber)
		assert.Equal(t, string(BrotliCompression), snapshot.Encoding)

		pid = spawnReceived(ctx, t, eventLog, snapshotStore)
		reply := send(ctx, t, pid, "print")
		assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g"}, messagesOf(t, reply))
		shutdown(ctx, t, pid)
	})
	t.Run("with failing snapshot", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		eventLog := memory.NewEventLog()
		snapshotStore := memory.NewSnapshotStore()
		failing := newFailingSnapshotStore(snapshotStore, 1)

		pid := spawnReceived(ctx, t, eventLog, failing)
		reply := send(ctx, t, pid, "a", "snap", "b")
		assert.EqualValues(t, 2, reply.SequenceNr)
		shutdown(ctx, t, pid)

		// the failure leaves the actor and its log untouched
		assert.EqualValues(t, 1, failing.attempts.Load())
		assert.Zero(t, snapshotStore.Len(DefaultReceivedID))

		pid = spawnReceived(ctx, t, eventLog, snapshotStore)
		reply = send(ctx, t, pid, "print")
		assert.Equal(t, []string{"a", "b"}, messagesOf(t, reply))
		shutdown(ctx, t, pid)
	})
	t.Run("with snapshot retry", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		snapshotStore := memory.NewSnapshotStore()
		failing := newFailingSnapshotStore(snapshotStore, 2)

		pid := spawnReceived(ctx, t, memory.NewEventLog(), failing, WithSnapshotRetry(3, time.Millisecond, 5*time.Millisecond))
		send(ctx, t, pid, "a", "snap")
		shutdown(ctx, t, pid)

		assert.EqualValues(t, 3, failing.attempts.Load())
		assert.Equal(t, 1, snapshotStore.Len(DefaultReceivedID))
	})
	t.Run("with dead actor", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		pid := spawnReceived(ctx, t, memory.NewEventLog(), memory.NewSnapshotStore())
		assert.True(t, pid.IsRunning())
		assert.NotEmpty(t, pid.ID())
		assert.Equal(t, DefaultReceivedID, pid.PersistenceID())

		shutdown(ctx, t, pid)
		assert.False(t, pid.IsRunning())
		// shutting down twice is fine
		require.NoError(t, pid.Shutdown(ctx))

		reply, err := pid.Ask(ctx, Inspect())
		require.ErrorIs(t, err, gerrors.ErrDead)
		assert.Nil(t, reply)
		require.ErrorIs(t, pid.Tell(ctx, Inspect()), gerrors.ErrDead)
	})
	t.Run("with shutdown draining queued commands", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		eventLog := memory.NewEventLog()
		behavior := newGatedBehavior(DefaultReceivedID)
		pid, err := Spawn(ctx, behavior, eventLog, memory.NewSnapshotStore(), WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		require.NoError(t, pid.Tell(ctx, commandFor("a")))
		require.NoError(t, pid.Tell(ctx, commandFor("b")))
		<-behavior.entered

		stopped := make(chan error, 1)
		go func() { stopped <- pid.Shutdown(ctx) }()

		require.Eventually(t, func() bool { return !pid.IsRunning() }, time.Second, 5*time.Millisecond)
		require.ErrorIs(t, pid.Tell(ctx, commandFor("c")), gerrors.ErrDead)

		close(behavior.gate)
		require.NoError(t, <-stopped)

		highest, err := eventLog.HighestSequenceNr(ctx, DefaultReceivedID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, highest)
	})
	t.Run("with ask timeout", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		behavior := newGatedBehavior(DefaultReceivedID)
		pid, err := Spawn(ctx, behavior, memory.NewEventLog(), memory.NewSnapshotStore(),
			WithLogger(log.DiscardLogger),
			WithAskTimeout(50*time.Millisecond))
		require.NoError(t, err)

		reply, err := pid.Ask(ctx, commandFor("a"))
		require.ErrorIs(t, err, gerrors.ErrRequestTimeout)
		assert.Nil(t, reply)

		// the timed out command is still handled
		close(behavior.gate)
		askCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		reply, err = pid.Ask(askCtx, Inspect())
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, messagesOf(t, reply))
		shutdown(ctx, t, pid)
	})
	t.Run("with panicking handler", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		behavior := &panickingBehavior{ReceivedBehavior: NewReceivedBehavior(DefaultReceivedID)}
		pid, err := Spawn(ctx, behavior, memory.NewEventLog(), memory.NewSnapshotStore(), WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		send(ctx, t, pid, "a")
		reply, err := pid.Ask(ctx, commandFor("panic"))
		require.Error(t, err)
		assert.Nil(t, reply)
		var panicErr *gerrors.PanicError
		assert.ErrorAs(t, err, &panicErr)

		// nothing was stored so the actor goes on
		reply = send(ctx, t, pid, "b")
		assert.Equal(t, []string{"a", "b"}, messagesOf(t, reply))
		shutdown(ctx, t, pid)
	})
	t.Run("with panicking apply", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		eventLog := memory.NewEventLog()
		behavior := &explodingBehavior{ReceivedBehavior: NewReceivedBehavior(DefaultReceivedID)}
		pid, err := Spawn(ctx, behavior, eventLog, memory.NewSnapshotStore(), WithLogger(log.DiscardLogger))
		require.NoError(t, err)

		send(ctx, t, pid, "a")
		_, err = pid.Ask(ctx, commandFor("explode"))
		var panicErr *gerrors.PanicError
		require.ErrorAs(t, err, &panicErr)

		// the event is stored but not applied
		assert.False(t, pid.IsRunning())
		_, err = pid.Ask(ctx, Inspect())
		require.ErrorIs(t, err, gerrors.ErrDead)

		highest, err := eventLog.HighestSequenceNr(ctx, DefaultReceivedID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, highest)
		shutdown(ctx, t, pid)

		// replaying the same event fails the recovery
		_, err = Spawn(ctx, behavior, eventLog, memory.NewSnapshotStore(), WithLogger(log.DiscardLogger))
		require.ErrorIs(t, err, gerrors.ErrRecoveryFailure)
		assert.ErrorAs(t, err, &panicErr)
	})
}

func TestRecoveryFailure(t *testing.T) {
	t.Run("with corrupt snapshot payload", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		snapshotStore := memory.NewSnapshotStore()
		require.NoError(t, snapshotStore.Save(ctx, &persistence.Snapshot{
			PersistenceID:  DefaultReceivedID,
			SequenceNumber: 1,
			Manifest:       stateManifest(NewReceivedState()),
			Encoding:       string(ZstdCompression),
			Payload:        []byte("not zstd"),
		}))

		_, err := Spawn(ctx, NewReceivedBehavior(DefaultReceivedID), memory.NewEventLog(), snapshotStore, WithLogger(log.DiscardLogger))
		require.ErrorIs(t, err, gerrors.ErrRecoveryFailure)
		assert.ErrorIs(t, err, gerrors.ErrCorruptRecord)
	})
	t.Run("with snapshot of another state", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		snapshotStore := memory.NewSnapshotStore()
		require.NoError(t, snapshotStore.Save(ctx, &persistence.Snapshot{
			PersistenceID:  DefaultReceivedID,
			SequenceNumber: 1,
			Manifest:       "*other.State",
		}))

		_, err := Spawn(ctx, NewReceivedBehavior(DefaultReceivedID), memory.NewEventLog(), snapshotStore, WithLogger(log.DiscardLogger))
		require.ErrorIs(t, err, gerrors.ErrRecoveryFailure)
		assert.ErrorIs(t, err, gerrors.ErrCorruptRecord)
	})
	t.Run("with snapshot ahead of the log", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		snapshotStore := memory.NewSnapshotStore()
		snapshot, err := encodeSnapshot(DefaultReceivedID, 5, foldEvents("a"), NoCompression, time.Now())
		require.NoError(t, err)
		require.NoError(t, snapshotStore.Save(ctx, snapshot))

		_, err = Spawn(ctx, NewReceivedBehavior(DefaultReceivedID), memory.NewEventLog(), snapshotStore, WithLogger(log.DiscardLogger))
		require.ErrorIs(t, err, gerrors.ErrRecoveryFailure)
		assert.ErrorIs(t, err, gerrors.ErrOutOfOrderSequence)
	})
	t.Run("with gap in the log", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		events, err := encodeEvents(DefaultReceivedID, 1, toEvents([]string{"a", "b", "c"}), time.Now())
		require.NoError(t, err)
		events[2].SequenceNumber = 4

		eventLog := &staticEventLog{EventLog: memory.NewEventLog(), events: events, highest: 4}
		_, err = Spawn(ctx, NewReceivedBehavior(DefaultReceivedID), eventLog, memory.NewSnapshotStore(), WithLogger(log.DiscardLogger))
		require.ErrorIs(t, err, gerrors.ErrRecoveryFailure)
		assert.ErrorIs(t, err, gerrors.ErrOutOfOrderSequence)
	})
	t.Run("with unknown event type", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		eventLog := memory.NewEventLog()
		require.NoError(t, eventLog.Append(ctx, &persistence.Event{
			PersistenceID:  DefaultReceivedID,
			SequenceNumber: 1,
			Manifest:       "type.googleapis.com/unknown.Event",
			Payload:        []byte{},
		}))

		_, err := Spawn(ctx, NewReceivedBehavior(DefaultReceivedID), eventLog, memory.NewSnapshotStore(), WithLogger(log.DiscardLogger))
		require.ErrorIs(t, err, gerrors.ErrRecoveryFailure)
		assert.ErrorIs(t, err, gerrors.ErrCorruptRecord)
	})
	t.Run("with closed store", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ctx := context.TODO()
		snapshotStore := memory.NewSnapshotStore()
		require.NoError(t, snapshotStore.Close(ctx))

		_, err := Spawn(ctx, NewReceivedBehavior(DefaultReceivedID), memory.NewEventLog(), snapshotStore, WithLogger(log.DiscardLogger))
		require.ErrorIs(t, err, gerrors.ErrRecoveryFailure)
		assert.ErrorIs(t, err, gerrors.ErrStoreClosed)
	})
}

func TestSpawnValidation(t *testing.T) {
	ctx := context.TODO()
	eventLog := memory.NewEventLog()
	snapshotStore := memory.NewSnapshotStore()

	_, err := Spawn(ctx, nil, eventLog, snapshotStore)
	assert.ErrorIs(t, err, gerrors.ErrUndefinedBehavior)

	_, err = Spawn(ctx, NewReceivedBehavior(""), nil, snapshotStore)
	assert.ErrorIs(t, err, gerrors.ErrUndefinedEventLog)

	_, err = Spawn(ctx, NewReceivedBehavior(""), eventLog, nil)
	assert.ErrorIs(t, err, gerrors.ErrUndefinedSnapshotStore)

	_, err = Spawn(ctx, NewReceivedBehavior("not valid"), eventLog, snapshotStore)
	assert.ErrorIs(t, err, gerrors.ErrInvalidPersistenceID)

	_, err = Spawn(ctx, NewReceivedBehavior(""), eventLog, snapshotStore, WithSnapshotCompression("lz4"))
	assert.Error(t, err)

	_, err = Spawn(ctx, NewReceivedBehavior(""), eventLog, snapshotStore, WithSnapshotRetry(0, 0, 0))
	assert.Error(t, err)
}

func toEvents(messages []string) []proto.Message {
	events := make([]proto.Message, 0, len(messages))
	for _, message := range messages {
		events = append(events, wrapperspb.String(message))
	}
	return events
}

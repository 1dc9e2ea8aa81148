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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	gerrors "github.com/tochemey/eventsourced/errors"
	"github.com/tochemey/eventsourced/persistence"
)

func TestEventCodec(t *testing.T) {
	timestamp := time.Now().UTC()
	events := []proto.Message{wrapperspb.String("a"), durationpb.New(time.Second)}

	records, err := encodeEvents(DefaultReceivedID, 7, events, timestamp)
	require.NoError(t, err)
	require.Len(t, records, 2)

	for i, record := range records {
		assert.Equal(t, DefaultReceivedID, record.PersistenceID)
		assert.EqualValues(t, 7+i, record.SequenceNumber)
		assert.Equal(t, timestamp, record.Timestamp)

		decoded, err := decodeEvent(record)
		require.NoError(t, err)
		assert.True(t, proto.Equal(events[i], decoded))
	}
	assert.Equal(t, "type.googleapis.com/google.protobuf.StringValue", records[0].Manifest)

	_, err = encodeEvents(DefaultReceivedID, 1, []proto.Message{nil}, timestamp)
	assert.Error(t, err)

	records[0].Payload = []byte{0xff, 0xff}
	_, err = decodeEvent(records[0])
	assert.ErrorIs(t, err, gerrors.ErrCorruptRecord)
}

func TestSnapshotCodec(t *testing.T) {
	for _, algorithm := range []Compression{NoCompression, ZstdCompression, BrotliCompression} {
		t.Run(algorithm.String(), func(t *testing.T) {
			state := foldEvents("a", "b", "c")
			snapshot, err := encodeSnapshot(DefaultReceivedID, 3, state, algorithm, time.Now().UTC())
			require.NoError(t, err)
			assert.Equal(t, "*actor.ReceivedState", snapshot.Manifest)
			assert.Equal(t, string(algorithm), snapshot.Encoding)

			restored := NewReceivedState()
			require.NoError(t, decodeSnapshot(snapshot, restored))
			assert.Equal(t, state.Messages(), restored.Messages())
		})
	}

	t.Run("with corrupt payload", func(t *testing.T) {
		snapshot := &persistence.Snapshot{
			PersistenceID:  DefaultReceivedID,
			SequenceNumber: 1,
			Manifest:       stateManifest(NewReceivedState()),
			Payload:        []byte{0xff, 0xff, 0xff},
		}
		err := decodeSnapshot(snapshot, NewReceivedState())
		assert.ErrorIs(t, err, gerrors.ErrCorruptRecord)
	})
}

func TestCommand(t *testing.T) {
	assert.Equal(t, InspectCommand, Inspect().Kind())
	assert.Nil(t, Inspect().Payload())
	assert.Equal(t, CheckpointCommand, Checkpoint().Kind())

	payload := wrapperspb.String("a")
	command := Domain(payload)
	assert.Equal(t, DomainCommand, command.Kind())
	assert.Same(t, payload, command.Payload())

	assert.Equal(t, "inspect", InspectCommand.String())
	assert.Equal(t, "checkpoint", CheckpointCommand.String())
	assert.Equal(t, "domain", DomainCommand.String())
	assert.Equal(t, "unknown", CommandKind(0).String())
}

func TestReceivedState(t *testing.T) {
	state := NewReceivedState()
	assert.Equal(t, "[]", state.String())
	assert.Zero(t, state.Size())

	state.Apply(wrapperspb.String("a"))
	state.Apply(wrapperspb.Int32(42))
	state.Apply(wrapperspb.String("b"))
	assert.Equal(t, []string{"a", "b"}, state.Messages())
	assert.Equal(t, "[a b]", state.String())

	clone := state.Copy().(*ReceivedState)
	clone.Apply(wrapperspb.String("c"))
	assert.Equal(t, 2, state.Size())
	assert.Equal(t, 3, clone.Size())

	data, err := clone.MarshalBinary()
	require.NoError(t, err)
	restored := NewReceivedState("stale")
	require.NoError(t, restored.UnmarshalBinary(data))
	assert.Equal(t, []string{"a", "b", "c"}, restored.Messages())

	assert.Error(t, restored.UnmarshalBinary([]byte{0xff, 0xff}))
}

func TestReceivedBehavior(t *testing.T) {
	behavior := NewReceivedBehavior("")
	assert.Equal(t, DefaultReceivedID, behavior.PersistenceID())
	assert.Equal(t, persistence.ID("custom"), NewReceivedBehavior("custom").PersistenceID())

	events, err := behavior.HandleCommand(context.TODO(), wrapperspb.String("a"), behavior.EmptyState())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, proto.Equal(wrapperspb.String("a"), events[0]))

	events, err = behavior.HandleCommand(context.TODO(), wrapperspb.String(""), behavior.EmptyState())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, proto.Equal(wrapperspb.String(""), events[0]))

	_, err = behavior.HandleCommand(context.TODO(), wrapperspb.Int32(1), behavior.EmptyState())
	assert.Error(t, err)
}

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

package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/tochemey/eventsourced/errors"
	"github.com/tochemey/eventsourced/persistence"
)

func TestEventRecord(t *testing.T) {
	ts := time.Now().UTC()
	expected := &persistence.Event{
		PersistenceID:  "sample-id-3",
		SequenceNumber: 42,
		Manifest:       "google.protobuf.StringValue",
		Payload:        []byte("payload"),
		Timestamp:      ts,
	}

	data, err := EncodeEvent(expected)
	require.NoError(t, err)

	actual, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, expected.PersistenceID, actual.PersistenceID)
	assert.Equal(t, expected.SequenceNumber, actual.SequenceNumber)
	assert.Equal(t, expected.Manifest, actual.Manifest)
	assert.Equal(t, expected.Payload, actual.Payload)
	assert.True(t, ts.Equal(actual.Timestamp))
}

func TestBatchRecord(t *testing.T) {
	events := []*persistence.Event{
		{PersistenceID: "id", SequenceNumber: 1, Payload: []byte("a")},
		{PersistenceID: "id", SequenceNumber: 2, Payload: []byte("b")},
	}

	data, err := EncodeBatch(events)
	require.NoError(t, err)

	actual, err := DecodeBatch(data)
	require.NoError(t, err)
	require.Len(t, actual, 2)
	assert.EqualValues(t, 2, actual[1].SequenceNumber)
	assert.Equal(t, []byte("b"), actual[1].Payload)
}

func TestSnapshotRecord(t *testing.T) {
	expected := &persistence.Snapshot{
		PersistenceID:  "id",
		SequenceNumber: 7,
		Manifest:       "state",
		Encoding:       "zstd",
		Payload:        []byte("state"),
		Timestamp:      time.Unix(0, 1000).UTC(),
	}

	data, err := EncodeSnapshot(expected)
	require.NoError(t, err)

	actual, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
}

func TestCorruptRecord(t *testing.T) {
	data, err := EncodeEvent(&persistence.Event{PersistenceID: "id", SequenceNumber: 1, Payload: []byte("a")})
	require.NoError(t, err)

	t.Run("With flipped byte", func(t *testing.T) {
		corrupted := append([]byte(nil), data...)
		corrupted[len(corrupted)-2] ^= 0xFF
		_, err := DecodeEvent(corrupted)
		require.ErrorIs(t, err, gerrors.ErrCorruptRecord)
	})
	t.Run("With truncated record", func(t *testing.T) {
		_, err := DecodeEvent(data[:4])
		require.ErrorIs(t, err, gerrors.ErrCorruptRecord)
	})
	t.Run("With wrong record kind", func(t *testing.T) {
		_, err := DecodeBatch(data)
		require.ErrorIs(t, err, gerrors.ErrCorruptRecord)
	})
}

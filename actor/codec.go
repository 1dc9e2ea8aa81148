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
	"fmt"
	"reflect"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"

	gerrors "github.com/tochemey/eventsourced/errors"
	"github.com/tochemey/eventsourced/internal/compression"
	"github.com/tochemey/eventsourced/persistence"
)

// encodeEvents turns domain events into records numbered from the given sequence number
func encodeEvents(persistenceID persistence.ID, from uint64, events []proto.Message, timestamp time.Time) ([]*persistence.Event, error) {
	records := make([]*persistence.Event, 0, len(events))
	for i, event := range events {
		if event == nil {
			return nil, fmt.Errorf("event at index %d is nil", i)
		}

		message, err := anypb.New(event)
		if err != nil {
			return nil, fmt.Errorf("failed to encode event %s: %w", event.ProtoReflect().Descriptor().FullName(), err)
		}

		records = append(records, &persistence.Event{
			PersistenceID:  persistenceID,
			SequenceNumber: from + uint64(i),
			Manifest:       message.GetTypeUrl(),
			Payload:        message.GetValue(),
			Timestamp:      timestamp,
		})
	}
	return records, nil
}

// decodeEvent resolves the event type from the manifest in the global protobuf registry
func decodeEvent(record *persistence.Event) (proto.Message, error) {
	message := &anypb.Any{TypeUrl: record.Manifest, Value: record.Payload}
	event, err := message.UnmarshalNew()
	if err != nil {
		return nil, gerrors.NewErrCorruptRecord(fmt.Errorf("event %d (%s): %w", record.SequenceNumber, record.Manifest, err))
	}
	return event, nil
}

// encodeSnapshot serializes and compresses the state
func encodeSnapshot(persistenceID persistence.ID, sequenceNr uint64, state State, algorithm compression.Algorithm, timestamp time.Time) (*persistence.Snapshot, error) {
	data, err := state.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}

	payload, err := compression.Compress(algorithm, data)
	if err != nil {
		return nil, err
	}

	return &persistence.Snapshot{
		PersistenceID:  persistenceID,
		SequenceNumber: sequenceNr,
		Manifest:       stateManifest(state),
		Encoding:       string(algorithm),
		Payload:        payload,
		Timestamp:      timestamp,
	}, nil
}

// decodeSnapshot restores a snapshot into the given empty state
func decodeSnapshot(snapshot *persistence.Snapshot, state State) error {
	if expected := stateManifest(state); snapshot.Manifest != expected {
		return gerrors.NewErrCorruptRecord(fmt.Errorf("snapshot %d holds a %s, expected %s", snapshot.SequenceNumber, snapshot.Manifest, expected))
	}

	data, err := compression.Decompress(compression.Algorithm(snapshot.Encoding), snapshot.Payload)
	if err != nil {
		return gerrors.NewErrCorruptRecord(err)
	}

	if err := state.UnmarshalBinary(data); err != nil {
		return gerrors.NewErrCorruptRecord(fmt.Errorf("snapshot %d: %w", snapshot.SequenceNumber, err))
	}
	return nil
}

func stateManifest(state State) string {
	return reflect.TypeOf(state).String()
}

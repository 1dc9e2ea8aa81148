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
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeebo/xxh3"

	gerrors "github.com/tochemey/eventsourced/errors"
	"github.com/tochemey/eventsourced/persistence"
)

// checksumSize is the size of the xxh3 checksum that prefixes every record
const checksumSize = 8

type event struct {
	PersistenceID  string `json:"persistence_id"`
	SequenceNumber uint64 `json:"sequence_nr"`
	Manifest       string `json:"manifest"`
	Payload        []byte `json:"payload"`
	Timestamp      int64  `json:"timestamp"`
}

type snapshot struct {
	PersistenceID  string `json:"persistence_id"`
	SequenceNumber uint64 `json:"sequence_nr"`
	Manifest       string `json:"manifest"`
	Encoding       string `json:"encoding,omitempty"`
	Payload        []byte `json:"payload"`
	Timestamp      int64  `json:"timestamp"`
}

// EncodeEvent serializes an event into a checksummed record
func EncodeEvent(e *persistence.Event) ([]byte, error) {
	return seal(toEvent(e))
}

// DecodeEvent parses a record produced by EncodeEvent
func DecodeEvent(data []byte) (*persistence.Event, error) {
	out := new(event)
	if err := open(data, out); err != nil {
		return nil, err
	}
	return fromEvent(out), nil
}

// EncodeBatch serializes a batch of events into a single checksummed record
func EncodeBatch(events []*persistence.Event) ([]byte, error) {
	batch := make([]*event, 0, len(events))
	for _, e := range events {
		batch = append(batch, toEvent(e))
	}
	return seal(batch)
}

// DecodeBatch parses a record produced by EncodeBatch
func DecodeBatch(data []byte) ([]*persistence.Event, error) {
	var batch []*event
	if err := open(data, &batch); err != nil {
		return nil, err
	}

	events := make([]*persistence.Event, 0, len(batch))
	for _, e := range batch {
		events = append(events, fromEvent(e))
	}
	return events, nil
}

// EncodeSnapshot serializes a snapshot into a checksummed record
func EncodeSnapshot(s *persistence.Snapshot) ([]byte, error) {
	return seal(&snapshot{
		PersistenceID:  s.PersistenceID.String(),
		SequenceNumber: s.SequenceNumber,
		Manifest:       s.Manifest,
		Encoding:       s.Encoding,
		Payload:        s.Payload,
		Timestamp:      s.Timestamp.UnixNano(),
	})
}

// DecodeSnapshot parses a record produced by EncodeSnapshot
func DecodeSnapshot(data []byte) (*persistence.Snapshot, error) {
	out := new(snapshot)
	if err := open(data, out); err != nil {
		return nil, err
	}

	return &persistence.Snapshot{
		PersistenceID:  persistence.ID(out.PersistenceID),
		SequenceNumber: out.SequenceNumber,
		Manifest:       out.Manifest,
		Encoding:       out.Encoding,
		Payload:        out.Payload,
		Timestamp:      time.Unix(0, out.Timestamp).UTC(),
	}, nil
}

func toEvent(e *persistence.Event) *event {
	return &event{
		PersistenceID:  e.PersistenceID.String(),
		SequenceNumber: e.SequenceNumber,
		Manifest:       e.Manifest,
		Payload:        e.Payload,
		Timestamp:      e.Timestamp.UnixNano(),
	}
}

func fromEvent(e *event) *persistence.Event {
	return &persistence.Event{
		PersistenceID:  persistence.ID(e.PersistenceID),
		SequenceNumber: e.SequenceNumber,
		Manifest:       e.Manifest,
		Payload:        e.Payload,
		Timestamp:      time.Unix(0, e.Timestamp).UTC(),
	}
}

func seal(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	out := make([]byte, checksumSize, checksumSize+len(body))
	binary.BigEndian.PutUint64(out, xxh3.Hash(body))
	return append(out, body...), nil
}

func open(data []byte, v any) error {
	if len(data) < checksumSize {
		return gerrors.NewErrCorruptRecord(fmt.Errorf("record too short: %d bytes", len(data)))
	}

	body := data[checksumSize:]
	if expected, actual := binary.BigEndian.Uint64(data), xxh3.Hash(body); expected != actual {
		return gerrors.NewErrCorruptRecord(fmt.Errorf("checksum mismatch: expected=%x, actual=%x", expected, actual))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return gerrors.NewErrCorruptRecord(err)
	}
	return nil
}

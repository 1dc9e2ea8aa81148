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
	"time"
)

// Event is a durable record of something that happened to an actor.
//
// Payload holds the serialized domain event and Manifest names its type so that
// it can be decoded again during recovery.
type Event struct {
	// PersistenceID is the owner of the event
	PersistenceID ID
	// SequenceNumber is the position of the event in the owner's log, starting at 1
	SequenceNumber uint64
	// Manifest identifies the payload type
	Manifest string
	// Payload is the serialized event
	Payload []byte
	// Timestamp is the wall-clock time at which the event was created
	Timestamp time.Time
}

// Snapshot is a serialized copy of an actor state taken after a given event.
type Snapshot struct {
	// PersistenceID is the owner of the snapshot
	PersistenceID ID
	// SequenceNumber is the sequence number of the last event folded into the state
	SequenceNumber uint64
	// Manifest identifies the state type
	Manifest string
	// Encoding names the compression applied to Payload. Empty means none.
	Encoding string
	// Payload is the serialized state
	Payload []byte
	// Timestamp is the wall-clock time at which the snapshot was taken
	Timestamp time.Time
}

// Clone returns a copy of the event that does not share its payload
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Payload = append([]byte(nil), e.Payload...)
	return &clone
}

// Clone returns a copy of the snapshot that does not share its payload
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Payload = append([]byte(nil), s.Payload...)
	return &clone
}

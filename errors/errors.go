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

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistFailure is returned when the event log did not durably accept the events
	// produced by a command. The command has no effect: neither the actor state nor its
	// sequence number moved.
	ErrPersistFailure = errors.New("persist failure")

	// ErrSnapshotFailure is reported when a snapshot could not be written to the snapshot store.
	// It never affects the actor state, the event log or the recovery sequence number.
	ErrSnapshotFailure = errors.New("snapshot failure")

	// ErrOutOfOrderSequence indicates a gap or a duplicate sequence number in an event log,
	// either at append time or while replaying events.
	ErrOutOfOrderSequence = errors.New("out of order sequence number")

	// ErrRecoveryFailure is returned when an actor could not rebuild its state at startup.
	ErrRecoveryFailure = errors.New("recovery failure")

	// ErrCorruptRecord is returned by a store when a persisted record does not match its checksum
	// or cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt record")

	// ErrInvalidPersistenceID is returned when a persistence id is empty or contains invalid characters.
	ErrInvalidPersistenceID = errors.New("invalid persistence id")

	// ErrMixedPersistenceIDs is returned when a single append carries events of different persistence ids.
	ErrMixedPersistenceIDs = errors.New("events belong to different persistence ids")

	// ErrDead indicates that the actor is no longer alive or has been shut down.
	ErrDead = errors.New("actor is not alive")

	// ErrUnhandled is returned when the actor receives a command kind it does not know.
	ErrUnhandled = errors.New("unhandled command")

	// ErrUndefinedBehavior is returned when an actor is spawned without a behavior.
	ErrUndefinedBehavior = errors.New("behavior is not defined")

	// ErrUndefinedEventLog is returned when an actor is spawned without an event log.
	ErrUndefinedEventLog = errors.New("event log is not defined")

	// ErrUndefinedSnapshotStore is returned when an actor is spawned without a snapshot store.
	ErrUndefinedSnapshotStore = errors.New("snapshot store is not defined")

	// ErrStoreClosed is returned by a store that is used after it has been closed.
	ErrStoreClosed = errors.New("store is closed")

	// ErrRequestTimeout indicates that an Ask did not get a reply before its deadline.
	ErrRequestTimeout = errors.New("request timed out")
)

// NewErrPersistFailure wraps the cause of a failed append with ErrPersistFailure
func NewErrPersistFailure(err error) error {
	return errors.Join(ErrPersistFailure, err)
}

// NewErrSnapshotFailure wraps the cause of a failed snapshot write with ErrSnapshotFailure
func NewErrSnapshotFailure(err error) error {
	return errors.Join(ErrSnapshotFailure, err)
}

// NewErrRecoveryFailure wraps the cause of a failed recovery with ErrRecoveryFailure
func NewErrRecoveryFailure(err error) error {
	return errors.Join(ErrRecoveryFailure, err)
}

// NewErrOutOfOrderSequence formats an ErrOutOfOrderSequence with the expected and actual sequence numbers.
func NewErrOutOfOrderSequence(persistenceID string, expected, actual uint64) error {
	return fmt.Errorf("(persistence id=%s, expected=%d, actual=%d) %w", persistenceID, expected, actual, ErrOutOfOrderSequence)
}

// NewErrInvalidPersistenceID formats an ErrInvalidPersistenceID with the given id.
func NewErrInvalidPersistenceID(persistenceID string, reason error) error {
	return fmt.Errorf("persistence id=(%s) %w: %w", persistenceID, ErrInvalidPersistenceID, reason)
}

// NewErrCorruptRecord wraps a decoding error with ErrCorruptRecord
func NewErrCorruptRecord(err error) error {
	return errors.Join(ErrCorruptRecord, err)
}

// PanicError defines the panic error
// wrapping the underlying error
type PanicError struct {
	err error
}

// enforce compilation error
var _ error = (*PanicError)(nil)

// NewPanicError creates an instance of PanicError
func NewPanicError(err error) *PanicError {
	return &PanicError{err}
}

// Error implements the standard error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.err)
}

func (e *PanicError) Unwrap() error {
	return e.err
}

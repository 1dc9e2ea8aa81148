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
	"fmt"

	gerrors "github.com/tochemey/eventsourced/errors"
)

// CheckBatch verifies that a batch of events can be appended as a unit and
// returns the persistence id they share.
// Every event must be non-nil, carry a valid persistence id shared by the whole batch
// and follow the previous one without gap.
func CheckBatch(events []*Event) (ID, error) {
	if len(events) == 0 {
		return "", nil
	}

	first := events[0]
	if first == nil {
		return "", fmt.Errorf("nil event at index 0")
	}

	persistenceID := first.PersistenceID
	if err := persistenceID.Validate(); err != nil {
		return "", err
	}

	for i := 1; i < len(events); i++ {
		event := events[i]
		if event == nil {
			return "", fmt.Errorf("nil event at index %d", i)
		}

		if event.PersistenceID != persistenceID {
			return "", gerrors.ErrMixedPersistenceIDs
		}

		expected := first.SequenceNumber + uint64(i)
		if event.SequenceNumber != expected {
			return "", gerrors.NewErrOutOfOrderSequence(persistenceID.String(), expected, event.SequenceNumber)
		}
	}
	return persistenceID, nil
}

// CheckContiguous verifies that the batch starts right after the highest stored sequence number.
// It runs CheckBatch first.
func CheckContiguous(highest uint64, events ...*Event) error {
	persistenceID, err := CheckBatch(events)
	if err != nil || len(events) == 0 {
		return err
	}

	if expected := highest + 1; events[0].SequenceNumber != expected {
		return gerrors.NewErrOutOfOrderSequence(persistenceID.String(), expected, events[0].SequenceNumber)
	}
	return nil
}

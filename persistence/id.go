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
	gerrors "github.com/tochemey/eventsourced/errors"
	"github.com/tochemey/eventsourced/internal/validation"
)

// ID is the stable identifier under which an actor's events and snapshots are stored.
//
// An ID is immutable for the life of the actor and shared across all of its incarnations.
// It must be non-empty, at most 255 bytes long, start with an alphanumeric character and
// contain only alphanumerics or any of . _ : @ -
// so that every store can use it as a key segment without escaping.
type ID string

// String returns the string representation of the id
func (id ID) String() string {
	return string(id)
}

// Validate checks the id against the persistence id rules
func (id ID) Validate() error {
	if err := validation.NewIDValidator(string(id)).Validate(); err != nil {
		return gerrors.NewErrInvalidPersistenceID(string(id), err)
	}
	return nil
}

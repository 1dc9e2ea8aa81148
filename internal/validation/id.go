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

package validation

import (
	"fmt"
	"regexp"
)

// MaxIDLength is the longest identifier accepted by the id validator
const MaxIDLength = 255

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:@-]*$`)

type idValidator struct {
	id string
}

var _ Validator = (*idValidator)(nil)

// NewIDValidator creates a validator for identifiers that end up as storage keys.
// A valid id is non-empty, at most MaxIDLength bytes and starts with an alphanumeric
// character followed by alphanumerics or any of . _ : @ -
func NewIDValidator(id string) Validator {
	return &idValidator{id: id}
}

// Validate executes the validation
func (x *idValidator) Validate() error {
	return New(FailFast()).
		AddValidator(NewEmptyStringValidator("id", x.id)).
		AddAssertion(len(x.id) <= MaxIDLength, fmt.Sprintf("the [id] must not exceed %d bytes", MaxIDLength)).
		AddValidator(NewPatternValidator(idPattern, x.id, fmt.Errorf("the [id] %q contains invalid characters", x.id))).
		Validate()
}

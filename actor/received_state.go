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
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/tochemey/eventsourced/persistence"
)

// DefaultReceivedID is the persistence id of the received messages sample
const DefaultReceivedID persistence.ID = "sample-id-3"

// ReceivedState is the list of messages received by the sample actor, oldest first.
// Its events are wrapperspb.StringValue.
type ReceivedState struct {
	received []string
}

// enforce compilation error
var _ State = (*ReceivedState)(nil)

// NewReceivedState creates a ReceivedState holding the given messages
func NewReceivedState(messages ...string) *ReceivedState {
	return &ReceivedState{received: append([]string(nil), messages...)}
}

// Messages returns a copy of the received messages
func (s *ReceivedState) Messages() []string {
	return append([]string(nil), s.received...)
}

// Size returns the number of received messages
func (s *ReceivedState) Size() int {
	return len(s.received)
}

// Apply appends the message carried by a wrapperspb.StringValue. Other events are ignored.
func (s *ReceivedState) Apply(event proto.Message) {
	if value, ok := event.(*wrapperspb.StringValue); ok {
		s.received = append(s.received, value.GetValue())
	}
}

// Copy returns a deep copy of the state
func (s *ReceivedState) Copy() State {
	return NewReceivedState(s.received...)
}

// MarshalBinary encodes the messages as a protobuf ListValue
func (s *ReceivedState) MarshalBinary() ([]byte, error) {
	values := make([]*structpb.Value, 0, len(s.received))
	for _, message := range s.received {
		values = append(values, structpb.NewStringValue(message))
	}
	return proto.Marshal(&structpb.ListValue{Values: values})
}

// UnmarshalBinary replaces the messages with the ones encoded by MarshalBinary
func (s *ReceivedState) UnmarshalBinary(data []byte) error {
	list := new(structpb.ListValue)
	if err := proto.Unmarshal(data, list); err != nil {
		return err
	}

	received := make([]string, 0, len(list.GetValues()))
	for i, value := range list.GetValues() {
		str, ok := value.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return fmt.Errorf("value at index %d is not a string", i)
		}
		received = append(received, str.StringValue)
	}

	s.received = received
	return nil
}

// String renders the messages the way fmt prints a slice
func (s *ReceivedState) String() string {
	return "[" + strings.Join(s.received, " ") + "]"
}

// ReceivedBehavior records every string it receives, the empty one included.
type ReceivedBehavior struct {
	persistenceID persistence.ID
}

// enforce compilation error
var _ Behavior = (*ReceivedBehavior)(nil)

// NewReceivedBehavior creates the sample behavior. DefaultReceivedID is used when the id is empty.
func NewReceivedBehavior(persistenceID persistence.ID) *ReceivedBehavior {
	if persistenceID == "" {
		persistenceID = DefaultReceivedID
	}
	return &ReceivedBehavior{persistenceID: persistenceID}
}

// PersistenceID implements Behavior
func (b *ReceivedBehavior) PersistenceID() persistence.ID {
	return b.persistenceID
}

// EmptyState implements Behavior
func (b *ReceivedBehavior) EmptyState() State {
	return NewReceivedState()
}

// HandleCommand turns a wrapperspb.StringValue into the event recording it
func (b *ReceivedBehavior) HandleCommand(_ context.Context, command proto.Message, _ State) ([]proto.Message, error) {
	value, ok := command.(*wrapperspb.StringValue)
	if !ok {
		return nil, fmt.Errorf("unsupported command %T", command)
	}
	return []proto.Message{wrapperspb.String(value.GetValue())}, nil
}

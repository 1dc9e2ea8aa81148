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
	"google.golang.org/protobuf/proto"
)

// CommandKind tags the commands a persistent actor understands
type CommandKind int

const (
	// InspectCommand reports the current state without persisting anything
	InspectCommand CommandKind = iota + 1
	// CheckpointCommand requests a snapshot of the current state
	CheckpointCommand
	// DomainCommand is handed to the Behavior and may produce events
	DomainCommand
)

// String returns the command kind name
func (k CommandKind) String() string {
	switch k {
	case InspectCommand:
		return "inspect"
	case CheckpointCommand:
		return "checkpoint"
	case DomainCommand:
		return "domain"
	default:
		return "unknown"
	}
}

// Command is a message sent to a persistent actor.
// Use Inspect, Checkpoint or Domain to build one.
type Command struct {
	kind    CommandKind
	payload proto.Message
}

// Inspect creates a command that reports the current state
func Inspect() Command {
	return Command{kind: InspectCommand}
}

// Checkpoint creates a command that snapshots the current state
func Checkpoint() Command {
	return Command{kind: CheckpointCommand}
}

// Domain creates a command carrying a domain payload for the Behavior
func Domain(payload proto.Message) Command {
	return Command{kind: DomainCommand, payload: payload}
}

// Kind returns the command kind
func (c Command) Kind() CommandKind {
	return c.kind
}

// Payload returns the domain payload. It is nil for inspect and checkpoint commands.
func (c Command) Payload() proto.Message {
	return c.payload
}

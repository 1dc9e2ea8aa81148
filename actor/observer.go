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

	"github.com/tochemey/eventsourced/log"
	"github.com/tochemey/eventsourced/persistence"
)

// Observer receives the state reported by an inspect command.
// The state is a copy owned by the observer.
type Observer interface {
	Observe(ctx context.Context, persistenceID persistence.ID, sequenceNr uint64, state State)
}

// ObserverFunc is an adapter to use an ordinary function as an Observer
type ObserverFunc func(ctx context.Context, persistenceID persistence.ID, sequenceNr uint64, state State)

// Observe calls f
func (f ObserverFunc) Observe(ctx context.Context, persistenceID persistence.ID, sequenceNr uint64, state State) {
	f(ctx, persistenceID, sequenceNr, state)
}

// logObserver writes the state to the actor logger
type logObserver struct {
	logger log.Logger
}

func (o logObserver) Observe(_ context.Context, _ persistence.ID, _ uint64, state State) {
	o.logger.Infof("current state = %v", state)
}

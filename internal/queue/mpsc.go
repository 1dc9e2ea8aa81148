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

package queue

import (
	"sync/atomic"
)

type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// Mpsc is an unbounded multi-producer, single-consumer FIFO queue.
//
// Push, Len and IsEmpty are safe from any goroutine. Pop and Drain must only be
// called from the single consumer goroutine.
//
// reference: https://concurrencyfreaks.blogspot.com/2014/04/multi-producer-single-consumer-queue.html
type Mpsc[T any] struct {
	// consumer side, read by IsEmpty from any goroutine
	head atomic.Pointer[node[T]]
	// producer side
	tail   atomic.Pointer[node[T]]
	length atomic.Int64
}

// NewMpsc creates an instance of Mpsc
func NewMpsc[T any]() *Mpsc[T] {
	stub := new(node[T])
	q := new(Mpsc[T])
	q.head.Store(stub)
	q.tail.Store(stub)
	return q
}

// Push appends the value at the tail of the queue
func (q *Mpsc[T]) Push(value T) {
	n := &node[T]{value: value}
	prev := q.tail.Swap(n)
	prev.next.Store(n)
	q.length.Add(1)
}

// Pop removes the value at the head of the queue.
// It returns false when the queue is empty.
func (q *Mpsc[T]) Pop() (T, bool) {
	var zero T
	next := q.head.Load().next.Load()
	if next == nil {
		return zero, false
	}

	// the value is taken before the node is published as the new head
	value := next.value
	next.value = zero
	q.head.Store(next)
	q.length.Add(-1)
	return value, true
}

// Drain pops every value currently visible to the consumer, in FIFO order
func (q *Mpsc[T]) Drain() []T {
	var values []T
	for {
		value, ok := q.Pop()
		if !ok {
			return values
		}
		values = append(values, value)
	}
}

// Len returns an approximate number of queued values
func (q *Mpsc[T]) Len() int64 {
	return q.length.Load()
}

// IsEmpty reports whether the consumer currently sees no value
func (q *Mpsc[T]) IsEmpty() bool {
	return q.head.Load().next.Load() == nil
}

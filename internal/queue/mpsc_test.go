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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestMpsc(t *testing.T) {
	t.Run("With Push/Pop", func(t *testing.T) {
		q := NewMpsc[int]()
		require.True(t, q.IsEmpty())
		for j := 0; j < 100; j++ {
			require.Zero(t, q.Len())
			_, ok := q.Pop()
			require.False(t, ok)

			for i := 0; i < j; i++ {
				q.Push(i)
			}

			for i := 0; i < j; i++ {
				x, ok := q.Pop()
				require.True(t, ok)
				require.Equal(t, i, x)
			}
		}
		assert.True(t, q.IsEmpty())
	})
	t.Run("With Drain", func(t *testing.T) {
		q := NewMpsc[string]()
		assert.Empty(t, q.Drain())
		q.Push("a")
		q.Push("b")
		q.Push("c")
		assert.EqualValues(t, 3, q.Len())
		assert.Equal(t, []string{"a", "b", "c"}, q.Drain())
		assert.True(t, q.IsEmpty())
		assert.Zero(t, q.Len())
	})
	t.Run("With concurrent producers", func(t *testing.T) {
		const (
			producers = 8
			perWorker = 1000
		)

		q := NewMpsc[int]()
		var wg sync.WaitGroup
		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func(base int) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					q.Push(base*perWorker + i)
				}
			}(p)
		}
		wg.Wait()

		// FIFO is preserved per producer
		last := make(map[int]int, producers)
		for p := 0; p < producers; p++ {
			last[p] = -1
		}
		count := 0
		for {
			v, ok := q.Pop()
			if !ok {
				break
			}
			producer := v / perWorker
			require.Greater(t, v, last[producer])
			last[producer] = v
			count++
		}
		assert.Equal(t, producers*perWorker, count)
	})
	t.Run("With IsEmpty while consuming", func(t *testing.T) {
		const total = 5000
		q := NewMpsc[int]()
		stop := atomic.NewBool(false)

		// observers check the queue while the consumer pops
		var wg sync.WaitGroup
		for o := 0; o < 4; o++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for !stop.Load() {
					_ = q.IsEmpty()
					_ = q.Len()
				}
			}()
		}

		go func() {
			for i := 0; i < total; i++ {
				q.Push(i)
			}
		}()

		for expected := 0; expected < total; {
			if v, ok := q.Pop(); ok {
				require.Equal(t, expected, v)
				expected++
			}
		}
		stop.Store(true)
		wg.Wait()
		assert.True(t, q.IsEmpty())
	})
}

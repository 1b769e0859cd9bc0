/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolGoRunsEveryFunction(t *testing.T) {
	p := New(4)
	defer p.Stop()

	var n int32
	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		p.Go(func() {
			atomic.AddInt32(&n, 1)
			wg.Done()
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scheduled work")
	}
	assert.EqualValues(t, 100, atomic.LoadInt32(&n))
}

func TestPoolScheduleResumesCaller(t *testing.T) {
	p := New(2)
	defer p.Stop()

	resumed := make(chan struct{})
	go func() {
		sched := p.Schedule()
		sched.Await()
		close(resumed)
	}()

	select {
	case <-resumed:
	case <-time.After(2 * time.Second):
		t.Fatal("Schedule never resumed the caller")
	}
}

func TestPoolStopThenWaitReturns(t *testing.T) {
	p := New(3)
	p.Stop()

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.Fail(t, "Wait never returned after Stop")
	}
}

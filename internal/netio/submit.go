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

// Package netio provides the socket and file awaiters a connection handler
// suspends on: accept (multishot), recv (buffer-select), send (short-write
// loop) and splice (zero-copy file-to-socket transfer via a pipe bridge).
//
// A worker's ring is submitted to from many goroutines at once - one per
// in-flight connection, plus the worker's own accept loop - unlike the
// kernel's single-writer-per-thread ideal. Ring serializes that with a
// mutex around the submit-side critical section.
package netio

import (
	"fmt"
	"sync"

	"github.com/cloudwego/ringhttpd/internal/iouring"
	"github.com/cloudwego/ringhttpd/internal/task"
)

type armer interface {
	Arm(*iouring.IOUringSQE)
}

// Ring wraps a worker's iouring.Ring with the locking needed to let many
// connection-handler goroutines submit to it concurrently.
type Ring struct {
	r  *iouring.Ring
	mu sync.Mutex
}

// NewRing wraps r for concurrent submission.
func NewRing(r *iouring.Ring) *Ring {
	return &Ring{r: r}
}

// Raw returns the underlying ring, for the worker event loop's
// completion-side calls (PeekCQE/Each/AdvanceCQ), which only that one
// goroutine ever touches and so need no locking here.
func (nr *Ring) Raw() *iouring.Ring {
	return nr.r
}

// submit arms aw against the ring's next free SQE under the submit lock,
// advances and flushes the submission queue, then blocks the calling
// goroutine (outside the lock) until the worker's event loop resolves the
// matching completion.
func submit(nr *Ring, aw armer, opState *task.OpState) task.Result {
	nr.mu.Lock()
	sqe := nr.r.PeekSQE(true)
	if sqe == nil {
		nr.mu.Unlock()
		panic(fmt.Sprintf("netio: submission queue full arming %T", aw))
	}
	aw.Arm(sqe)
	sqe.UserData = opState.UserData()
	nr.r.AdvanceSQ()
	_, errno := nr.r.Submit()
	nr.mu.Unlock()
	if errno != 0 {
		panic(fmt.Sprintf("netio: io_uring_enter failed: %s", errno))
	}
	return opState.Await()
}

// submitNoWait is submit's fire-and-forget form, used for async-cancel
// requests whose own completion nobody awaits.
func submitNoWait(nr *Ring, aw armer) {
	nr.mu.Lock()
	defer nr.mu.Unlock()
	sqe := nr.r.PeekSQE(true)
	if sqe == nil {
		return
	}
	aw.Arm(sqe)
	nr.r.AdvanceSQ()
	nr.r.Submit()
}

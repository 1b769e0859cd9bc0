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

package task

import "github.com/cloudwego/ringhttpd/internal/iouring"

// Awaiter is anything that can fill and submit an io_uring SQE, then block
// until its matching completion has arrived. The socket and file operations
// in internal/netio do not implement it: they implement only Arm, and
// netio's submit pairs each one with a separately allocated OpState that it
// awaits.
type Awaiter interface {
	// Arm fills sqe for this operation. Called with a *iouring.IOUringSQE
	// obtained from the owning worker's ring via PeekSQE; the caller advances
	// the submission queue and submits once Arm returns.
	Arm(sqe *iouring.IOUringSQE)

	// Await blocks until the worker's event loop resolves this awaiter's
	// OpState, returning the completion's result.
	Await() Result
}

// ScheduleAwaiter parks a goroutine in Await on a one-shot channel until the
// scheduler calls the resume function Schedule returned alongside it.
type ScheduleAwaiter struct {
	resume chan struct{}
}

// Schedule returns an awaiter that, once armed by a worker's scheduler
// (internal/workerpool), migrates the calling goroutine onto that worker's
// dedicated OS thread. Used once at the start of a worker's accept loop,
// mirroring `co_await pool.schedule()` in the source's http_server.
func Schedule() (*ScheduleAwaiter, func()) {
	s := &ScheduleAwaiter{resume: make(chan struct{})}
	return s, func() { close(s.resume) }
}

// Await blocks until the scheduler's resume function runs.
func (s *ScheduleAwaiter) Await() {
	<-s.resume
}

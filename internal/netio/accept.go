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

package netio

import (
	"github.com/cloudwego/ringhttpd/internal/iouring"
	"github.com/cloudwego/ringhttpd/internal/task"
)

// acceptBacklog sizes the multishot accept awaiter's resume buffer; matches
// the listen backlog so a burst of simultaneous connections can all post
// their completions before the accept loop goroutine drains them.
const acceptBacklog = 512

// Accept is a multishot accept awaiter: one submission keeps yielding
// completions, one per accepted connection, until the kernel reports no
// more are coming (IORING_CQE_F_MORE clear), at which point Next resubmits.
type Accept struct {
	ring      *Ring
	fd        int32
	opState   *task.OpState
	armed     bool
	cancelled bool
}

// NewAccept returns an Accept awaiter for the listening socket fd.
func NewAccept(ring *Ring, listenFd int32) *Accept {
	return &Accept{
		ring:    ring,
		fd:      listenFd,
		opState: task.NewOpStateBuffered(acceptBacklog),
	}
}

// Arm fills sqe with a multishot accept request on the listening socket.
func (a *Accept) Arm(sqe *iouring.IOUringSQE) {
	iouring.PrepMultishotAccept(sqe, a.fd, 0, 0)
}

// Next blocks until the next connection is accepted (or an error occurs),
// (re)submitting the multishot accept as needed. Returns the accepted fd, or
// a negative errno on failure - the accept loop treats any negative result
// as "skip and continue".
func (a *Accept) Next() int32 {
	var res task.Result
	if !a.armed {
		res = submit(a.ring, a, a.opState)
		a.armed = true
	} else {
		res = a.opState.Await()
	}
	if !iouring.HasMore(res.Flags) {
		a.armed = false
	}
	return res.Res
}

// Close cancels the in-flight multishot submission so the kernel releases
// its state when the worker tears down.
func (a *Accept) Close() {
	if !a.armed || a.cancelled {
		return
	}
	a.cancelled = true
	submitNoWait(a.ring, &cancel{target: a.opState.UserData()})
}

type cancel struct {
	target uint64
}

func (c *cancel) Arm(sqe *iouring.IOUringSQE) {
	iouring.PrepAsyncCancel(sqe, c.target)
}

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
	"fmt"

	"github.com/cloudwego/ringhttpd/internal/iouring"
	"github.com/cloudwego/ringhttpd/internal/task"
)

// RecvResult is what a completed buffer-select recv reports: which pool
// buffer the kernel chose and how many bytes landed in it.
type RecvResult struct {
	BufferID uint16
	N        int32
}

type recvAwaiter struct {
	fd     int32
	length uint32
	bgid   uint16
}

func (r *recvAwaiter) Arm(sqe *iouring.IOUringSQE) {
	iouring.PrepRecvBufSelect(sqe, r.fd, r.length, r.bgid)
}

// Recv submits a single buffer-select recv on fd, asking the kernel to pick
// a buffer from group bgid, and blocks until it completes.
//
// A result of n == 0 means the peer closed the connection in the usual TCP
// sense. For n <= 0 BufferID is left zero and no buffer is held. For n > 0
// Recv itself checks HasBuffer (a bitwise AND on the completion flags; the
// source's bitwise OR there is always true) and panics if the completion
// carries no buffer selection, so callers can trust BufferID whenever N > 0.
func Recv(ring *Ring, fd int32, length uint32, bgid uint16) RecvResult {
	aw := &recvAwaiter{fd: fd, length: length, bgid: bgid}
	res := submit(ring, aw, task.NewOpState())

	if res.Res <= 0 {
		// Error (negative) or peer-closed (zero): no buffer to release either way.
		return RecvResult{N: res.Res}
	}
	if !iouring.HasBuffer(res.Flags) {
		panic(fmt.Sprintf("netio: recv completion missing buffer selection, flags=%#x", res.Flags))
	}
	return RecvResult{BufferID: iouring.BufferID(res.Flags), N: res.Res}
}

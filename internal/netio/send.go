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

type sendAwaiter struct {
	fd  int32
	buf []byte
}

func (s *sendAwaiter) Arm(sqe *iouring.IOUringSQE) {
	iouring.PrepSend(sqe, s.fd, s.buf, uint32(len(s.buf)))
}

// sendOnce submits a single send of buf and returns the completion result.
func sendOnce(ring *Ring, fd int32, buf []byte) int32 {
	aw := &sendAwaiter{fd: fd, buf: buf}
	return submit(ring, aw, task.NewOpState()).Res
}

// SendAll sends every byte of buf on fd, looping over short writes the way
// the source's send task advances its buffer pointer/length across
// submissions. Returns the total bytes sent, or a negative errno from
// whichever submission first failed.
func SendAll(ring *Ring, fd int32, buf []byte) int32 {
	var total int32
	for len(buf) > 0 {
		n := sendOnce(ring, fd, buf)
		if n < 0 {
			return n
		}
		if n == 0 {
			break
		}
		total += n
		buf = buf[n:]
	}
	return total
}

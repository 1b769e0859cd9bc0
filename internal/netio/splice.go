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
	"syscall"

	"github.com/cloudwego/ringhttpd/internal/iouring"
	"github.com/cloudwego/ringhttpd/internal/task"
)

// maxSpliceChunk bounds a single splice submission's length.
const maxSpliceChunk = 64 * 1024

type spliceAwaiter struct {
	fdIn, fdOut int32
	length      uint32
}

func (s *spliceAwaiter) Arm(sqe *iouring.IOUringSQE) {
	iouring.PrepSplice(sqe, s.fdIn, s.fdOut, s.length)
}

func spliceOnce(ring *Ring, fdIn, fdOut int32, length uint32) int32 {
	aw := &spliceAwaiter{fdIn: fdIn, fdOut: fdOut, length: length}
	return submit(ring, aw, task.NewOpState()).Res
}

// SpliceFile moves length bytes from fileFd to socketFd with no user-space
// copy, implemented by creating a pipe pair and bouncing data through it:
// fileFd -> pipe write end, pipe read end -> socketFd, looped until length
// bytes have crossed. Returns the total bytes transferred, or a negative
// errno from whichever submission first failed.
func SpliceFile(ring *Ring, fileFd, socketFd int32, length int64) int64 {
	if length == 0 {
		return 0
	}

	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		panic(fmt.Sprintf("netio: pipe: %v", err))
	}
	pr, pw := int32(fds[0]), int32(fds[1])
	defer syscall.Close(int(pr))
	defer syscall.Close(int(pw))

	var total int64
	for total < length {
		chunk := length - total
		if chunk > maxSpliceChunk {
			chunk = maxSpliceChunk
		}

		n1 := spliceOnce(ring, fileFd, pw, uint32(chunk))
		if n1 <= 0 {
			if n1 < 0 {
				return int64(n1)
			}
			break
		}

		remaining := n1
		for remaining > 0 {
			n2 := spliceOnce(ring, pr, socketFd, uint32(remaining))
			if n2 <= 0 {
				if n2 < 0 {
					return int64(n2)
				}
				break
			}
			remaining -= n2
			total += int64(n2)
		}
	}
	return total
}

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

// Package bufferpool implements the per-worker, per-thread provided-buffer
// pool: a fixed arena of equal-size slots registered with a single io_uring
// instance's provided-buffer ring, so recv submissions can ask the kernel to
// pick a free slot instead of the caller supplying one up front.
//
// A Pool belongs to exactly one worker and is only ever touched by that
// worker's OS thread - there is no cross-thread borrowing, so nothing here
// needs synchronization beyond what a single goroutine naturally provides.
package bufferpool

import (
	"fmt"

	"github.com/cloudwego/ringhttpd/internal/iouring"
)

const (
	// DefaultCount is the number of buffers a Pool manages, matching the
	// source's BUFFER_RING_SIZE.
	DefaultCount = 4096
	// DefaultSize is the size in bytes of each buffer, matching the source's
	// BUFFER_SIZE.
	DefaultSize = 1024
	// BufferGroupID is the provided-buffer group id every worker registers
	// its ring under, matching the source's BUFFER_GROUP_ID.
	BufferGroupID = 0
)

// Pool owns a flat arena of count buffers of size bytes each, a bitmap
// tracking which ones are currently lent out, and the registered io_uring
// buffer ring the kernel selects from on recv completions.
type Pool struct {
	arena    []byte
	size     int
	count    int
	borrowed *borrowedBitmap
	ring     *iouring.BufRing
}

// New allocates count buffers of size bytes and registers them with ring
// under BufferGroupID.
func New(ring *iouring.Ring, count, size int) (*Pool, error) {
	if count <= 0 || size <= 0 {
		return nil, fmt.Errorf("bufferpool: count and size must be positive, got count=%d size=%d", count, size)
	}

	br, err := ring.SetupBufRing(nextPowerOfTwo(count), BufferGroupID)
	if err != nil {
		return nil, fmt.Errorf("bufferpool: setup buffer ring: %w", err)
	}

	p := &Pool{
		arena:    make([]byte, count*size),
		size:     size,
		count:    count,
		borrowed: newBorrowedBitmap(count),
		ring:     br,
	}

	for bid := 0; bid < count; bid++ {
		br.Add(p.slot(bid), uint16(bid))
	}

	return p, nil
}

// NewDefault allocates a Pool sized per DefaultCount/DefaultSize.
func NewDefault(ring *iouring.Ring) (*Pool, error) {
	return New(ring, DefaultCount, DefaultSize)
}

func (p *Pool) slot(bid int) []byte {
	return p.arena[bid*p.size : (bid+1)*p.size]
}

// BufferGroup returns the buffer group id recv submissions should select
// from (internal/iouring.PrepRecvBufSelect's bgid argument).
func (p *Pool) BufferGroup() uint16 {
	return p.ring.Bgid()
}

// Borrow marks buffer id bid as held by the caller and returns its bytes
// truncated to n - the shape a recv completion reports: a kernel-selected
// buffer id plus a byte count. The kernel has already stopped offering bid
// for selection the moment it appeared in a completion; the bitmap only
// exists to catch a bid being borrowed twice or released twice. Callers must call
// Release(bid) once done with the data.
func (p *Pool) Borrow(bid uint16, n int) []byte {
	p.borrowed.markBorrowed(int(bid))
	return p.slot(int(bid))[:n]
}

// Release returns buffer bid to the pool, making it visible to the kernel
// again for a future recv's buffer selection.
func (p *Pool) Release(bid uint16) {
	p.borrowed.markFree(int(bid))
	p.ring.Add(p.slot(int(bid)), bid)
}

// Close unregisters the pool's buffer ring.
func (p *Pool) Close() error {
	return p.ring.Close()
}

func nextPowerOfTwo(n int) uint16 {
	v := uint16(1)
	for int(v) < n {
		v <<= 1
	}
	return v
}

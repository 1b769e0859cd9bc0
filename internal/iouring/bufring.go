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

package iouring

import (
	"fmt"
	"sync/atomic"
	"syscall"
	"unsafe"
)

// tailOffset is the byte offset of struct io_uring_buf_ring's tail field. The
// kernel defines io_uring_buf_ring as a union of {resv1 u64; resv2 u32;
// resv3 u16; tail u16} and bufs[0]; tail lands on bufs[0]'s trailing 2-byte
// padding (BufRingEntry's `_ uint16` field), so entries[0] stays a fully
// usable buffer slot - only its unused padding is shared with the tail.
const tailOffset = 14

// tailWordOffset is the 4-byte-aligned offset covering both entries[0].Bid
// (its low 16 bits) and the tail counter (its high 16 bits, tailOffset).
// sync/atomic has no 16-bit store, so the tail is published through this
// wider word instead.
const tailWordOffset = tailOffset - 2

// BufRing is a registered provided-buffer ring: a page-aligned, kernel-visible
// region of BufRingEntry slots under a single buffer group id. A recv submission
// that opts into buffer-select asks the kernel to pick one of these entries and
// report its buffer id in the completion's flags.
//
// The shared tail counter overlays the padding of entries[0] (see tailOffset);
// every one of the size slots, entries[0] included, is an addressable buffer.
type BufRing struct {
	ring     *Ring
	mem      []byte
	entries  []BufRingEntry
	tailWord *uint32 // mem[tailWordOffset:tailWordOffset+4], see tailWordOffset
	nextTail uint16  // Go-side shadow of the next tail value to publish
	mask     uint16
	bgid     uint16
}

// SetupBufRing registers a provided-buffer ring of `size` slots (must be a power
// of two) under buffer group id `bgid`.
func (ring *Ring) SetupBufRing(size uint16, bgid uint16) (*BufRing, error) {
	if size == 0 || size&(size-1) != 0 {
		return nil, fmt.Errorf("iouring: buffer ring size must be a power of two, got %d", size)
	}

	entrySize := int(unsafe.Sizeof(BufRingEntry{}))
	pageSize := syscall.Getpagesize()
	memSize := int(size) * entrySize
	memSize = (memSize + pageSize - 1) &^ (pageSize - 1)

	mem, err := syscall.Mmap(-1, 0, memSize,
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_PRIVATE|syscall.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("iouring: mmap buffer ring failed: %w", err)
	}

	reg := BufRegister{
		RingAddr:    uint64(uintptr(unsafe.Pointer(&mem[0]))),
		RingEntries: uint32(size),
		Bgid:        bgid,
	}
	if errno := ring.Register(IORING_REGISTER_PBUF_RING, unsafe.Pointer(&reg), 1); errno != 0 {
		syscall.Munmap(mem)
		return nil, fmt.Errorf("iouring: IORING_REGISTER_PBUF_RING failed: %w", errno)
	}

	entries := (*[1 << 16]BufRingEntry)(unsafe.Pointer(&mem[0]))[:size:size]
	tailWord := (*uint32)(unsafe.Pointer(&mem[tailWordOffset]))

	return &BufRing{
		ring:     ring,
		mem:      mem,
		entries:  entries,
		tailWord: tailWord,
		mask:     size - 1,
		bgid:     bgid,
	}, nil
}

// Add publishes buf under bid, making it visible to the kernel for selection.
// Called once at startup for every buffer, and again each time user code
// releases a buffer back to the pool (internal/bufferpool.Pool.Release).
//
// The buffer ring is strictly thread-local (spec: "no cross-thread borrows"),
// so only this goroutine's OS thread ever calls Add - but the kernel can read
// the tail from any CPU, so publishing it still needs release ordering
// (see publishTail).
func (br *BufRing) Add(buf []byte, bid uint16) {
	entry := &br.entries[br.nextTail&br.mask]
	entry.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	entry.Len = uint32(len(buf))
	entry.Bid = bid

	br.nextTail++
	br.publishTail(br.nextTail)
}

// publishTail stores newTail into the mmap'd ring with the store-release
// ordering io_uring_smp_store_release gives the kernel in C: every write to
// an entry above must be visible before a reader sees the advanced tail.
// sync/atomic has no 16-bit primitive, so this read-modify-writes the
// 32-bit word tail shares with entries[0].Bid (tailWordOffset), looping only
// in case Bid changes out from under it - which never happens concurrently
// here, but the CAS keeps the publish correct regardless.
func (br *BufRing) publishTail(newTail uint16) {
	for {
		old := atomic.LoadUint32(br.tailWord)
		next := (old &^ 0xffff0000) | uint32(newTail)<<16
		if atomic.CompareAndSwapUint32(br.tailWord, old, next) {
			return
		}
	}
}

// Bgid returns the buffer group id this ring was registered under.
func (br *BufRing) Bgid() uint16 {
	return br.bgid
}

// Close unregisters the buffer ring and unmaps its memory.
func (br *BufRing) Close() error {
	reg := BufRegister{Bgid: br.bgid}
	br.ring.Register(IORING_UNREGISTER_PBUF_RING, unsafe.Pointer(&reg), 1)
	return syscall.Munmap(br.mem)
}

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

// Package iouring provides a low-level interface to Linux io_uring for high-performance
// asynchronous I/O operations. io_uring enables efficient submission and completion of I/O
// operations through shared memory ring buffers, avoiding syscall overhead for each operation.
//
// This package implements the subset of io_uring functionality a completion-driven event
// loop needs: ring setup, SQE/CQE access, a provided-buffer ring for kernel-selected receive
// buffers, and builders for multishot accept, buffer-select recv, send, splice and cancel.
//
// Requires Linux kernel 5.4+ for IORING_FEAT_SINGLE_MMAP, 5.7+ for provided buffers, and
// 5.19+ for multishot accept.
package iouring

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"syscall"
	"unsafe"
)

// io_uring opcodes - these define the type of I/O operation.
const (
	IORING_OP_NOP             = 0  // No operation (useful for testing)
	IORING_OP_READV           = 1  // Vectored read (readv)
	IORING_OP_WRITEV          = 2  // Vectored write (writev)
	IORING_OP_FSYNC           = 3  // File synchronization
	IORING_OP_READ_FIXED      = 4  // Read using pre-registered buffers
	IORING_OP_WRITE_FIXED     = 5  // Write using pre-registered buffers
	IORING_OP_POLL_ADD        = 6  // Add a poll request
	IORING_OP_POLL_REMOVE     = 7  // Remove a poll request
	IORING_OP_SYNC_FILE_RANGE = 8  // Sync file range
	IORING_OP_SENDMSG         = 9  // Send message on socket
	IORING_OP_RECVMSG         = 10 // Receive message from socket
	IORING_OP_TIMEOUT         = 11 // Timeout operation
	IORING_OP_ACCEPT          = 13 // Accept incoming connection (Linux 5.5+)
	IORING_OP_ASYNC_CANCEL    = 14 // Cancel async operation (Linux 5.5+)
	IORING_OP_LINK_TIMEOUT    = 15 // Linked timeout (Linux 5.5+)
	IORING_OP_CONNECT         = 16 // Connect to socket (Linux 5.5+)
	IORING_OP_READ            = 22 // Read from file descriptor (Linux 5.6+)
	IORING_OP_WRITE           = 23 // Write to file descriptor (Linux 5.6+)
	IORING_OP_SEND            = 26 // Send data on socket (Linux 5.6+)
	IORING_OP_RECV            = 27 // Receive data from socket (Linux 5.6+)
	IORING_OP_SPLICE          = 30 // Zero-copy fd-to-fd move (Linux 5.7+)
	IORING_OP_PROVIDE_BUFFERS = 31 // Provide buffers for buffer-select (Linux 5.7+)
	IORING_OP_CLOSE           = 19 // Close file descriptor (Linux 5.6+)
)

// io_uring setup flags - control behavior of the io_uring instance.
const (
	IORING_SETUP_IOPOLL     = (1 << 0) // Perform busy-waiting for I/O completion
	IORING_SETUP_SQPOLL     = (1 << 1) // Use kernel thread for submission queue polling
	IORING_SETUP_SQ_AFF     = (1 << 2) // Set CPU affinity for SQPOLL thread
	IORING_SETUP_CQSIZE     = (1 << 3) // App specifies CQ size (must be power of 2)
	IORING_SETUP_CLAMP      = (1 << 4) // Clamp SQ/CQ ring sizes to kernel limits
	IORING_SETUP_ATTACH_WQ  = (1 << 5) // Attach to existing workqueue
	IORING_SETUP_R_DISABLED = (1 << 6) // Start with ring disabled (Linux 5.10+)
)

// io_uring feature flags - returned in params.Features after setup.
const (
	IORING_FEAT_SINGLE_MMAP = (1 << 0) // SQ and CQ rings can be mapped with a single mmap (kernel 5.4+)
)

// io_uring enter flags - control behavior of io_uring_enter syscall.
const (
	IORING_ENTER_GETEVENTS = (1 << 0) // Wait for completion events
	IORING_ENTER_SQ_WAKEUP = (1 << 1) // Wake SQPOLL thread if sleeping
	IORING_ENTER_SQ_WAIT   = (1 << 2) // Wait for SQPOLL thread to finish
	IORING_ENTER_EXT_ARG   = (1 << 3) // Pass extended argument (Linux 5.11+)
)

// SQE flags - control behavior of individual operations.
const (
	IOSQE_FIXED_FILE    = (1 << 0) // Use fixed (registered) file descriptor
	IOSQE_IO_LINK       = (1 << 2) // Link next SQE in chain
	IOSQE_BUFFER_SELECT = (1 << 5) // Let the kernel pick a buffer from the registered group
)

// IORING_ACCEPT_MULTISHOT is set on sqe.IoPrio for an accept SQE to request
// multishot behavior: one SQE yields one CQE per accepted connection until
// cancelled, or until the kernel reports "no more" via IORING_CQE_F_MORE
// being clear in a completion's flags.
const IORING_ACCEPT_MULTISHOT = (1 << 0)

// CQE flags - carried in the completion's Flags field.
const (
	IORING_CQE_F_BUFFER = (1 << 0) // A provided buffer was used; high bits of Flags hold its id
	IORING_CQE_F_MORE   = (1 << 1) // Multishot submission will post more completions
)

// IORING_CQE_BUFFER_SHIFT is the bit offset of the selected buffer id within a CQE's Flags.
const IORING_CQE_BUFFER_SHIFT = 16

// io_uring register opcodes - for SYS_IO_URING_REGISTER.
const (
	IORING_REGISTER_BUFFERS      = 0  // Register buffers for fixed buffer I/O
	IORING_UNREGISTER_BUFFERS    = 1  // Unregister buffers
	IORING_REGISTER_FILES        = 2  // Register file descriptors
	IORING_UNREGISTER_FILES      = 3  // Unregister file descriptors
	IORING_REGISTER_EVENTFD      = 4  // Register eventfd for completion notifications
	IORING_UNREGISTER_EVENTFD    = 5  // Unregister eventfd
	IORING_REGISTER_FILES_UPDATE = 6  // Update registered files (Linux 5.5+)
	IORING_REGISTER_PBUF_RING    = 22 // Register a provided-buffer ring (Linux 5.19+)
	IORING_UNREGISTER_PBUF_RING  = 23 // Unregister a provided-buffer ring
)

// Poll event flags - for IORING_OP_POLL_ADD.
const (
	POLLIN    = 0x0001 // Data available to read
	POLLOUT   = 0x0004 // Ready for writing
	POLLERR   = 0x0008 // Error condition
	POLLHUP   = 0x0010 // Hang up (peer closed)
	POLLNVAL  = 0x0020 // Invalid request
	POLLRDHUP = 0x2000 // Peer closed or shutdown write half
)

// IOUringParams holds io_uring_params for the setup syscall.
// Used both as input (flags, sq_thread_*) and output (features, offsets).
type IOUringParams struct {
	SqEntries    uint32          // Number of submission queue entries (power of 2)
	CqEntries    uint32          // Number of completion queue entries
	Flags        uint32          // Setup flags (IORING_SETUP_*)
	SqThreadCpu  uint32          // CPU for SQPOLL thread
	SqThreadIdle uint32          // Milliseconds before SQPOLL thread sleeps
	Features     uint32          // Kernel-supported features (output)
	WqFd         uint32          // Existing workqueue fd to attach to
	Resv         [3]uint32       // Reserved for future use
	SqOff        IoSqringOffsets // Submission queue ring offsets (output)
	CqOff        IoCqringOffsets // Completion queue ring offsets (output)
}

// IoSqringOffsets - byte offsets into mmap'd SQ ring for locating fields.
type IoSqringOffsets struct {
	Head        uint32 // Head pointer (consumer, kernel updates)
	Tail        uint32 // Tail pointer (producer, app updates)
	RingMask    uint32 // Ring mask (entries - 1)
	RingEntries uint32 // Ring size
	Flags       uint32
	Dropped     uint32
	Array       uint32 // SQE index indirection array
	Resv1       uint32
	Resv2       uint64
}

// IoCqringOffsets - byte offsets into mmap'd CQ ring for locating fields.
type IoCqringOffsets struct {
	Head        uint32 // Head pointer (consumer, app updates)
	Tail        uint32 // Tail pointer (producer, kernel updates)
	RingMask    uint32 // Ring mask (entries - 1)
	RingEntries uint32 // Ring size
	Overflow    uint32 // Overflow counter
	Cqes        uint32 // CQE array start
	Flags       uint64
	Resv1       uint32
	Resv2       uint64
}

// Ring is a single io_uring instance: its fd and the mmap'd SQ/CQ rings.
// A Ring is not safe for concurrent submission from multiple goroutines;
// each worker owns one Ring and submits to it through internal/netio.Ring,
// which serializes submissions with a mutex.
type Ring struct {
	fd      int             // io_uring file descriptor
	params  IOUringParams   // Parameters from setup
	sq      SubmissionQueue // Submission queue state
	cq      CompletionQueue // Completion queue state
	sqeMem  []byte          // Memory-mapped SQE array
	ringMem []byte          // Memory-mapped SQ/CQ ring (single mmap, IORING_FEAT_SINGLE_MMAP)
}

// SubmissionQueue represents the submission queue state.
// Application acts as producer (updates tail), kernel acts as consumer (updates head).
type SubmissionQueue struct {
	head        *uint32      // Consumer index (kernel) - shared, modified at runtime
	tail        *uint32      // Producer index (app) - shared, modified at runtime
	ringMask    uint32       // Mask for ring wrap - constant after init
	ringEntries uint32       // Number of entries - constant after init
	flags       *uint32      // Flags - shared, modified at runtime
	dropped     *uint32      // Dropped submissions - shared, modified at runtime
	array       *uint32      // SQE index array - pointer for indexing
	sqes        []IOUringSQE // Submission queue entries array
}

// CompletionQueue represents the completion queue state.
// Kernel acts as producer (updates tail), application acts as consumer (updates head).
type CompletionQueue struct {
	head        *uint32      // Consumer index (app) - shared, modified at runtime
	tail        *uint32      // Producer index (kernel) - shared, modified at runtime
	ringMask    uint32       // Mask for ring wrap - constant after init
	ringEntries uint32       // Number of entries - constant after init
	overflow    *uint32      // Overflow counter - shared, modified at runtime
	cqes        []IOUringCQE // Completion queue entries array
}

// New creates a new Ring sized to hold `entries` submissions (rounded up by the kernel
// to a power of two). Requires Linux 5.4+ (IORING_FEAT_SINGLE_MMAP support).
func New(entries uint32) (*Ring, error) {
	params := IOUringParams{}
	fd, err := Setup(entries, &params)
	if err != nil {
		return nil, fmt.Errorf("io_uring_setup failed: %w", err)
	}

	if params.Features&IORING_FEAT_SINGLE_MMAP == 0 {
		syscall.Close(fd)
		return nil, fmt.Errorf("kernel does not support IORING_FEAT_SINGLE_MMAP (requires Linux 5.4+)")
	}

	ring := &Ring{fd: fd, params: params}

	pageSize := uint32(syscall.Getpagesize())

	sqRingSize := params.SqOff.Array + params.SqEntries*uint32(unsafe.Sizeof(uint32(0)))
	cqRingSize := params.CqOff.Cqes + params.CqEntries*uint32(unsafe.Sizeof(IOUringCQE{}))

	ringSize := sqRingSize
	if cqRingSize > ringSize {
		ringSize = cqRingSize
	}
	ringSize = (ringSize + pageSize - 1) &^ (pageSize - 1)

	ringPtr, err := syscall.Mmap(fd, 0, int(ringSize),
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_SHARED|syscall.MAP_POPULATE)
	if err != nil {
		ring.Close()
		return nil, fmt.Errorf("mmap ring (single) failed: %w", err)
	}
	ring.ringMem = ringPtr

	sqeSize := params.SqEntries * uint32(unsafe.Sizeof(IOUringSQE{}))
	sqePtr, err := syscall.Mmap(fd, int64(0x10000000), int(sqeSize),
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_SHARED|syscall.MAP_POPULATE)
	if err != nil {
		ring.Close()
		return nil, fmt.Errorf("mmap sqe failed: %w", err)
	}
	ring.sqeMem = sqePtr

	ring.sq.head = (*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.Head]))
	ring.sq.tail = (*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.Tail]))
	ring.sq.ringMask = *(*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.RingMask]))
	ring.sq.ringEntries = *(*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.RingEntries]))
	ring.sq.flags = (*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.Flags]))
	ring.sq.dropped = (*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.Dropped]))
	ring.sq.array = (*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.Array]))
	ring.sq.sqes = (*[0x10000]IOUringSQE)(unsafe.Pointer(&ring.sqeMem[0]))[:params.SqEntries]

	ring.cq.head = (*uint32)(unsafe.Pointer(&ring.ringMem[params.CqOff.Head]))
	ring.cq.tail = (*uint32)(unsafe.Pointer(&ring.ringMem[params.CqOff.Tail]))
	ring.cq.ringMask = *(*uint32)(unsafe.Pointer(&ring.ringMem[params.CqOff.RingMask]))
	ring.cq.ringEntries = *(*uint32)(unsafe.Pointer(&ring.ringMem[params.CqOff.RingEntries]))
	ring.cq.overflow = (*uint32)(unsafe.Pointer(&ring.ringMem[params.CqOff.Overflow]))
	cqesPtr := unsafe.Pointer(&ring.ringMem[params.CqOff.Cqes])
	ring.cq.cqes = (*[0x10000]IOUringCQE)(cqesPtr)[:params.CqEntries]

	runtime.SetFinalizer(ring, func(r *Ring) {
		r.Close()
	})

	return ring, nil
}

// PeekSQE gets a submission queue entry for the caller to fill.
// It does NOT make the entry visible to the kernel; call AdvanceSQ after filling it.
// Returns nil if the submission queue is full.
func (ring *Ring) PeekSQE(reset bool) *IOUringSQE {
	q := &ring.sq

	tail := atomic.LoadUint32(q.tail)
	head := atomic.LoadUint32(q.head)

	if tail-head >= q.ringEntries {
		return nil
	}

	sqe := &q.sqes[tail&q.ringMask]

	if reset {
		*sqe = IOUringSQE{}
	}

	arrayIdx := tail & q.ringMask
	arrayPtr := (*uint32)(unsafe.Pointer(uintptr(unsafe.Pointer(q.array)) + uintptr(arrayIdx)*4))
	*arrayPtr = arrayIdx

	return sqe
}

// AdvanceSQ makes one submission queue entry visible to the kernel.
func (ring *Ring) AdvanceSQ() {
	atomic.AddUint32(ring.sq.tail, 1)
}

// PendingSQEs returns the number of SQEs queued but not yet submitted to the kernel.
func (ring *Ring) PendingSQEs() uint32 {
	return atomic.LoadUint32(ring.sq.tail) - atomic.LoadUint32(ring.sq.head)
}

// Submit flushes all staged submissions via io_uring_enter. It does not wait for completions.
func (ring *Ring) Submit() (int, syscall.Errno) {
	toSubmit := ring.PendingSQEs()
	if toSubmit == 0 {
		return 0, 0
	}

	for {
		submitted, errno := Enter(ring.fd, toSubmit, 0, 0, nil)
		if errno == syscall.EINTR {
			continue
		}
		return submitted, errno
	}
}

// SubmitAndWait flushes all staged submissions and blocks until at least `minComplete`
// completions are available.
func (ring *Ring) SubmitAndWait(minComplete uint32) (int, syscall.Errno) {
	toSubmit := ring.PendingSQEs()
	for {
		submitted, errno := Enter(ring.fd, toSubmit, minComplete, IORING_ENTER_GETEVENTS, nil)
		if errno == syscall.EINTR {
			continue
		}
		return submitted, errno
	}
}

// PeekCQE checks for a completion without blocking. Returns nil if none is available.
// Does not advance the head - call AdvanceCQ after processing.
func (ring *Ring) PeekCQE() *IOUringCQE {
	q := &ring.cq
	head := atomic.LoadUint32(q.head)
	tail := atomic.LoadUint32(q.tail)

	if head == tail {
		return nil
	}

	return &q.cqes[head&q.ringMask]
}

// WaitCQE blocks until at least one completion is available.
// Does not advance the head - call AdvanceCQ after processing.
func (ring *Ring) WaitCQE() (*IOUringCQE, error) {
	q := &ring.cq
	head := atomic.LoadUint32(q.head)
	tail := atomic.LoadUint32(q.tail)

	for head == tail {
		_, errno := Enter(ring.fd, 0, 1, IORING_ENTER_GETEVENTS, nil)
		if errno == syscall.EINTR || errno == syscall.EAGAIN {
			runtime.Gosched()
			tail = atomic.LoadUint32(q.tail)
			continue
		}
		if errno != 0 {
			return nil, errno
		}
		tail = atomic.LoadUint32(q.tail)
	}

	return &q.cqes[head&q.ringMask], nil
}

// AdvanceCQ advances the completion queue head by one, freeing the oldest CQE slot.
func (ring *Ring) AdvanceCQ() {
	atomic.AddUint32(ring.cq.head, 1)
}

// Each iterates every currently-available completion, calling fn with the CQE and
// advancing the head after fn returns. This is the shape the worker event loop uses
// after SubmitAndWait: submit-and-wait(1), then walk all ready CQEs.
func (ring *Ring) Each(fn func(cqe *IOUringCQE)) {
	for {
		cqe := ring.PeekCQE()
		if cqe == nil {
			return
		}
		fn(cqe)
		ring.AdvanceCQ()
	}
}

// Close closes the Ring and releases all associated resources (mmaps and fd).
// Returns the first error encountered during cleanup, if any.
func (ring *Ring) Close() error {
	if ring == nil {
		return nil
	}
	runtime.SetFinalizer(ring, nil)

	var firstErr error

	if ring.ringMem != nil {
		if err := syscall.Munmap(ring.ringMem); err != nil && firstErr == nil {
			firstErr = err
		}
		ring.ringMem = nil
	}

	if ring.sqeMem != nil {
		if err := syscall.Munmap(ring.sqeMem); err != nil && firstErr == nil {
			firstErr = err
		}
		ring.sqeMem = nil
	}
	if ring.fd >= 0 {
		if err := syscall.Close(ring.fd); err != nil && firstErr == nil {
			firstErr = err
		}
		ring.fd = -1
	}
	return firstErr
}

// Register wraps the io_uring_register syscall for the ring's fd.
func (ring *Ring) Register(opcode uint32, arg unsafe.Pointer, nrArgs uint32) syscall.Errno {
	return Register(ring.fd, opcode, arg, nrArgs)
}

// Fd returns the io_uring instance's file descriptor, mainly for diagnostics.
func (ring *Ring) Fd() int {
	return ring.fd
}

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

import "unsafe"

// PrepMultishotAccept fills sqe with a multishot accept request on fd. The kernel
// posts one CQE per accepted connection until the SQE is cancelled or the kernel
// signals "no more" by clearing IORING_CQE_F_MORE in a completion's flags.
func PrepMultishotAccept(sqe *IOUringSQE, fd int32, addr, addrLen uintptr) {
	sqe.Opcode = IORING_OP_ACCEPT
	sqe.Fd = fd
	sqe.Addr = uint64(addr)
	sqe.Off = uint64(addrLen)
	sqe.IoPrio = IORING_ACCEPT_MULTISHOT
}

// PrepRecvBufSelect fills sqe with a recv request that asks the kernel to select
// a buffer from group bgid instead of the caller providing one. The chosen
// buffer's id is reported in the completion's flags (IORING_CQE_F_BUFFER set,
// id at flags>>IORING_CQE_BUFFER_SHIFT).
func PrepRecvBufSelect(sqe *IOUringSQE, fd int32, length uint32, bgid uint16) {
	sqe.Opcode = IORING_OP_RECV
	sqe.Fd = fd
	sqe.Len = length
	sqe.Flags = IOSQE_BUFFER_SELECT
	sqe.BufIndex = bgid
}

// PrepSend fills sqe with a send request of up to length bytes from buf.
func PrepSend(sqe *IOUringSQE, fd int32, buf []byte, length uint32) {
	sqe.Opcode = IORING_OP_SEND
	sqe.Fd = fd
	sqe.Len = length
	if len(buf) > 0 {
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
}

// PrepSplice fills sqe with a zero-copy transfer of length bytes from fdIn to fdOut.
// Both offsets are -1 (use and advance the current file position).
func PrepSplice(sqe *IOUringSQE, fdIn, fdOut int32, length uint32) {
	sqe.Opcode = IORING_OP_SPLICE
	sqe.Fd = fdOut
	sqe.SpliceFdIn = fdIn
	sqe.Len = length
	sqe.Off = ^uint64(0)      // off_out = -1
	sqe.OpcodeFlags = 0       // splice_flags
	sqe.Addr = ^uint64(0)     // off_in = -1, aliases Addr per kernel ABI for IORING_OP_SPLICE
}

// PrepAsyncCancel fills sqe with a request to cancel the in-flight submission
// whose UserData equals target.
func PrepAsyncCancel(sqe *IOUringSQE, target uint64) {
	sqe.Opcode = IORING_OP_ASYNC_CANCEL
	sqe.Addr = target
}

// SetUserData stores p's address as the SQE's user-data, the mechanism by which a
// completion is matched back to the awaiter that issued it.
func SetUserData(sqe *IOUringSQE, p unsafe.Pointer) {
	sqe.UserData = uint64(uintptr(p))
}

// BufferID extracts the kernel-selected buffer id from a completion's flags.
// Callers MUST check (flags & IORING_CQE_F_BUFFER) != 0 first - per spec.md's
// Open Question, the original source tested this with a bitwise OR (always
// truthy); that is a bug. This helper only performs the shift.
func BufferID(flags uint32) uint16 {
	return uint16(flags >> IORING_CQE_BUFFER_SHIFT)
}

// HasBuffer reports whether a completion's flags indicate a provided buffer was
// selected for this operation.
func HasBuffer(flags uint32) bool {
	return flags&IORING_CQE_F_BUFFER != 0
}

// HasMore reports whether a multishot submission will continue posting completions.
func HasMore(flags uint32) bool {
	return flags&IORING_CQE_F_MORE != 0
}

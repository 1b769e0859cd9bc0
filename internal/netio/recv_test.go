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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cloudwego/ringhttpd/internal/iouring"
)

func TestRecvAwaiterArm(t *testing.T) {
	aw := &recvAwaiter{fd: 7, length: 1024, bgid: 0}
	var sqe iouring.IOUringSQE
	aw.Arm(&sqe)

	assert.EqualValues(t, iouring.IORING_OP_RECV, sqe.Opcode)
	assert.EqualValues(t, 7, sqe.Fd)
	assert.EqualValues(t, 1024, sqe.Len)
	assert.EqualValues(t, iouring.IOSQE_BUFFER_SELECT, sqe.Flags)
	assert.EqualValues(t, 0, sqe.BufIndex)
}

func TestAcceptAwaiterArm(t *testing.T) {
	a := &Accept{fd: 3}
	var sqe iouring.IOUringSQE
	a.Arm(&sqe)

	assert.EqualValues(t, iouring.IORING_OP_ACCEPT, sqe.Opcode)
	assert.EqualValues(t, 3, sqe.Fd)
	assert.EqualValues(t, iouring.IORING_ACCEPT_MULTISHOT, sqe.IoPrio)
}

func TestSendAwaiterArm(t *testing.T) {
	buf := []byte("hello")
	aw := &sendAwaiter{fd: 9, buf: buf}
	var sqe iouring.IOUringSQE
	aw.Arm(&sqe)

	assert.EqualValues(t, iouring.IORING_OP_SEND, sqe.Opcode)
	assert.EqualValues(t, 9, sqe.Fd)
	assert.EqualValues(t, len(buf), sqe.Len)
}

func TestSpliceAwaiterArm(t *testing.T) {
	aw := &spliceAwaiter{fdIn: 4, fdOut: 5, length: 100}
	var sqe iouring.IOUringSQE
	aw.Arm(&sqe)

	assert.EqualValues(t, iouring.IORING_OP_SPLICE, sqe.Opcode)
	assert.EqualValues(t, 5, sqe.Fd)
	assert.EqualValues(t, 4, sqe.SpliceFdIn)
	assert.EqualValues(t, 100, sqe.Len)
}

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

package worker

import (
	"path/filepath"
	"syscall"

	"github.com/cloudwego/ringhttpd/internal/bufferpool"
	"github.com/cloudwego/ringhttpd/internal/httpwire"
	"github.com/cloudwego/ringhttpd/internal/netio"
)

// recvLen matches the source's per-recv request, BUFFER_SIZE bytes.
const recvLen = bufferpool.DefaultSize

// handler drives one accepted connection from its first byte to the peer
// closing it. A handler never touches another connection's state and never
// outlives its own goroutine - every handler task is spawned detached.
type handler struct {
	w  *Worker
	fd int32
}

// run implements the per-connection loop: recv, borrow, feed the parser,
// respond, release, repeat. Any negative recv result or send/splice failure
// ends the handler and closes the connection rather than aborting the
// process - the redesign the source's Non-goals section flags as
// defensible over the original's fatal-on-send-failure behavior.
func (h *handler) run() {
	defer syscall.Close(int(h.fd))

	var parser httpwire.Parser
	for {
		rr := netio.Recv(h.w.sring, h.fd, recvLen, h.w.bufPool.BufferGroup())
		if rr.N <= 0 {
			return
		}

		buf := h.w.bufPool.Borrow(rr.BufferID, int(rr.N))
		req, complete := parser.Feed(buf)
		h.w.bufPool.Release(rr.BufferID)

		if !complete {
			continue
		}

		if !h.respond(req) {
			return
		}
	}
}

// respond serves req and reports whether the connection should stay open
// for another request.
func (h *handler) respond(req *httpwire.Request) bool {
	path := filepath.Join(h.w.root, filepath.Clean("/"+req.URL))

	fd, size, ok := openRegularFile(path)
	if !ok {
		resp := httpwire.NotFound()
		ok := netio.SendAll(h.w.sring, h.fd, resp.Serialize()) >= 0
		h.log(404, 0, req.URL)
		return ok
	}
	defer syscall.Close(fd)

	resp := httpwire.OK(size)
	if netio.SendAll(h.w.sring, h.fd, resp.Serialize()) < 0 {
		return false
	}
	sent := netio.SpliceFile(h.w.sring, int32(fd), h.fd, size)
	h.log(200, sent, req.URL)
	return sent >= 0
}

func (h *handler) log(status int, bytes int64, path string) {
	if h.w.log != nil {
		h.w.log.Log(h.w.id, status, bytes, path)
	}
}

// openRegularFile opens path read-only and reports its size, or ok=false if
// it does not exist or is not a regular file.
func openRegularFile(path string) (fd int, size int64, ok bool) {
	fd, err := syscall.Open(path, syscall.O_RDONLY, 0)
	if err != nil {
		return -1, 0, false
	}

	var st syscall.Stat_t
	if err := syscall.Fstat(fd, &st); err != nil {
		syscall.Close(fd)
		return -1, 0, false
	}
	if st.Mode&syscall.S_IFMT != syscall.S_IFREG {
		syscall.Close(fd)
		return -1, 0, false
	}

	return fd, st.Size, true
}

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

// Package worker assembles one server worker: a listening socket, its own
// io_uring instance and provided-buffer pool, an accept loop that spawns a
// detached handler task per connection, and the completion-dispatch event
// loop that drives all of it.
package worker

import (
	"fmt"
	"log"

	"github.com/cloudwego/ringhttpd/internal/accesslog"
	"github.com/cloudwego/ringhttpd/internal/bufferpool"
	"github.com/cloudwego/ringhttpd/internal/iouring"
	"github.com/cloudwego/ringhttpd/internal/netio"
	"github.com/cloudwego/ringhttpd/internal/task"
	"github.com/cloudwego/ringhttpd/internal/workerpool"
)

// ringEntries matches the source's IO_URING_QUEUE_SIZE.
const ringEntries = 2048

// Worker owns one listening socket, one ring, one buffer pool, and every
// connection handler task spawned from its accept loop.
type Worker struct {
	id      int
	port    int
	root    string
	log     *accesslog.Logger
	ring    *iouring.Ring
	sring   *netio.Ring
	bufPool *bufferpool.Pool
	listen  int32
	accept  *netio.Accept
}

// New constructs a worker. Setup (ring, buffer pool, listening socket) does
// not happen here - it happens inside Start's task, after the pool has run
// its Schedule resume function. log may be nil to disable access logging.
func New(id int, port int, root string, log *accesslog.Logger) *Worker {
	return &Worker{id: id, port: port, root: root, log: log}
}

// Start spawns a task that waits on pool.Schedule and then runs the worker's
// entire lifetime (setup, accept loop, event loop) on that task's own
// goroutine, returning the Task so the caller can wait on it. The task never
// returns in normal operation - the event loop runs until the process exits.
func (w *Worker) Start(pool *workerpool.Pool) *task.Task {
	return task.Spawn(func() {
		sched := pool.Schedule()
		sched.Await()
		w.run()
	})
}

func (w *Worker) run() {
	if err := w.setup(); err != nil {
		log.Fatalf("ringhttpd: worker %d setup: %v", w.id, err)
	}

	acceptTask := task.Spawn(w.acceptLoop)
	acceptTask.Detach()

	w.eventLoop()
}

func (w *Worker) setup() error {
	ring, err := iouring.New(ringEntries)
	if err != nil {
		return fmt.Errorf("io_uring: %w", err)
	}
	w.ring = ring
	w.sring = netio.NewRing(ring)

	pool, err := bufferpool.NewDefault(ring)
	if err != nil {
		return fmt.Errorf("buffer pool: %w", err)
	}
	w.bufPool = pool

	fd, err := listenReusePort(w.port)
	if err != nil {
		return err
	}
	w.listen = int32(fd)
	w.accept = netio.NewAccept(w.sring, w.listen)

	log.Printf("ringhttpd: worker %d listening on port %d", w.id, w.port)
	return nil
}

// acceptLoop accepts connections forever, spawning a detached handler task
// for each one. A negative accepted fd is skipped rather than treated as
// fatal, matching the source's accept error handling.
func (w *Worker) acceptLoop() {
	for {
		fd := w.accept.Next()
		if fd < 0 {
			continue
		}
		h := &handler{w: w, fd: fd}
		task.Spawn(h.run).Detach()
	}
}

// eventLoop repeatedly submits pending work and waits for at least one
// completion, then dispatches every ready completion to the OpState its
// user-data points at.
func (w *Worker) eventLoop() {
	for {
		if _, errno := w.ring.SubmitAndWait(1); errno != 0 {
			log.Fatalf("ringhttpd: worker %d: io_uring_enter: %s", w.id, errno)
		}
		w.ring.Each(func(cqe *iouring.IOUringCQE) {
			st := task.OpStateFromUserData(cqe.UserData)
			if st == nil {
				return
			}
			st.Resolve(cqe.Res, cqe.Flags)
		})
	}
}

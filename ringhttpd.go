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

// Package ringhttpd assembles a multithreaded static-file HTTP server out of
// one io_uring-backed worker per thread, each with its own listening socket
// bound with SO_REUSEPORT so the kernel load-balances accepted connections
// across them.
package ringhttpd

import (
	"fmt"
	"io"
	"os"

	"github.com/cloudwego/ringhttpd/internal/accesslog"
	"github.com/cloudwego/ringhttpd/internal/task"
	"github.com/cloudwego/ringhttpd/internal/worker"
	"github.com/cloudwego/ringhttpd/internal/workerpool"
)

// Config controls a Server's shape.
type Config struct {
	// Threads is the number of worker threads, each with its own ring,
	// buffer pool and listening socket. Defaults to 1 if <= 0.
	Threads int
	// Port is the TCP port every worker binds with SO_REUSEPORT.
	Port int
	// Root is the directory requests are resolved against.
	Root string
	// AccessLog receives one line per served request if non-nil.
	AccessLog io.Writer
}

// Server owns the worker pool and every worker's lifetime task.
type Server struct {
	cfg     Config
	pool    *workerpool.Pool
	workers []*worker.Worker
	tasks   []*task.Task
	log     *accesslog.Logger
}

// New builds a Server from cfg without starting anything.
func New(cfg Config) *Server {
	if cfg.Threads <= 0 {
		cfg.Threads = 1
	}

	var log *accesslog.Logger
	if cfg.AccessLog != nil {
		log = accesslog.New(cfg.AccessLog)
	}

	s := &Server{cfg: cfg, log: log}
	s.pool = workerpool.New(cfg.Threads)
	for i := 0; i < cfg.Threads; i++ {
		s.workers = append(s.workers, worker.New(i, cfg.Port, cfg.Root, log))
	}
	return s
}

// Listen starts every worker: each waits for a pool goroutine to run its
// Schedule resume function, then opens its own io_uring instance, buffer pool and
// SO_REUSEPORT listening socket, then begins accepting. Listen itself
// returns once every worker has been scheduled - it does not wait for
// them to finish, since under normal operation they never do.
func (s *Server) Listen() error {
	if s.cfg.Port <= 0 {
		return fmt.Errorf("ringhttpd: invalid port %d", s.cfg.Port)
	}
	if _, err := os.Stat(s.cfg.Root); err != nil {
		return fmt.Errorf("ringhttpd: root: %w", err)
	}

	for _, w := range s.workers {
		s.tasks = append(s.tasks, w.Start(s.pool))
	}
	return nil
}

// Wait blocks until every worker task has returned. Workers run their event
// loop forever, so Wait never returns; a worker's setup error or an
// io_uring_enter failure calls log.Fatalf, which exits the process.
func (s *Server) Wait() {
	task.WaitAll(s.tasks...)
}

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

package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	ringhttpd "github.com/cloudwego/ringhttpd"
)

func main() {
	var (
		port    = flag.Int("port", 8080, "TCP port to listen on")
		root    = flag.String("root", ".", "Directory to serve files from")
		threads = flag.Int("threads", runtime.NumCPU(), "Number of worker threads, each with its own io_uring instance")
		access  = flag.String("access-log", "", "Path to write access log lines to (disabled if empty)")
	)
	flag.Parse()

	var accessLog *os.File
	if *access != "" {
		f, err := os.OpenFile(*access, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("ringhttpd: access log: %v", err)
		}
		accessLog = f
		defer f.Close()
	}

	srv := ringhttpd.New(ringhttpd.Config{
		Threads:   *threads,
		Port:      *port,
		Root:      *root,
		AccessLog: accessLog,
	})

	if err := srv.Listen(); err != nil {
		log.Fatalf("ringhttpd: %v", err)
	}
	log.Printf("ringhttpd: serving %s on port %d across %d threads", *root, *port, *threads)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Printf("ringhttpd: received %s, exiting", s)
		os.Exit(0)
	}()

	srv.Wait()
}

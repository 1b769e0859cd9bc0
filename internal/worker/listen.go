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
	"fmt"
	"syscall"
)

// listenBacklog matches the source's SOCKET_LISTEN_QUEUE_SIZE.
const listenBacklog = 512

// listenReusePort opens, configures, binds and listens on an IPv4 TCP
// socket bound to port, with SO_REUSEADDR and SO_REUSEPORT set so that
// every worker can bind the same port independently and let the kernel
// load-balance accepted connections across them.
func listenReusePort(port int) (int, error) {
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("worker: socket: %w", err)
	}

	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		syscall.Close(fd)
		return -1, fmt.Errorf("worker: SO_REUSEADDR: %w", err)
	}
	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEPORT, 1); err != nil {
		syscall.Close(fd)
		return -1, fmt.Errorf("worker: SO_REUSEPORT: %w", err)
	}

	addr := syscall.SockaddrInet4{Port: port}
	if err := syscall.Bind(fd, &addr); err != nil {
		syscall.Close(fd)
		return -1, fmt.Errorf("worker: bind: %w", err)
	}
	if err := syscall.Listen(fd, listenBacklog); err != nil {
		syscall.Close(fd)
		return -1, fmt.Errorf("worker: listen: %w", err)
	}

	return fd, nil
}

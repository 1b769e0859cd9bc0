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

// Package accesslog writes one line per served request using bufiox's
// zero-copy buffered writer instead of fmt.Fprintf straight to the
// destination, so a busy worker is not doing a syscall per request line.
package accesslog

import (
	"io"
	"strconv"
	"sync"

	"github.com/cloudwego/gopkg/bufiox"
)

// Logger serializes concurrent writes from every worker's connection
// handlers behind one buffered writer. bufiox.Writer is not safe for
// concurrent use on its own, so every write to it here is guarded.
type Logger struct {
	mu sync.Mutex
	w  bufiox.Writer
}

// New wraps dst in a buffered writer. Call Flush periodically (or on
// shutdown) to guarantee lines reach dst - the buffer is never flushed
// automatically on a timer.
func New(dst io.Writer) *Logger {
	return &Logger{w: bufiox.NewDefaultWriter(dst)}
}

// Log appends one line of the form "<worker> <status> <bytes> <path>\n".
// A write error is swallowed: a failing access log must never take down a
// connection handler.
func (l *Logger) Log(worker int, status int, bytes int64, path string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.w.WriteBinary(strconv.AppendInt(nil, int64(worker), 10))
	l.w.WriteBinary(spaceBytes)
	l.w.WriteBinary(strconv.AppendInt(nil, int64(status), 10))
	l.w.WriteBinary(spaceBytes)
	l.w.WriteBinary(strconv.AppendInt(nil, bytes, 10))
	l.w.WriteBinary(spaceBytes)
	l.w.WriteBinary([]byte(path))
	l.w.WriteBinary(newlineBytes)

	if l.w.WrittenLen() >= flushThreshold {
		l.w.Flush()
	}
}

// Flush forces any buffered lines out to the destination writer.
func (l *Logger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Flush()
}

const flushThreshold = 4096

var (
	spaceBytes   = []byte(" ")
	newlineBytes = []byte("\n")
)

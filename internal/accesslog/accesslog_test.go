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

package accesslog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLogWritesLineOnFlush(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Log(0, 200, 1024, "/index.html")
	require.NoError(t, l.Flush())

	line := strings.TrimSpace(buf.String())
	assert.Equal(t, "0 200 1024 /index.html", line)
}

func TestLoggerLogMultipleLines(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Log(1, 200, 10, "/a")
	l.Log(1, 404, 0, "/missing")
	require.NoError(t, l.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1 200 10 /a", lines[0])
	assert.Equal(t, "1 404 0 /missing", lines[1])
}

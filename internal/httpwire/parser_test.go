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

package httpwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParserSingleRequest(t *testing.T) {
	var p Parser
	req, ok := p.Feed([]byte("GET /hello HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.True(t, ok)
	require.NotNil(t, req)

	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/hello", req.URL)
	assert.Equal(t, "HTTP/1.1", req.Version)

	v, found := req.Header("Host")
	require.True(t, found)
	assert.Equal(t, "x", v)
}

func TestParserSplitAcrossFeeds(t *testing.T) {
	var p Parser
	full := "GET /a HTTP/1.1\r\nHost: y\r\n\r\n"
	for i := 0; i < len(full); i++ {
		req, ok := p.Feed([]byte{full[i]})
		if i < len(full)-1 {
			assert.False(t, ok)
			assert.Nil(t, req)
		} else {
			require.True(t, ok)
			require.NotNil(t, req)
			assert.Equal(t, "/a", req.URL)
		}
	}
}

func TestParserPipelinedRequestsLeaveTailForNextFeed(t *testing.T) {
	var p Parser
	both := "GET /empty HTTP/1.1\r\n\r\nGET /empty HTTP/1.1\r\n\r\n"

	req1, ok := p.Feed([]byte(both))
	require.True(t, ok)
	assert.Equal(t, "/empty", req1.URL)

	// The second request's bytes were already buffered by the first Feed
	// call; a Feed with no new data must still surface it.
	req2, ok := p.Feed(nil)
	require.True(t, ok)
	assert.Equal(t, "/empty", req2.URL)
}

func TestParserDropsMalformedHeaderLine(t *testing.T) {
	var p Parser
	req, ok := p.Feed([]byte("GET /x HTTP/1.1\r\nnotaheader\r\nHost: z\r\n\r\n"))
	require.True(t, ok)
	require.Len(t, req.Headers, 1)
	assert.Equal(t, "Host", req.Headers[0].Name)
}

func TestResponseSerialize(t *testing.T) {
	resp := OK(12)
	assert.Equal(t, "HTTP/1.1 200 OK\r\ncontent-length:12\r\n\r\n", string(resp.Serialize()))

	resp = NotFound()
	assert.Equal(t, "HTTP/1.1 404 Not Found\r\ncontent-length:0\r\n\r\n", string(resp.Serialize()))
}

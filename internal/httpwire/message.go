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

// Package httpwire implements the narrow slice of HTTP/1.1 this server
// speaks: a request-line + headers parser and a status-line + headers
// serializer. There is no body framing beyond content-length, no chunked
// encoding, and no header folding.
package httpwire

import (
	"strconv"
	"strings"

	"github.com/cloudwego/ringhttpd/internal/hack"
)

// Header is a single name/value pair, preserved in request order.
type Header struct {
	Name  string
	Value string
}

// Request is a parsed HTTP/1.1 request line plus headers.
type Request struct {
	Method  string
	URL     string
	Version string
	Headers []Header
}

// Response is a status line plus headers, ready for serialization.
type Response struct {
	Version    string
	Status     int
	StatusText string
	Headers    []Header
}

// Header looks up the first header matching name, case-sensitively (the
// source never lowercases names on either side).
func (r *Request) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

// NewResponse builds a Response carrying exactly a content-length header,
// the only header this server ever sends.
func NewResponse(status int, statusText string, contentLength int) *Response {
	return &Response{
		Version:    "HTTP/1.1",
		Status:     status,
		StatusText: statusText,
		Headers: []Header{
			{Name: "content-length", Value: strconv.Itoa(contentLength)},
		},
	}
}

// Serialize renders r as the bytes that go on the wire: status line, each
// header as "name:value\r\n", then a trailing blank line.
func (r *Response) Serialize() []byte {
	var b strings.Builder
	b.WriteString(r.Version)
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(r.Status))
	b.WriteByte(' ')
	b.WriteString(r.StatusText)
	b.WriteString("\r\n")
	for _, h := range r.Headers {
		b.WriteString(h.Name)
		b.WriteByte(':')
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	return hack.StringToByteSlice(b.String())
}

// OK builds the 200 response for a file of the given size.
func OK(size int64) *Response {
	return NewResponse(200, "OK", int(size))
}

// NotFound builds the 404 response this server always sends for a missing
// or non-regular path: no body.
func NotFound() *Response {
	return NewResponse(404, "Not Found", 0)
}

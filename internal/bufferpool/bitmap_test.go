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

package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBorrowedBitmapMarkAndFree(t *testing.T) {
	b := newBorrowedBitmap(130) // spans more than two 64-bit words

	assert.Equal(t, 130, b.available())

	b.markBorrowed(0)
	b.markBorrowed(63)
	b.markBorrowed(64)
	b.markBorrowed(129)
	assert.Equal(t, 126, b.available())

	b.markFree(64)
	assert.Equal(t, 127, b.available())
}

func TestBorrowedBitmapDoubleBorrowPanics(t *testing.T) {
	b := newBorrowedBitmap(8)
	b.markBorrowed(3)
	require.Panics(t, func() { b.markBorrowed(3) })
}

func TestBorrowedBitmapDoubleFreePanics(t *testing.T) {
	b := newBorrowedBitmap(8)
	b.markBorrowed(2)
	b.markFree(2)
	require.Panics(t, func() { b.markFree(2) })
}

// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package array

import (
	"testing"

	"github.com/colarrow/go/arrow/memory"
	"github.com/stretchr/testify/assert"
)

func TestBufferBuilder(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	bb := newByteBufferBuilder(mem)
	defer bb.Release()

	bb.Append([]byte("abc"))
	bb.Append([]byte("de"))
	assert.Equal(t, 5, bb.Len())
	assert.GreaterOrEqual(t, bb.Cap(), 5)
	assert.Equal(t, []byte("abcde"), bb.Values())
	assert.Equal(t, byte('d'), bb.Value(3))

	bb.Advance(3)
	assert.Equal(t, []byte("abcde\x00\x00\x00"), bb.Values())

	bb.SetLength(2)
	assert.Equal(t, []byte("ab"), bb.Values())

	buf := bb.Finish()
	assert.Equal(t, []byte("ab"), buf.Bytes())
	assert.Zero(t, bb.Len())
	assert.Zero(t, bb.Cap())
	buf.Release()

	empty := bb.Finish()
	assert.Zero(t, empty.Len())
	empty.Release()
}

func TestTypedBufferBuilder(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	tb := newTypedBufferBuilder[int64](mem)
	defer tb.Release()

	tb.AppendValue(10)
	tb.AppendValues([]int64{20, 30, 40})
	assert.Equal(t, 4, tb.Len())
	assert.Equal(t, []int64{10, 20, 30, 40}, tb.Values())
	assert.Equal(t, 8*4, tb.bufferBuilder.Len())

	tb.SetValue(1, 21)
	assert.Equal(t, int64(21), tb.Value(1))

	tb.reserve(100)
	assert.GreaterOrEqual(t, tb.Cap(), 104)
	assert.Equal(t, 4, tb.Len())

	tb.truncate(2)
	assert.Equal(t, []int64{10, 21}, tb.Values())
	tb.truncate(5)
	assert.Equal(t, 2, tb.Len())

	tb.Reset()
	assert.Zero(t, tb.Len())
	assert.Zero(t, tb.Cap())
}

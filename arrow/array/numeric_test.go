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

package array_test

import (
	"math"
	"strings"
	"testing"

	"github.com/colarrow/go/arrow"
	"github.com/colarrow/go/arrow/array"
	"github.com/colarrow/go/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericBuilder(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := array.NewNumericBuilder[int64](mem)
	defer b.Release()

	b.Append(1)
	b.Append(2)
	b.AppendNull()
	b.AppendValues([]int64{4, 5, 6}, []bool{true, false, true})
	b.AppendEmptyValues(2)

	assert.Equal(t, 8, b.Len())
	assert.Equal(t, 2, b.NullN())
	assert.GreaterOrEqual(t, b.Cap(), 8)
	assert.Equal(t, int64(4), b.Value(3))

	arr := b.NewNumericArray()
	defer arr.Release()

	assert.Equal(t, []int64{1, 2}, arr.Values()[:2])
	assert.Equal(t, "[1 2 (null) 4 (null) 6 0 0]", arr.String())
	assert.Equal(t, "6", arr.ValueStr(5))
	assert.Equal(t, array.NullValueStr, arr.ValueStr(2))

	assert.Zero(t, b.Len())
	assert.Zero(t, b.NullN())
}

func TestNumericBuilderNoNulls(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := array.NewFloat32Builder(mem)
	defer b.Release()
	b.AppendValues([]float32{1.5, 2.25}, nil)

	arr := b.NewArray()
	defer arr.Release()

	assert.Zero(t, arr.NullN())
	assert.Equal(t, "2.25", arr.ValueStr(1))
}

func TestNumericBuilderSetNull(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := array.NewUint8Builder(mem)
	defer b.Release()
	b.AppendValues([]uint8{1, 2, 3}, nil)
	b.SetNull(0)
	b.SetNull(0)

	assert.Equal(t, 1, b.NullN())
	assert.PanicsWithError(t, "index error: arrow/array: builder index 3 out of range [0, 3)", func() { b.SetNull(3) })

	arr := b.NewArray()
	defer arr.Release()
	assert.Equal(t, "[(null) 2 3]", arr.String())
}

func TestNumericBuilderResize(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := array.NewInt16Builder(mem)
	defer b.Release()

	b.Reserve(100)
	assert.GreaterOrEqual(t, b.Cap(), 100)
	for i := 0; i < 100; i++ {
		b.Append(int16(i))
	}

	b.Resize(10)
	assert.Equal(t, 10, b.Len())

	arr := b.NewArray().(*array.Int16)
	defer arr.Release()
	assert.Equal(t, []int16{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, arr.Values())
}

func TestNumericJSON(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := array.NewFloat64Builder(mem)
	defer b.Release()
	b.AppendValues([]float64{1, math.NaN(), math.Inf(1), math.Inf(-1), 0}, []bool{true, true, true, true, false})

	arr := b.NewArray()
	defer arr.Release()

	out, err := arr.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[1, "NaN", "+Inf", "-Inf", null]`, string(out))

	back, _, err := array.FromJSON(mem, arrow.PrimitiveTypes.Float64, strings.NewReader(string(out)))
	require.NoError(t, err)
	defer back.Release()

	vals := back.(*array.Float64).Values()
	assert.True(t, math.IsNaN(vals[1]))
	assert.True(t, math.IsInf(vals[2], 1))
	assert.True(t, math.IsInf(vals[3], -1))
	assert.True(t, back.IsNull(4))
}

func TestNumericUnmarshalBounds(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := array.NewUint8Builder(mem)
	defer b.Release()

	assert.NoError(t, b.UnmarshalJSON([]byte(`[0, "255", null]`)))
	assert.Error(t, b.UnmarshalJSON([]byte(`["256"]`)))
	assert.Error(t, b.UnmarshalJSON([]byte(`{}`)))

	arr := b.NewArray()
	defer arr.Release()
	assert.Equal(t, "[0 255 (null)]", arr.String())
}

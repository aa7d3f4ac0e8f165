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
	"testing"

	"github.com/colarrow/go/arrow"
	"github.com/colarrow/go/arrow/array"
	"github.com/colarrow/go/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListViewArray(t *testing.T) {
	pool := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer pool.AssertSize(t, 0)

	lb := array.NewListViewBuilder(pool, arrow.PrimitiveTypes.Int32)
	defer lb.Release()

	for i := 0; i < 3; i++ {
		vb := lb.ValueBuilder().(*array.Int32Builder)

		// [1, 2, 3], null, [], [4]
		lb.Append(true)
		vb.AppendValues([]int32{1, 2, 3}, nil)
		lb.AppendNull()
		lb.Append(true)
		lb.Append(true)
		vb.Append(4)

		arr := lb.NewListViewArray()
		require.NoError(t, arr.ValidateFull())

		assert.Equal(t, 4, arr.Len())
		assert.Equal(t, 1, arr.NullN())
		assert.Equal(t, []int32{0, 3, 3, 3}, arr.Offsets())
		assert.Equal(t, []int32{3, 0, 0, 1}, arr.Sizes())
		assert.Equal(t, "[[1 2 3] (null) [] [4]]", arr.String())
		arr.Release()
	}
}

func TestListViewNullOffsetFollowsPreviousSlot(t *testing.T) {
	pool := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer pool.AssertSize(t, 0)

	lb := array.NewLargeListViewBuilder(pool, arrow.PrimitiveTypes.Int32)
	defer lb.Release()
	vb := lb.ValueBuilder().(*array.Int32Builder)

	lb.AppendNull()
	lb.AppendWithSize(true, 2)
	vb.AppendValues([]int32{1, 2}, nil)
	lb.AppendNulls(2)

	arr := lb.NewLargeListViewArray()
	defer arr.Release()

	assert.Equal(t, arrow.LargeListViewOf(arrow.PrimitiveTypes.Int32), arr.DataType())
	assert.Equal(t, []int64{0, 0, 2, 2}, arr.Offsets())
	assert.Equal(t, []int64{0, 2, 0, 0}, arr.Sizes())
	assert.Equal(t, 3, arr.NullN())
	assert.NoError(t, arr.ValidateFull())
}

func TestListViewBuilderSetNull(t *testing.T) {
	pool := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer pool.AssertSize(t, 0)

	lb := array.NewListViewBuilder(pool, arrow.PrimitiveTypes.Int32)
	defer lb.Release()
	vb := lb.ValueBuilder().(*array.Int32Builder)

	lb.Append(true)
	vb.AppendValues([]int32{1, 2}, nil)
	lb.Append(true)
	vb.AppendValues([]int32{3, 4, 5}, nil)
	lb.Append(true)
	vb.Append(6)

	// slot 0 is committed, slot 2 is still open
	lb.SetNull(0)
	lb.SetNull(2)

	arr := lb.NewListViewArray()
	defer arr.Release()

	assert.Equal(t, []int32{0, 2, 5}, arr.Offsets())
	assert.Equal(t, []int32{0, 3, 0}, arr.Sizes())
	assert.Equal(t, 2, arr.NullN())
	assert.True(t, arr.IsValid(1))

	values := arr.ListValues()
	assert.True(t, values.IsNull(0))
	assert.True(t, values.IsNull(1))
	assert.True(t, values.IsValid(2))
	assert.True(t, values.IsNull(5))
	assert.Equal(t, 3, values.NullN())
	assert.Equal(t, "[(null) [3 4 5] (null)]", arr.String())
}

func TestListViewBuilderSetNullOpenSlot(t *testing.T) {
	pool := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer pool.AssertSize(t, 0)

	lb := array.NewListViewBuilder(pool, arrow.PrimitiveTypes.Int32)
	defer lb.Release()
	vb := lb.ValueBuilder().(*array.Int32Builder)

	lb.Append(true)
	vb.AppendValues([]int32{1, 2}, nil)
	lb.SetNull(0)

	// the slot is closed, later elements belong to the next slot
	lb.Append(true)
	vb.Append(3)

	arr := lb.NewListViewArray()
	defer arr.Release()

	assert.False(t, arr.IsValid(0))
	assert.Equal(t, []int32{0, 1}, arr.Sizes())
	assert.Equal(t, []int32{0, 2}, arr.Offsets())

	values := arr.ListValues()
	assert.Equal(t, 3, values.Len())
	assert.Equal(t, 2, values.NullN())
	assert.True(t, values.IsValid(2))
	assert.Equal(t, "[(null) [3]]", arr.String())
	assert.NoError(t, arr.ValidateFull())
}

func TestListViewOutOfOrderSlots(t *testing.T) {
	pool := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer pool.AssertSize(t, 0)

	lb := array.NewListViewBuilder(pool, arrow.PrimitiveTypes.Int32)
	defer lb.Release()
	vb := lb.ValueBuilder().(*array.Int32Builder)

	vb.AppendValues([]int32{1, 2, 3, 4}, nil)
	lb.AppendValuesWithSizes([]int32{2, 0, 1}, []int32{2, 2, 3}, nil)

	arr := lb.NewListViewArray()
	defer arr.Release()

	require.NoError(t, arr.ValidateFull())
	assert.Equal(t, "[[3 4] [1 2] [2 3 4]]", arr.String())
	assert.EqualValues(t, 3, arr.GetValueLength(2))

	slice := array.NewSlice(arr, 1, 3).(*array.ListView)
	defer slice.Release()
	assert.Equal(t, []int32{0, 1}, slice.Offsets())
	assert.Equal(t, "[[1 2] [2 3 4]]", slice.String())
}

func TestListViewValidateFull(t *testing.T) {
	pool := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer pool.AssertSize(t, 0)

	lb := array.NewListViewBuilder(pool, arrow.PrimitiveTypes.Int32)
	defer lb.Release()
	vb := lb.ValueBuilder().(*array.Int32Builder)

	vb.AppendValues([]int32{1, 2}, nil)
	lb.AppendValuesWithSizes([]int32{1}, []int32{2}, nil)

	arr := lb.NewListViewArray()
	defer arr.Release()

	assert.NoError(t, arr.Validate())
	assert.ErrorIs(t, arr.ValidateFull(), arrow.ErrInvalid)
}

func TestListViewBuilderUnmarshalJSON(t *testing.T) {
	pool := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer pool.AssertSize(t, 0)

	lb := array.NewListViewBuilder(pool, arrow.BinaryTypes.String)
	defer lb.Release()

	require.NoError(t, lb.UnmarshalJSON([]byte(`[["a", "b"], null, ["c"]]`)))
	arr := lb.NewListViewArray()
	defer arr.Release()

	assert.Equal(t, []int32{0, 2, 2}, arr.Offsets())
	assert.Equal(t, []int32{2, 0, 1}, arr.Sizes())

	out, err := arr.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[["a","b"],null,["c"]]`, string(out))
}

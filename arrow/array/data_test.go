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
	"fmt"
	"testing"

	"github.com/colarrow/go/arrow"
	"github.com/colarrow/go/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataReset(t *testing.T) {
	var (
		buffers1 = make([]*memory.Buffer, 0, 3)
		buffers2 = make([]*memory.Buffer, 0, 3)
	)
	for i := 0; i < cap(buffers1); i++ {
		buffers1 = append(buffers1, memory.NewBufferBytes([]byte("some-bytes1")))
		buffers2 = append(buffers2, memory.NewBufferBytes([]byte("some-bytes2")))
	}

	data := NewData(&arrow.StringType{}, 10, buffers1, nil, 0, 0)
	data.Reset(&arrow.Int64Type{}, 5, buffers2, nil, 1, 2)

	for i := 0; i < 2; i++ {
		assert.Equal(t, buffers2, data.Buffers())
		assert.Equal(t, &arrow.Int64Type{}, data.DataType())
		assert.Equal(t, 1, data.NullN())
		assert.Equal(t, 2, data.Offset())
		assert.Equal(t, 5, data.Len())

		// Make sure it works when resetting the data with its own buffers (new buffers are retained
		// before old ones are released.)
		data.Reset(&arrow.Int64Type{}, 5, data.Buffers(), nil, 1, 2)
	}
}

func TestSizeInBytes(t *testing.T) {
	var buffers1 = make([]*memory.Buffer, 0, 3)

	for i := 0; i < cap(buffers1); i++ {
		buffers1 = append(buffers1, memory.NewBufferBytes([]byte("15-bytes-buffer")))
	}
	data := NewData(&arrow.StringType{}, 10, buffers1, nil, 0, 0)
	var arrayData arrow.ArrayData = data
	dataWithChild := NewData(&arrow.StringType{}, 10, buffers1, []arrow.ArrayData{arrayData}, 0, 0)

	t.Run("buffers only", func(t *testing.T) {
		assert.Equal(t, uint64(45), data.SizeInBytes())
	})

	t.Run("buffers and child data", func(t *testing.T) {
		// 45 bytes in buffers, 45 bytes in child data
		assert.Equal(t, uint64(90), dataWithChild.SizeInBytes())
	})

	t.Run("buffers and nested child data", func(t *testing.T) {
		var dataWithChildArrayData arrow.ArrayData = dataWithChild
		var dataWithNestedChild arrow.ArrayData = NewData(&arrow.StringType{}, 10, buffers1, []arrow.ArrayData{dataWithChildArrayData}, 0, 0)
		// 45 bytes in buffers, 90 bytes in nested child data
		assert.Equal(t, uint64(135), dataWithNestedChild.SizeInBytes())
	})

	t.Run("buffers and dictionary", func(t *testing.T) {
		dictData := data
		dataWithDict := NewDataWithDictionary(&arrow.StringType{}, 10, buffers1, 0, 0, dictData)
		// 45 bytes in buffers, 45 bytes in dictionary
		assert.Equal(t, uint64(90), dataWithDict.SizeInBytes())
	})

	t.Run("sliced data", func(t *testing.T) {
		sliceData := NewSliceData(arrayData, 3, 5)
		// offset is not taken into account in SizeInBytes()
		assert.Equal(t, uint64(45), sliceData.SizeInBytes())
	})
}

func TestDataCopy(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	ib := NewInt32Builder(mem)
	defer ib.Release()

	ib.AppendValues([]int32{1, 2, 3}, []bool{true, false, true})
	arr := ib.NewArray()
	defer arr.Release()

	t.Run("without dictionary", func(t *testing.T) {
		src := arr.Data().(*Data)
		cp := src.Copy()
		defer cp.Release()

		assert.True(t, src.Dictionary() == nil)
		assert.True(t, cp.Dictionary() == nil)
		assert.Nil(t, cp.dictionary)
		assert.Equal(t, 3, cp.Len())
		assert.Equal(t, 1, cp.NullN())
		assert.Same(t, src.Buffers()[1], cp.Buffers()[1])

		cp.SetDictionary((*Data)(nil))
		assert.True(t, cp.Dictionary() == nil)

		slice := NewSliceData(cp, 1, 3)
		defer slice.Release()
		assert.True(t, slice.Dictionary() == nil)
	})

	t.Run("with dictionary", func(t *testing.T) {
		ib.AppendValues([]int32{0, 2}, nil)
		indices := ib.NewArray()
		defer indices.Release()

		dt := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int32, ValueType: arrow.PrimitiveTypes.Int32}
		src := NewDataWithDictionary(dt, 2, indices.Data().Buffers(), 0, 0, arr.Data().(*Data))
		defer src.Release()

		cp := src.Copy()
		defer cp.Release()
		assert.Same(t, src.Dictionary(), cp.Dictionary())
		assert.EqualValues(t, 3, cp.dictionary.refCount)

		slice := NewSliceData(cp, 1, 2)
		defer slice.Release()
		assert.Same(t, src.Dictionary(), slice.Dictionary())
	})
}

func TestSliceDataBounds(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	bldr := NewInt32Builder(mem)
	defer bldr.Release()
	bldr.AppendValues([]int32{1, 2, 3, 4, 5}, nil)
	arr := bldr.NewArray()
	defer arr.Release()

	for _, tc := range []struct {
		name string
		i, j int64
	}{
		{"i > j", 3, 2},
		{"negative i", -1, 2},
		{"j past len", 0, 6},
	} {
		t.Run(tc.name, func(t *testing.T) {
			msg := fmt.Sprintf("index error: arrow/array: slice [%d:%d] out of range for data of length 5", tc.i, tc.j)
			assert.PanicsWithError(t, msg, func() {
				NewSliceData(arr.Data(), tc.i, tc.j)
			})
		})
	}

	slice := NewSliceData(arr.Data(), 5, 5)
	defer slice.Release()
	assert.Zero(t, slice.Len())
	assert.Equal(t, 5, slice.Offset())
}

func TestSliceDataNullCount(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	bldr := NewInt32Builder(mem)
	defer bldr.Release()

	bldr.AppendValues([]int32{1, 2, 3, 4}, nil)
	noNulls := bldr.NewArray()
	defer noNulls.Release()

	slice := NewSliceData(noNulls.Data(), 1, 3).(*Data)
	defer slice.Release()
	assert.EqualValues(t, 0, slice.nulls, "parent without nulls gives a known zero count")

	bldr.AppendValues([]int32{1, 2, 3, 4}, []bool{true, false, true, false})
	withNulls := bldr.NewArray()
	defer withNulls.Release()

	slice2 := NewSliceData(withNulls.Data(), 1, 3).(*Data)
	defer slice2.Release()
	assert.EqualValues(t, UnknownNullCount, slice2.nulls)
	assert.Equal(t, 1, slice2.NullN())
	assert.EqualValues(t, 1, slice2.nulls, "computed count is cached")
}

func TestUnionNullCountIsDerived(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	dt := arrow.SparseUnionOf([]arrow.Field{{Name: "i", Type: arrow.PrimitiveTypes.Int32, Nullable: true}}, []arrow.UnionTypeCode{0})
	bldr := NewSparseUnionBuilder(mem, dt)
	defer bldr.Release()

	ib := bldr.Child(0).(*Int32Builder)
	bldr.Append(0)
	ib.Append(1)
	bldr.AppendNull()
	bldr.Append(0)
	ib.Append(3)

	arr := bldr.NewArray()
	defer arr.Release()

	data := arr.Data().(*Data)
	require.EqualValues(t, UnknownNullCount, data.nulls)
	assert.Equal(t, 1, data.NullN())
	assert.EqualValues(t, UnknownNullCount, data.nulls, "union null count is never cached")
}

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
	"fmt"
	"sync"
	"testing"

	"github.com/colarrow/go/arrow"
	"github.com/colarrow/go/arrow/array"
	"github.com/colarrow/go/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type unsupportedType struct{}

func (unsupportedType) ID() arrow.Type                { return arrow.Type(99) }
func (unsupportedType) Name() string                  { return "unsupported" }
func (unsupportedType) String() string                { return "unsupported" }
func (unsupportedType) Fingerprint() string           { return "unsupported" }
func (unsupportedType) Layout() arrow.DataTypeLayout { return arrow.DataTypeLayout{} }

func allTypes() []struct {
	dt   arrow.DataType
	want string
} {
	strDict := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int32, ValueType: arrow.BinaryTypes.String}
	fields := []arrow.Field{
		{Name: "a", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "b", Type: arrow.BinaryTypes.Binary, Nullable: true},
	}
	return []struct {
		dt   arrow.DataType
		want string
	}{
		{arrow.Null, "*array.Null"},
		{arrow.FixedWidthTypes.Boolean, "*array.Boolean"},
		{arrow.PrimitiveTypes.Int8, "*array.Numeric[int8]"},
		{arrow.PrimitiveTypes.Int16, "*array.Numeric[int16]"},
		{arrow.PrimitiveTypes.Int32, "*array.Numeric[int32]"},
		{arrow.PrimitiveTypes.Int64, "*array.Numeric[int64]"},
		{arrow.PrimitiveTypes.Uint8, "*array.Numeric[uint8]"},
		{arrow.PrimitiveTypes.Uint16, "*array.Numeric[uint16]"},
		{arrow.PrimitiveTypes.Uint32, "*array.Numeric[uint32]"},
		{arrow.PrimitiveTypes.Uint64, "*array.Numeric[uint64]"},
		{arrow.PrimitiveTypes.Float32, "*array.Numeric[float32]"},
		{arrow.PrimitiveTypes.Float64, "*array.Numeric[float64]"},
		{arrow.BinaryTypes.Binary, "*array.Binary"},
		{arrow.BinaryTypes.String, "*array.String"},
		{arrow.ListOf(arrow.PrimitiveTypes.Int8), "*array.List"},
		{arrow.LargeListOf(arrow.PrimitiveTypes.Int8), "*array.LargeList"},
		{arrow.ListViewOf(arrow.PrimitiveTypes.Int8), "*array.ListView"},
		{arrow.LargeListViewOf(arrow.PrimitiveTypes.Int8), "*array.LargeListView"},
		{arrow.StructOf(fields...), "*array.Struct"},
		{arrow.SparseUnionOf(fields, []arrow.UnionTypeCode{0, 1}), "*array.SparseUnion"},
		{arrow.DenseUnionOf(fields, []arrow.UnionTypeCode{0, 1}), "*array.DenseUnion"},
		{strDict, "*array.Dictionary"},
		{arrow.RunEndEncodedOf(arrow.PrimitiveTypes.Int16, arrow.BinaryTypes.String), "*array.RunEndEncoded"},
	}
}

func TestMakeFromData(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	for _, tt := range allTypes() {
		t.Run(tt.dt.String(), func(t *testing.T) {
			bldr := array.NewBuilder(mem, tt.dt)
			defer bldr.Release()
			assert.True(t, arrow.TypeEqual(tt.dt, bldr.Type()))

			bldr.AppendNulls(3)
			bldr.AppendEmptyValue()
			built := bldr.NewArray()
			defer built.Release()

			arr := array.MakeFromData(built.Data())
			defer arr.Release()

			assert.Equal(t, tt.want, fmt.Sprintf("%T", arr))
			assert.Equal(t, 4, arr.Len())
			// the null type has no valid slots, and an empty dictionary
			// has no entry for an empty value to select
			wantNulls := 3
			if id := tt.dt.ID(); id == arrow.NULL || id == arrow.DICTIONARY {
				wantNulls = 4
			}
			assert.Equal(t, wantNulls, arr.NullN(), "%v", arr)
			assert.NoError(t, array.ValidateFull(arr))
			assert.True(t, array.Equal(built, arr))
		})
	}
}

func TestMakeFromDataUnsupported(t *testing.T) {
	data := array.NewData(unsupportedType{}, 0, nil, nil, 0, 0)
	defer data.Release()

	assert.PanicsWithError(t, "not implemented: arrow/array: no array implementation for type unsupported", func() {
		array.MakeFromData(data)
	})
	assert.Panics(t, func() { array.NewBuilder(memory.DefaultAllocator, unsupportedType{}) })
}

func TestMakeFromDataTypeMismatch(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	bldr := array.NewInt32Builder(mem)
	defer bldr.Release()
	bldr.Append(1)
	arr := bldr.NewArray()
	defer arr.Release()

	assert.PanicsWithError(t, "type error: arrow/array: cannot construct INT64 array from data of type int32", func() {
		array.NewInt64Data(arr.Data())
	})
	assert.PanicsWithError(t, "invalid: arrow/array: list<item: int32, nullable> data requires 1 children, got 0", func() {
		data := array.NewData(arrow.ListOf(arrow.PrimitiveTypes.Int32), 0, []*memory.Buffer{nil, nil}, nil, 0, 0)
		defer data.Release()
		array.NewListData(data)
	})
}

func TestMakeArrayOfNull(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	for _, tt := range allTypes() {
		t.Run(tt.dt.String(), func(t *testing.T) {
			arr := array.MakeArrayOfNull(mem, tt.dt, 5)
			defer arr.Release()

			assert.Equal(t, 5, arr.Len())
			assert.Equal(t, 5, arr.NullN())
			for i := 0; i < arr.Len(); i++ {
				assert.True(t, arr.IsNull(i))
				assert.Equal(t, array.NullValueStr, arr.ValueStr(i))
			}
		})
	}
}

// The slice scenario: an int32 array of ten values with nulls at
// positions 2 and 5, sliced to offset 3 and length 4.
func TestArraySliceWindow(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	bldr := array.NewInt32Builder(mem)
	defer bldr.Release()

	valid := make([]bool, 10)
	for i := range valid {
		valid[i] = i != 2 && i != 5
	}
	bldr.AppendValues([]int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, valid)
	arr := bldr.NewNumericArray()
	defer arr.Release()

	slice := array.NewSlice(arr, 3, 7).(*array.Int32)
	defer slice.Release()

	assert.Equal(t, 4, slice.Len())
	assert.Equal(t, 3, slice.Data().Offset())
	assert.Equal(t, 1, slice.NullN())
	assert.Equal(t, "[3 4 (null) 6]", slice.String())
	assert.Same(t, arr.Data().Buffers()[1], slice.Data().Buffers()[1])

	nested := array.NewSlice(slice, 1, 3)
	defer nested.Release()
	assert.Equal(t, 4, nested.Data().Offset())
	assert.True(t, nested.IsNull(1))

	assert.Panics(t, func() { array.NewSlice(arr, 8, 11) })
	assert.Panics(t, func() { array.NewSlice(arr, 5, 4) })
}

func TestLazyChildConcurrentAccess(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	lb := array.NewListBuilder(mem, arrow.PrimitiveTypes.Int32)
	defer lb.Release()
	vb := lb.ValueBuilder().(*array.Int32Builder)

	for round := 0; round < 8; round++ {
		for i := 0; i < 16; i++ {
			lb.Append(true)
			vb.AppendValues([]int32{int32(i), int32(i + round)}, nil)
		}
		arr := lb.NewListArray()

		var (
			mu   sync.Mutex
			seen = make(map[arrow.Array]struct{})
			g    errgroup.Group
		)
		for i := 0; i < 8; i++ {
			g.Go(func() error {
				values := arr.ListValues()
				if values.Len() != 32 {
					return fmt.Errorf("unexpected child length %d", values.Len())
				}
				mu.Lock()
				seen[values] = struct{}{}
				mu.Unlock()
				return nil
			})
		}
		require.NoError(t, g.Wait())
		assert.Len(t, seen, 1)
		arr.Release()
	}
}

type kindCounter struct {
	lists, structs, other int
}

func (k *kindCounter) Visit(arrow.Array) error { k.other++; return nil }

func (k *kindCounter) VisitList(a *array.List) error {
	k.lists++
	return array.Visit(a.ListValues(), k)
}

func (k *kindCounter) VisitStruct(a *array.Struct) error {
	k.structs++
	for i := 0; i < a.NumField(); i++ {
		if err := array.Visit(a.Field(i), k); err != nil {
			return err
		}
	}
	return nil
}

func TestVisit(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	dt := arrow.StructOf(
		arrow.Field{Name: "l", Type: arrow.ListOf(arrow.PrimitiveTypes.Int8), Nullable: true},
		arrow.Field{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true},
	)
	arr := array.MakeArrayOfNull(mem, dt, 2)
	defer arr.Release()

	var k kindCounter
	require.NoError(t, array.Visit(arr, &k))
	assert.Equal(t, kindCounter{lists: 1, structs: 1, other: 2}, k)
}

type failingVisitor struct{ err error }

func (f failingVisitor) Visit(arrow.Array) error { return f.err }

func TestVisitFallbackError(t *testing.T) {
	arr := array.NewNull(3)
	defer arr.Release()

	err := array.Visit(arr, failingVisitor{err: arrow.ErrNotImplemented})
	assert.ErrorIs(t, err, arrow.ErrNotImplemented)
}

func TestValidateNested(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	values := buildInt32s(t, mem, []int32{1, 2}, nil)
	defer values.Release()
	runEnds := buildInt32s(t, mem, []int32{2, 1}, nil)
	defer runEnds.Release()

	ree := array.NewRunEndEncodedArray(runEnds, values, 1, 0)
	defer ree.Release()

	offsets := memory.NewBufferBytes(arrow.GetBytes([]int32{0, 1}))
	data := array.NewData(arrow.ListOf(ree.DataType()), 1, []*memory.Buffer{nil, offsets},
		[]arrow.ArrayData{ree.Data()}, 0, 0)
	defer data.Release()
	list := array.NewListData(data)
	defer list.Release()

	assert.NoError(t, array.Validate(list))
	assert.ErrorIs(t, array.ValidateFull(list), arrow.ErrInvalid)
}

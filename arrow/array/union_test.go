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
	"github.com/stretchr/testify/suite"
)

func intStrFields() []arrow.Field {
	return []arrow.Field{
		{Name: "i", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true},
	}
}

type UnionFactorySuite struct {
	suite.Suite

	mem            *memory.CheckedAllocator
	codes          []arrow.UnionTypeCode
	typeIDs        arrow.Array
	logicalTypeIDs arrow.Array
	invalidTypeIDs arrow.Array
	intChild       arrow.Array
	strChild       arrow.Array
}

func (s *UnionFactorySuite) typeidsFromSlice(ids ...int8) arrow.Array {
	bldr := array.NewInt8Builder(s.mem)
	defer bldr.Release()
	bldr.AppendValues(ids, nil)
	return bldr.NewArray()
}

func (s *UnionFactorySuite) SetupTest() {
	s.mem = memory.NewCheckedAllocator(memory.NewGoAllocator())
	s.codes = []arrow.UnionTypeCode{1, 2}
	s.typeIDs = s.typeidsFromSlice(0, 1, 0, 1, 0)
	s.logicalTypeIDs = s.typeidsFromSlice(1, 2, 1, 2, 1)
	s.invalidTypeIDs = s.typeidsFromSlice(1, 2, 1, 7, 1)

	ib := array.NewInt32Builder(s.mem)
	defer ib.Release()
	ib.AppendValues([]int32{1, 2, 3, 4, 5}, []bool{true, true, false, true, true})
	s.intChild = ib.NewArray()

	sb := array.NewStringBuilder(s.mem)
	defer sb.Release()
	sb.AppendValues([]string{"a", "b", "c", "d", "e"}, nil)
	s.strChild = sb.NewArray()
}

func (s *UnionFactorySuite) TearDownTest() {
	arrow.ReleaseArrays(s.typeIDs, s.logicalTypeIDs, s.invalidTypeIDs, s.intChild, s.strChild)
	s.mem.AssertSize(s.T(), 0)
}

func (s *UnionFactorySuite) TestSparseFromArrays() {
	children := []arrow.Array{s.intChild, s.strChild}

	arr, err := array.NewSparseUnionFromArrays(s.typeIDs, children)
	s.Require().NoError(err)
	defer arr.Release()

	s.NoError(arr.ValidateFull())
	s.Equal(arrow.SparseMode, arr.Mode())
	s.Equal(2, arr.NumFields())
	s.Equal([]arrow.UnionTypeCode{0, 1, 0, 1, 0}, arr.RawTypeCodes())
	s.Equal("0", arr.UnionType().Fields()[0].Name)
	s.Same(arr.Field(0), arr.Field(0))
	s.Nil(arr.Field(2))

	// slot 2 selects the null int
	s.Equal(1, arr.NullN())
	s.True(arr.IsNull(2))
	s.True(arr.IsValid(3))

	named, err := array.NewSparseUnionFromArraysWithFieldCodes(s.logicalTypeIDs, children, []string{"i", "s"}, s.codes)
	s.Require().NoError(err)
	defer named.Release()

	s.NoError(named.ValidateFull())
	s.Equal(1, named.ChildID(1))
	s.Equal(arrow.UnionTypeCode(2), named.TypeCode(1))
	s.Equal(`{"s":"b"}`, named.ValueStr(1))
	s.Equal(array.NullValueStr, named.ValueStr(2))
	s.JSONEq(`[{"i":1},{"s":"b"},null,{"s":"d"},{"i":5}]`, mustJSON(s.T(), named))

	invalid, err := array.NewSparseUnionFromArraysWithFieldCodes(s.invalidTypeIDs, children, []string{"i", "s"}, s.codes)
	s.Require().NoError(err)
	defer invalid.Release()
	s.NoError(invalid.Validate())
	s.ErrorIs(invalid.ValidateFull(), arrow.ErrInvalid)
}

func (s *UnionFactorySuite) TestSparseFromArraysErrors() {
	children := []arrow.Array{s.intChild, s.strChild}

	_, err := array.NewSparseUnionFromArrays(s.intChild, children)
	s.ErrorIs(err, arrow.ErrType)

	_, err = array.NewSparseUnionFromArraysWithFields(s.typeIDs, children, []string{"one"})
	s.ErrorIs(err, arrow.ErrInvalid)

	_, err = array.NewSparseUnionFromArrays(s.typeIDs, children, 0)
	s.ErrorIs(err, arrow.ErrInvalid)

	short := array.NewSlice(s.strChild, 0, 3)
	defer short.Release()
	_, err = array.NewSparseUnionFromArrays(s.typeIDs, []arrow.Array{s.intChild, short})
	s.ErrorIs(err, arrow.ErrInvalid)
}

func (s *UnionFactorySuite) TestDenseFromArrays() {
	offsetsBldr := array.NewInt32Builder(s.mem)
	defer offsetsBldr.Release()
	offsetsBldr.AppendValues([]int32{0, 0, 2, 1, 4}, nil)
	offsets := offsetsBldr.NewArray()
	defer offsets.Release()

	children := []arrow.Array{s.intChild, s.strChild}
	arr, err := array.NewDenseUnionFromArraysWithFields(s.typeIDs, offsets, children, []string{"i", "s"})
	s.Require().NoError(err)
	defer arr.Release()

	s.NoError(arr.ValidateFull())
	s.Equal(arrow.DenseMode, arr.Mode())
	s.Equal([]int32{0, 0, 2, 1, 4}, arr.RawValueOffsets())
	s.Equal(int32(2), arr.ValueOffset(2))
	s.Equal(1, arr.NullN())
	s.True(arr.IsNull(2))
	s.Equal(`{"s":"b"}`, arr.ValueStr(3))
	s.Equal("[{i=1} {s=a} {i=<nil>} {s=b} {i=5}]", arr.String())

	_, err = array.NewDenseUnionFromArrays(s.typeIDs, s.typeIDs, children)
	s.ErrorIs(err, arrow.ErrType)

	offsetsBldr.AppendValues([]int32{0, 9, 0, 0, 0}, nil)
	badOffsets := offsetsBldr.NewArray()
	defer badOffsets.Release()

	bad, err := array.NewDenseUnionFromArrays(s.typeIDs, badOffsets, children)
	s.Require().NoError(err)
	defer bad.Release()
	s.ErrorIs(bad.ValidateFull(), arrow.ErrInvalid)
}

func (s *UnionFactorySuite) TestGetFlattenedField() {
	arr, err := array.NewSparseUnionFromArrays(s.typeIDs, []arrow.Array{s.intChild, s.strChild})
	s.Require().NoError(err)
	defer arr.Release()

	_, err = arr.GetFlattenedField(s.mem, 2)
	s.ErrorIs(err, arrow.ErrIndex)

	ints, err := arr.GetFlattenedField(s.mem, 0)
	s.Require().NoError(err)
	defer ints.Release()
	s.Equal("[1 (null) (null) (null) 5]", ints.String())
	s.Equal(3, ints.NullN())

	strs, err := arr.GetFlattenedField(s.mem, 1)
	s.Require().NoError(err)
	defer strs.Release()
	s.Equal(`[(null) "b" (null) "d" (null)]`, strs.String())

	slice := array.NewSlice(arr, 1, 4).(*array.SparseUnion)
	defer slice.Release()

	sliced, err := slice.GetFlattenedField(s.mem, 1)
	s.Require().NoError(err)
	defer sliced.Release()
	s.Equal(`["b" (null) "d"]`, sliced.String())
}

func TestUnionFactories(t *testing.T) {
	suite.Run(t, new(UnionFactorySuite))
}

func TestSparseUnionBuilder(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	dt := arrow.SparseUnionOf(intStrFields(), []arrow.UnionTypeCode{0, 1})
	bldr := array.NewSparseUnionBuilder(mem, dt)
	defer bldr.Release()

	ib := bldr.Child(0).(*array.Int32Builder)
	sb := bldr.Child(1).(*array.StringBuilder)

	for i := 0; i < 2; i++ {
		bldr.Append(0)
		ib.Append(5)
		sb.AppendEmptyValue()

		bldr.Append(1)
		ib.AppendEmptyValue()
		sb.Append("x")

		bldr.AppendNull()

		assert.Equal(t, 3, bldr.Len())
		assert.Equal(t, 1, bldr.NullN())

		arr := bldr.NewSparseUnionArray()
		require.NoError(t, arr.ValidateFull())

		assert.Equal(t, []arrow.UnionTypeCode{0, 1, 0}, arr.RawTypeCodes())
		assert.Equal(t, "[5 0 (null)]", arr.Field(0).String())
		assert.Equal(t, `["" "x" ""]`, arr.Field(1).String())
		assert.Equal(t, 1, arr.NullN())
		assert.Nil(t, arr.Data().Buffers()[0])
		assert.Equal(t, "[{i=5} {s=x} {i=<nil>}]", arr.String())
		arr.Release()
	}
}

func TestSparseUnionBuilderSetNull(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	dt := arrow.SparseUnionOf(intStrFields(), []arrow.UnionTypeCode{3, 7})
	bldr := array.NewSparseUnionBuilder(mem, dt)
	defer bldr.Release()

	ib := bldr.Child(0).(*array.Int32Builder)
	sb := bldr.Child(1).(*array.StringBuilder)

	bldr.Append(7)
	ib.AppendEmptyValue()
	sb.Append("x")
	bldr.Append(3)
	ib.Append(4)
	sb.AppendEmptyValue()

	bldr.SetNull(0)
	assert.Equal(t, 1, bldr.NullN())
	assert.Panics(t, func() { bldr.SetNull(2) })

	arr := bldr.NewSparseUnionArray()
	defer arr.Release()

	assert.Equal(t, []arrow.UnionTypeCode{3, 3}, arr.RawTypeCodes())
	assert.True(t, arr.IsNull(0))
	assert.True(t, arr.Field(0).IsNull(0))
	assert.True(t, arr.Field(1).IsNull(0))
	assert.True(t, arr.IsValid(1))
}

func TestSparseUnionBuilderAppendNulls(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	dt := arrow.SparseUnionOf(intStrFields(), []arrow.UnionTypeCode{0, 1})
	bldr := array.NewSparseUnionBuilder(mem, dt)
	defer bldr.Release()

	bldr.AppendNulls(2)
	bldr.AppendEmptyValues(2)

	arr := bldr.NewArray()
	defer arr.Release()

	assert.Equal(t, 4, arr.Len())
	assert.Equal(t, 2, arr.NullN())
	u := arr.(*array.SparseUnion)
	assert.Equal(t, 4, u.Field(1).Len())
	assert.Zero(t, u.Field(1).NullN())
}

func TestSparseUnionBuilderChildLengthMismatch(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	dt := arrow.SparseUnionOf(intStrFields(), []arrow.UnionTypeCode{0, 1})
	bldr := array.NewSparseUnionBuilder(mem, dt)
	defer bldr.Release()

	bldr.Append(0)
	bldr.Child(0).(*array.Int32Builder).Append(1)

	assert.PanicsWithError(t, "invalid: arrow/array: sparse union child 1 has length 0, union has length 1", func() {
		bldr.NewArray()
	})
}

func TestUnionBuilderWithBuilders(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	sparse := arrow.SparseUnionOf(intStrFields(), []arrow.UnionTypeCode{0, 1})
	dense := arrow.DenseUnionOf(intStrFields(), []arrow.UnionTypeCode{0, 1})

	ib := array.NewInt32Builder(mem)
	defer ib.Release()
	sb := array.NewStringBuilder(mem)
	defer sb.Release()

	assert.Panics(t, func() { array.NewSparseUnionBuilderWithBuilders(mem, sparse, []array.Builder{ib}) })
	assert.Panics(t, func() { array.NewDenseUnionBuilderWithBuilders(mem, dense, []array.Builder{sb, ib}) })

	bldr := array.NewDenseUnionBuilderWithBuilders(mem, dense, []array.Builder{ib, sb})
	defer bldr.Release()

	assert.Same(t, ib, bldr.Child(0))
	assert.Equal(t, 2, bldr.NumChildren())
	assert.Equal(t, arrow.DenseMode, bldr.Mode())
	assert.Panics(t, func() { bldr.Child(2) })

	require.NoError(t, bldr.UnmarshalJSON([]byte(`[{"i": 1}]`)))
	assert.Equal(t, 1, bldr.Len())
	assert.Equal(t, 1, ib.Len())
}

func TestDenseUnionBuilder(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	dt := arrow.DenseUnionOf(intStrFields(), []arrow.UnionTypeCode{0, 1})
	bldr := array.NewDenseUnionBuilder(mem, dt)
	defer bldr.Release()

	ib := bldr.Child(0).(*array.Int32Builder)
	sb := bldr.Child(1).(*array.StringBuilder)

	bldr.Append(0)
	ib.Append(5)
	bldr.Append(1)
	sb.Append("x")
	bldr.AppendNull()
	bldr.Append(0)
	ib.Append(7)

	assert.Equal(t, 1, bldr.NullN())

	// slot 0 moves to a fresh null, slot 2 already selects one
	bldr.SetNull(0)
	bldr.SetNull(2)
	assert.Equal(t, 2, bldr.NullN())
	assert.Equal(t, 4, ib.Len())

	arr := bldr.NewDenseUnionArray()
	defer arr.Release()

	require.NoError(t, arr.ValidateFull())
	assert.Equal(t, []arrow.UnionTypeCode{0, 1, 0, 0}, arr.RawTypeCodes())
	assert.Equal(t, []int32{3, 0, 1, 2}, arr.RawValueOffsets())
	assert.Equal(t, "[5 (null) 7 (null)]", arr.Field(0).String())
	assert.Equal(t, 2, arr.NullN())
	assert.True(t, arr.IsNull(0))
	assert.True(t, arr.IsValid(1))
	assert.JSONEq(t, `[null,{"s":"x"},null,{"i":7}]`, mustJSON(t, arr))
}

func TestDenseUnionBuilderSetNull(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	dt := arrow.DenseUnionOf(intStrFields(), []arrow.UnionTypeCode{3, 7})
	bldr := array.NewDenseUnionBuilder(mem, dt)
	defer bldr.Release()

	ib := bldr.Child(0).(*array.Int32Builder)
	sb := bldr.Child(1).(*array.StringBuilder)

	bldr.Append(7)
	sb.Append("x")
	bldr.Append(3)
	ib.Append(4)
	bldr.Append(7)
	sb.Append("y")

	// slot 0 now selects a null appended to the first member
	bldr.SetNull(0)
	assert.Equal(t, 2, ib.Len())
	assert.Equal(t, 2, sb.Len())
	assert.Equal(t, 1, bldr.NullN())

	bldr.SetNull(0)
	assert.Equal(t, 2, ib.Len())
	assert.Equal(t, 1, bldr.NullN())
	assert.Panics(t, func() { bldr.SetNull(3) })

	arr := bldr.NewDenseUnionArray()
	defer arr.Release()

	require.NoError(t, arr.ValidateFull())
	assert.Equal(t, []arrow.UnionTypeCode{3, 3, 7}, arr.RawTypeCodes())
	assert.Equal(t, []int32{1, 0, 1}, arr.RawValueOffsets())
	assert.Equal(t, "[4 (null)]", arr.Field(0).String())
	assert.Equal(t, `["x" "y"]`, arr.Field(1).String())
	assert.True(t, arr.IsNull(0))
	assert.True(t, arr.IsValid(1))
	assert.True(t, arr.IsValid(2))
	assert.JSONEq(t, `[null,{"i":4},{"s":"y"}]`, mustJSON(t, arr))
}

func TestSparseUnionSliceField(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	dt := arrow.SparseUnionOf(intStrFields(), []arrow.UnionTypeCode{0, 1})
	bldr := array.NewSparseUnionBuilder(mem, dt)
	defer bldr.Release()

	ib := bldr.Child(0).(*array.Int32Builder)
	sb := bldr.Child(1).(*array.StringBuilder)

	bldr.Append(0)
	ib.Append(1)
	sb.AppendEmptyValue()
	bldr.Append(1)
	ib.AppendEmptyValue()
	sb.Append("a")
	bldr.Append(0)
	ib.Append(3)
	sb.AppendEmptyValue()
	bldr.AppendNull()

	arr := bldr.NewArray()
	defer arr.Release()

	slice := array.NewSlice(arr, 1, 4).(*array.SparseUnion)
	defer slice.Release()

	assert.Equal(t, 3, slice.Len())
	assert.Equal(t, 1, slice.NullN())
	assert.Equal(t, []arrow.UnionTypeCode{1, 0, 0}, slice.RawTypeCodes())

	ints := slice.Field(0)
	assert.Equal(t, 3, ints.Len())
	assert.Equal(t, 1, ints.Data().Offset())
	assert.Equal(t, "[0 3 (null)]", ints.String())
	assert.Equal(t, `["a" "" ""]`, slice.Field(1).String())
	assert.Equal(t, "[{s=a} {i=3} {i=<nil>}]", slice.String())
}

func TestUnionBuilderUnmarshalJSON(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	const doc = `[[0, 5], null, {"s": "x"}, [1, null]]`

	t.Run("sparse", func(t *testing.T) {
		dt := arrow.SparseUnionOf(intStrFields(), []arrow.UnionTypeCode{0, 1})
		arr := fromJSON(t, mem, dt, doc)
		defer arr.Release()

		u := arr.(*array.SparseUnion)
		require.NoError(t, u.ValidateFull())
		assert.Equal(t, []arrow.UnionTypeCode{0, 0, 1, 1}, u.RawTypeCodes())
		assert.Equal(t, "[5 (null) 0 0]", u.Field(0).String())
		assert.Equal(t, `["" "" "x" (null)]`, u.Field(1).String())
		assert.Equal(t, 2, u.NullN())
		assert.JSONEq(t, `[{"i":5},null,{"s":"x"},null]`, mustJSON(t, u))
	})

	t.Run("dense", func(t *testing.T) {
		dt := arrow.DenseUnionOf(intStrFields(), []arrow.UnionTypeCode{0, 1})
		arr := fromJSON(t, mem, dt, doc)
		defer arr.Release()

		u := arr.(*array.DenseUnion)
		require.NoError(t, u.ValidateFull())
		assert.Equal(t, []arrow.UnionTypeCode{0, 0, 1, 1}, u.RawTypeCodes())
		assert.Equal(t, []int32{0, 1, 0, 1}, u.RawValueOffsets())
		assert.Equal(t, "[5 (null)]", u.Field(0).String())
		assert.Equal(t, `["x" (null)]`, u.Field(1).String())
		assert.Equal(t, 2, u.NullN())

		// null slots decode into the first member
		again := fromJSON(t, mem, dt, mustJSON(t, u))
		defer again.Release()
		assert.Equal(t, []arrow.UnionTypeCode{0, 0, 1, 0}, again.(*array.DenseUnion).RawTypeCodes())
		assert.JSONEq(t, mustJSON(t, u), mustJSON(t, again))
	})
}

func TestDenseUnionBuilderAppendNulls(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	dt := arrow.DenseUnionOf(intStrFields(), []arrow.UnionTypeCode{0, 1})
	bldr := array.NewDenseUnionBuilder(mem, dt)
	defer bldr.Release()

	bldr.AppendNulls(3)
	bldr.AppendEmptyValues(2)

	arr := bldr.NewDenseUnionArray()
	defer arr.Release()

	assert.Equal(t, []int32{0, 0, 0, 1, 1}, arr.RawValueOffsets())
	assert.Equal(t, 2, arr.Field(0).Len())
	assert.Zero(t, arr.Field(1).Len())
	assert.Equal(t, 3, arr.NullN())
}

func TestUnionSliceNullCount(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	dt := arrow.DenseUnionOf(intStrFields(), []arrow.UnionTypeCode{0, 1})
	bldr := array.NewDenseUnionBuilder(mem, dt)
	defer bldr.Release()

	ib := bldr.Child(0).(*array.Int32Builder)
	for i := 0; i < 8; i++ {
		if i%3 == 0 {
			bldr.AppendNull()
			continue
		}
		bldr.Append(0)
		ib.Append(int32(i))
	}

	arr := bldr.NewArray()
	defer arr.Release()
	assert.Equal(t, 3, arr.NullN())

	slice := array.NewSlice(arr, 3, 7)
	defer slice.Release()
	assert.Equal(t, 4, slice.Len())
	assert.Equal(t, 2, slice.NullN())
	assert.True(t, slice.IsNull(0))
	assert.Equal(t, `{"i":4}`, slice.ValueStr(1))
}

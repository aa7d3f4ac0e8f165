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

package arrow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListOf(t *testing.T) {
	for _, tc := range []DataType{
		Null,
		FixedWidthTypes.Boolean,
		PrimitiveTypes.Int16,
		BinaryTypes.String,
		ListOf(PrimitiveTypes.Int32),
		StructOf(Field{Name: "s", Type: PrimitiveTypes.Uint8}),
	} {
		t.Run(tc.String(), func(t *testing.T) {
			got := ListOf(tc)
			assert.Equal(t, &ListType{elem: Field{Name: "item", Type: tc, Nullable: true}}, got)
			assert.Equal(t, tc, got.Elem())
			assert.Equal(t, 1, got.NumFields())
			assert.Equal(t, []Field{got.ElemField()}, got.Fields())

			large := LargeListOf(tc)
			assert.Equal(t, LARGE_LIST, large.ID())
			assert.Equal(t, tc, large.Elem())
			assert.Equal(t, "large_"+got.String(), large.String())

			view := ListViewOf(tc)
			assert.Equal(t, "list_view<item: "+tc.String()+", nullable>", view.String())
			assert.Len(t, view.Layout().Buffers, 3)
		})
	}

	assert.PanicsWithValue(t, "arrow: nil DataType", func() { ListOf(nil) })
	assert.PanicsWithValue(t, "arrow: nil type for list field", func() { ListOfField(Field{Name: "x"}) })
}

func TestListNullability(t *testing.T) {
	nn := ListOfNonNullable(PrimitiveTypes.Int64)
	assert.Equal(t, "list<item: int64>", nn.String())
	nn.SetElemNullable(true)
	assert.Equal(t, "list<item: int64, nullable>", nn.String())

	lv := LargeListViewOf(PrimitiveTypes.Int64)
	lv.SetElemNullable(false)
	assert.False(t, lv.ElemField().Nullable)
	assert.Equal(t, Int64Traits, lv.OffsetTypeTraits())

	custom := ListOfField(Field{Name: "value", Type: BinaryTypes.Binary})
	assert.Equal(t, "list<value: binary>", custom.String())
}

func TestStructOf(t *testing.T) {
	md := NewMetadata([]string{"k"}, []string{"v"})
	fields := []Field{
		{Name: "a", Type: PrimitiveTypes.Int8, Nullable: true, Metadata: md},
		{Name: "b", Type: BinaryTypes.String},
	}
	st := StructOf(fields...)

	assert.Equal(t, STRUCT, st.ID())
	assert.Equal(t, "struct<a: int8, b: utf8>", st.String())
	assert.Equal(t, 2, st.NumFields())
	assert.Equal(t, fields, st.Fields())

	f, ok := st.FieldByName("b")
	assert.True(t, ok)
	assert.Equal(t, fields[1], f)
	idx, ok := st.FieldIdx("a")
	assert.True(t, ok)
	assert.Zero(t, idx)
	_, ok = st.FieldByName("missing")
	assert.False(t, ok)

	empty := StructOf()
	assert.Zero(t, empty.NumFields())
	_, ok = empty.FieldIdx("a")
	assert.False(t, ok)

	assert.PanicsWithError(t, `arrow: duplicate field with name "a"`, func() {
		StructOf(Field{Name: "a", Type: Null}, Field{Name: "a", Type: Null})
	})
	assert.PanicsWithValue(t, "arrow: field with nil DataType", func() { StructOf(Field{Name: "a"}) })
}

func TestFieldsImmutability(t *testing.T) {
	st := StructOf(Field{Name: "a", Type: PrimitiveTypes.Int8}, Field{Name: "b", Type: PrimitiveTypes.Int16})

	fields := st.Fields()
	fields[0].Name = "changed"
	fields[1].Type = BinaryTypes.Binary

	assert.Equal(t, "a", st.Field(0).Name)
	assert.Equal(t, PrimitiveTypes.Int16, st.Field(1).Type)

	u := SparseUnionOf([]Field{{Name: "x", Type: PrimitiveTypes.Int8}}, []UnionTypeCode{5})
	ufields := u.Fields()
	ufields[0].Name = "changed"
	assert.Equal(t, "x", u.Fields()[0].Name)
}

func TestUnionTypes(t *testing.T) {
	fields := []Field{
		{Name: "i", Type: PrimitiveTypes.Int32, Nullable: true},
		{Name: "s", Type: BinaryTypes.String, Nullable: true},
	}
	codes := []UnionTypeCode{3, 7}

	sparse := SparseUnionOf(fields, codes)
	assert.Equal(t, SPARSE_UNION, sparse.ID())
	assert.Equal(t, SparseMode, sparse.Mode())
	assert.Equal(t, "sparse_union<i: type=int32, nullable=3, s: type=utf8, nullable=7>", sparse.String())
	assert.Equal(t, UnionTypeCode(7), sparse.MaxTypeCode())
	assert.Equal(t, codes, sparse.TypeCodes())
	assert.Equal(t, 0, sparse.ChildIDs()[3])
	assert.Equal(t, 1, sparse.ChildIDs()[7])
	assert.Equal(t, InvalidUnionChildID, sparse.ChildIDs()[0])
	assert.Len(t, sparse.ChildIDs(), int(MaxUnionTypeCode)+1)
	assert.Len(t, sparse.Layout().Buffers, 2)

	dense := UnionOf(DenseMode, fields, codes)
	assert.Equal(t, DENSE_UNION, dense.ID())
	assert.Equal(t, "DENSE", dense.Mode().String())
	assert.Len(t, dense.Layout().Buffers, 3)
	assert.NotEqual(t, sparse.Fingerprint(), dense.Fingerprint())

	assert.Equal(t, "UnionMode(9)", UnionMode(9).String())
	assert.Zero(t, SparseUnionOf(nil, nil).MaxTypeCode())

	assert.PanicsWithError(t, "arrow: union types should have the same number of fields as type codes", func() {
		DenseUnionOf(fields, []UnionTypeCode{0})
	})
	assert.PanicsWithError(t, "arrow: union type code out of bounds", func() {
		SparseUnionOf(fields[:1], []UnionTypeCode{-1})
	})
	assert.PanicsWithValue(t, "arrow: invalid union mode", func() { UnionOf(UnionMode(5), nil, nil) })
}

func TestFieldString(t *testing.T) {
	f := Field{Name: "f", Type: PrimitiveTypes.Uint32, Nullable: true}
	assert.Equal(t, "f: type=uint32, nullable", f.String())
	assert.False(t, f.HasMetadata())

	f.Metadata = NewMetadata([]string{"k"}, []string{"v"})
	assert.Equal(t, "f: type=uint32, nullable\n   metadata: [\"k\": \"v\"]", f.String())
}

func TestFieldEqual(t *testing.T) {
	md := MetadataFrom(map[string]string{"k": "v"})
	tests := []struct {
		a, b Field
		want bool
	}{
		{Field{Name: "a", Type: Null}, Field{Name: "a", Type: Null}, true},
		{Field{Name: "a", Type: Null}, Field{Name: "b", Type: Null}, false},
		{Field{Name: "a", Type: Null, Nullable: true}, Field{Name: "a", Type: Null}, false},
		{Field{Name: "a", Type: PrimitiveTypes.Int8}, Field{Name: "a", Type: PrimitiveTypes.Uint8}, false},
		{Field{Name: "a", Type: Null, Metadata: md}, Field{Name: "a", Type: Null}, false},
		{Field{Name: "a", Type: Null, Metadata: md}, Field{Name: "a", Type: Null, Metadata: md}, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.a.Equal(tt.b), "%s vs %s", tt.a, tt.b)
	}
}

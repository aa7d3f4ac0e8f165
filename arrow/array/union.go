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
	"bytes"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/colarrow/go/arrow"
	"github.com/colarrow/go/arrow/bitutil"
	"github.com/colarrow/go/arrow/internal/debug"
	"github.com/colarrow/go/arrow/memory"
	"github.com/goccy/go-json"
)

// Union is a convenience interface to encompass both Sparse and Dense
// union array types.
type Union interface {
	arrow.Array
	// NumFields returns the number of child fields in this union.
	// Equivalent to len(UnionType().Fields())
	NumFields() int
	// Validate returns an error if there are any issues with the lengths
	// or types of the children arrays mismatching with the Type of the
	// Union Array. nil is returned if there are no problems.
	Validate() error
	// ValidateFull runs the same checks that Validate() does, but additionally
	// checks that all childIDs are valid (>= 0 || ==InvalidID) and for
	// dense unions validates that all offsets are within the bounds of their
	// respective child.
	ValidateFull() error
	// TypeCodes returns the type id buffer for the union Array, equivalent to
	// Data().Buffers()[1]. Note: This will not account for any slice offset.
	TypeCodes() *memory.Buffer
	// RawTypeCodes returns a slice of UnionTypeCodes properly accounting for
	// any slice offset.
	RawTypeCodes() []arrow.UnionTypeCode
	// TypeCode returns the logical type code of the value at the requested index
	TypeCode(i int) arrow.UnionTypeCode
	// ChildID returns the index of the physical child containing the value
	// at the requested index. Equivalent to:
	//
	// 	arr.UnionType().ChildIDs()[arr.RawTypeCodes()[i+arr.Data().Offset()]]
	ChildID(i int) int
	// UnionType is a convenience function to retrieve the properly typed UnionType
	// instead of having to call DataType() and manually assert the type.
	UnionType() arrow.UnionType
	// Mode returns the union mode of the underlying Array, either arrow.SparseMode
	// or arrow.DenseMode.
	Mode() arrow.UnionMode
	// Field returns the requested child array for this union. Returns nil if a
	// nonexistent position is passed in.
	//
	// The appropriate child for an index can be retrieved with Field(ChildID(index))
	Field(pos int) arrow.Array
}

// union holds the state common to SparseUnion and DenseUnion. A union has
// no validity bitmap of its own: a slot is null when the child value it
// selects is null.
type union struct {
	array

	unionType arrow.UnionType
	typecodes []arrow.UnionTypeCode
	fields    []*lazyArray
}

func (a *union) NumFields() int { return a.unionType.NumFields() }

func (a *union) Mode() arrow.UnionMode { return a.unionType.Mode() }

func (a *union) UnionType() arrow.UnionType { return a.unionType }

func (a *union) TypeCodes() *memory.Buffer {
	return a.data.buffers[1]
}

func (a *union) RawTypeCodes() []arrow.UnionTypeCode {
	if a.data.length == 0 {
		return nil
	}
	return a.typecodes[a.data.offset : a.data.offset+a.data.length]
}

func (a *union) TypeCode(i int) arrow.UnionTypeCode {
	a.checkIndex(i)
	return a.typecodes[i+a.data.offset]
}

func (a *union) ChildID(i int) int {
	return a.unionType.ChildIDs()[a.TypeCode(i)]
}

// IsNull reports whether the child value selected by slot i is null.
func (a *union) IsNull(i int) bool { return !dataIsValid(a.data, i) }

// IsValid reports whether the child value selected by slot i is valid.
func (a *union) IsValid(i int) bool { return dataIsValid(a.data, i) }

func (a *union) setData(data *Data, build func(child arrow.ArrayData) func() arrow.Array) {
	a.unionType = data.dtype.(arrow.UnionType)
	ensureChildren(data, a.unionType.NumFields())
	a.array.setData(data)
	debug.Assert(data.buffers[0] == nil, "arrow/array: validity bitmap for unions should be nil")

	a.typecodes = nil
	if codes := data.buffers[1]; codes != nil {
		a.typecodes = arrow.GetData[arrow.UnionTypeCode](codes.Bytes())
	}
	if data.length > 0 && len(a.typecodes) < data.offset+data.length {
		panic(fmt.Errorf("%w: arrow/array: union type codes buffer must have at least %d values",
			arrow.ErrInvalid, data.offset+data.length))
	}

	a.fields = make([]*lazyArray, len(data.childData))
	for i, child := range data.childData {
		a.fields[i] = a.lazyChild(build(child))
	}
}

func (a *union) Field(pos int) (result arrow.Array) {
	if pos < 0 || pos >= len(a.fields) {
		return nil
	}

	return a.fields[pos].get()
}

func (a *union) Validate() error {
	fields := a.unionType.Fields()
	for i, f := range fields {
		fieldData := a.data.childData[i]
		if a.unionType.Mode() == arrow.SparseMode && fieldData.Len() < a.data.length+a.data.offset {
			return fmt.Errorf("%w: arrow/array: sparse union child array #%d has length smaller than expected for union array (%d < %d)",
				arrow.ErrInvalid, i, fieldData.Len(), a.data.length+a.data.offset)
		}

		if !arrow.TypeEqual(f.Type, fieldData.DataType()) {
			return fmt.Errorf("%w: arrow/array: union child array #%d does not match type field %s vs %s",
				arrow.ErrInvalid, i, fieldData.DataType(), f.Type)
		}
	}
	return nil
}

func (a *union) ValidateFull() error {
	if err := a.Validate(); err != nil {
		return err
	}

	childIDs := a.unionType.ChildIDs()
	codes := a.RawTypeCodes()

	for i := 0; i < a.data.length; i++ {
		code := codes[i]
		if code < 0 || childIDs[code] == arrow.InvalidUnionChildID {
			return fmt.Errorf("%w: arrow/array: union value at position %d has invalid type id %d", arrow.ErrInvalid, i, code)
		}
	}

	if a.unionType.Mode() == arrow.DenseMode {
		// map logical typeid to child length
		var childLengths [256]int64
		for i, code := range a.unionType.TypeCodes() {
			childLengths[code] = int64(a.data.childData[i].Len())
		}

		// check offsets are in bounds. Offsets need not be monotonic:
		// SetNull repoints a slot at a null appended after it.
		offsets := arrow.GetData[int32](a.data.buffers[2].Bytes())[a.data.offset:]
		for i := int64(0); i < int64(a.data.length); i++ {
			code := codes[i]
			offset := offsets[i]
			switch {
			case offset < 0:
				return fmt.Errorf("%w: arrow/array: union value at position %d has negative offset %d", arrow.ErrInvalid, i, offset)
			case offset >= int32(childLengths[code]):
				return fmt.Errorf("%w: arrow/array: union value at position %d has offset larger than child length (%d >= %d)",
					arrow.ErrInvalid, i, offset, childLengths[code])
			}
		}
	}

	return nil
}

// valueAt returns the child array and the child index backing slot i.
func (a *union) valueAt(i int, offsets []int32) (arrow.Array, int) {
	child := a.Field(a.ChildID(i))
	if offsets != nil {
		return child, int(offsets[i+a.data.offset])
	}
	return child, i
}

func (a *union) getOneForMarshal(i int, offsets []int32) interface{} {
	childID := a.ChildID(i)
	field := a.unionType.Fields()[childID]
	data, idx := a.valueAt(i, offsets)

	if data.IsNull(idx) {
		return nil
	}

	return map[string]interface{}{field.Name: data.GetOneForMarshal(idx)}
}

func (a *union) marshalJSON(offsets []int32) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	buf.WriteByte('[')
	for i := 0; i < a.Len(); i++ {
		if i != 0 {
			buf.WriteByte(',')
		}
		if err := enc.Encode(a.getOneForMarshal(i, offsets)); err != nil {
			return nil, err
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (a *union) valueStr(i int, offsets []int32) string {
	if a.IsNull(i) {
		return NullValueStr
	}

	val := a.getOneForMarshal(i, offsets)
	data, err := json.Marshal(val)
	if err != nil {
		panic(err)
	}
	return string(data)
}

func (a *union) str(offsets []int32) string {
	var b strings.Builder
	b.WriteByte('[')

	fieldList := a.unionType.Fields()
	for i := 0; i < a.Len(); i++ {
		if i > 0 {
			b.WriteString(" ")
		}

		field := fieldList[a.ChildID(i)]
		f, idx := a.valueAt(i, offsets)
		fmt.Fprintf(&b, "{%s=%v}", field.Name, f.GetOneForMarshal(idx))
	}
	b.WriteByte(']')
	return b.String()
}

// SparseUnion represents an array where each logical value is taken from
// a single child. A buffer of 8-bit type ids indicates which child a given
// logical value is to be taken from.
//
// In a sparse union, each child array will have the same length as the
// union array itself, regardless of how many values in the union actually
// refer to it.
type SparseUnion struct {
	union
}

// NewSparseUnion constructs a union array using the given type, length,
// list of children and buffer of typeIDs with the given offset.
func NewSparseUnion(dt *arrow.SparseUnionType, length int, children []arrow.Array, typeIDs *memory.Buffer, offset int) *SparseUnion {
	childData := make([]arrow.ArrayData, len(children))
	for i, c := range children {
		childData[i] = c.Data()
	}
	data := NewData(dt, length, []*memory.Buffer{nil, typeIDs}, childData, UnknownNullCount, offset)
	defer data.Release()
	return NewSparseUnionData(data)
}

// NewSparseUnionData constructs a SparseUnion array from the given ArrayData object.
func NewSparseUnionData(data arrow.ArrayData) *SparseUnion {
	a := &SparseUnion{}
	a.refCount = 1
	a.setData(ensureDataType(data, "sparse union", arrow.SPARSE_UNION))
	return a
}

// NewSparseUnionFromArrays constructs a new SparseUnion array with the provided
// values.
//
// typeIDs *must* be an INT8 array with no nulls
// len(codes) *must* be either 0 or equal to len(children). If len(codes) is 0,
// the type codes used will be sequentially numeric starting at 0.
func NewSparseUnionFromArrays(typeIDs arrow.Array, children []arrow.Array, codes ...arrow.UnionTypeCode) (*SparseUnion, error) {
	return NewSparseUnionFromArraysWithFieldCodes(typeIDs, children, []string{}, codes)
}

// NewSparseUnionFromArrayWithFields constructs a new SparseUnion array like
// NewSparseUnionFromArrays, but allows specifying the field names. Type codes
// will be auto-generated sequentially starting at 0.
//
// typeIDs *must* be an INT8 array with no nulls.
// len(fields) *must* either be 0 or equal to len(children). If len(fields) is 0,
// then the fields will be named sequentially starting at "0".
func NewSparseUnionFromArraysWithFields(typeIDs arrow.Array, children []arrow.Array, fields []string) (*SparseUnion, error) {
	return NewSparseUnionFromArraysWithFieldCodes(typeIDs, children, fields, []arrow.UnionTypeCode{})
}

// NewSparseUnionFromArraysWithFieldCodes combines the other constructors
// for constructing a new SparseUnion array with the provided field names
// and type codes, along with children and type ids.
//
// All the requirements mentioned in NewSparseUnionFromArrays and
// NewSparseUnionFromArraysWithFields apply.
func NewSparseUnionFromArraysWithFieldCodes(typeIDs arrow.Array, children []arrow.Array, fields []string, codes []arrow.UnionTypeCode) (*SparseUnion, error) {
	switch {
	case typeIDs.DataType().ID() != arrow.INT8:
		return nil, fmt.Errorf("%w: arrow/array: union array type ids must be signed int8", arrow.ErrType)
	case typeIDs.NullN() != 0:
		return nil, fmt.Errorf("%w: arrow/array: union type ids may not have nulls", arrow.ErrInvalid)
	case len(fields) > 0 && len(fields) != len(children):
		return nil, fmt.Errorf("%w: arrow/array: field names must have the same length as children", arrow.ErrInvalid)
	case len(codes) > 0 && len(codes) != len(children):
		return nil, fmt.Errorf("%w: arrow/array: type codes must have same length as children", arrow.ErrInvalid)
	}

	childData := make([]arrow.ArrayData, len(children))
	for i, c := range children {
		childData[i] = c.Data()
		if c.Len() != typeIDs.Len() {
			return nil, fmt.Errorf("%w: arrow/array: sparse union array must have len(child) == len(typeids) for all children", arrow.ErrInvalid)
		}
	}

	buffers := []*memory.Buffer{nil, typeIDs.Data().Buffers()[1]}
	ty := arrow.SparseUnionFromArrays(children, fields, codes)

	data := NewData(ty, typeIDs.Len(), buffers, childData, UnknownNullCount, typeIDs.Data().Offset())
	defer data.Release()
	return NewSparseUnionData(data), nil
}

func (a *SparseUnion) setData(data *Data) {
	a.union.setData(data, a.childSlice)
}

func (a *SparseUnion) GetOneForMarshal(i int) interface{} {
	return a.getOneForMarshal(i, nil)
}

func (a *SparseUnion) MarshalJSON() ([]byte, error) {
	return a.marshalJSON(nil)
}

func (a *SparseUnion) ValueStr(i int) string {
	return a.valueStr(i, nil)
}

func (a *SparseUnion) String() string {
	return a.str(nil)
}

// GetFlattenedField returns a child array, adjusting its validity bitmap
// where the union array type codes don't match.
//
// ie: the returned array will have a null in every index that it is
// not referenced by union.
func (a *SparseUnion) GetFlattenedField(mem memory.Allocator, index int) (arrow.Array, error) {
	if index < 0 || index >= a.NumFields() {
		return nil, fmt.Errorf("%w: arrow/array: field index %d out of range [0, %d)", arrow.ErrIndex, index, a.NumFields())
	}

	child := a.data.childData[index]
	childData := NewSliceData(child, int64(a.data.offset), int64(a.data.offset+a.data.length)).(*Data)
	defer childData.Release()

	// NewSliceData shares the buffer slice with the child; replace it before
	// swapping in the synthesized bitmap.
	newBufs := make([]*memory.Buffer, max(len(childData.buffers), 1))
	copy(newBufs, childData.buffers)
	childData.buffers = newBufs

	// synthesize a null bitmap based on the union discriminant, with extra
	// bits corresponding to the child's offset
	childOffset := childData.offset
	flattenedNullBitmap := memory.NewResizableBuffer(mem)
	flattenedNullBitmap.Resize(int(bitutil.BytesForBits(int64(childOffset + childData.length))))
	memory.Set(flattenedNullBitmap.Bytes(), 0)

	bits := flattenedNullBitmap.Bytes()
	childNullBitmap := childData.buffers[0]
	if childNullBitmap != nil {
		bitutil.CopyBitmap(childNullBitmap.Bytes(), childOffset, childData.length, bits, childOffset)
	} else {
		// unions and run-end encoded children derive validity per slot
		for i := 0; i < childData.length; i++ {
			bitutil.SetBitTo(bits, childOffset+i, dataIsValid(child, a.data.offset+i))
		}
	}

	typeCode := a.unionType.TypeCodes()[index]
	for i, code := range a.RawTypeCodes() {
		if code != typeCode {
			bitutil.ClearBit(bits, childOffset+i)
		}
	}

	if childNullBitmap != nil {
		childNullBitmap.Release()
	}
	childData.buffers[0] = flattenedNullBitmap
	childData.nulls = int64(childData.length - bitutil.CountSetBits(bits, childOffset, childData.length))
	return MakeFromData(childData), nil
}

// DenseUnion represents an array where each logical value is taken from
// a single child, at a specific offset. A buffer of 8-bit type ids
// indicates which child a given logical value is to be taken from and
// a buffer of 32-bit offsets indicating which physical position in the
// given child array has the logical value for that index.
//
// Unlike a sparse union, a dense union allows encoding only the child values
// which are actually referred to by the union array.
type DenseUnion struct {
	union
	offsets []int32
}

// NewDenseUnion constructs a union array using the given type, length, list of
// children and buffers of typeIDs and offsets, with the given array offset.
func NewDenseUnion(dt *arrow.DenseUnionType, length int, children []arrow.Array, typeIDs, valueOffsets *memory.Buffer, offset int) *DenseUnion {
	childData := make([]arrow.ArrayData, len(children))
	for i, c := range children {
		childData[i] = c.Data()
	}

	data := NewData(dt, length, []*memory.Buffer{nil, typeIDs, valueOffsets}, childData, UnknownNullCount, offset)
	defer data.Release()
	return NewDenseUnionData(data)
}

// NewDenseUnionData constructs a DenseUnion array from the given ArrayData object.
func NewDenseUnionData(data arrow.ArrayData) *DenseUnion {
	a := &DenseUnion{}
	a.refCount = 1
	a.setData(ensureDataType(data, "dense union", arrow.DENSE_UNION))
	return a
}

// NewDenseUnionFromArrays constructs a new DenseUnion array with the provided
// values.
//
// typeIDs *must* be an INT8 array with no nulls
// offsets *must* be an INT32 array with no nulls
// len(codes) *must* be either 0 or equal to len(children). If len(codes) is 0,
// the type codes used will be sequentially numeric starting at 0.
func NewDenseUnionFromArrays(typeIDs, offsets arrow.Array, children []arrow.Array, codes ...arrow.UnionTypeCode) (*DenseUnion, error) {
	return NewDenseUnionFromArraysWithFieldCodes(typeIDs, offsets, children, []string{}, codes)
}

// NewDenseUnionFromArrayWithFields constructs a new DenseUnion array like
// NewDenseUnionFromArrays, but allows specifying the field names. Type codes
// will be auto-generated sequentially starting at 0.
func NewDenseUnionFromArraysWithFields(typeIDs, offsets arrow.Array, children []arrow.Array, fields []string) (*DenseUnion, error) {
	return NewDenseUnionFromArraysWithFieldCodes(typeIDs, offsets, children, fields, []arrow.UnionTypeCode{})
}

// NewDenseUnionFromArraysWithFieldCodes combines the other constructors
// for constructing a new DenseUnion array with the provided field names
// and type codes, along with children and type ids.
func NewDenseUnionFromArraysWithFieldCodes(typeIDs, offsets arrow.Array, children []arrow.Array, fields []string, codes []arrow.UnionTypeCode) (*DenseUnion, error) {
	switch {
	case offsets.DataType().ID() != arrow.INT32:
		return nil, fmt.Errorf("%w: arrow/array: union offsets must be signed int32", arrow.ErrType)
	case typeIDs.DataType().ID() != arrow.INT8:
		return nil, fmt.Errorf("%w: arrow/array: union type_ids must be signed int8", arrow.ErrType)
	case typeIDs.NullN() != 0:
		return nil, fmt.Errorf("%w: arrow/array: union typeIDs may not have nulls", arrow.ErrInvalid)
	case offsets.NullN() != 0:
		return nil, fmt.Errorf("%w: arrow/array: nulls are not allowed in offsets for NewDenseUnionFromArrays*", arrow.ErrInvalid)
	case offsets.Len() != typeIDs.Len():
		return nil, fmt.Errorf("%w: arrow/array: union offsets and type ids must have the same length", arrow.ErrInvalid)
	case len(fields) > 0 && len(fields) != len(children):
		return nil, fmt.Errorf("%w: arrow/array: fields must be the same length as children", arrow.ErrInvalid)
	case len(codes) > 0 && len(codes) != len(children):
		return nil, fmt.Errorf("%w: arrow/array: typecodes must have the same length as children", arrow.ErrInvalid)
	}

	ty := arrow.DenseUnionFromArrays(children, fields, codes)
	buffers := []*memory.Buffer{nil, typeIDs.Data().Buffers()[1], offsets.Data().Buffers()[1]}

	childData := make([]arrow.ArrayData, len(children))
	for i, c := range children {
		childData[i] = c.Data()
	}

	if typeIDs.Data().Offset() != offsets.Data().Offset() {
		return nil, fmt.Errorf("%w: arrow/array: union type ids and offsets must share the same slice offset", arrow.ErrInvalid)
	}

	data := NewData(ty, typeIDs.Len(), buffers, childData, UnknownNullCount, typeIDs.Data().Offset())
	defer data.Release()
	return NewDenseUnionData(data), nil
}

func (a *DenseUnion) ValueOffsets() *memory.Buffer { return a.data.buffers[2] }

func (a *DenseUnion) ValueOffset(i int) int32 {
	a.checkIndex(i)
	return a.offsets[i+a.data.offset]
}

func (a *DenseUnion) RawValueOffsets() []int32 {
	if a.data.length == 0 {
		return nil
	}
	return a.offsets[a.data.offset : a.data.offset+a.data.length]
}

func (a *DenseUnion) setData(data *Data) {
	a.union.setData(data, func(child arrow.ArrayData) func() arrow.Array {
		return func() arrow.Array { return MakeFromData(child) }
	})

	a.offsets = nil
	if offsets := data.buffers[2]; offsets != nil {
		a.offsets = arrow.GetData[int32](offsets.Bytes())
	}
	if data.length > 0 && len(a.offsets) < data.offset+data.length {
		panic(fmt.Errorf("%w: arrow/array: dense union offsets buffer must have at least %d values",
			arrow.ErrInvalid, data.offset+data.length))
	}
}

func (a *DenseUnion) GetOneForMarshal(i int) interface{} {
	return a.getOneForMarshal(i, a.offsets)
}

func (a *DenseUnion) MarshalJSON() ([]byte, error) {
	return a.marshalJSON(a.offsets)
}

func (a *DenseUnion) ValueStr(i int) string {
	return a.valueStr(i, a.offsets)
}

func (a *DenseUnion) String() string {
	return a.str(a.offsets)
}

// UnionBuilder is a convenience interface for building Union arrays of
// either Dense or Sparse mode.
type UnionBuilder interface {
	Builder
	// Append adds an element to the UnionArray indicating which typecode the
	// new element should use. This *must* be followed up by an append to the
	// appropriate child builder.
	Append(arrow.UnionTypeCode)
	// NumChildren returns the number of child builders in this union builder.
	NumChildren() int
	// Child returns the builder for the requested child index.
	Child(idx int) Builder
	// Mode returns what kind of Union is being built, either arrow.SparseMode
	// or arrow.DenseMode
	Mode() arrow.UnionMode
}

// unionBuilder is the common embedded builder for both SparseUnionBuilder
// and DenseUnionBuilder. It keeps no validity bitmap: the validity of a
// slot is the validity of the child value it selects.
type unionBuilder struct {
	builder

	dtype           arrow.UnionType
	children        []Builder
	typeIDtoBuilder []Builder
	typesBuilder    *typedBufferBuilder[arrow.UnionTypeCode]
}

func newUnionBuilder(mem memory.Allocator, children []Builder, typ arrow.UnionType) unionBuilder {
	if children == nil {
		children = make([]Builder, typ.NumFields())
		for i, f := range typ.Fields() {
			children[i] = NewBuilder(mem, f.Type)
		}
	} else {
		if len(children) != typ.NumFields() {
			panic(fmt.Errorf("%w: arrow/array: union type has %d fields, got %d child builders",
				arrow.ErrInvalid, typ.NumFields(), len(children)))
		}
		for i, c := range children {
			if !arrow.TypeEqual(c.Type(), typ.Fields()[i].Type) {
				panic(fmt.Errorf("%w: arrow/array: child builder %d builds %s, declared %s",
					arrow.ErrType, i, c.Type(), typ.Fields()[i].Type))
			}
			c.Retain()
		}
	}

	b := unionBuilder{
		builder:         builder{refCount: 1, mem: mem},
		dtype:           typ,
		children:        children,
		typeIDtoBuilder: make([]Builder, int(typ.MaxTypeCode())+1),
		typesBuilder:    newTypedBufferBuilder[arrow.UnionTypeCode](mem),
	}
	for i, code := range typ.TypeCodes() {
		b.typeIDtoBuilder[code] = children[i]
	}
	return b
}

func (b *unionBuilder) NumChildren() int { return len(b.children) }

func (b *unionBuilder) Child(idx int) Builder {
	if idx < 0 || idx >= len(b.children) {
		panic(fmt.Errorf("%w: arrow/array: invalid child index %d for union builder", arrow.ErrIndex, idx))
	}
	return b.children[idx]
}

func (b *unionBuilder) Mode() arrow.UnionMode { return b.dtype.Mode() }

func (b *unionBuilder) Type() arrow.DataType { return b.dtype }

// Cap returns the number of type codes that fit without reallocating.
func (b *unionBuilder) Cap() int { return b.typesBuilder.Cap() }

func (b *unionBuilder) Release() {
	debug.Assert(atomic.LoadInt64(&b.refCount) > 0, "too many releases")

	if atomic.AddInt64(&b.refCount, -1) == 0 {
		for _, c := range b.children {
			c.Release()
		}
		b.typesBuilder.Release()
	}
}

// firstCode returns the type code of the first declared member, which
// holds the null slots.
func (b *unionBuilder) firstCode() arrow.UnionTypeCode {
	codes := b.dtype.TypeCodes()
	if len(codes) == 0 {
		panic(fmt.Errorf("%w: arrow/array: cannot append null to union with no members", arrow.ErrInvalid))
	}
	return codes[0]
}

func (b *unionBuilder) init(capacity int) {
	b.typesBuilder.resize(capacity)
}

func (b *unionBuilder) resize(newBits int, _ func(int)) {
	b.typesBuilder.resize(newBits)
}

// readSlotStart consumes the head of one JSON union value, either a
// [typeCode, value] pair or a {"field": value} object as written by
// MarshalJSON, and returns the selected type code together with the
// delimiter closing the value. ok is false for a JSON null.
func (b *unionBuilder) readSlotStart(dec *json.Decoder) (code arrow.UnionTypeCode, end json.Delim, ok bool, err error) {
	t, err := dec.Token()
	if err != nil {
		return 0, 0, false, err
	}

	switch t {
	case nil:
		return 0, 0, false, nil
	case json.Delim('['):
		if t, err = dec.Token(); err != nil {
			return 0, 0, false, err
		}
		code, err = b.typeCodeFromToken(dec, t)
		return code, ']', err == nil, err
	case json.Delim('{'):
		if t, err = dec.Token(); err != nil {
			return 0, 0, false, err
		}
		if name, isStr := t.(string); isStr {
			for i, f := range b.dtype.Fields() {
				if f.Name == name {
					return b.dtype.TypeCodes()[i], '}', true, nil
				}
			}
		}
	}

	return 0, 0, false, &json.UnmarshalTypeError{
		Value:  fmt.Sprint(t),
		Offset: dec.InputOffset(),
		Struct: fmt.Sprint(b.dtype),
	}
}

func (b *unionBuilder) typeCodeFromToken(dec *json.Decoder, t json.Token) (arrow.UnionTypeCode, error) {
	var (
		id    int64
		valid bool
	)
	switch v := t.(type) {
	case float64:
		id, valid = int64(v), v == float64(int64(v))
	case json.Number:
		n, err := v.Int64()
		id, valid = n, err == nil
	}

	if !valid || id < 0 || id >= int64(len(b.typeIDtoBuilder)) || b.typeIDtoBuilder[id] == nil {
		return 0, &json.UnmarshalTypeError{
			Value:  fmt.Sprintf("type code %v", t),
			Offset: dec.InputOffset(),
			Struct: fmt.Sprint(b.dtype),
		}
	}
	return arrow.UnionTypeCode(id), nil
}

// readSlotEnd consumes the delimiter closing a union value.
func (b *unionBuilder) readSlotEnd(dec *json.Decoder, end json.Delim) error {
	t, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := t.(json.Delim); !ok || delim != end {
		return &json.UnmarshalTypeError{
			Value:  fmt.Sprint(t),
			Offset: dec.InputOffset(),
			Struct: fmt.Sprint(b.dtype),
		}
	}
	return nil
}

// unmarshalUnion appends every remaining value of the current JSON array
// using one to decode each slot.
func unmarshalUnion(dec *json.Decoder, one func(*json.Decoder) error) error {
	for dec.More() {
		if err := one(dec); err != nil {
			return err
		}
	}
	return nil
}

func unmarshalUnionJSON(dt arrow.DataType, data []byte, one func(*json.Decoder) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	t, err := dec.Token()
	if err != nil {
		return err
	}

	if delim, ok := t.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("%s builder must unpack from json array, found %s", dt, delim)
	}

	return unmarshalUnion(dec, one)
}

func (b *unionBuilder) clear() {
	b.reset()
	b.typesBuilder.Reset()
	for _, c := range b.children {
		c.Clear()
	}
}

// SparseUnionBuilder is used to build a Sparse Union array using the Append
// methods. You can also add new types to the union on the fly by using
// AppendChild.
//
// Keep in mind: All children of a SparseUnion should be the same length
// as the union itself. If you add new children with AppendChild, ensure
// that they have the correct number of preceding elements that have been
// added to the builder beforehand.
type SparseUnionBuilder struct {
	unionBuilder
}

// NewSparseUnionBuilder constructs a new SparseUnionBuilder with the
// provided type and a child builder for each field.
func NewSparseUnionBuilder(mem memory.Allocator, typ *arrow.SparseUnionType) *SparseUnionBuilder {
	return &SparseUnionBuilder{unionBuilder: newUnionBuilder(mem, nil, typ)}
}

// NewSparseUnionBuilderWithBuilders returns a new SparseUnionBuilder using
// the provided type and builders. The builders are retained.
func NewSparseUnionBuilderWithBuilders(mem memory.Allocator, typ *arrow.SparseUnionType, children []Builder) *SparseUnionBuilder {
	return &SparseUnionBuilder{unionBuilder: newUnionBuilder(mem, children, typ)}
}

func (b *SparseUnionBuilder) Reserve(n int) {
	b.typesBuilder.reserve(n)
}

func (b *SparseUnionBuilder) Resize(n int) {
	b.typesBuilder.resize(n)
	b.typesBuilder.truncate(n)
	if n < b.length {
		b.length = n
	}
}

// AppendNull will append a null to the first child and an empty value
// (implementation-defined) to the rest of the children.
func (b *SparseUnionBuilder) AppendNull() {
	firstChildCode := b.firstCode()
	b.typesBuilder.AppendValue(firstChildCode)
	b.length++
	b.typeIDtoBuilder[firstChildCode].AppendNull()
	for _, c := range b.dtype.TypeCodes()[1:] {
		b.typeIDtoBuilder[c].AppendEmptyValue()
	}
}

// AppendNulls is identical to calling AppendNull() n times, except
// it will pre-allocate with reserve for all the nulls beforehand.
func (b *SparseUnionBuilder) AppendNulls(n int) {
	firstChildCode := b.firstCode()
	b.Reserve(n)
	for _, c := range b.dtype.TypeCodes() {
		b.typeIDtoBuilder[c].Reserve(n)
	}
	for i := 0; i < n; i++ {
		b.typesBuilder.AppendValue(firstChildCode)
	}
	b.length += n
	b.typeIDtoBuilder[firstChildCode].AppendNulls(n)
	for _, c := range b.dtype.TypeCodes()[1:] {
		b.typeIDtoBuilder[c].AppendEmptyValues(n)
	}
}

// AppendEmptyValue appends an empty value (implementation defined)
// to each child, and appends the type of the first typecode to the typeid
// buffer.
func (b *SparseUnionBuilder) AppendEmptyValue() {
	firstChildCode := b.firstCode()
	b.typesBuilder.AppendValue(firstChildCode)
	b.length++
	for _, c := range b.dtype.TypeCodes() {
		b.typeIDtoBuilder[c].AppendEmptyValue()
	}
}

// AppendEmptyValues is identical to calling AppendEmptyValue() n times,
// except it pre-allocates first so it is more efficient.
func (b *SparseUnionBuilder) AppendEmptyValues(n int) {
	for i := 0; i < n; i++ {
		b.AppendEmptyValue()
	}
}

// Append appends an element to the UnionArray and must be followed up
// by an append to the appropriate child builder. The parameter should
// be the type id of the child to which the next value will be appended.
//
// After appending to the corresponding child builder, all other child
// builders should have a null or empty value appended to them (although
// this is not enforced and any value is theoretically allowed and will be
// ignored).
func (b *SparseUnionBuilder) Append(nextType arrow.UnionTypeCode) {
	b.typesBuilder.AppendValue(nextType)
	b.length++
}

// NullN derives the number of null slots from the child builders.
func (b *SparseUnionBuilder) NullN() int {
	nulls := 0
	for i := 0; i < b.length; i++ {
		if b.isNull(i) {
			nulls++
		}
	}
	return nulls
}

func (b *SparseUnionBuilder) isNull(i int) bool {
	b.checkIndex(i)
	child := b.typeIDtoBuilder[b.typesBuilder.Value(i)]
	return i >= child.Len() || child.isNull(i)
}

// SetNull makes slot i select the first declared member and nulls slot i
// in every child.
func (b *SparseUnionBuilder) SetNull(i int) {
	b.checkIndex(i)
	b.typesBuilder.SetValue(i, b.firstCode())
	debug.Logkv("msg", "sparse union slot nulled", "slot", i)
	for _, c := range b.children {
		if i < c.Len() {
			c.SetNull(i)
		}
	}
}

func (b *SparseUnionBuilder) Clear() { b.clear() }

func (b *SparseUnionBuilder) unmarshalOne(dec *json.Decoder) error {
	code, end, ok, err := b.readSlotStart(dec)
	if err != nil {
		return err
	}
	if !ok {
		b.AppendNull()
		return nil
	}

	b.Append(code)
	for _, c := range b.dtype.TypeCodes() {
		if c != code {
			b.typeIDtoBuilder[c].AppendEmptyValue()
		}
	}
	if err := b.typeIDtoBuilder[code].unmarshalOne(dec); err != nil {
		return err
	}
	return b.readSlotEnd(dec, end)
}

func (b *SparseUnionBuilder) unmarshal(dec *json.Decoder) error {
	return unmarshalUnion(dec, b.unmarshalOne)
}

// UnmarshalJSON appends the values of a JSON array. Each value is null, a
// [typeCode, value] pair or a {"field": value} object.
func (b *SparseUnionBuilder) UnmarshalJSON(data []byte) error {
	return unmarshalUnionJSON(b.dtype, data, b.unmarshalOne)
}

// NewArray creates an Array from the memory buffers used by the builder and resets the SparseUnionBuilder
// so it can be used to build a new array.
func (b *SparseUnionBuilder) NewArray() arrow.Array {
	return b.NewSparseUnionArray()
}

// NewSparseUnionArray constructs a new SparseUnion Array from the memory buffers used by the builder and resets the SparseUnionBuilder
// so it can be used to build a new array.
func (b *SparseUnionBuilder) NewSparseUnionArray() (a *SparseUnion) {
	data := b.newData()
	a = NewSparseUnionData(data)
	data.Release()
	return
}

func (b *SparseUnionBuilder) newData() *Data {
	length := b.length
	childData := make([]arrow.ArrayData, len(b.children))
	for i, c := range b.children {
		arr := c.NewArray()
		defer arr.Release()
		childData[i] = arr.Data()
		if arr.Len() != length {
			b.clear()
			panic(fmt.Errorf("%w: arrow/array: sparse union child %d has length %d, union has length %d",
				arrow.ErrInvalid, i, arr.Len(), length))
		}
	}

	types := b.typesBuilder.Finish()
	defer types.Release()
	data := NewData(b.dtype, length, []*memory.Buffer{nil, types}, childData, UnknownNullCount, 0)
	b.reset()
	return data
}

// DenseUnionBuilder is used to build a Dense Union array using the Append
// methods.
type DenseUnionBuilder struct {
	unionBuilder

	offsetsBuilder *typedBufferBuilder[int32]
}

// NewDenseUnionBuilder constructs a new DenseUnionBuilder with the
// provided type and a child builder for each field.
func NewDenseUnionBuilder(mem memory.Allocator, typ *arrow.DenseUnionType) *DenseUnionBuilder {
	return &DenseUnionBuilder{
		unionBuilder:   newUnionBuilder(mem, nil, typ),
		offsetsBuilder: newTypedBufferBuilder[int32](mem),
	}
}

// NewDenseUnionBuilderWithBuilders returns a new DenseUnionBuilder using
// the provided type and builders. The builders are retained.
func NewDenseUnionBuilderWithBuilders(mem memory.Allocator, typ *arrow.DenseUnionType, children []Builder) *DenseUnionBuilder {
	return &DenseUnionBuilder{
		unionBuilder:   newUnionBuilder(mem, children, typ),
		offsetsBuilder: newTypedBufferBuilder[int32](mem),
	}
}

func (b *DenseUnionBuilder) Release() {
	debug.Assert(atomic.LoadInt64(&b.refCount) > 0, "too many releases")

	if atomic.AddInt64(&b.refCount, -1) == 0 {
		for _, c := range b.children {
			c.Release()
		}
		b.typesBuilder.Release()
		b.offsetsBuilder.Release()
	}
}

func (b *DenseUnionBuilder) Reserve(n int) {
	b.typesBuilder.reserve(n)
	b.offsetsBuilder.reserve(n)
}

func (b *DenseUnionBuilder) Resize(n int) {
	b.typesBuilder.resize(n)
	b.offsetsBuilder.resize(n * arrow.Int32SizeBytes)
	b.typesBuilder.truncate(n)
	b.offsetsBuilder.truncate(n)
	if n < b.length {
		b.length = n
	}
}

// AppendNull will only append a null value arbitrarily to the first child
// and use that offset for this element of the array.
func (b *DenseUnionBuilder) AppendNull() {
	firstChildCode := b.firstCode()
	childBuilder := b.typeIDtoBuilder[firstChildCode]
	b.typesBuilder.AppendValue(firstChildCode)
	b.offsetsBuilder.AppendValue(int32(childBuilder.Len()))
	b.length++
	childBuilder.AppendNull()
}

// AppendNulls will only append a single null arbitrarily to the first child
// and use the same offset multiple times to point to it. The result is that
// for a DenseUnion this is more efficient than calling AppendNull multiple
// times in a loop
func (b *DenseUnionBuilder) AppendNulls(n int) {
	// only append 1 null to the child builder, use the same offset twice
	firstChildCode := b.firstCode()
	childBuilder := b.typeIDtoBuilder[firstChildCode]
	b.Reserve(n)
	for i := 0; i < n; i++ {
		b.typesBuilder.AppendValue(firstChildCode)
		b.offsetsBuilder.AppendValue(int32(childBuilder.Len()))
	}
	b.length += n
	// only append a single null to the child builder, the offsets all refer to the same value
	childBuilder.AppendNull()
}

// AppendEmptyValue only appends an empty value arbitrarily to the first child,
// and then uses that offset to identify the value.
func (b *DenseUnionBuilder) AppendEmptyValue() {
	firstChildCode := b.firstCode()
	childBuilder := b.typeIDtoBuilder[firstChildCode]
	b.typesBuilder.AppendValue(firstChildCode)
	b.offsetsBuilder.AppendValue(int32(childBuilder.Len()))
	b.length++
	childBuilder.AppendEmptyValue()
}

// AppendEmptyValues, like AppendNulls, will only append a single empty value
// (implementation defined) to the first child arbitrarily, and then point
// at that value using the offsets n times. That makes this more efficient
// than calling AppendEmptyValue multiple times.
func (b *DenseUnionBuilder) AppendEmptyValues(n int) {
	// only append 1 null to the child builder, use the same offset twice
	firstChildCode := b.firstCode()
	childBuilder := b.typeIDtoBuilder[firstChildCode]
	b.Reserve(n)
	for i := 0; i < n; i++ {
		b.typesBuilder.AppendValue(firstChildCode)
		b.offsetsBuilder.AppendValue(int32(childBuilder.Len()))
	}
	b.length += n
	// only append a single empty value to the child builder, the offsets all
	// refer to the same value
	childBuilder.AppendEmptyValue()
}

// Append appends the necessary offset and type code to the builder
// and must be followed up with an append to the appropriate child builder
func (b *DenseUnionBuilder) Append(nextType arrow.UnionTypeCode) {
	b.typesBuilder.AppendValue(nextType)
	bldr := b.typeIDtoBuilder[nextType]
	if bldr.Len() == kMaxElems {
		panic(fmt.Errorf("%w: arrow/array: child array of dense union has too many elements", arrow.ErrInvalid))
	}
	b.offsetsBuilder.AppendValue(int32(bldr.Len()))
	b.length++
}

// NullN derives the number of null slots from the child builders.
func (b *DenseUnionBuilder) NullN() int {
	nulls := 0
	for i := 0; i < b.length; i++ {
		if b.isNull(i) {
			nulls++
		}
	}
	return nulls
}

func (b *DenseUnionBuilder) isNull(i int) bool {
	b.checkIndex(i)
	child := b.typeIDtoBuilder[b.typesBuilder.Value(i)]
	off := int(b.offsetsBuilder.Value(i))
	return off >= child.Len() || child.isNull(off)
}

// SetNull makes slot i select a new null value appended to the first
// declared member. The value slot i selected before is left in place in
// its child, and no other member builder is touched.
func (b *DenseUnionBuilder) SetNull(i int) {
	b.checkIndex(i)
	firstChildCode := b.firstCode()
	childBuilder := b.typeIDtoBuilder[firstChildCode]
	if b.typesBuilder.Value(i) == firstChildCode {
		if off := int(b.offsetsBuilder.Value(i)); off < childBuilder.Len() && childBuilder.isNull(off) {
			return
		}
	}
	debug.Logkv("msg", "dense union slot nulled", "slot", i, "offset", childBuilder.Len())
	b.typesBuilder.SetValue(i, firstChildCode)
	b.offsetsBuilder.SetValue(i, int32(childBuilder.Len()))
	childBuilder.AppendNull()
}

func (b *DenseUnionBuilder) Clear() {
	b.clear()
	b.offsetsBuilder.Reset()
}

func (b *DenseUnionBuilder) unmarshalOne(dec *json.Decoder) error {
	code, end, ok, err := b.readSlotStart(dec)
	if err != nil {
		return err
	}
	if !ok {
		b.AppendNull()
		return nil
	}

	b.Append(code)
	if err := b.typeIDtoBuilder[code].unmarshalOne(dec); err != nil {
		return err
	}
	return b.readSlotEnd(dec, end)
}

func (b *DenseUnionBuilder) unmarshal(dec *json.Decoder) error {
	return unmarshalUnion(dec, b.unmarshalOne)
}

// UnmarshalJSON appends the values of a JSON array. Each value is null, a
// [typeCode, value] pair or a {"field": value} object.
func (b *DenseUnionBuilder) UnmarshalJSON(data []byte) error {
	return unmarshalUnionJSON(b.dtype, data, b.unmarshalOne)
}

// NewArray creates an Array from the memory buffers used by the builder and resets the DenseUnionBuilder
// so it can be used to build a new array.
func (b *DenseUnionBuilder) NewArray() arrow.Array {
	return b.NewDenseUnionArray()
}

// NewDenseUnionArray constructs a new DenseUnion Array from the memory buffers used by the builder and resets the DenseUnionBuilder
// so it can be used to build a new array.
func (b *DenseUnionBuilder) NewDenseUnionArray() (a *DenseUnion) {
	data := b.newData()
	a = NewDenseUnionData(data)
	data.Release()
	return
}

func (b *DenseUnionBuilder) newData() *Data {
	childData := make([]arrow.ArrayData, len(b.children))
	for i, c := range b.children {
		arr := c.NewArray()
		defer arr.Release()
		childData[i] = arr.Data()
	}

	types := b.typesBuilder.Finish()
	defer types.Release()
	offsets := b.offsetsBuilder.Finish()
	defer offsets.Release()

	data := NewData(b.dtype, b.length, []*memory.Buffer{nil, types, offsets}, childData, UnknownNullCount, 0)
	b.reset()
	return data
}

const kMaxElems = 1<<31 - 1

var (
	_ arrow.Array  = (*SparseUnion)(nil)
	_ arrow.Array  = (*DenseUnion)(nil)
	_ Union        = (*SparseUnion)(nil)
	_ Union        = (*DenseUnion)(nil)
	_ Builder      = (*SparseUnionBuilder)(nil)
	_ Builder      = (*DenseUnionBuilder)(nil)
	_ UnionBuilder = (*SparseUnionBuilder)(nil)
	_ UnionBuilder = (*DenseUnionBuilder)(nil)
)

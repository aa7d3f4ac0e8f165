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
	"github.com/colarrow/go/arrow/internal/debug"
	"github.com/colarrow/go/arrow/memory"
	"github.com/goccy/go-json"
)

// ListLike is the interface shared by the list and list-view arrays: each
// slot references a window of a single child array.
type ListLike interface {
	arrow.Array
	ListValues() arrow.Array
	ValueOffsets(i int) (start, end int64)
}

// VarLenListLike is a ListLike array whose slots may differ in length.
type VarLenListLike interface {
	ListLike
	GetValueLength(i int) int64
}

type offsetType interface{ ~int32 | ~int64 }

// baseList holds the state common to List and LargeList.
type baseList[O offsetType] struct {
	array
	values  *lazyArray
	offsets []O
}

func (a *baseList[O]) setData(data *Data) {
	ensureChildren(data, 1)
	a.array.setData(data)
	a.offsets = nil
	if vals := data.buffers[1]; vals != nil {
		a.offsets = arrow.GetData[O](vals.Bytes())
	}
	if data.length > 0 && len(a.offsets) < data.offset+data.length+1 {
		panic(fmt.Errorf("%w: arrow/array: %s offset buffer must have at least %d values",
			arrow.ErrInvalid, data.dtype, data.offset+data.length+1))
	}

	child := data.childData[0]
	a.values = a.lazyChild(func() arrow.Array { return MakeFromData(child) })
}

// ListValues returns the child array holding the elements of every slot.
// The child is built on first use and owned by the list.
func (a *baseList[O]) ListValues() arrow.Array { return a.values.get() }

// Offsets returns the length+1 offsets of the array's window.
func (a *baseList[O]) Offsets() []O {
	if len(a.offsets) == 0 {
		return nil
	}
	return a.offsets[a.array.data.offset : a.array.data.offset+a.array.data.length+1]
}

// ValueOffsets returns the start and end of slot i within ListValues.
func (a *baseList[O]) ValueOffsets(i int) (start, end int64) {
	a.checkIndex(i)
	j := i + a.array.data.offset
	return int64(a.offsets[j]), int64(a.offsets[j+1])
}

// GetValueLength returns the number of elements referenced by slot i.
func (a *baseList[O]) GetValueLength(i int) int64 {
	start, end := a.ValueOffsets(i)
	return end - start
}

func (a *baseList[O]) newListValue(i int) arrow.Array {
	beg, end := a.ValueOffsets(i)
	return NewSlice(a.ListValues(), beg, end)
}

func (a *baseList[O]) ValueStr(i int) string {
	if !a.IsValid(i) {
		return NullValueStr
	}
	return string(a.GetOneForMarshal(i).(json.RawMessage))
}

func (a *baseList[O]) String() string {
	return listString(a, a.newListValue)
}

func (a *baseList[O]) GetOneForMarshal(i int) interface{} {
	if a.IsNull(i) {
		return nil
	}

	slice := a.newListValue(i)
	defer slice.Release()
	v, err := json.Marshal(slice)
	if err != nil {
		panic(err)
	}
	return json.RawMessage(v)
}

func (a *baseList[O]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	buf.WriteByte('[')
	for i := 0; i < a.Len(); i++ {
		if i != 0 {
			buf.WriteByte(',')
		}
		if err := enc.Encode(a.GetOneForMarshal(i)); err != nil {
			return nil, err
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Validate checks that the offsets buffer covers the array's window.
func (a *baseList[O]) Validate() error {
	if a.array.data.length == 0 {
		return nil
	}
	if need := a.array.data.offset + a.array.data.length + 1; len(a.offsets) < need {
		return fmt.Errorf("%w: arrow/array: offsets buffer has %d values, need %d", arrow.ErrInvalid, len(a.offsets), need)
	}
	return nil
}

// ValidateFull additionally checks that the offsets are non-decreasing
// and stay within the child array.
func (a *baseList[O]) ValidateFull() error {
	if err := a.Validate(); err != nil {
		return err
	}
	offsets := a.Offsets()
	childLen := int64(a.array.data.childData[0].Len())
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return fmt.Errorf("%w: arrow/array: offset at slot %d decreases (%d < %d)", arrow.ErrInvalid, i, offsets[i], offsets[i-1])
		}
	}
	if len(offsets) > 0 && (offsets[0] < 0 || int64(offsets[len(offsets)-1]) > childLen) {
		return fmt.Errorf("%w: arrow/array: offsets [%d, %d] out of bounds of child of length %d",
			arrow.ErrInvalid, offsets[0], offsets[len(offsets)-1], childLen)
	}
	return nil
}

// listString renders every slot of a list-like array through the slice
// returned by value.
func listString(a arrow.Array, value func(int) arrow.Array) string {
	o := new(strings.Builder)
	o.WriteString("[")
	for i := 0; i < a.Len(); i++ {
		if i > 0 {
			o.WriteString(" ")
		}
		if !a.IsValid(i) {
			o.WriteString(NullValueStr)
			continue
		}
		sub := value(i)
		fmt.Fprintf(o, "%v", sub)
		sub.Release()
	}
	o.WriteString("]")
	return o.String()
}

// List represents an immutable sequence of array values.
type List struct {
	baseList[int32]
}

// NewListData returns a new List array value, from data.
func NewListData(data arrow.ArrayData) *List {
	a := &List{}
	a.refCount = 1
	a.setData(ensureDataType(data, "list", arrow.LIST))
	return a
}

// LargeList represents an immutable sequence of array values, addressed
// by 64-bit offsets.
type LargeList struct {
	baseList[int64]
}

// NewLargeListData returns a new LargeList array value, from data.
func NewLargeListData(data arrow.ArrayData) *LargeList {
	a := &LargeList{}
	a.refCount = 1
	a.setData(ensureDataType(data, "large list", arrow.LARGE_LIST))
	return a
}

// baseListBuilder holds the state common to ListBuilder and LargeListBuilder.
// Each slot records the child length at the time it is appended; the
// trailing offset is written by NewArray.
type baseListBuilder[O offsetType] struct {
	builder

	dt      arrow.DataType
	values  Builder // value builder for the list's elements.
	offsets *typedBufferBuilder[O]
}

func (b *baseListBuilder[O]) Type() arrow.DataType { return b.dt }

// Release decreases the reference count by 1.
// When the reference count goes to zero, the memory is freed.
func (b *baseListBuilder[O]) Release() {
	debug.Assert(atomic.LoadInt64(&b.refCount) > 0, "too many releases")

	if atomic.AddInt64(&b.refCount, -1) == 0 {
		if b.nullBitmap != nil {
			b.nullBitmap.Release()
			b.nullBitmap = nil
		}
		b.values.Release()
		b.offsets.Release()
	}
}

func (b *baseListBuilder[O]) appendNextOffset() {
	n := b.values.Len()
	off := O(n)
	if int64(off) != int64(n) {
		panic(fmt.Errorf("%w: arrow/array: %s child length %d overflows offsets", arrow.ErrInvalid, b.dt, n))
	}
	b.offsets.AppendValue(off)
}

// Append starts a new slot. The elements of the slot are then appended
// to ValueBuilder. Append(false) is equivalent to AppendNull.
func (b *baseListBuilder[O]) Append(v bool) {
	b.Reserve(1)
	b.UnsafeAppendBoolToBitmap(v)
	b.appendNextOffset()
}

// AppendNull appends a null slot with no elements.
func (b *baseListBuilder[O]) AppendNull() {
	b.Reserve(1)
	b.UnsafeAppendBoolToBitmap(false)
	b.appendNextOffset()
}

func (b *baseListBuilder[O]) AppendNulls(n int) {
	for i := 0; i < n; i++ {
		b.AppendNull()
	}
}

// AppendEmptyValue appends a valid slot with no elements.
func (b *baseListBuilder[O]) AppendEmptyValue() {
	b.Append(true)
}

func (b *baseListBuilder[O]) AppendEmptyValues(n int) {
	for i := 0; i < n; i++ {
		b.AppendEmptyValue()
	}
}

// AppendValues appends slots whose start offsets are given in offsets.
// The elements must already be in ValueBuilder.
func (b *baseListBuilder[O]) AppendValues(offsets []O, valid []bool) {
	if len(offsets) != len(valid) && len(valid) != 0 {
		panic(fmt.Errorf("%w: arrow/array: len(offsets) != len(valid) && len(valid) != 0", arrow.ErrInvalid))
	}
	b.Reserve(len(offsets))
	b.offsets.AppendValues(offsets)
	b.builder.unsafeAppendBoolsToBitmap(valid, len(offsets))
}

// SetNull marks slot i as null and nulls every element in its range.
// The offsets are left unchanged.
func (b *baseListBuilder[O]) SetNull(i int) {
	if !b.setNull(i) {
		return
	}
	start, end := b.slotRange(i)
	debug.Logkv("msg", "list slot nulled", "type", b.dt, "slot", i, "start", start, "end", end)
	for j := start; j < end; j++ {
		b.values.SetNull(j)
	}
}

// slotRange returns the element range of slot i. The last slot extends
// to the current length of the value builder.
func (b *baseListBuilder[O]) slotRange(i int) (start, end int) {
	start = int(b.offsets.Value(i))
	if i+1 < b.offsets.Len() {
		end = int(b.offsets.Value(i + 1))
	} else {
		end = b.values.Len()
	}
	return
}

func (b *baseListBuilder[O]) init(capacity int) {
	b.builder.init(capacity)
	b.offsets.resize((capacity + 1) * arrow.SizeOf[O]())
}

// Reserve ensures there is enough space for appending n elements
// by checking the capacity and calling Resize if necessary.
func (b *baseListBuilder[O]) Reserve(n int) {
	b.builder.reserve(n, b.resizeHelper)
	b.offsets.reserve(n)
}

// Resize adjusts the space allocated by b to n elements. If n is greater than b.Cap(),
// additional memory will be allocated. If n is smaller, the allocated memory may reduced.
func (b *baseListBuilder[O]) Resize(n int) {
	b.resizeHelper(n)
	b.offsets.resize((n + 1) * arrow.SizeOf[O]())
	b.offsets.truncate(n)
}

func (b *baseListBuilder[O]) resizeHelper(n int) {
	if n < minBuilderCapacity {
		n = minBuilderCapacity
	}

	if b.capacity == 0 {
		b.init(n)
	} else {
		b.builder.resize(n, b.builder.init)
	}
}

// ValueBuilder returns the builder of the list's elements.
func (b *baseListBuilder[O]) ValueBuilder() Builder {
	return b.values
}

func (b *baseListBuilder[O]) Clear() {
	b.reset()
	b.offsets.Reset()
	b.values.Clear()
}

func (b *baseListBuilder[O]) newData() (data *Data) {
	if b.offsets.Len() != b.length+1 {
		b.appendNextOffset()
	}

	values := b.values.NewArray()
	defer values.Release()

	offsets := b.offsets.Finish()
	defer offsets.Release()

	data = NewData(
		b.dt, b.length,
		[]*memory.Buffer{
			b.nullBitmap,
			offsets,
		},
		[]arrow.ArrayData{values.Data()},
		b.nulls,
		0,
	)
	b.reset()

	return
}

func (b *baseListBuilder[O]) unmarshalOne(dec *json.Decoder) error {
	t, err := dec.Token()
	if err != nil {
		return err
	}

	switch t {
	case json.Delim('['):
		b.Append(true)
		if err := b.values.unmarshal(dec); err != nil {
			return err
		}
		// consume ']'
		_, err := dec.Token()
		return err
	case nil:
		b.AppendNull()
	default:
		return &json.UnmarshalTypeError{
			Value:  fmt.Sprint(t),
			Offset: dec.InputOffset(),
			Struct: b.dt.String(),
		}
	}

	return nil
}

func (b *baseListBuilder[O]) unmarshal(dec *json.Decoder) error {
	for dec.More() {
		if err := b.unmarshalOne(dec); err != nil {
			return err
		}
	}
	return nil
}

func (b *baseListBuilder[O]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	t, err := dec.Token()
	if err != nil {
		return err
	}

	if delim, ok := t.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("list builder must unpack from json array, found %s", delim)
	}

	return b.unmarshal(dec)
}

type ListBuilder struct {
	baseListBuilder[int32]
}

// NewListBuilder returns a builder, using the provided memory allocator.
// The created list builder will create a list whose elements will be of type etype.
func NewListBuilder(mem memory.Allocator, etype arrow.DataType) *ListBuilder {
	return NewListBuilderWithField(mem, arrow.Field{Name: "item", Type: etype, Nullable: true})
}

// NewListBuilderWithField takes a field to use for the child rather than just
// a datatype to allow for more customization.
func NewListBuilderWithField(mem memory.Allocator, field arrow.Field) *ListBuilder {
	return &ListBuilder{
		baseListBuilder[int32]{
			builder: builder{refCount: 1, mem: mem},
			dt:      arrow.ListOfField(field),
			values:  NewBuilder(mem, field.Type),
			offsets: newTypedBufferBuilder[int32](mem),
		},
	}
}

// NewArray creates a List array from the memory buffers used by the builder and resets the ListBuilder
// so it can be used to build a new array.
func (b *ListBuilder) NewArray() arrow.Array {
	return b.NewListArray()
}

// NewListArray creates a List array from the memory buffers used by the builder and resets the ListBuilder
// so it can be used to build a new array.
func (b *ListBuilder) NewListArray() (a *List) {
	data := b.newData()
	a = NewListData(data)
	data.Release()
	return
}

type LargeListBuilder struct {
	baseListBuilder[int64]
}

// NewLargeListBuilder returns a builder, using the provided memory allocator.
// The created list builder will create a list whose elements will be of type etype.
func NewLargeListBuilder(mem memory.Allocator, etype arrow.DataType) *LargeListBuilder {
	return NewLargeListBuilderWithField(mem, arrow.Field{Name: "item", Type: etype, Nullable: true})
}

// NewLargeListBuilderWithField takes a field rather than just an element type
// to allow for more customization of the final type of the LargeList Array
func NewLargeListBuilderWithField(mem memory.Allocator, field arrow.Field) *LargeListBuilder {
	return &LargeListBuilder{
		baseListBuilder[int64]{
			builder: builder{refCount: 1, mem: mem},
			dt:      arrow.LargeListOfField(field),
			values:  NewBuilder(mem, field.Type),
			offsets: newTypedBufferBuilder[int64](mem),
		},
	}
}

// NewArray creates a LargeList array from the memory buffers used by the builder and resets the LargeListBuilder
// so it can be used to build a new array.
func (b *LargeListBuilder) NewArray() arrow.Array {
	return b.NewLargeListArray()
}

// NewLargeListArray creates a LargeList array from the memory buffers used by the builder and resets the LargeListBuilder
// so it can be used to build a new array.
func (b *LargeListBuilder) NewLargeListArray() (a *LargeList) {
	data := b.newData()
	a = NewLargeListData(data)
	data.Release()
	return
}

var (
	_ VarLenListLike = (*List)(nil)
	_ VarLenListLike = (*LargeList)(nil)
	_ Builder        = (*ListBuilder)(nil)
	_ Builder        = (*LargeListBuilder)(nil)
)

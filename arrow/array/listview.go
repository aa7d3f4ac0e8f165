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
	"sync/atomic"

	"github.com/JohnCGriffin/overflow"
	"github.com/colarrow/go/arrow"
	"github.com/colarrow/go/arrow/internal/debug"
	"github.com/colarrow/go/arrow/memory"
	"github.com/goccy/go-json"
)

// baseListView holds the state common to ListView and LargeListView.
// Every slot has its own offset and size; slots may overlap and need not
// be ordered.
type baseListView[O offsetType] struct {
	array
	values  *lazyArray
	offsets []O
	sizes   []O
}

func (a *baseListView[O]) setData(data *Data) {
	ensureChildren(data, 1)
	a.array.setData(data)
	a.offsets, a.sizes = nil, nil
	if offsets := data.buffers[1]; offsets != nil {
		a.offsets = arrow.GetData[O](offsets.Bytes())
	}
	if sizes := data.buffers[2]; sizes != nil {
		a.sizes = arrow.GetData[O](sizes.Bytes())
	}
	if need := data.offset + data.length; data.length > 0 && (len(a.offsets) < need || len(a.sizes) < need) {
		panic(fmt.Errorf("%w: arrow/array: %s offsets and sizes buffers must have at least %d values",
			arrow.ErrInvalid, data.dtype, need))
	}

	child := data.childData[0]
	a.values = a.lazyChild(func() arrow.Array { return MakeFromData(child) })
}

// ListValues returns the child array holding the elements of every slot.
// The child is built on first use and owned by the list view.
func (a *baseListView[O]) ListValues() arrow.Array { return a.values.get() }

// Offsets returns the per slot offsets of the array's window.
func (a *baseListView[O]) Offsets() []O {
	if len(a.offsets) == 0 {
		return nil
	}
	return a.offsets[a.array.data.offset : a.array.data.offset+a.array.data.length]
}

// Sizes returns the per slot sizes of the array's window.
func (a *baseListView[O]) Sizes() []O {
	if len(a.sizes) == 0 {
		return nil
	}
	return a.sizes[a.array.data.offset : a.array.data.offset+a.array.data.length]
}

// ValueOffsets returns the start and end of slot i within ListValues.
func (a *baseListView[O]) ValueOffsets(i int) (start, end int64) {
	a.checkIndex(i)
	j := i + a.array.data.offset
	start = int64(a.offsets[j])
	return start, start + int64(a.sizes[j])
}

// GetValueLength returns the size of slot i.
func (a *baseListView[O]) GetValueLength(i int) int64 {
	a.checkIndex(i)
	return int64(a.sizes[i+a.array.data.offset])
}

func (a *baseListView[O]) newListValue(i int) arrow.Array {
	beg, end := a.ValueOffsets(i)
	return NewSlice(a.ListValues(), beg, end)
}

func (a *baseListView[O]) ValueStr(i int) string {
	if !a.IsValid(i) {
		return NullValueStr
	}
	return string(a.GetOneForMarshal(i).(json.RawMessage))
}

func (a *baseListView[O]) String() string {
	return listString(a, a.newListValue)
}

func (a *baseListView[O]) GetOneForMarshal(i int) interface{} {
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

func (a *baseListView[O]) MarshalJSON() ([]byte, error) {
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

// Validate checks that the offsets and sizes buffers cover the array's
// window.
func (a *baseListView[O]) Validate() error {
	if a.array.data.length == 0 {
		return nil
	}
	need := a.array.data.offset + a.array.data.length
	if len(a.offsets) < need {
		return fmt.Errorf("%w: arrow/array: offsets buffer has %d values, need %d", arrow.ErrInvalid, len(a.offsets), need)
	}
	if len(a.sizes) < need {
		return fmt.Errorf("%w: arrow/array: sizes buffer has %d values, need %d", arrow.ErrInvalid, len(a.sizes), need)
	}
	return nil
}

// ValidateFull additionally checks that every valid slot references a
// range inside the child array.
func (a *baseListView[O]) ValidateFull() error {
	if err := a.Validate(); err != nil {
		return err
	}
	childLen := int64(a.array.data.childData[0].Len())
	offsets, sizes := a.Offsets(), a.Sizes()
	for i := range offsets {
		if a.IsNull(i) {
			continue
		}
		if offsets[i] < 0 || sizes[i] < 0 {
			return fmt.Errorf("%w: arrow/array: slot %d has negative offset %d or size %d", arrow.ErrInvalid, i, offsets[i], sizes[i])
		}
		end, ok := overflow.Add64(int64(offsets[i]), int64(sizes[i]))
		if !ok || end > childLen {
			return fmt.Errorf("%w: arrow/array: slot %d range [%d, %d+%d) out of bounds of child of length %d",
				arrow.ErrInvalid, i, offsets[i], offsets[i], sizes[i], childLen)
		}
	}
	return nil
}

// ListView represents an immutable sequence of array values, each slot
// described by an offset and a size into the child array.
type ListView struct {
	baseListView[int32]
}

// NewListViewData returns a new ListView array value, from data.
func NewListViewData(data arrow.ArrayData) *ListView {
	a := &ListView{}
	a.refCount = 1
	a.setData(ensureDataType(data, "list view", arrow.LIST_VIEW))
	return a
}

// LargeListView is like ListView but with 64-bit offsets and sizes.
type LargeListView struct {
	baseListView[int64]
}

// NewLargeListViewData returns a new LargeListView array value, from data.
func NewLargeListViewData(data arrow.ArrayData) *LargeListView {
	a := &LargeListView{}
	a.refCount = 1
	a.setData(ensureDataType(data, "large list view", arrow.LARGE_LIST_VIEW))
	return a
}

// baseListViewBuilder holds the state common to ListViewBuilder and
// LargeListViewBuilder.
//
// Append(true) opens a slot whose size is only known once the next slot
// is started or the array is built: the size is then the number of child
// elements appended in between. AppendWithSize commits the size
// immediately instead.
type baseListViewBuilder[O offsetType] struct {
	builder

	dt      arrow.DataType
	values  Builder
	offsets *typedBufferBuilder[O]
	sizes   *typedBufferBuilder[O]

	// pending is the index of the open slot, or -1.
	pending int
}

func newBaseListViewBuilder[O offsetType](mem memory.Allocator, dt arrow.DataType, etype arrow.DataType) baseListViewBuilder[O] {
	return baseListViewBuilder[O]{
		builder: builder{refCount: 1, mem: mem},
		dt:      dt,
		values:  NewBuilder(mem, etype),
		offsets: newTypedBufferBuilder[O](mem),
		sizes:   newTypedBufferBuilder[O](mem),
		pending: -1,
	}
}

func (b *baseListViewBuilder[O]) Type() arrow.DataType { return b.dt }

// Release decreases the reference count by 1.
// When the reference count goes to zero, the memory is freed.
func (b *baseListViewBuilder[O]) Release() {
	debug.Assert(atomic.LoadInt64(&b.refCount) > 0, "too many releases")

	if atomic.AddInt64(&b.refCount, -1) == 0 {
		if b.nullBitmap != nil {
			b.nullBitmap.Release()
			b.nullBitmap = nil
		}
		b.values.Release()
		b.offsets.Release()
		b.sizes.Release()
	}
}

func (b *baseListViewBuilder[O]) toOffset(n int64) O {
	off := O(n)
	if int64(off) != n {
		panic(fmt.Errorf("%w: arrow/array: %s value %d overflows offsets", arrow.ErrInvalid, b.dt, n))
	}
	return off
}

// flush commits the size of the open slot, if any.
func (b *baseListViewBuilder[O]) flush() {
	if b.pending < 0 {
		return
	}
	start := int64(b.offsets.Value(b.pending))
	b.sizes.SetValue(b.pending, b.toOffset(int64(b.values.Len())-start))
	b.pending = -1
}

// nextOffset returns the offset following the last committed slot.
func (b *baseListViewBuilder[O]) nextOffset() O {
	n := b.offsets.Len()
	if n == 0 {
		return 0
	}
	end, ok := overflow.Add64(int64(b.offsets.Value(n-1)), int64(b.sizes.Value(n-1)))
	if !ok {
		panic(fmt.Errorf("%w: arrow/array: %s offset overflow", arrow.ErrInvalid, b.dt))
	}
	return b.toOffset(end)
}

// Append opens a new slot whose elements are then appended to
// ValueBuilder. Append(false) is equivalent to AppendNull.
func (b *baseListViewBuilder[O]) Append(v bool) {
	if !v {
		b.AppendNull()
		return
	}
	b.flush()
	b.Reserve(1)
	b.UnsafeAppendBoolToBitmap(true)
	b.pending = b.offsets.Len()
	b.offsets.AppendValue(b.toOffset(int64(b.values.Len())))
	b.sizes.AppendValue(0)
}

// AppendWithSize appends a slot of n elements starting at the current end
// of ValueBuilder. The caller appends the n elements afterwards.
func (b *baseListViewBuilder[O]) AppendWithSize(v bool, n int) {
	b.flush()
	b.Reserve(1)
	b.UnsafeAppendBoolToBitmap(v)
	b.offsets.AppendValue(b.toOffset(int64(b.values.Len())))
	b.sizes.AppendValue(b.toOffset(int64(n)))
}

// AppendNull appends a null slot of size zero whose offset follows the
// previous slot.
func (b *baseListViewBuilder[O]) AppendNull() {
	b.flush()
	b.Reserve(1)
	b.UnsafeAppendBoolToBitmap(false)
	b.offsets.AppendValue(b.nextOffset())
	b.sizes.AppendValue(0)
}

func (b *baseListViewBuilder[O]) AppendNulls(n int) {
	for i := 0; i < n; i++ {
		b.AppendNull()
	}
}

// AppendEmptyValue appends a valid slot of size zero.
func (b *baseListViewBuilder[O]) AppendEmptyValue() {
	b.AppendWithSize(true, 0)
}

func (b *baseListViewBuilder[O]) AppendEmptyValues(n int) {
	for i := 0; i < n; i++ {
		b.AppendEmptyValue()
	}
}

// AppendValuesWithSizes appends slots described by offsets and sizes into
// elements already present in ValueBuilder.
func (b *baseListViewBuilder[O]) AppendValuesWithSizes(offsets, sizes []O, valid []bool) {
	if len(offsets) != len(sizes) || (len(valid) != 0 && len(valid) != len(offsets)) {
		panic(fmt.Errorf("%w: arrow/array: offsets, sizes and valid must have equal lengths", arrow.ErrInvalid))
	}
	b.flush()
	b.Reserve(len(offsets))
	b.offsets.AppendValues(offsets)
	b.sizes.AppendValues(sizes)
	b.builder.unsafeAppendBoolsToBitmap(valid, len(offsets))
}

// SetNull marks slot i as null, nulls every element in its range and sets
// its size to zero. An open slot is closed with size zero after nulling
// the elements appended to it so far.
func (b *baseListViewBuilder[O]) SetNull(i int) {
	if !b.setNull(i) {
		return
	}
	start := int(b.offsets.Value(i))
	end := start + int(b.sizes.Value(i))
	if i == b.pending {
		// the open slot owns everything appended to the child since it began
		end = b.values.Len()
		b.pending = -1
	}
	debug.Logkv("msg", "list view slot nulled", "type", b.dt, "slot", i, "start", start, "end", end)
	for j := start; j < end; j++ {
		b.values.SetNull(j)
	}
	b.sizes.SetValue(i, 0)
}

func (b *baseListViewBuilder[O]) init(capacity int) {
	b.builder.init(capacity)
	b.offsets.resize(capacity * arrow.SizeOf[O]())
	b.sizes.resize(capacity * arrow.SizeOf[O]())
}

// Reserve ensures there is enough space for appending n elements
// by checking the capacity and calling Resize if necessary.
func (b *baseListViewBuilder[O]) Reserve(n int) {
	b.builder.reserve(n, b.resizeHelper)
	b.offsets.reserve(n)
	b.sizes.reserve(n)
}

// Resize adjusts the space allocated by b to n elements. If n is greater than b.Cap(),
// additional memory will be allocated. If n is smaller, the allocated memory may reduced.
func (b *baseListViewBuilder[O]) Resize(n int) {
	b.resizeHelper(n)
	b.offsets.resize(n * arrow.SizeOf[O]())
	b.sizes.resize(n * arrow.SizeOf[O]())
	b.offsets.truncate(n)
	b.sizes.truncate(n)
	if b.pending >= n {
		b.pending = -1
	}
}

func (b *baseListViewBuilder[O]) resizeHelper(n int) {
	if n < minBuilderCapacity {
		n = minBuilderCapacity
	}

	if b.capacity == 0 {
		b.init(n)
	} else {
		b.builder.resize(n, b.builder.init)
	}
}

// ValueBuilder returns the builder of the list view's elements.
func (b *baseListViewBuilder[O]) ValueBuilder() Builder {
	return b.values
}

func (b *baseListViewBuilder[O]) Clear() {
	b.reset()
	b.offsets.Reset()
	b.sizes.Reset()
	b.values.Clear()
	b.pending = -1
}

func (b *baseListViewBuilder[O]) newData() (data *Data) {
	b.flush()

	values := b.values.NewArray()
	defer values.Release()

	offsets, sizes := b.offsets.Finish(), b.sizes.Finish()
	defer offsets.Release()
	defer sizes.Release()

	data = NewData(
		b.dt, b.length,
		[]*memory.Buffer{
			b.nullBitmap,
			offsets,
			sizes,
		},
		[]arrow.ArrayData{values.Data()},
		b.nulls,
		0,
	)
	b.reset()

	return
}

func (b *baseListViewBuilder[O]) unmarshalOne(dec *json.Decoder) error {
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

func (b *baseListViewBuilder[O]) unmarshal(dec *json.Decoder) error {
	for dec.More() {
		if err := b.unmarshalOne(dec); err != nil {
			return err
		}
	}
	return nil
}

func (b *baseListViewBuilder[O]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	t, err := dec.Token()
	if err != nil {
		return err
	}

	if delim, ok := t.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("list view builder must unpack from json array, found %s", delim)
	}

	return b.unmarshal(dec)
}

type ListViewBuilder struct {
	baseListViewBuilder[int32]
}

// NewListViewBuilder returns a builder, using the provided memory allocator.
// The created builder will create a list view whose elements will be of type etype.
func NewListViewBuilder(mem memory.Allocator, etype arrow.DataType) *ListViewBuilder {
	return NewListViewBuilderWithField(mem, arrow.Field{Name: "item", Type: etype, Nullable: true})
}

// NewListViewBuilderWithField takes a field to use for the child rather than just
// a datatype to allow for more customization.
func NewListViewBuilderWithField(mem memory.Allocator, field arrow.Field) *ListViewBuilder {
	return &ListViewBuilder{newBaseListViewBuilder[int32](mem, arrow.ListViewOfField(field), field.Type)}
}

// NewArray creates a ListView array from the memory buffers used by the builder and resets the ListViewBuilder
// so it can be used to build a new array.
func (b *ListViewBuilder) NewArray() arrow.Array {
	return b.NewListViewArray()
}

// NewListViewArray creates a ListView array from the memory buffers used by the builder and resets the ListViewBuilder
// so it can be used to build a new array.
func (b *ListViewBuilder) NewListViewArray() (a *ListView) {
	data := b.newData()
	a = NewListViewData(data)
	data.Release()
	return
}

type LargeListViewBuilder struct {
	baseListViewBuilder[int64]
}

// NewLargeListViewBuilder returns a builder, using the provided memory allocator.
// The created builder will create a large list view whose elements will be of type etype.
func NewLargeListViewBuilder(mem memory.Allocator, etype arrow.DataType) *LargeListViewBuilder {
	return NewLargeListViewBuilderWithField(mem, arrow.Field{Name: "item", Type: etype, Nullable: true})
}

// NewLargeListViewBuilderWithField takes a field to use for the child rather than just
// a datatype to allow for more customization.
func NewLargeListViewBuilderWithField(mem memory.Allocator, field arrow.Field) *LargeListViewBuilder {
	return &LargeListViewBuilder{newBaseListViewBuilder[int64](mem, arrow.LargeListViewOfField(field), field.Type)}
}

// NewArray creates a LargeListView array from the memory buffers used by the builder and resets the
// LargeListViewBuilder so it can be used to build a new array.
func (b *LargeListViewBuilder) NewArray() arrow.Array {
	return b.NewLargeListViewArray()
}

// NewLargeListViewArray creates a LargeListView array from the memory buffers used by the builder and resets
// the LargeListViewBuilder so it can be used to build a new array.
func (b *LargeListViewBuilder) NewLargeListViewArray() (a *LargeListView) {
	data := b.newData()
	a = NewLargeListViewData(data)
	data.Release()
	return
}

var (
	_ VarLenListLike = (*ListView)(nil)
	_ VarLenListLike = (*LargeListView)(nil)
	_ Builder        = (*ListViewBuilder)(nil)
	_ Builder        = (*LargeListViewBuilder)(nil)
)

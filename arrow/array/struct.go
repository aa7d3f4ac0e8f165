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
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/colarrow/go/arrow"
	"github.com/colarrow/go/arrow/internal/debug"
	"github.com/colarrow/go/arrow/memory"
	"github.com/goccy/go-json"
)

// Struct represents an ordered sequence of relative types.
type Struct struct {
	array
	fields []*lazyArray
}

// NewStructArray constructs a new Struct Array out of the columns passed
// in and the field names. The length of all cols must be the same and
// there should be the same number of columns as names.
func NewStructArray(cols []arrow.Array, names []string) (*Struct, error) {
	return NewStructArrayWithNulls(cols, names, nil, 0, 0)
}

// NewStructArrayWithNulls is like NewStructArray as a convenience function,
// but also takes in a null bitmap, the number of nulls, and an optional offset
// to use for creating the Struct Array.
func NewStructArrayWithNulls(cols []arrow.Array, names []string, nullBitmap *memory.Buffer, nulls int, offset int) (*Struct, error) {
	if len(cols) != len(names) {
		return nil, fmt.Errorf("%w: mismatching number of fields and child arrays", arrow.ErrInvalid)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: can't infer struct array length with 0 child arrays", arrow.ErrInvalid)
	}
	length := cols[0].Len()
	children := make([]arrow.ArrayData, len(cols))
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		if length != c.Len() {
			return nil, fmt.Errorf("%w: mismatching child array lengths", arrow.ErrInvalid)
		}
		children[i] = c.Data()
		fields[i].Name = names[i]
		fields[i].Type = c.DataType()
		fields[i].Nullable = true
	}
	data := NewData(arrow.StructOf(fields...), length-offset, []*memory.Buffer{nullBitmap}, children, nulls, offset)
	defer data.Release()
	return NewStructData(data), nil
}

// NewStructData returns a new Struct array value from data.
func NewStructData(data arrow.ArrayData) *Struct {
	a := &Struct{}
	a.refCount = 1
	a.setData(ensureDataType(data, "struct", arrow.STRUCT))
	return a
}

// NumField returns the number of fields.
func (a *Struct) NumField() int { return len(a.fields) }

// Field returns the i-th field, sliced to the struct's window. The field
// is built on first use and owned by the struct.
func (a *Struct) Field(i int) arrow.Array { return a.fields[i].get() }

func (a *Struct) setData(data *Data) {
	st := data.dtype.(*arrow.StructType)
	ensureChildren(data, st.NumFields())
	for i, child := range data.childData {
		if child.Len() < data.offset+data.length {
			panic(fmt.Errorf("%w: arrow/array: struct field %q has length %d, need at least %d",
				arrow.ErrInvalid, st.Field(i).Name, child.Len(), data.offset+data.length))
		}
	}

	a.array.setData(data)
	a.fields = make([]*lazyArray, len(data.childData))
	for i, child := range data.childData {
		a.fields[i] = a.lazyChild(a.childSlice(child))
	}
}

func (a *Struct) ValueStr(i int) string {
	if a.IsNull(i) {
		return NullValueStr
	}
	return string(a.GetOneForMarshal(i).(json.RawMessage))
}

func (a *Struct) String() string {
	o := new(strings.Builder)
	o.WriteString("{")
	for i := range a.fields {
		if i > 0 {
			o.WriteString(" ")
		}
		fmt.Fprintf(o, "%v", a.Field(i))
	}
	o.WriteString("}")
	return o.String()
}

// GetOneForMarshal returns slot i as a JSON object with the fields in
// declaration order.
func (a *Struct) GetOneForMarshal(i int) interface{} {
	if a.IsNull(i) {
		return nil
	}

	st := a.DataType().(*arrow.StructType)
	var buf bytes.Buffer
	buf.WriteByte('{')
	for j := range a.fields {
		if j > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(st.Field(j).Name)
		if err != nil {
			panic(err)
		}
		val, err := json.Marshal(a.Field(j).GetOneForMarshal(i))
		if err != nil {
			panic(err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return json.RawMessage(buf.Bytes())
}

func (a *Struct) MarshalJSON() ([]byte, error) {
	return marshalArray(a)
}

// Validate checks that every field matches the declared field type.
func (a *Struct) Validate() error {
	st := a.DataType().(*arrow.StructType)
	for i, child := range a.array.data.childData {
		if !arrow.TypeEqual(child.DataType(), st.Field(i).Type) {
			return fmt.Errorf("%w: arrow/array: struct field %q has type %s, declared %s",
				arrow.ErrInvalid, st.Field(i).Name, child.DataType(), st.Field(i).Type)
		}
	}
	return nil
}

// ValidateFull validates the struct and every field that supports
// validation.
func (a *Struct) ValidateFull() error {
	if err := a.Validate(); err != nil {
		return err
	}
	for i := range a.fields {
		if v, ok := a.Field(i).(interface{ ValidateFull() error }); ok {
			if err := v.ValidateFull(); err != nil {
				return err
			}
		}
	}
	return nil
}

// StructBuilder builds a Struct array. Append and AppendNull only record
// the validity of the struct slot: the caller appends one value, null or
// otherwise, to every field builder per slot.
type StructBuilder struct {
	builder

	dtype  arrow.DataType
	fields []Builder
}

// NewStructBuilder returns a builder, using the provided memory allocator.
func NewStructBuilder(mem memory.Allocator, dtype *arrow.StructType) *StructBuilder {
	b := &StructBuilder{
		builder: builder{refCount: 1, mem: mem},
		dtype:   dtype,
		fields:  make([]Builder, dtype.NumFields()),
	}
	for i, f := range dtype.Fields() {
		b.fields[i] = NewBuilder(b.mem, f.Type)
	}
	return b
}

// NewStructBuilderWithFields returns a builder which appends the fields of
// dtype to the given builders. The builders are retained.
func NewStructBuilderWithFields(mem memory.Allocator, dtype *arrow.StructType, fields []Builder) (*StructBuilder, error) {
	if len(fields) != dtype.NumFields() {
		return nil, fmt.Errorf("%w: arrow/array: struct type has %d fields, got %d builders",
			arrow.ErrInvalid, dtype.NumFields(), len(fields))
	}
	for i, f := range fields {
		if !arrow.TypeEqual(f.Type(), dtype.Field(i).Type) {
			return nil, fmt.Errorf("%w: arrow/array: builder for field %q builds %s, declared %s",
				arrow.ErrType, dtype.Field(i).Name, f.Type(), dtype.Field(i).Type)
		}
	}

	b := &StructBuilder{
		builder: builder{refCount: 1, mem: mem},
		dtype:   dtype,
		fields:  make([]Builder, len(fields)),
	}
	for i, f := range fields {
		f.Retain()
		b.fields[i] = f
	}
	return b, nil
}

func (b *StructBuilder) Type() arrow.DataType { return b.dtype }

// Release decreases the reference count by 1.
// When the reference count goes to zero, the memory is freed.
func (b *StructBuilder) Release() {
	debug.Assert(atomic.LoadInt64(&b.refCount) > 0, "too many releases")

	if atomic.AddInt64(&b.refCount, -1) == 0 {
		if b.nullBitmap != nil {
			b.nullBitmap.Release()
			b.nullBitmap = nil
		}

		for _, f := range b.fields {
			f.Release()
		}
	}
}

// Append records the validity of a new struct slot.
func (b *StructBuilder) Append(v bool) {
	b.Reserve(1)
	b.UnsafeAppendBoolToBitmap(v)
}

// AppendValues records the validity of len(valids) new struct slots.
func (b *StructBuilder) AppendValues(valids []bool) {
	b.Reserve(len(valids))
	b.unsafeAppendBoolsToBitmap(valids, len(valids))
}

// AppendNull records a new null struct slot. The field builders are left
// untouched.
func (b *StructBuilder) AppendNull() { b.Append(false) }

func (b *StructBuilder) AppendNulls(n int) {
	for i := 0; i < n; i++ {
		b.AppendNull()
	}
}

// AppendEmptyValue appends a valid slot and an empty value to every field.
func (b *StructBuilder) AppendEmptyValue() {
	b.Append(true)
	for _, f := range b.fields {
		f.AppendEmptyValue()
	}
}

func (b *StructBuilder) AppendEmptyValues(n int) {
	for i := 0; i < n; i++ {
		b.AppendEmptyValue()
	}
}

// SetNull marks slot i as null in the struct and in every field builder
// which already holds slot i.
func (b *StructBuilder) SetNull(i int) {
	if !b.setNull(i) {
		return
	}
	debug.Logkv("msg", "struct slot nulled", "slot", i, "fields", len(b.fields))
	for _, f := range b.fields {
		if i < f.Len() {
			f.SetNull(i)
		}
	}
}

func (b *StructBuilder) init(capacity int) {
	b.builder.init(capacity)
}

// Reserve ensures there is enough space for appending n elements
// by checking the capacity and calling Resize if necessary.
func (b *StructBuilder) Reserve(n int) {
	b.builder.reserve(n, b.resizeHelper)
	for _, f := range b.fields {
		f.Reserve(n)
	}
}

// Resize adjusts the space allocated by b to n elements. If n is greater than b.Cap(),
// additional memory will be allocated. If n is smaller, the allocated memory may reduced.
func (b *StructBuilder) Resize(n int) {
	b.resizeHelper(n)
	for _, f := range b.fields {
		f.Resize(n)
	}
}

func (b *StructBuilder) resizeHelper(n int) {
	if n < minBuilderCapacity {
		n = minBuilderCapacity
	}

	if b.capacity == 0 {
		b.init(n)
	} else {
		b.builder.resize(n, b.builder.init)
	}
}

func (b *StructBuilder) NumField() int { return len(b.fields) }

// FieldBuilder returns the builder of the i-th field.
func (b *StructBuilder) FieldBuilder(i int) Builder { return b.fields[i] }

func (b *StructBuilder) Clear() {
	b.reset()
	for _, f := range b.fields {
		f.Clear()
	}
}

// NewArray creates a Struct array from the memory buffers used by the builder and resets the StructBuilder
// so it can be used to build a new array.
func (b *StructBuilder) NewArray() arrow.Array {
	return b.NewStructArray()
}

// NewStructArray creates a Struct array from the memory buffers used by the builder and resets the StructBuilder
// so it can be used to build a new array.
func (b *StructBuilder) NewStructArray() (a *Struct) {
	data := b.newData()
	a = NewStructData(data)
	data.Release()
	return
}

func (b *StructBuilder) newData() (data *Data) {
	fields := make([]arrow.ArrayData, len(b.fields))
	for i, f := range b.fields {
		arr := f.NewArray()
		defer arr.Release()
		fields[i] = arr.Data()
	}

	for i, f := range fields {
		if f.Len() != b.length {
			length := b.length
			b.reset()
			panic(fmt.Errorf("%w: arrow/array: struct field %q has length %d, struct has length %d",
				arrow.ErrInvalid, b.dtype.(*arrow.StructType).Field(i).Name, f.Len(), length))
		}
	}

	data = NewData(
		b.dtype, b.length,
		[]*memory.Buffer{b.validityBuffer()},
		fields,
		b.nulls,
		0,
	)
	b.reset()

	return
}

func (b *StructBuilder) unmarshalOne(dec *json.Decoder) error {
	t, err := dec.Token()
	if err != nil {
		return err
	}

	st := b.dtype.(*arrow.StructType)
	switch t {
	case json.Delim('{'):
		b.Append(true)
		keylist := make(map[string]bool)
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return err
			}

			key, ok := keyTok.(string)
			if !ok {
				return errors.New("missing key")
			}

			if keylist[key] {
				return fmt.Errorf("key %s is specified twice", key)
			}

			keylist[key] = true

			idx, ok := st.FieldIdx(key)
			if !ok {
				var extra interface{}
				if err := dec.Decode(&extra); err != nil {
					return err
				}
				continue
			}

			if err := b.fields[idx].unmarshalOne(dec); err != nil {
				return err
			}
		}

		// pad the fields that were not presented in the json input
		for i, field := range st.Fields() {
			if keylist[field.Name] {
				continue
			}
			if field.Nullable {
				b.fields[i].AppendNull()
			} else {
				b.fields[i].AppendEmptyValue()
			}
		}

		// consume '}'
		_, err := dec.Token()
		return err
	case nil:
		b.AppendNull()
		for _, f := range b.fields {
			f.AppendNull()
		}
	default:
		return &json.UnmarshalTypeError{
			Offset: dec.InputOffset(),
			Struct: fmt.Sprint(st),
		}
	}
	return nil
}

func (b *StructBuilder) unmarshal(dec *json.Decoder) error {
	for dec.More() {
		if err := b.unmarshalOne(dec); err != nil {
			return err
		}
	}
	return nil
}

func (b *StructBuilder) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	t, err := dec.Token()
	if err != nil {
		return err
	}

	if delim, ok := t.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("struct builder must unpack from json array, found %s", delim)
	}

	return b.unmarshal(dec)
}

var (
	_ arrow.Array = (*Struct)(nil)
	_ Builder     = (*StructBuilder)(nil)
)

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
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/colarrow/go/arrow"
	"github.com/colarrow/go/arrow/bitutil"
	"github.com/colarrow/go/arrow/internal/debug"
	"github.com/colarrow/go/arrow/memory"
	"github.com/goccy/go-json"
)

// Numeric represents an immutable sequence of fixed width numeric values
// of Go type T.
type Numeric[T arrow.NumericType] struct {
	array
	values []T
}

type (
	Int8    = Numeric[int8]
	Int16   = Numeric[int16]
	Int32   = Numeric[int32]
	Int64   = Numeric[int64]
	Uint8   = Numeric[uint8]
	Uint16  = Numeric[uint16]
	Uint32  = Numeric[uint32]
	Uint64  = Numeric[uint64]
	Float32 = Numeric[float32]
	Float64 = Numeric[float64]
)

func newNumericData[T arrow.NumericType](data arrow.ArrayData) *Numeric[T] {
	id := arrow.TypeOf[T]()
	a := &Numeric[T]{}
	a.refCount = 1
	a.setData(ensureDataType(data, id.String(), id))
	return a
}

// NewInt8Data creates a new Int8 array from data.
func NewInt8Data(data arrow.ArrayData) *Int8 { return newNumericData[int8](data) }

// NewInt16Data creates a new Int16 array from data.
func NewInt16Data(data arrow.ArrayData) *Int16 { return newNumericData[int16](data) }

// NewInt32Data creates a new Int32 array from data.
func NewInt32Data(data arrow.ArrayData) *Int32 { return newNumericData[int32](data) }

// NewInt64Data creates a new Int64 array from data.
func NewInt64Data(data arrow.ArrayData) *Int64 { return newNumericData[int64](data) }

// NewUint8Data creates a new Uint8 array from data.
func NewUint8Data(data arrow.ArrayData) *Uint8 { return newNumericData[uint8](data) }

// NewUint16Data creates a new Uint16 array from data.
func NewUint16Data(data arrow.ArrayData) *Uint16 { return newNumericData[uint16](data) }

// NewUint32Data creates a new Uint32 array from data.
func NewUint32Data(data arrow.ArrayData) *Uint32 { return newNumericData[uint32](data) }

// NewUint64Data creates a new Uint64 array from data.
func NewUint64Data(data arrow.ArrayData) *Uint64 { return newNumericData[uint64](data) }

// NewFloat32Data creates a new Float32 array from data.
func NewFloat32Data(data arrow.ArrayData) *Float32 { return newNumericData[float32](data) }

// NewFloat64Data creates a new Float64 array from data.
func NewFloat64Data(data arrow.ArrayData) *Float64 { return newNumericData[float64](data) }

// Value returns the value at the specified index.
func (a *Numeric[T]) Value(i int) T { return a.values[i] }

// Values returns the values, adjusted for the array offset.
func (a *Numeric[T]) Values() []T { return a.values }

func (a *Numeric[T]) setData(data *Data) {
	a.array.setData(data)
	a.values = nil
	if vals := data.buffers[1]; vals != nil {
		a.values = arrow.GetData[T](vals.Bytes())
		beg := a.array.data.offset
		end := beg + a.array.data.length
		a.values = a.values[beg:end]
	}
}

func (a *Numeric[T]) ValueStr(i int) string {
	if a.IsNull(i) {
		return NullValueStr
	}
	return formatNumeric(a.values[i])
}

func (a *Numeric[T]) String() string {
	o := new(strings.Builder)
	o.WriteString("[")
	for i, v := range a.values {
		if i > 0 {
			fmt.Fprintf(o, " ")
		}
		switch {
		case a.IsNull(i):
			o.WriteString(NullValueStr)
		default:
			fmt.Fprintf(o, "%v", v)
		}
	}
	o.WriteString("]")
	return o.String()
}

func (a *Numeric[T]) GetOneForMarshal(i int) interface{} {
	if a.IsNull(i) {
		return nil
	}
	switch v := any(a.values[i]).(type) {
	case float32:
		return jsonFloat(float64(v))
	case float64:
		return jsonFloat(v)
	}
	return a.values[i]
}

func (a *Numeric[T]) MarshalJSON() ([]byte, error) {
	return marshalArray(a)
}

// jsonFloat replaces the values JSON cannot encode by their string form.
func jsonFloat(v float64) interface{} {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return v
}

func formatNumeric[T arrow.NumericType](v T) string {
	switch v := any(v).(type) {
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	}
	return strconv.FormatInt(int64(v), 10)
}

func isFloating[T arrow.NumericType]() bool {
	return arrow.IsFloating(arrow.TypeOf[T]())
}

// parseNumeric parses s as a value of T, honoring T's width.
func parseNumeric[T arrow.NumericType](s string) (T, error) {
	var z T
	switch any(z).(type) {
	case float32:
		v, err := strconv.ParseFloat(s, 32)
		return T(v), err
	case float64:
		v, err := strconv.ParseFloat(s, 64)
		return T(v), err
	case uint8, uint16, uint32, uint64:
		v, err := strconv.ParseUint(s, 10, arrow.SizeOf[T]()*8)
		return T(v), err
	}
	v, err := strconv.ParseInt(s, 10, arrow.SizeOf[T]()*8)
	return T(v), err
}

// NumericBuilder builds a Numeric[T] array using the Append methods.
type NumericBuilder[T arrow.NumericType] struct {
	builder

	dtype   arrow.DataType
	data    *memory.Buffer
	rawData []T
}

type (
	Int8Builder    = NumericBuilder[int8]
	Int16Builder   = NumericBuilder[int16]
	Int32Builder   = NumericBuilder[int32]
	Int64Builder   = NumericBuilder[int64]
	Uint8Builder   = NumericBuilder[uint8]
	Uint16Builder  = NumericBuilder[uint16]
	Uint32Builder  = NumericBuilder[uint32]
	Uint64Builder  = NumericBuilder[uint64]
	Float32Builder = NumericBuilder[float32]
	Float64Builder = NumericBuilder[float64]
)

// NewNumericBuilder returns a builder for values of Go type T, using the
// provided memory allocator.
func NewNumericBuilder[T arrow.NumericType](mem memory.Allocator) *NumericBuilder[T] {
	return &NumericBuilder[T]{
		builder: builder{refCount: 1, mem: mem},
		dtype:   arrow.PrimitiveTypeOf(arrow.TypeOf[T]()),
	}
}

func NewInt8Builder(mem memory.Allocator) *Int8Builder       { return NewNumericBuilder[int8](mem) }
func NewInt16Builder(mem memory.Allocator) *Int16Builder     { return NewNumericBuilder[int16](mem) }
func NewInt32Builder(mem memory.Allocator) *Int32Builder     { return NewNumericBuilder[int32](mem) }
func NewInt64Builder(mem memory.Allocator) *Int64Builder     { return NewNumericBuilder[int64](mem) }
func NewUint8Builder(mem memory.Allocator) *Uint8Builder     { return NewNumericBuilder[uint8](mem) }
func NewUint16Builder(mem memory.Allocator) *Uint16Builder   { return NewNumericBuilder[uint16](mem) }
func NewUint32Builder(mem memory.Allocator) *Uint32Builder   { return NewNumericBuilder[uint32](mem) }
func NewUint64Builder(mem memory.Allocator) *Uint64Builder   { return NewNumericBuilder[uint64](mem) }
func NewFloat32Builder(mem memory.Allocator) *Float32Builder { return NewNumericBuilder[float32](mem) }
func NewFloat64Builder(mem memory.Allocator) *Float64Builder { return NewNumericBuilder[float64](mem) }

func (b *NumericBuilder[T]) Type() arrow.DataType { return b.dtype }

// Release decreases the reference count by 1.
// When the reference count goes to zero, the memory is freed.
// Release may be called simultaneously from multiple goroutines.
func (b *NumericBuilder[T]) Release() {
	debug.Assert(atomic.LoadInt64(&b.refCount) > 0, "too many releases")

	if atomic.AddInt64(&b.refCount, -1) == 0 {
		if b.nullBitmap != nil {
			b.nullBitmap.Release()
			b.nullBitmap = nil
		}
		if b.data != nil {
			b.data.Release()
			b.data = nil
			b.rawData = nil
		}
	}
}

func (b *NumericBuilder[T]) Append(v T) {
	b.Reserve(1)
	b.UnsafeAppend(v)
}

func (b *NumericBuilder[T]) UnsafeAppend(v T) {
	bitutil.SetBit(b.nullBitmap.Bytes(), b.length)
	b.rawData[b.length] = v
	b.length++
}

func (b *NumericBuilder[T]) AppendNull() {
	b.Reserve(1)
	b.UnsafeAppendBoolToBitmap(false)
}

func (b *NumericBuilder[T]) AppendNulls(n int) {
	for i := 0; i < n; i++ {
		b.AppendNull()
	}
}

func (b *NumericBuilder[T]) AppendEmptyValue() {
	b.Append(0)
}

func (b *NumericBuilder[T]) AppendEmptyValues(n int) {
	for i := 0; i < n; i++ {
		b.AppendEmptyValue()
	}
}

// AppendValues will append the values in the v slice. The valid slice determines which values
// in v are valid (not null). The valid slice must either be empty or be equal in length to v. If empty,
// all values in v are appended and considered valid.
func (b *NumericBuilder[T]) AppendValues(v []T, valid []bool) {
	if len(v) != len(valid) && len(valid) != 0 {
		panic(fmt.Errorf("%w: arrow/array: len(v) != len(valid) && len(valid) != 0", arrow.ErrInvalid))
	}

	if len(v) == 0 {
		return
	}

	b.Reserve(len(v))
	copy(b.rawData[b.length:], v)
	b.builder.unsafeAppendBoolsToBitmap(valid, len(v))
}

// Value returns the already appended value at index i.
func (b *NumericBuilder[T]) Value(i int) T {
	b.checkIndex(i)
	return b.rawData[i]
}

// SetNull marks slot i as null. The stored value is left untouched.
func (b *NumericBuilder[T]) SetNull(i int) { b.setNull(i) }

func (b *NumericBuilder[T]) init(capacity int) {
	b.builder.init(capacity)

	b.data = memory.NewResizableBuffer(b.mem)
	bytesN := capacity * arrow.SizeOf[T]()
	b.data.Resize(bytesN)
	b.rawData = arrow.GetData[T](b.data.Bytes())
}

// Reserve ensures there is enough space for appending n elements
// by checking the capacity and calling Resize if necessary.
func (b *NumericBuilder[T]) Reserve(n int) {
	b.builder.reserve(n, b.Resize)
}

// Resize adjusts the space allocated by b to n elements. If n is greater than b.Cap(),
// additional memory will be allocated. If n is smaller, the allocated memory may reduced.
func (b *NumericBuilder[T]) Resize(n int) {
	nBuilder := n
	if n < minBuilderCapacity {
		n = minBuilderCapacity
	}

	if b.capacity == 0 {
		b.init(n)
	} else {
		b.builder.resize(nBuilder, b.init)
		b.data.Resize(nBuilder * arrow.SizeOf[T]())
		b.rawData = arrow.GetData[T](b.data.Bytes())
	}
}

func (b *NumericBuilder[T]) Clear() {
	b.reset()
	if b.data != nil {
		b.data.Release()
		b.data, b.rawData = nil, nil
	}
}

// NewArray creates a Numeric array from the memory buffers used by the builder and resets the NumericBuilder
// so it can be used to build a new array.
func (b *NumericBuilder[T]) NewArray() arrow.Array {
	return b.NewNumericArray()
}

// NewNumericArray creates a Numeric array from the memory buffers used by the builder and resets the NumericBuilder
// so it can be used to build a new array.
func (b *NumericBuilder[T]) NewNumericArray() (a *Numeric[T]) {
	data := b.newData()
	a = newNumericData[T](data)
	data.Release()
	return
}

func (b *NumericBuilder[T]) newData() (data *Data) {
	bytesRequired := b.length * arrow.SizeOf[T]()
	if bytesRequired > 0 && bytesRequired < b.data.Len() {
		// trim buffers
		b.data.Resize(bytesRequired)
	}
	data = NewData(b.dtype, b.length, []*memory.Buffer{b.nullBitmap, b.data}, nil, b.nulls, 0)
	b.Clear()
	return
}

func (b *NumericBuilder[T]) unmarshalOne(dec *json.Decoder) error {
	t, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := t.(type) {
	case nil:
		b.AppendNull()
	case string:
		f, err := parseNumeric[T](v)
		if err != nil {
			return &json.UnmarshalTypeError{
				Value:  v,
				Offset: dec.InputOffset(),
				Struct: b.dtype.String(),
			}
		}
		b.Append(f)
	case json.Number:
		f, err := parseNumeric[T](v.String())
		if err != nil {
			return &json.UnmarshalTypeError{
				Value:  v.String(),
				Offset: dec.InputOffset(),
				Struct: b.dtype.String(),
			}
		}
		b.Append(f)
	case float64:
		if !isFloating[T]() && float64(T(v)) != v {
			return &json.UnmarshalTypeError{
				Value:  fmt.Sprint(v),
				Offset: dec.InputOffset(),
				Struct: b.dtype.String(),
			}
		}
		b.Append(T(v))
	default:
		return &json.UnmarshalTypeError{
			Value:  fmt.Sprint(t),
			Offset: dec.InputOffset(),
			Struct: b.dtype.String(),
		}
	}

	return nil
}

func (b *NumericBuilder[T]) unmarshal(dec *json.Decoder) error {
	for dec.More() {
		if err := b.unmarshalOne(dec); err != nil {
			return err
		}
	}
	return nil
}

func (b *NumericBuilder[T]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	t, err := dec.Token()
	if err != nil {
		return err
	}

	if delim, ok := t.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("numeric builder must unpack from json array, found %s", delim)
	}

	return b.unmarshal(dec)
}

var (
	_ arrow.Array = (*Int32)(nil)
	_ arrow.Array = (*Float64)(nil)
	_ Builder     = (*Int64Builder)(nil)
	_ Builder     = (*Uint8Builder)(nil)
)

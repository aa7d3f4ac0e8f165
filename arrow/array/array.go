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
	"sync/atomic"

	"github.com/colarrow/go/arrow"
	"github.com/colarrow/go/arrow/bitutil"
	"github.com/colarrow/go/arrow/internal/debug"
)

const (
	// UnknownNullCount specifies the NullN should be calculated from the null bitmap buffer.
	UnknownNullCount = -1

	// NullValueStr represents a null value in arrow.Array.ValueStr and in the
	// String form of arrays. It should be returned from the arrow.Array.ValueStr implementations.
	NullValueStr = arrow.NullValueStr
)

// lazyArray materializes a child array on first use. Concurrent first
// callers may each build a candidate; exactly one is published and the
// others are released, so every caller observes the same identity.
type lazyArray struct {
	build func() arrow.Array
	ptr   atomic.Pointer[arrayRef]
}

type arrayRef struct{ arr arrow.Array }

func (l *lazyArray) get() arrow.Array {
	if ref := l.ptr.Load(); ref != nil {
		return ref.arr
	}

	ref := &arrayRef{arr: l.build()}
	if l.ptr.CompareAndSwap(nil, ref) {
		return ref.arr
	}
	ref.arr.Release()
	return l.ptr.Load().arr
}

func (l *lazyArray) release() {
	if ref := l.ptr.Swap(nil); ref != nil {
		ref.arr.Release()
	}
}

// array is the base embedded by every concrete array. It owns the Data
// and the lazily built child arrays, and answers validity questions from
// the validity bitmap. Unions and run-end encoded arrays override the
// validity methods to delegate to their children.
type array struct {
	refCount        int64
	data            *Data
	nullBitmapBytes []byte
	children        []*lazyArray
}

// Retain increases the reference count by 1.
// Retain may be called simultaneously from multiple goroutines.
func (a *array) Retain() {
	atomic.AddInt64(&a.refCount, 1)
}

// Release decreases the reference count by 1.
// When the reference count goes to zero, the memory is freed.
// Release may be called simultaneously from multiple goroutines.
func (a *array) Release() {
	debug.Assert(atomic.LoadInt64(&a.refCount) > 0, "too many releases")

	if atomic.AddInt64(&a.refCount, -1) == 0 {
		for _, c := range a.children {
			c.release()
		}
		a.data.Release()
		a.data, a.nullBitmapBytes, a.children = nil, nil, nil
	}
}

// DataType returns the type metadata for this instance.
func (a *array) DataType() arrow.DataType { return a.data.dtype }

// NullN returns the number of null values in the array.
func (a *array) NullN() int { return a.data.NullN() }

// NullBitmapBytes returns a byte slice of the validity bitmap.
func (a *array) NullBitmapBytes() []byte { return a.nullBitmapBytes }

func (a *array) Data() arrow.ArrayData { return a.data }

// Len returns the number of elements in the array.
func (a *array) Len() int { return a.data.length }

// IsNull returns true if value at index is null.
// NOTE: IsNull will panic if NullBitmapBytes is not empty and 0 > i ≥ Len.
func (a *array) IsNull(i int) bool {
	return len(a.nullBitmapBytes) != 0 && bitutil.BitIsNotSet(a.nullBitmapBytes, a.data.offset+i)
}

// IsValid returns true if value at index is not null.
// NOTE: IsValid will panic if NullBitmapBytes is not empty and 0 > i ≥ Len.
func (a *array) IsValid(i int) bool {
	return len(a.nullBitmapBytes) == 0 || bitutil.BitIsSet(a.nullBitmapBytes, a.data.offset+i)
}

func (a *array) setData(data *Data) {
	// Retain before releasing in case a.data is the same as data.
	data.Retain()

	if a.data != nil {
		a.data.Release()
	}

	for _, c := range a.children {
		c.release()
	}
	a.children = nil

	if len(data.buffers) > 0 && data.buffers[0] != nil {
		a.nullBitmapBytes = data.buffers[0].Bytes()
	} else {
		a.nullBitmapBytes = nil
	}
	a.data = data
}

// lazyChild registers a child array which is built on first access and
// released together with a.
func (a *array) lazyChild(build func() arrow.Array) *lazyArray {
	l := &lazyArray{build: build}
	a.children = append(a.children, l)
	return l
}

// childSlice returns a builder of the child data, sliced to the window of
// a's offset and length when they differ from the child's.
func (a *array) childSlice(child arrow.ArrayData) func() arrow.Array {
	offset, length := a.data.offset, a.data.length
	return func() arrow.Array {
		if offset == 0 && child.Len() == length {
			return MakeFromData(child)
		}
		sliced := NewSliceData(child, int64(offset), int64(offset+length))
		defer sliced.Release()
		return MakeFromData(sliced)
	}
}

func (a *array) Offset() int {
	return a.data.Offset()
}

// checkIndex panics with arrow.ErrIndex if i is outside [0, Len).
func (a *array) checkIndex(i int) {
	if i < 0 || i >= a.data.length {
		panic(fmt.Errorf("%w: arrow/array: index %d out of range [0, %d)", arrow.ErrIndex, i, a.data.length))
	}
}

type arrayConstructorFn func(arrow.ArrayData) arrow.Array

// MakeFromData constructs a strongly-typed array instance from generic Data.
func MakeFromData(data arrow.ArrayData) arrow.Array {
	var ctor arrayConstructorFn
	switch data.DataType().ID() {
	case arrow.NULL:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewNullData(d) }
	case arrow.BOOL:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewBooleanData(d) }
	case arrow.INT8:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewInt8Data(d) }
	case arrow.INT16:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewInt16Data(d) }
	case arrow.INT32:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewInt32Data(d) }
	case arrow.INT64:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewInt64Data(d) }
	case arrow.UINT8:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewUint8Data(d) }
	case arrow.UINT16:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewUint16Data(d) }
	case arrow.UINT32:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewUint32Data(d) }
	case arrow.UINT64:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewUint64Data(d) }
	case arrow.FLOAT32:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewFloat32Data(d) }
	case arrow.FLOAT64:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewFloat64Data(d) }
	case arrow.BINARY:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewBinaryData(d) }
	case arrow.STRING:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewStringData(d) }
	case arrow.LIST:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewListData(d) }
	case arrow.LARGE_LIST:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewLargeListData(d) }
	case arrow.LIST_VIEW:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewListViewData(d) }
	case arrow.LARGE_LIST_VIEW:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewLargeListViewData(d) }
	case arrow.STRUCT:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewStructData(d) }
	case arrow.SPARSE_UNION:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewSparseUnionData(d) }
	case arrow.DENSE_UNION:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewDenseUnionData(d) }
	case arrow.DICTIONARY:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewDictionaryData(d) }
	case arrow.RUN_END_ENCODED:
		ctor = func(d arrow.ArrayData) arrow.Array { return NewRunEndEncodedData(d) }
	default:
		panic(fmt.Errorf("%w: arrow/array: no array implementation for type %s",
			arrow.ErrNotImplemented, data.DataType()))
	}
	return ctor(data)
}

// NewSlice constructs a zero-copy slice of the array with the indicated
// indices i and j, corresponding to array[i:j].
// The returned array must be Release()'d after use.
//
// NewSlice panics if the slice is outside the valid range of the input array.
// NewSlice panics if j < i.
func NewSlice(arr arrow.Array, i, j int64) arrow.Array {
	data := NewSliceData(arr.Data(), i, j)
	slice := MakeFromData(data)
	data.Release()
	return slice
}

// ensureDataType panics with arrow.ErrType unless data is one of the
// type ids accepted by the array kind being constructed.
func ensureDataType(data arrow.ArrayData, kind string, ids ...arrow.Type) *Data {
	d, ok := data.(*Data)
	if !ok {
		panic(fmt.Errorf("%w: arrow/array: unsupported ArrayData implementation %T", arrow.ErrType, data))
	}
	for _, id := range ids {
		if d.dtype.ID() == id {
			ensureLayout(d)
			return d
		}
	}
	panic(fmt.Errorf("%w: arrow/array: cannot construct %s array from data of type %s",
		arrow.ErrType, kind, d.dtype))
}

// ensureLayout panics with arrow.ErrInvalid if data carries fewer buffers
// than its type's layout requires. Layouts made only of always-null
// buffers may omit them.
func ensureLayout(data *Data) {
	layout := data.dtype.Layout()
	required := 0
	for i, spec := range layout.Buffers {
		if spec.Kind != arrow.KindAlwaysNull {
			required = i + 1
		}
	}
	if len(data.buffers) < required {
		panic(fmt.Errorf("%w: arrow/array: %s data requires %d buffers, got %d",
			arrow.ErrInvalid, data.dtype, required, len(data.buffers)))
	}
}

// ensureChildren panics with arrow.ErrInvalid if data does not have
// exactly n child data.
func ensureChildren(data *Data, n int) {
	if len(data.childData) != n {
		panic(fmt.Errorf("%w: arrow/array: %s data requires %d children, got %d",
			arrow.ErrInvalid, data.dtype, n, len(data.childData)))
	}
}

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
	"github.com/colarrow/go/arrow/encoded"
	"github.com/colarrow/go/arrow/internal/debug"
	"github.com/colarrow/go/arrow/memory"
)

// Data represents the memory and metadata of an Arrow array.
type Data struct {
	refCount  int64
	dtype     arrow.DataType
	nulls     int64
	offset    int
	length    int
	buffers   []*memory.Buffer
	childData []arrow.ArrayData

	// for dictionary arrays: buffers will be the null validity bitmap and the indexes that reference
	// values in the dictionary member. childData would be empty in a dictionary array
	dictionary *Data
}

// NewData creates a new Data.
func NewData(dtype arrow.DataType, length int, buffers []*memory.Buffer, childData []arrow.ArrayData, nulls, offset int) *Data {
	for _, b := range buffers {
		if b != nil {
			b.Retain()
		}
	}

	for _, child := range childData {
		if child != nil {
			child.Retain()
		}
	}

	return &Data{
		refCount:  1,
		dtype:     dtype,
		nulls:     int64(nulls),
		length:    length,
		offset:    offset,
		buffers:   buffers,
		childData: childData,
	}
}

// NewDataWithDictionary creates a new data object, but also sets the provided dictionary into the data if it's not nil
func NewDataWithDictionary(dtype arrow.DataType, length int, buffers []*memory.Buffer, nulls, offset int, dict *Data) *Data {
	data := NewData(dtype, length, buffers, nil, nulls, offset)
	if dict != nil {
		dict.Retain()
	}
	data.dictionary = dict
	return data
}

func (d *Data) Copy() *Data {
	// don't pass the slices directly, otherwise it retains the connection
	// we need to make new slices and populate them with the same pointers
	bufs := make([]*memory.Buffer, len(d.buffers))
	copy(bufs, d.buffers)
	children := make([]arrow.ArrayData, len(d.childData))
	copy(children, d.childData)

	data := NewData(d.dtype, d.length, bufs, children, int(atomic.LoadInt64(&d.nulls)), d.offset)
	if d.dictionary != nil {
		data.SetDictionary(d.dictionary)
	}
	return data
}

// Reset sets the Data for re-use.
func (d *Data) Reset(dtype arrow.DataType, length int, buffers []*memory.Buffer, childData []arrow.ArrayData, nulls, offset int) {
	// Retain new buffers before releasing existing buffers in-case they're the same ones to prevent accidental premature
	// release.
	for _, b := range buffers {
		if b != nil {
			b.Retain()
		}
	}
	memory.ReleaseBuffers(d.buffers)
	d.buffers = buffers

	// Retain new children data before releasing existing children data in-case they're the same ones to prevent accidental
	// premature release.
	for _, d := range childData {
		if d != nil {
			d.Retain()
		}
	}
	for _, d := range d.childData {
		if d != nil {
			d.Release()
		}
	}
	d.childData = childData

	d.dtype = dtype
	d.length = length
	atomic.StoreInt64(&d.nulls, int64(nulls))
	d.offset = offset
}

// Retain increases the reference count by 1.
// Retain may be called simultaneously from multiple goroutines.
func (d *Data) Retain() {
	atomic.AddInt64(&d.refCount, 1)
}

// Release decreases the reference count by 1.
// When the reference count goes to zero, the memory is freed.
// Release may be called simultaneously from multiple goroutines.
func (d *Data) Release() {
	debug.Assert(atomic.LoadInt64(&d.refCount) > 0, "too many releases")

	if atomic.AddInt64(&d.refCount, -1) == 0 {
		memory.ReleaseBuffers(d.buffers)
		for _, b := range d.childData {
			b.Release()
		}

		if d.dictionary != nil {
			d.dictionary.Release()
		}
		d.dictionary, d.buffers, d.childData = nil, nil, nil
	}
}

// DataType returns the DataType of the data.
func (d *Data) DataType() arrow.DataType { return d.dtype }

func (d *Data) SetNullN(n int) { atomic.StoreInt64(&d.nulls, int64(n)) }

// NullN returns the number of nulls.
//
// An unknown count is computed on first use. Bitmap-backed data caches
// the result; union and run-end encoded data derive validity from their
// children and recompute it on every call.
func (d *Data) NullN() int {
	switch d.dtype.ID() {
	case arrow.NULL:
		return d.length
	case arrow.SPARSE_UNION, arrow.DENSE_UNION, arrow.RUN_END_ENCODED:
		return derivedNullN(d)
	}

	nulls := atomic.LoadInt64(&d.nulls)
	if nulls < 0 {
		if len(d.buffers) > 0 && d.buffers[0] != nil {
			nulls = int64(d.length - bitutil.CountSetBits(d.buffers[0].Bytes(), d.offset, d.length))
		} else {
			nulls = 0
		}
		atomic.StoreInt64(&d.nulls, nulls)
	}
	return int(nulls)
}

// Len returns the length.
func (d *Data) Len() int { return d.length }

// Offset returns the offset.
func (d *Data) Offset() int { return d.offset }

// Buffers returns the buffers.
func (d *Data) Buffers() []*memory.Buffer { return d.buffers }

func (d *Data) Children() []arrow.ArrayData { return d.childData }

// Dictionary returns the ArrayData object for the dictionary member, or nil
func (d *Data) Dictionary() arrow.ArrayData {
	if d.dictionary == nil {
		return nil
	}
	return d.dictionary
}

// SetDictionary allows replacing the dictionary for this particular Data object
func (d *Data) SetDictionary(dict arrow.ArrayData) {
	if d.dictionary != nil {
		d.dictionary.Release()
		d.dictionary = nil
	}
	if dd, ok := dict.(*Data); ok && dd != nil {
		dd.Retain()
		d.dictionary = dd
	}
}

// SizeInBytes returns the size of the Data and any children and/or dictionary in bytes by
// recursively examining the nested structures of children and/or dictionary.
// The value returned is an upper-bound since offset is not taken into account.
func (d *Data) SizeInBytes() uint64 {
	var size uint64

	if d == nil {
		return 0
	}

	for _, b := range d.Buffers() {
		if b != nil {
			size += uint64(b.Len())
		}
	}
	for _, c := range d.Children() {
		size += c.SizeInBytes()
	}
	if d.dictionary != nil {
		size += d.dictionary.SizeInBytes()
	}

	return size
}

// NewSliceData returns a new slice that shares backing data with the input.
// The returned Data slice starts at i and extends j-i elements, such as:
//
//	slice := data[i:j]
//
// The returned value must be Release'd after use.
//
// NewSliceData panics if the slice is outside the valid range of the input Data.
// NewSliceData panics if j < i.
func NewSliceData(data arrow.ArrayData, i, j int64) arrow.ArrayData {
	if j > int64(data.Len()) || i > j || i < 0 {
		panic(fmt.Errorf("%w: arrow/array: slice [%d:%d] out of range for data of length %d",
			arrow.ErrIndex, i, j, data.Len()))
	}

	for _, b := range data.Buffers() {
		if b != nil {
			b.Retain()
		}
	}

	for _, child := range data.Children() {
		if child != nil {
			child.Retain()
		}
	}

	if dict := data.Dictionary(); dict != nil {
		dict.Retain()
	}

	o := &Data{
		refCount:  1,
		dtype:     data.DataType(),
		nulls:     UnknownNullCount,
		length:    int(j - i),
		offset:    data.Offset() + int(i),
		buffers:   data.Buffers(),
		childData: data.Children(),
	}
	if dict := data.Dictionary(); dict != nil {
		o.dictionary = dict.(*Data)
	}

	switch o.dtype.ID() {
	case arrow.SPARSE_UNION, arrow.DENSE_UNION, arrow.RUN_END_ENCODED:
	default:
		if data.NullN() == 0 {
			o.nulls = 0
		}
	}

	return o
}

// dataIsValid reports whether logical slot i of d, relative to d's
// offset, holds a value. Unions and run-end encoded data delegate to the
// child or run value that backs the slot.
func dataIsValid(d arrow.ArrayData, i int) bool {
	switch d.DataType().ID() {
	case arrow.NULL:
		return false
	case arrow.SPARSE_UNION:
		code := d.Buffers()[1].Bytes()[d.Offset()+i]
		childID := d.DataType().(arrow.UnionType).ChildIDs()[code]
		return dataIsValid(d.Children()[childID], d.Offset()+i)
	case arrow.DENSE_UNION:
		code := d.Buffers()[1].Bytes()[d.Offset()+i]
		childID := d.DataType().(arrow.UnionType).ChildIDs()[code]
		offset := arrow.GetData[int32](d.Buffers()[2].Bytes())[d.Offset()+i]
		return dataIsValid(d.Children()[childID], int(offset))
	case arrow.RUN_END_ENCODED:
		return dataIsValid(d.Children()[1], encoded.GetPhysicalIndex(d, i))
	}

	bufs := d.Buffers()
	if len(bufs) == 0 || bufs[0] == nil {
		return true
	}
	return bitutil.BitIsSet(bufs[0].Bytes(), d.Offset()+i)
}

func derivedNullN(d *Data) int {
	if d.dtype.ID() == arrow.RUN_END_ENCODED {
		return runEndEncodedNullN(d)
	}

	nulls := 0
	for i := 0; i < d.length; i++ {
		if !dataIsValid(d, i) {
			nulls++
		}
	}
	return nulls
}

func runEndEncodedNullN(d *Data) int {
	if d.length == 0 || d.childData[1].NullN() == 0 {
		return 0
	}

	runEnds := d.childData[0]
	switch runEnds.DataType().ID() {
	case arrow.INT16:
		return countRunNulls(encoded.RunEnds[int16](runEnds), d.childData[1], d.offset, d.length)
	case arrow.INT32:
		return countRunNulls(encoded.RunEnds[int32](runEnds), d.childData[1], d.offset, d.length)
	default:
		return countRunNulls(encoded.RunEnds[int64](runEnds), d.childData[1], d.offset, d.length)
	}
}

// countRunNulls sums the lengths of the runs with a null value that
// overlap the logical range [offset, offset+length).
func countRunNulls[R arrow.IntType](runEnds []R, values arrow.ArrayData, offset, length int) int {
	nulls, pos, end := 0, offset, offset+length
	for phys := encoded.FindPhysicalIndex(runEnds, offset); pos < end && phys < len(runEnds); phys++ {
		runEnd := min(int(runEnds[phys]), end)
		if !dataIsValid(values, phys) {
			nulls += runEnd - pos
		}
		pos = runEnd
	}
	return nulls
}

var (
	_ arrow.ArrayData = (*Data)(nil)
)

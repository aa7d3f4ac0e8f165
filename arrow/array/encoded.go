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
	"strings"
	"sync/atomic"

	"github.com/JohnCGriffin/overflow"
	"github.com/colarrow/go/arrow"
	"github.com/colarrow/go/arrow/encoded"
	"github.com/colarrow/go/arrow/internal/debug"
	"github.com/colarrow/go/arrow/memory"
	"github.com/goccy/go-json"
)

// RunEndEncoded represents an array containing two children:
// an array of int32 values defining the ends of each run of values
// and an array of values
//
// Logical slot i reads the value of the first run whose end is greater
// than i; run ends are located with a binary search and must be strictly
// increasing. A slot is null when its run value is null.
type RunEndEncoded struct {
	array

	ends   *lazyArray
	values *lazyArray
}

// NewRunEndEncodedArray builds a run-end encoded array of logicalLength
// slots starting at logical offset, over the given run ends and values.
func NewRunEndEncodedArray(runEnds, values arrow.Array, logicalLength, offset int) *RunEndEncoded {
	data := NewData(arrow.RunEndEncodedOf(runEnds.DataType(), values.DataType()), logicalLength,
		[]*memory.Buffer{nil}, []arrow.ArrayData{runEnds.Data(), values.Data()}, UnknownNullCount, offset)
	defer data.Release()
	return NewRunEndEncodedData(data)
}

func NewRunEndEncodedData(data arrow.ArrayData) *RunEndEncoded {
	r := &RunEndEncoded{}
	r.refCount = 1
	r.setData(ensureDataType(data, "run end encoded", arrow.RUN_END_ENCODED))
	return r
}

// Values returns the physical values, one per run, without accounting
// for the array's offset.
func (r *RunEndEncoded) Values() arrow.Array { return r.values.get() }

// RunEndsArr returns the physical run ends without accounting for the
// array's offset.
func (r *RunEndEncoded) RunEndsArr() arrow.Array { return r.ends.get() }

func (r *RunEndEncoded) setData(data *Data) {
	ensureChildren(data, 2)
	typ := data.dtype.(*arrow.RunEndEncodedType)
	runEnds, values := data.childData[0], data.childData[1]
	if !arrow.TypeEqual(runEnds.DataType(), typ.RunEnds()) {
		panic(fmt.Errorf("%w: arrow/array: run ends array must be %s, got %s", arrow.ErrType, typ.RunEnds(), runEnds.DataType()))
	}
	if !arrow.TypeEqual(values.DataType(), typ.Encoded()) {
		panic(fmt.Errorf("%w: arrow/array: run end encoded values must be %s, got %s", arrow.ErrType, typ.Encoded(), values.DataType()))
	}
	if runEnds.NullN() > 0 {
		panic(fmt.Errorf("%w: arrow/array: run ends array cannot contain nulls", arrow.ErrInvalid))
	}

	r.array.setData(data)
	r.ends = r.lazyChild(func() arrow.Array { return MakeFromData(runEnds) })
	r.values = r.lazyChild(func() arrow.Array { return MakeFromData(values) })
}

// IsNull reports whether the run covering slot i has a null value.
func (r *RunEndEncoded) IsNull(i int) bool { return !dataIsValid(r.data, i) }

// IsValid reports whether the run covering slot i has a valid value.
func (r *RunEndEncoded) IsValid(i int) bool { return dataIsValid(r.data, i) }

// GetPhysicalOffset returns the index of the run covering the first
// logical slot of the array.
func (r *RunEndEncoded) GetPhysicalOffset() int {
	return encoded.FindPhysicalOffset(r.data)
}

// GetPhysicalLength returns the number of runs covering the array's
// logical window.
func (r *RunEndEncoded) GetPhysicalLength() int {
	return encoded.GetPhysicalLength(r.data)
}

// GetPhysicalIndex returns the index into Values of the run covering
// logical slot i.
func (r *RunEndEncoded) GetPhysicalIndex(i int) int {
	r.checkIndex(i)
	return encoded.GetPhysicalIndex(r.data, i)
}

// LogicalValuesArray returns an array holding the values of the runs
// covering the array's logical window. The returned array must be
// released.
func (r *RunEndEncoded) LogicalValuesArray() arrow.Array {
	physOffset := r.GetPhysicalOffset()
	physLength := r.GetPhysicalLength()
	data := NewSliceData(r.data.childData[1], int64(physOffset), int64(physOffset+physLength))
	defer data.Release()
	return MakeFromData(data)
}

// LogicalRunEndsArray returns the run ends adjusted to the array's
// logical window: relative to its offset and clamped to its length.
// The returned array must be released.
func (r *RunEndEncoded) LogicalRunEndsArray(mem memory.Allocator) arrow.Array {
	switch r.data.childData[0].DataType().ID() {
	case arrow.INT16:
		return logicalRunEnds[int16](mem, r.data)
	case arrow.INT32:
		return logicalRunEnds[int32](mem, r.data)
	default:
		return logicalRunEnds[int64](mem, r.data)
	}
}

func logicalRunEnds[R arrow.IntType](mem memory.Allocator, data *Data) arrow.Array {
	bldr := NewNumericBuilder[R](mem)
	defer bldr.Release()

	if data.length == 0 {
		return bldr.NewArray()
	}

	ends := encoded.RunEnds[R](data.childData[0])
	physOffset := encoded.FindPhysicalOffset(data)
	physLength := encoded.GetPhysicalLength(data)
	bldr.Reserve(physLength)
	for _, e := range ends[physOffset : physOffset+physLength] {
		bldr.UnsafeAppend(R(min(int(e)-data.offset, data.length)))
	}
	return bldr.NewArray()
}

func (r *RunEndEncoded) ValueStr(i int) string {
	if r.IsNull(i) {
		return NullValueStr
	}
	return r.Values().ValueStr(r.GetPhysicalIndex(i))
}

func (r *RunEndEncoded) String() string {
	ends := r.LogicalRunEndsArray(memory.DefaultAllocator)
	defer ends.Release()
	physOffset := r.GetPhysicalOffset()
	values := r.Values()

	var buf strings.Builder
	buf.WriteByte('[')
	for i := 0; i < ends.Len(); i++ {
		if i != 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "{%v -> %v}", ends.GetOneForMarshal(i), values.GetOneForMarshal(physOffset+i))
	}
	buf.WriteByte(']')
	return buf.String()
}

func (r *RunEndEncoded) GetOneForMarshal(i int) interface{} {
	return r.Values().GetOneForMarshal(r.GetPhysicalIndex(i))
}

// MarshalJSON writes the logical values, one per slot.
func (r *RunEndEncoded) MarshalJSON() ([]byte, error) {
	return marshalArray(r)
}

// Validate checks that the run ends cover the array's logical window.
func (r *RunEndEncoded) Validate() error {
	if r.data.length == 0 {
		return nil
	}

	runEnds := r.data.childData[0]
	if runEnds.Len() == 0 {
		return fmt.Errorf("%w: arrow/array: run end encoded array of length %d has no runs", arrow.ErrInvalid, r.data.length)
	}
	if runEnds.Len() > r.data.childData[1].Len() {
		return fmt.Errorf("%w: arrow/array: %d run ends but only %d values",
			arrow.ErrInvalid, runEnds.Len(), r.data.childData[1].Len())
	}
	last := r.lastRunEnd()
	if end, ok := overflow.Add64(int64(r.data.offset), int64(r.data.length)); !ok || last < end {
		return fmt.Errorf("%w: arrow/array: last run end %d does not cover offset + length (%d + %d)",
			arrow.ErrInvalid, last, r.data.offset, r.data.length)
	}
	return nil
}

func (r *RunEndEncoded) lastRunEnd() int64 {
	runEnds := r.data.childData[0]
	switch runEnds.DataType().ID() {
	case arrow.INT16:
		ends := encoded.RunEnds[int16](runEnds)
		return int64(ends[len(ends)-1])
	case arrow.INT32:
		ends := encoded.RunEnds[int32](runEnds)
		return int64(ends[len(ends)-1])
	default:
		ends := encoded.RunEnds[int64](runEnds)
		return ends[len(ends)-1]
	}
}

// ValidateFull additionally checks that the run ends are positive and
// strictly increasing.
func (r *RunEndEncoded) ValidateFull() error {
	if err := r.Validate(); err != nil {
		return err
	}

	runEnds := r.data.childData[0]
	switch runEnds.DataType().ID() {
	case arrow.INT16:
		return validateRunEnds(encoded.RunEnds[int16](runEnds))
	case arrow.INT32:
		return validateRunEnds(encoded.RunEnds[int32](runEnds))
	default:
		return validateRunEnds(encoded.RunEnds[int64](runEnds))
	}
}

func validateRunEnds[R arrow.IntType](ends []R) error {
	var prev R
	for i, e := range ends {
		if e <= 0 {
			return fmt.Errorf("%w: arrow/array: run end %d at position %d is not positive", arrow.ErrInvalid, e, i)
		}
		if i > 0 && e <= prev {
			return fmt.Errorf("%w: arrow/array: run ends are not strictly increasing at position %d (%d <= %d)",
				arrow.ErrInvalid, i, e, prev)
		}
		prev = e
	}
	return nil
}

func arrayRunEndEncodedEqual(l, r *RunEndEncoded) bool {
	// types were already checked before getting here, so we know
	// the encoded types are equal
	mr := encoded.NewMergedRuns([2]arrow.Array{l, r})
	lvalues, rvalues := l.Values(), r.Values()
	for mr.Next() {
		lIndex := mr.IndexIntoArray(0)
		rIndex := mr.IndexIntoArray(1)
		if !SliceEqual(lvalues, lIndex, lIndex+1, rvalues, rIndex, rIndex+1) {
			return false
		}
	}
	return true
}

// RunEndEncodedBuilder pairs a run ends builder with a values builder.
// Runs are delimited by the caller: Append starts a new run whose value
// must be appended to ValueBuilder, ContinueRun extends the open run.
type RunEndEncodedBuilder struct {
	builder

	dt        *arrow.RunEndEncodedType
	runEnds   Builder
	values    Builder
	maxRunEnd int64
	// logical length covered by the committed run ends
	lastEnd int
}

// NewRunEndEncodedBuilder returns a builder of run end encoded arrays
// with the given run ends type (int16, int32 or int64) and value type.
func NewRunEndEncodedBuilder(mem memory.Allocator, runEnds, encoded arrow.DataType) *RunEndEncodedBuilder {
	dt := arrow.RunEndEncodedOf(runEnds, encoded)

	var maxEnd int64
	switch runEnds.ID() {
	case arrow.INT16:
		maxEnd = math.MaxInt16
	case arrow.INT32:
		maxEnd = math.MaxInt32
	default:
		maxEnd = math.MaxInt64
	}

	return &RunEndEncodedBuilder{
		builder:   builder{refCount: 1, mem: mem},
		dt:        dt,
		runEnds:   NewBuilder(mem, runEnds),
		values:    NewBuilder(mem, encoded),
		maxRunEnd: maxEnd,
	}
}

func (b *RunEndEncodedBuilder) Type() arrow.DataType {
	return b.dt
}

func (b *RunEndEncodedBuilder) Release() {
	debug.Assert(atomic.LoadInt64(&b.refCount) > 0, "too many releases")

	if atomic.AddInt64(&b.refCount, -1) == 0 {
		b.values.Release()
		b.runEnds.Release()
	}
}

// ValueBuilder returns the builder of the run values.
func (b *RunEndEncodedBuilder) ValueBuilder() Builder { return b.values }

func (b *RunEndEncodedBuilder) addLength(n uint64) {
	newLen, ok := overflow.Add64(int64(b.length), int64(n))
	if !ok || n > math.MaxInt64 || newLen > b.maxRunEnd {
		panic(fmt.Errorf("%w: arrow/array: run end encoded array length must fit in %s", arrow.ErrInvalid, b.dt.RunEnds()))
	}

	b.length = int(newLen)
}

func (b *RunEndEncodedBuilder) hasOpenRun() bool { return b.length > b.lastEnd }

func (b *RunEndEncodedBuilder) finishRun() {
	if !b.hasOpenRun() {
		return
	}

	switch re := b.runEnds.(type) {
	case *Int16Builder:
		re.Append(int16(b.length))
	case *Int32Builder:
		re.Append(int32(b.length))
	case *Int64Builder:
		re.Append(int64(b.length))
	}
	b.lastEnd = b.length
}

// Append starts a new run of n slots. The run's value must be appended
// to ValueBuilder.
func (b *RunEndEncodedBuilder) Append(n uint64) {
	if n == 0 {
		panic(fmt.Errorf("%w: arrow/array: run end encoded runs must have a positive length", arrow.ErrInvalid))
	}
	b.finishRun()
	b.addLength(n)
}

// ContinueRun extends the open run by n slots.
func (b *RunEndEncodedBuilder) ContinueRun(n uint64) {
	if n == 0 {
		return
	}
	if !b.hasOpenRun() {
		panic(fmt.Errorf("%w: arrow/array: no open run to continue", arrow.ErrInvalid))
	}
	b.addLength(n)
}

// AppendNull appends a run of one null slot.
func (b *RunEndEncodedBuilder) AppendNull() {
	b.finishRun()
	b.values.AppendNull()
	b.addLength(1)
}

// AppendNulls appends a single run of n null slots.
func (b *RunEndEncodedBuilder) AppendNulls(n int) {
	if n <= 0 {
		return
	}
	b.finishRun()
	b.values.AppendNull()
	b.addLength(uint64(n))
}

// AppendEmptyValue appends a run of one slot holding the value type's
// empty value.
func (b *RunEndEncodedBuilder) AppendEmptyValue() {
	b.finishRun()
	b.values.AppendEmptyValue()
	b.addLength(1)
}

// AppendEmptyValues appends a single run of n empty slots.
func (b *RunEndEncodedBuilder) AppendEmptyValues(n int) {
	if n <= 0 {
		return
	}
	b.finishRun()
	b.values.AppendEmptyValue()
	b.addLength(uint64(n))
}

// SetNull nulls the value of run runIndex. Every slot of the run
// becomes null.
func (b *RunEndEncodedBuilder) SetNull(runIndex int) {
	b.values.SetNull(runIndex)
}

// runEnd returns the end of the committed run i.
func (b *RunEndEncodedBuilder) runEnd(i int) int {
	switch re := b.runEnds.(type) {
	case *Int16Builder:
		return int(re.Value(i))
	case *Int32Builder:
		return int(re.Value(i))
	case *Int64Builder:
		return int(re.Value(i))
	}
	panic(fmt.Errorf("%w: arrow/array: run ends builder of type %s", arrow.ErrType, b.runEnds.Type()))
}

// physicalIndex returns the run covering logical slot i.
func (b *RunEndEncodedBuilder) physicalIndex(i int) int {
	lo, hi := 0, b.runEnds.Len()
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if b.runEnd(mid) > i {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

func (b *RunEndEncodedBuilder) isNull(i int) bool {
	b.checkIndex(i)
	phys := b.physicalIndex(i)
	return phys >= b.values.Len() || b.values.isNull(phys)
}

// NullN returns the number of logical slots covered by runs with a null
// value.
func (b *RunEndEncodedBuilder) NullN() int {
	nulls, start := 0, 0
	for run := 0; run < b.values.Len(); run++ {
		end := b.length
		if run < b.runEnds.Len() {
			end = b.runEnd(run)
		}
		if b.values.isNull(run) {
			nulls += end - start
		}
		start = end
	}
	return nulls
}

// Cap returns the number of runs that fit without reallocating.
func (b *RunEndEncodedBuilder) Cap() int { return b.values.Cap() }

// Reserve makes room for n more runs.
func (b *RunEndEncodedBuilder) Reserve(n int) {
	b.values.Reserve(n)
	b.runEnds.Reserve(n)
}

// Resize adjusts the space allocated for runs.
func (b *RunEndEncodedBuilder) Resize(n int) {
	b.values.Resize(n)
	b.runEnds.Resize(n)
}

func (b *RunEndEncodedBuilder) init(capacity int) {
	b.values.init(capacity)
	b.runEnds.init(capacity)
}

func (b *RunEndEncodedBuilder) resize(newBits int, init func(int)) {
	b.values.resize(newBits, init)
	b.runEnds.resize(newBits, init)
}

func (b *RunEndEncodedBuilder) Clear() {
	b.reset()
	b.lastEnd = 0
	b.runEnds.Clear()
	b.values.Clear()
}

func (b *RunEndEncodedBuilder) NewRunEndEncodedArray() *RunEndEncoded {
	data := b.newData()
	defer data.Release()
	return NewRunEndEncodedData(data)
}

func (b *RunEndEncodedBuilder) NewArray() arrow.Array {
	return b.NewRunEndEncodedArray()
}

func (b *RunEndEncodedBuilder) newData() (data *Data) {
	b.finishRun()
	values := b.values.NewArray()
	defer values.Release()
	runEnds := b.runEnds.NewArray()
	defer runEnds.Release()

	data = NewData(
		b.dt, b.length, []*memory.Buffer{nil},
		[]arrow.ArrayData{runEnds.Data(), values.Data()}, UnknownNullCount, 0)
	b.reset()
	b.lastEnd = 0
	return
}

// unmarshalOne appends each JSON value as a run of one slot.
func (b *RunEndEncodedBuilder) unmarshalOne(dec *json.Decoder) error {
	b.finishRun()
	if err := b.values.unmarshalOne(dec); err != nil {
		return err
	}
	b.addLength(1)
	return nil
}

func (b *RunEndEncodedBuilder) unmarshal(dec *json.Decoder) error {
	for dec.More() {
		if err := b.unmarshalOne(dec); err != nil {
			return err
		}
	}
	return nil
}

func (b *RunEndEncodedBuilder) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	t, err := dec.Token()
	if err != nil {
		return err
	}

	if delim, ok := t.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("run end encoded builder must unpack from json array, found %s", delim)
	}

	return b.unmarshal(dec)
}

var (
	_ arrow.Array = (*RunEndEncoded)(nil)
	_ Builder     = (*RunEndEncodedBuilder)(nil)
)

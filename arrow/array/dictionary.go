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
	"unsafe"

	"github.com/colarrow/go/arrow"
	"github.com/colarrow/go/arrow/internal/debug"
	"github.com/colarrow/go/arrow/memory"
	"github.com/goccy/go-json"
	"github.com/zeebo/xxh3"
)

// Dictionary represents the type for dictionary-encoded data with a data
// dependent dictionary.
//
// A dictionary array contains an array of non-negative integers (the "dictionary"
// indices") along with a data type containing a "dictionary" corresponding to
// the distinct values represented in the data.
//
// For example, the array:
//
//	["foo", "bar", "foo", "bar", "foo", "bar"]
//
// with dictionary ["bar", "foo"], would have the representation of:
//
//	indices: [1, 0, 1, 0, 1, 0]
//	dictionary: ["bar", "foo"]
//
// The indices in principle may be any integer type. The validity of a
// slot is the validity of its index: nulls inside the dictionary values
// do not count.
type Dictionary struct {
	array

	indices *lazyArray
	dict    *lazyArray
}

// NewDictionaryArray constructs a dictionary array with the provided indices
// and dictionary using the given type. The dictionary is retained and may
// be shared with other dictionary arrays.
func NewDictionaryArray(typ *arrow.DictionaryType, indices, dict arrow.Array) *Dictionary {
	if err := checkDictionaryTypes(typ, indices.DataType(), dict.DataType()); err != nil {
		panic(err)
	}

	data := NewData(typ, indices.Len(), indices.Data().Buffers(), nil, indices.NullN(), indices.Data().Offset())
	data.SetDictionary(dict.Data())
	defer data.Release()
	return NewDictionaryData(data)
}

// NewValidatedDictionaryArray constructs a dictionary array from the
// provided indices and dictionary arrays, while also performing
// validation checks to ensure correctness such as bounds checking
// are performed on the indices.
func NewValidatedDictionaryArray(typ *arrow.DictionaryType, indices, dict arrow.Array) (*Dictionary, error) {
	if err := checkDictionaryTypes(typ, indices.DataType(), dict.DataType()); err != nil {
		return nil, err
	}

	for i := 0; i < indices.Len(); i++ {
		if indices.IsNull(i) {
			continue
		}
		idx := indexValue(indices, i)
		if idx < 0 || idx >= dict.Len() {
			return nil, fmt.Errorf("%w: arrow/array: dictionary index %d at position %d out of range [0, %d)",
				arrow.ErrIndex, idx, i, dict.Len())
		}
	}

	return NewDictionaryArray(typ, indices, dict), nil
}

// NewDictionaryData creates a strongly typed Dictionary array from
// an ArrayData object with a datatype of arrow.Dictionary and a dictionary
func NewDictionaryData(data arrow.ArrayData) *Dictionary {
	a := &Dictionary{}
	a.refCount = 1
	a.setData(ensureDataType(data, "dictionary", arrow.DICTIONARY))
	return a
}

func checkDictionaryTypes(typ *arrow.DictionaryType, indexType, valueType arrow.DataType) error {
	if !isDictionaryIndexType(typ.IndexType) {
		return fmt.Errorf("%w: arrow/array: dictionary index type must be integral, got %s", arrow.ErrType, typ.IndexType)
	}
	if !arrow.TypeEqual(indexType, typ.IndexType) {
		return fmt.Errorf("%w: arrow/array: dictionary index type mismatch: expected %s, got %s",
			arrow.ErrType, typ.IndexType, indexType)
	}
	if !arrow.TypeEqual(valueType, typ.ValueType) {
		return fmt.Errorf("%w: arrow/array: dictionary value type mismatch: expected %s, got %s",
			arrow.ErrType, typ.ValueType, valueType)
	}
	return nil
}

func isDictionaryIndexType(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return true
	}
	return false
}

func (d *Dictionary) setData(data *Data) {
	if data.dictionary == nil {
		panic(fmt.Errorf("%w: arrow/array: dictionary array data must carry a dictionary", arrow.ErrInvalid))
	}

	typ := data.dtype.(*arrow.DictionaryType)
	if err := checkDictionaryTypes(typ, typ.IndexType, data.dictionary.DataType()); err != nil {
		panic(err)
	}

	d.array.setData(data)
	d.indices = d.lazyChild(func() arrow.Array {
		idxData := NewData(typ.IndexType, data.length, data.buffers, nil, int(atomic.LoadInt64(&data.nulls)), data.offset)
		defer idxData.Release()
		return MakeFromData(idxData)
	})
	dict := data.dictionary
	d.dict = d.lazyChild(func() arrow.Array { return MakeFromData(dict) })
}

// Dictionary returns the values array that is represented by this
// dictionary array.
func (d *Dictionary) Dictionary() arrow.Array {
	return d.dict.get()
}

// Indices returns the underlying array of indices as it's own array
func (d *Dictionary) Indices() arrow.Array {
	return d.indices.get()
}

// CanCompareIndices returns true if the dictionary arrays can be compared
// without having to unify the dictionaries themselves first.
// This means that the index types are equal too.
func (d *Dictionary) CanCompareIndices(other *Dictionary) bool {
	if !arrow.TypeEqual(d.Indices().DataType(), other.Indices().DataType()) {
		return false
	}

	minlen := min(d.data.dictionary.length, other.data.dictionary.length)
	return SliceEqual(d.Dictionary(), 0, int64(minlen), other.Dictionary(), 0, int64(minlen))
}

// GetValueIndex returns the dictionary index for the value at index i of the array.
// The actual value can be retrieved by using d.Dictionary().(valuetype).Value(d.GetValueIndex(i))
func (d *Dictionary) GetValueIndex(i int) int {
	d.checkIndex(i)
	return indexValue(d.Indices(), i)
}

// indexValue reads the dictionary index at slot i of an integer array.
func indexValue(indices arrow.Array, i int) int {
	switch idx := indices.(type) {
	case *Int8:
		return int(idx.Value(i))
	case *Uint8:
		return int(idx.Value(i))
	case *Int16:
		return int(idx.Value(i))
	case *Uint16:
		return int(idx.Value(i))
	case *Int32:
		return int(idx.Value(i))
	case *Uint32:
		return int(idx.Value(i))
	case *Int64:
		return int(idx.Value(i))
	case *Uint64:
		return int(idx.Value(i))
	}
	panic(fmt.Errorf("%w: arrow/array: dictionary indices of type %s", arrow.ErrType, indices.DataType()))
}

func (d *Dictionary) ValueStr(i int) string {
	if d.IsNull(i) {
		return NullValueStr
	}
	return d.Dictionary().ValueStr(d.GetValueIndex(i))
}

func (d *Dictionary) String() string {
	return fmt.Sprintf("{ dictionary: %v\n  indices: %v }", d.Dictionary(), d.Indices())
}

func (d *Dictionary) GetOneForMarshal(i int) interface{} {
	if d.IsNull(i) {
		return nil
	}
	vidx := d.GetValueIndex(i)
	return d.Dictionary().GetOneForMarshal(vidx)
}

func (d *Dictionary) MarshalJSON() ([]byte, error) {
	vals := make([]interface{}, d.Len())
	for i := 0; i < d.Len(); i++ {
		vals[i] = d.GetOneForMarshal(i)
	}
	return json.Marshal(vals)
}

// ValidateFull checks that every valid index selects an entry of the
// dictionary.
func (d *Dictionary) ValidateFull() error {
	indices, dictLen := d.Indices(), d.data.dictionary.length
	for i := 0; i < indices.Len(); i++ {
		if indices.IsNull(i) {
			continue
		}
		if idx := indexValue(indices, i); idx < 0 || idx >= dictLen {
			return fmt.Errorf("%w: arrow/array: dictionary index %d at position %d out of range [0, %d)",
				arrow.ErrInvalid, idx, i, dictLen)
		}
	}
	return nil
}

func arrayEqualDict(l, r *Dictionary) bool {
	return Equal(l.Dictionary(), r.Dictionary()) && Equal(l.Indices(), r.Indices())
}

// DictionaryBuilder builds dictionary arrays against a dictionary which
// is supplied up front. Only the indices are built; the dictionary is
// retained and attached to every array the builder produces.
type DictionaryBuilder struct {
	refCount int64
	mem      memory.Allocator
	dt       *arrow.DictionaryType
	dict     arrow.Array

	idxBuilder Builder

	// value hash -> dictionary positions, built on first lookup
	lookup map[uint64][]int
}

// NewDictionaryBuilder returns a builder of dictionary arrays whose
// indices select entries of dict. The dictionary is retained until the
// builder is released.
func NewDictionaryBuilder(mem memory.Allocator, dt *arrow.DictionaryType, dict arrow.Array) *DictionaryBuilder {
	if err := checkDictionaryTypes(dt, dt.IndexType, dict.DataType()); err != nil {
		panic(err)
	}

	dict.Retain()
	return &DictionaryBuilder{
		refCount:   1,
		mem:        mem,
		dt:         dt,
		dict:       dict,
		idxBuilder: NewBuilder(mem, dt.IndexType),
	}
}

func (b *DictionaryBuilder) Type() arrow.DataType { return b.dt }

// Dictionary returns the dictionary attached to the arrays built.
func (b *DictionaryBuilder) Dictionary() arrow.Array { return b.dict }

// IndexBuilder returns the builder of the indices.
func (b *DictionaryBuilder) IndexBuilder() Builder { return b.idxBuilder }

func (b *DictionaryBuilder) Retain() {
	atomic.AddInt64(&b.refCount, 1)
}

func (b *DictionaryBuilder) Release() {
	debug.Assert(atomic.LoadInt64(&b.refCount) > 0, "too many releases")

	if atomic.AddInt64(&b.refCount, -1) == 0 {
		b.idxBuilder.Release()
		b.idxBuilder = nil
		if b.dict != nil {
			b.dict.Release()
			b.dict = nil
		}
		b.lookup = nil
	}
}

func (b *DictionaryBuilder) Len() int   { return b.idxBuilder.Len() }
func (b *DictionaryBuilder) Cap() int   { return b.idxBuilder.Cap() }
func (b *DictionaryBuilder) NullN() int { return b.idxBuilder.NullN() }

func (b *DictionaryBuilder) AppendNull()       { b.idxBuilder.AppendNull() }
func (b *DictionaryBuilder) AppendNulls(n int) { b.idxBuilder.AppendNulls(n) }
func (b *DictionaryBuilder) SetNull(i int)     { b.idxBuilder.SetNull(i) }
func (b *DictionaryBuilder) Reserve(n int)     { b.idxBuilder.Reserve(n) }
func (b *DictionaryBuilder) Resize(n int)      { b.idxBuilder.Resize(n) }
func (b *DictionaryBuilder) Clear()            { b.idxBuilder.Clear() }
func (b *DictionaryBuilder) init(capacity int) { b.idxBuilder.init(capacity) }
func (b *DictionaryBuilder) isNull(i int) bool { return b.idxBuilder.isNull(i) }

func (b *DictionaryBuilder) resize(n int, init func(int)) { b.idxBuilder.resize(n, init) }

// AppendEmptyValue appends index 0, or a null when the dictionary is empty.
func (b *DictionaryBuilder) AppendEmptyValue() {
	if b.dict.Len() == 0 {
		b.AppendNull()
		return
	}
	b.idxBuilder.AppendEmptyValue()
}

func (b *DictionaryBuilder) AppendEmptyValues(n int) {
	for i := 0; i < n; i++ {
		b.AppendEmptyValue()
	}
}

// AppendIndex appends a slot selecting dictionary entry idx. It panics
// with arrow.ErrIndex if idx does not address an entry of the dictionary.
func (b *DictionaryBuilder) AppendIndex(idx int) {
	if idx < 0 || idx >= b.dict.Len() {
		panic(fmt.Errorf("%w: arrow/array: dictionary index %d out of range [0, %d)", arrow.ErrIndex, idx, b.dict.Len()))
	}

	switch ib := b.idxBuilder.(type) {
	case *Int8Builder:
		ib.Append(int8(idx))
	case *Uint8Builder:
		ib.Append(uint8(idx))
	case *Int16Builder:
		ib.Append(int16(idx))
	case *Uint16Builder:
		ib.Append(uint16(idx))
	case *Int32Builder:
		ib.Append(int32(idx))
	case *Uint32Builder:
		ib.Append(uint32(idx))
	case *Int64Builder:
		ib.Append(int64(idx))
	case *Uint64Builder:
		ib.Append(uint64(idx))
	default:
		panic(fmt.Errorf("%w: arrow/array: dictionary index builder of type %s", arrow.ErrType, b.dt.IndexType))
	}
}

// AppendIndices appends a slot per index. A false entry of valid appends
// a null; a nil valid means every slot is valid.
func (b *DictionaryBuilder) AppendIndices(indices []int, valid []bool) {
	if len(valid) > 0 && len(valid) != len(indices) {
		panic(fmt.Errorf("%w: arrow/array: len(indices) != len(valid) && len(valid) != 0", arrow.ErrInvalid))
	}

	b.Reserve(len(indices))
	for i, idx := range indices {
		if len(valid) > 0 && !valid[i] {
			b.AppendNull()
			continue
		}
		b.AppendIndex(idx)
	}
}

// AppendBytes appends a slot selecting the first dictionary entry equal
// to v. It returns arrow.ErrNotFound if the dictionary has no such entry
// and arrow.ErrType if the dictionary does not hold binary or string
// values.
func (b *DictionaryBuilder) AppendBytes(v []byte) error {
	idx, err := b.findValue(v)
	if err != nil {
		return err
	}
	b.AppendIndex(idx)
	return nil
}

// AppendString is AppendBytes for a string value.
func (b *DictionaryBuilder) AppendString(v string) error {
	return b.AppendBytes(unsafe.Slice(unsafe.StringData(v), len(v)))
}

func (b *DictionaryBuilder) binaryDictionary() (*Binary, error) {
	switch d := b.dict.(type) {
	case *Binary:
		return d, nil
	case *String:
		return &d.Binary, nil
	}
	return nil, fmt.Errorf("%w: arrow/array: value lookup needs a binary or string dictionary, got %s",
		arrow.ErrType, b.dt.ValueType)
}

func (b *DictionaryBuilder) findValue(v []byte) (int, error) {
	dict, err := b.binaryDictionary()
	if err != nil {
		return -1, err
	}

	if b.lookup == nil {
		b.lookup = make(map[uint64][]int, dict.Len())
		for i := 0; i < dict.Len(); i++ {
			if dict.IsNull(i) {
				continue
			}
			h := xxh3.Hash(dict.Value(i))
			b.lookup[h] = append(b.lookup[h], i)
		}
		debug.Logkv("msg", "dictionary lookup built", "entries", dict.Len(), "hashes", len(b.lookup))
	}

	for _, i := range b.lookup[xxh3.Hash(v)] {
		if bytes.Equal(dict.Value(i), v) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: arrow/array: value %q is not in the dictionary", arrow.ErrNotFound, v)
}

// NewArray creates a Dictionary array from the indices appended so far
// and the builder's dictionary, and resets the index builder so it can
// be used to build a new array.
func (b *DictionaryBuilder) NewArray() arrow.Array {
	return b.NewDictionaryArray()
}

// NewDictionaryArray is NewArray returning the concrete type.
func (b *DictionaryBuilder) NewDictionaryArray() *Dictionary {
	indices := b.idxBuilder.NewArray()
	defer indices.Release()
	return NewDictionaryArray(b.dt, indices, b.dict)
}

func (b *DictionaryBuilder) unmarshalOne(dec *json.Decoder) error {
	t, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := t.(type) {
	case nil:
		b.AppendNull()
	case string:
		if err := b.AppendString(v); err != nil {
			return &json.UnmarshalTypeError{
				Value:  v,
				Offset: dec.InputOffset(),
				Struct: b.dt.String(),
			}
		}
	case json.Number:
		idx, err := v.Int64()
		if err != nil || idx < 0 || idx >= int64(b.dict.Len()) {
			return &json.UnmarshalTypeError{
				Value:  v.String(),
				Offset: dec.InputOffset(),
				Struct: b.dt.String(),
			}
		}
		b.AppendIndex(int(idx))
	case float64:
		if v != float64(int(v)) || v < 0 || int(v) >= b.dict.Len() {
			return &json.UnmarshalTypeError{
				Value:  fmt.Sprint(v),
				Offset: dec.InputOffset(),
				Struct: b.dt.String(),
			}
		}
		b.AppendIndex(int(v))
	default:
		return &json.UnmarshalTypeError{
			Value:  fmt.Sprint(t),
			Offset: dec.InputOffset(),
			Struct: b.dt.String(),
		}
	}
	return nil
}

func (b *DictionaryBuilder) unmarshal(dec *json.Decoder) error {
	for dec.More() {
		if err := b.unmarshalOne(dec); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalJSON appends a JSON array of dictionary indices, strings
// found in a binary or string dictionary, and nulls.
func (b *DictionaryBuilder) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	t, err := dec.Token()
	if err != nil {
		return err
	}

	if delim, ok := t.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("dictionary builder must unpack from json array, found %s", delim)
	}

	return b.unmarshal(dec)
}

var (
	_ arrow.Array = (*Dictionary)(nil)
	_ Builder     = (*DictionaryBuilder)(nil)
)

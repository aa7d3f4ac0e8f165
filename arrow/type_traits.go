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
	"unsafe"

	"golang.org/x/exp/constraints"
)

// FixedWidthType is the set of Go types that can be stored directly in a
// fixed width Arrow buffer.
type FixedWidthType interface {
	constraints.Integer | constraints.Float
}

// NumericType is the set of Go types backing the primitive numeric Arrow
// types.
type NumericType interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// IntType is the set of Go types usable for offsets, sizes and run ends.
type IntType interface {
	~int16 | ~int32 | ~int64
}

const (
	Int8SizeBytes    = 1
	Int16SizeBytes   = 2
	Int32SizeBytes   = 4
	Int64SizeBytes   = 8
	Uint8SizeBytes   = 1
	Uint16SizeBytes  = 2
	Uint32SizeBytes  = 4
	Uint64SizeBytes  = 8
	Float32SizeBytes = 4
	Float64SizeBytes = 8
)

// GetData reinterprets the byte slice in as a slice of T.
//
// NOTE: len(in) must be a multiple of T's size.
func GetData[T FixedWidthType](in []byte) []T {
	var z T
	size := int(unsafe.Sizeof(z))
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(in))), cap(in)/size)[:len(in)/size]
}

// GetBytes reinterprets the slice in as a slice of bytes.
func GetBytes[T FixedWidthType](in []T) []byte {
	var z T
	size := int(unsafe.Sizeof(z))
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(in))), cap(in)*size)[:len(in)*size]
}

// SizeOf returns the number of bytes occupied by a single value of T.
func SizeOf[T FixedWidthType]() int {
	var z T
	return int(unsafe.Sizeof(z))
}

// TypeOf returns the primitive Arrow type id which stores values of T.
func TypeOf[T NumericType]() Type {
	var z T
	switch any(z).(type) {
	case int8:
		return INT8
	case int16:
		return INT16
	case int32:
		return INT32
	case int64:
		return INT64
	case uint8:
		return UINT8
	case uint16:
		return UINT16
	case uint32:
		return UINT32
	case uint64:
		return UINT64
	case float32:
		return FLOAT32
	case float64:
		return FLOAT64
	}
	panic("arrow: unsupported numeric type")
}

type offsetTraits[T IntType] struct{}

// BytesRequired returns the number of bytes required to store n elements in memory.
func (offsetTraits[T]) BytesRequired(n int) int { return SizeOf[T]() * n }

var (
	Int32Traits OffsetTraits = offsetTraits[int32]{}
	Int64Traits OffsetTraits = offsetTraits[int64]{}
)

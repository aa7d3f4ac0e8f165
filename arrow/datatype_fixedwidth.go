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

// NullType describes a degenerate array, with zero physical storage.
type NullType struct{}

func (*NullType) ID() Type            { return NULL }
func (*NullType) Name() string        { return "null" }
func (*NullType) String() string      { return "null" }
func (*NullType) Fingerprint() string { return typeIDFingerprint(NULL) }
func (*NullType) Layout() DataTypeLayout {
	return DataTypeLayout{Buffers: []BufferSpec{SpecAlwaysNull()}}
}

var (
	Null *NullType
)

func init() {
	Null = &NullType{}
}

type BooleanType struct{}

func (t *BooleanType) ID() Type            { return BOOL }
func (t *BooleanType) Name() string        { return "bool" }
func (t *BooleanType) String() string      { return "bool" }
func (t *BooleanType) Fingerprint() string { return typeFingerprint(t) }
func (BooleanType) Bytes() int             { return 1 }

// BitWidth returns the number of bits required to store a single element of this data type in memory.
func (t *BooleanType) BitWidth() int { return 1 }

func (BooleanType) Layout() DataTypeLayout {
	return DataTypeLayout{Buffers: []BufferSpec{SpecBitmap(), SpecBitmap()}}
}

// numericType carries the parts shared by every primitive numeric type.
type numericType struct {
	id    Type
	name  string
	width int
}

func (t *numericType) ID() Type            { return t.id }
func (t *numericType) Name() string        { return t.name }
func (t *numericType) String() string      { return t.name }
func (t *numericType) Fingerprint() string { return typeIDFingerprint(t.id) }
func (t *numericType) BitWidth() int       { return t.width * 8 }
func (t *numericType) Bytes() int          { return t.width }
func (t *numericType) Layout() DataTypeLayout {
	return DataTypeLayout{Buffers: []BufferSpec{SpecBitmap(), SpecFixedWidth(t.width)}}
}

type (
	Int8Type    struct{ numericType }
	Int16Type   struct{ numericType }
	Int32Type   struct{ numericType }
	Int64Type   struct{ numericType }
	Uint8Type   struct{ numericType }
	Uint16Type  struct{ numericType }
	Uint32Type  struct{ numericType }
	Uint64Type  struct{ numericType }
	Float32Type struct{ numericType }
	Float64Type struct{ numericType }
)

var (
	FixedWidthTypes = struct {
		Boolean FixedWidthDataType
	}{
		Boolean: &BooleanType{},
	}

	PrimitiveTypes = struct {
		Int8    DataType
		Int16   DataType
		Int32   DataType
		Int64   DataType
		Uint8   DataType
		Uint16  DataType
		Uint32  DataType
		Uint64  DataType
		Float32 DataType
		Float64 DataType
	}{
		Int8:    &Int8Type{numericType{INT8, "int8", 1}},
		Int16:   &Int16Type{numericType{INT16, "int16", 2}},
		Int32:   &Int32Type{numericType{INT32, "int32", 4}},
		Int64:   &Int64Type{numericType{INT64, "int64", 8}},
		Uint8:   &Uint8Type{numericType{UINT8, "uint8", 1}},
		Uint16:  &Uint16Type{numericType{UINT16, "uint16", 2}},
		Uint32:  &Uint32Type{numericType{UINT32, "uint32", 4}},
		Uint64:  &Uint64Type{numericType{UINT64, "uint64", 8}},
		Float32: &Float32Type{numericType{FLOAT32, "float32", 4}},
		Float64: &Float64Type{numericType{FLOAT64, "float64", 8}},
	}
)

// PrimitiveTypeOf returns the primitive type descriptor for the given
// type id, or nil if id is not a primitive numeric type.
func PrimitiveTypeOf(id Type) DataType {
	switch id {
	case INT8:
		return PrimitiveTypes.Int8
	case INT16:
		return PrimitiveTypes.Int16
	case INT32:
		return PrimitiveTypes.Int32
	case INT64:
		return PrimitiveTypes.Int64
	case UINT8:
		return PrimitiveTypes.Uint8
	case UINT16:
		return PrimitiveTypes.Uint16
	case UINT32:
		return PrimitiveTypes.Uint32
	case UINT64:
		return PrimitiveTypes.Uint64
	case FLOAT32:
		return PrimitiveTypes.Float32
	case FLOAT64:
		return PrimitiveTypes.Float64
	}
	return nil
}

// MaxValueOf returns the largest value representable by the integer type
// with the given id. It returns 0 for any other type.
func MaxValueOf(id Type) int64 {
	switch id {
	case INT8:
		return 1<<7 - 1
	case INT16:
		return 1<<15 - 1
	case INT32:
		return 1<<31 - 1
	case INT64:
		return 1<<63 - 1
	case UINT8:
		return 1<<8 - 1
	case UINT16:
		return 1<<16 - 1
	case UINT32:
		return 1<<32 - 1
	case UINT64:
		return 1<<63 - 1
	}
	return 0
}

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

import "fmt"

type EncodedType interface {
	DataType
	Encoded() DataType
}

// RunEndEncodedType is the datatype to represent a run-end encoded
// array of data. ValueNullable defaults to true, but can be set false
// if this should represent a type with a non-nullable value field.
type RunEndEncodedType struct {
	runEnds       DataType
	values        DataType
	ValueNullable bool
}

// RunEndEncodedOf returns the run-end encoded type with the given run
// ends type and values type. It panics if runEnds is not one of int16,
// int32 or int64.
func RunEndEncodedOf(runEnds, values DataType) *RunEndEncodedType {
	if !ValidRunEndsType(runEnds) {
		panic(fmt.Errorf("%w: arrow: run end type must be int16, int32 or int64, got %s", ErrInvalid, runEnds))
	}
	return &RunEndEncodedType{runEnds: runEnds, values: values, ValueNullable: true}
}

func (*RunEndEncodedType) ID() Type     { return RUN_END_ENCODED }
func (*RunEndEncodedType) Name() string { return "run_end_encoded" }
func (*RunEndEncodedType) Layout() DataTypeLayout {
	return DataTypeLayout{Buffers: []BufferSpec{SpecAlwaysNull()}}
}

func (t *RunEndEncodedType) String() string {
	return t.Name() + "<run_ends: " + t.runEnds.String() + ", values: " + t.values.String() + ">"
}

func (t *RunEndEncodedType) Fingerprint() string {
	var b []byte
	b = append(b, typeFingerprint(t)...)
	b = append(b, '{')
	b = append(b, t.runEnds.Fingerprint()...)
	b = append(b, ';')
	b = append(b, t.values.Fingerprint()...)
	b = append(b, ';')
	b = append(b, '}')
	return string(b)
}

func (t *RunEndEncodedType) RunEnds() DataType { return t.runEnds }
func (t *RunEndEncodedType) Encoded() DataType { return t.values }

func (t *RunEndEncodedType) Fields() []Field {
	return []Field{
		{Name: "run_ends", Type: t.runEnds},
		{Name: "values", Type: t.values, Nullable: t.ValueNullable},
	}
}

func (t *RunEndEncodedType) NumFields() int { return 2 }

// DictionaryType represents categorical or dictionary-encoded in-memory data
// It contains a dictionary-encoded value type (any type) and an index type
// (any integer type).
type DictionaryType struct {
	IndexType DataType
	ValueType DataType
	Ordered   bool
}

func (*DictionaryType) ID() Type     { return DICTIONARY }
func (*DictionaryType) Name() string { return "dictionary" }
func (d *DictionaryType) BitWidth() int {
	return d.IndexType.(FixedWidthDataType).BitWidth()
}

func (d *DictionaryType) Bytes() int {
	return d.IndexType.(FixedWidthDataType).Bytes()
}

func (d *DictionaryType) String() string {
	return fmt.Sprintf("%s<values=%s, indices=%s, ordered=%t>",
		d.Name(), d.ValueType, d.IndexType, d.Ordered)
}

func (d *DictionaryType) Fingerprint() string {
	indexFingerprint := d.IndexType.Fingerprint()
	valueFingerprint := d.ValueType.Fingerprint()
	ordered := "1"
	if !d.Ordered {
		ordered = "0"
	}

	if len(valueFingerprint) > 0 {
		return typeFingerprint(d) + indexFingerprint + valueFingerprint + ordered
	}
	return ordered
}

func (d *DictionaryType) Layout() DataTypeLayout {
	layout := d.IndexType.Layout()
	layout.HasDict = true
	return layout
}

var (
	_ EncodedType        = (*RunEndEncodedType)(nil)
	_ NestedType         = (*RunEndEncodedType)(nil)
	_ FixedWidthDataType = (*DictionaryType)(nil)
)

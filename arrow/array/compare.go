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

	"github.com/colarrow/go/arrow"
	"github.com/colarrow/go/arrow/bitutil"
)

// Equal reports whether the two provided arrays are equal: same type,
// same length, nulls at the same positions and equal values in every
// valid slot.
func Equal(left, right arrow.Array) bool {
	switch {
	case !baseArrayEqual(left, right):
		return false
	case left.Len() == 0:
		return true
	case left.NullN() == left.Len():
		return true
	}

	// at this point, we know both arrays have same type, same length, same number of nulls
	// and nulls at the same place.
	// compare the values.

	switch l := left.(type) {
	case *Null:
		return true
	case *Boolean:
		r := right.(*Boolean)
		return arrayEqualBoolean(l, r)
	case *Binary:
		r := right.(*Binary)
		return arrayEqualBinary(l, r)
	case *String:
		r := right.(*String)
		return arrayEqualBinary(&l.Binary, &r.Binary)
	case *Int8:
		return arrayEqualNumeric(l, right.(*Int8))
	case *Int16:
		return arrayEqualNumeric(l, right.(*Int16))
	case *Int32:
		return arrayEqualNumeric(l, right.(*Int32))
	case *Int64:
		return arrayEqualNumeric(l, right.(*Int64))
	case *Uint8:
		return arrayEqualNumeric(l, right.(*Uint8))
	case *Uint16:
		return arrayEqualNumeric(l, right.(*Uint16))
	case *Uint32:
		return arrayEqualNumeric(l, right.(*Uint32))
	case *Uint64:
		return arrayEqualNumeric(l, right.(*Uint64))
	case *Float32:
		return arrayEqualNumeric(l, right.(*Float32))
	case *Float64:
		return arrayEqualNumeric(l, right.(*Float64))
	case ListLike:
		r := right.(ListLike)
		return arrayEqualList(l, r)
	case *Struct:
		r := right.(*Struct)
		return arrayEqualStruct(l, r)
	case *SparseUnion:
		r := right.(*SparseUnion)
		return arrayEqualUnion(&l.union, &r.union, nil, nil)
	case *DenseUnion:
		r := right.(*DenseUnion)
		return arrayEqualUnion(&l.union, &r.union, l.offsets, r.offsets)
	case *Dictionary:
		r := right.(*Dictionary)
		return arrayEqualDict(l, r)
	case *RunEndEncoded:
		r := right.(*RunEndEncoded)
		return arrayRunEndEncodedEqual(l, r)

	default:
		panic(fmt.Errorf("%w: arrow/array: unknown array type %T", arrow.ErrNotImplemented, l))
	}
}

// SliceEqual reports whether slices left[lbeg:lend] and right[rbeg:rend] are equal.
func SliceEqual(left arrow.Array, lbeg, lend int64, right arrow.Array, rbeg, rend int64) bool {
	l := NewSlice(left, lbeg, lend)
	defer l.Release()
	r := NewSlice(right, rbeg, rend)
	defer r.Release()

	return Equal(l, r)
}

func baseArrayEqual(left, right arrow.Array) bool {
	switch {
	case left.Len() != right.Len():
		return false
	case left.NullN() != right.NullN():
		return false
	case !arrow.TypeEqual(left.DataType(), right.DataType()): // We do not check for metadata as in the C++ implementation.
		return false
	case !validityBitmapEqual(left, right):
		return false
	}
	return true
}

func validityBitmapEqual(left, right arrow.Array) bool {
	n := left.Len()
	if n != right.Len() {
		return false
	}
	for i := 0; i < n; i++ {
		if left.IsNull(i) != right.IsNull(i) {
			return false
		}
	}
	return true
}

func arrayEqualBoolean(left, right *Boolean) bool {
	lr := bitutil.NewBitmapReader(left.values, left.data.offset, left.Len())
	rr := bitutil.NewBitmapReader(right.values, right.data.offset, right.Len())
	for i := 0; i < left.Len(); i++ {
		if left.IsValid(i) && lr.Set() != rr.Set() {
			return false
		}
		lr.Next()
		rr.Next()
	}
	return true
}

func arrayEqualBinary(left, right *Binary) bool {
	for i := 0; i < left.Len(); i++ {
		if left.IsNull(i) {
			continue
		}
		if !bytes.Equal(left.Value(i), right.Value(i)) {
			return false
		}
	}
	return true
}

func arrayEqualNumeric[T arrow.NumericType](left, right *Numeric[T]) bool {
	for i := 0; i < left.Len(); i++ {
		if left.IsNull(i) {
			continue
		}
		if left.Value(i) != right.Value(i) {
			return false
		}
	}
	return true
}

// arrayEqualList compares the child ranges selected by every valid slot.
func arrayEqualList(left, right ListLike) bool {
	lvalues, rvalues := left.ListValues(), right.ListValues()
	for i := 0; i < left.Len(); i++ {
		if left.IsNull(i) {
			continue
		}
		lbeg, lend := left.ValueOffsets(i)
		rbeg, rend := right.ValueOffsets(i)
		if lend-lbeg != rend-rbeg {
			return false
		}
		if !SliceEqual(lvalues, lbeg, lend, rvalues, rbeg, rend) {
			return false
		}
	}
	return true
}

func arrayEqualStruct(left, right *Struct) bool {
	for i := 0; i < left.NumField(); i++ {
		lf, rf := left.Field(i), right.Field(i)
		if !arrow.TypeEqual(lf.DataType(), rf.DataType()) {
			return false
		}
		for j := 0; j < left.Len(); j++ {
			if left.IsNull(j) {
				continue
			}
			if !SliceEqual(lf, int64(j), int64(j+1), rf, int64(j), int64(j+1)) {
				return false
			}
		}
	}
	return true
}

// arrayEqualUnion compares the selected child value of every slot.
// Offsets are nil for sparse unions.
func arrayEqualUnion(left, right *union, loffsets, roffsets []int32) bool {
	for i := 0; i < left.Len(); i++ {
		if left.TypeCode(i) != right.TypeCode(i) {
			return false
		}
		lchild, lidx := left.valueAt(i, loffsets)
		rchild, ridx := right.valueAt(i, roffsets)
		if !SliceEqual(lchild, int64(lidx), int64(lidx+1), rchild, int64(ridx), int64(ridx+1)) {
			return false
		}
	}
	return true
}

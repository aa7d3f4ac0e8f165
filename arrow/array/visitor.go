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
	"github.com/colarrow/go/arrow"
)

// Visitor is the fallback of Visit: it receives every array whose kind
// has no dedicated method on the visitor.
type Visitor interface {
	Visit(arrow.Array) error
}

// The per-kind visitor interfaces. A Visitor implementing one of them
// receives arrays of that kind through the typed method instead of Visit.
type (
	NullVisitor          interface{ VisitNull(*Null) error }
	BooleanVisitor       interface{ VisitBoolean(*Boolean) error }
	BinaryVisitor        interface{ VisitBinary(*Binary) error }
	StringVisitor        interface{ VisitString(*String) error }
	ListVisitor          interface{ VisitList(*List) error }
	LargeListVisitor     interface{ VisitLargeList(*LargeList) error }
	ListViewVisitor      interface{ VisitListView(*ListView) error }
	LargeListViewVisitor interface{ VisitLargeListView(*LargeListView) error }
	StructVisitor        interface{ VisitStruct(*Struct) error }
	SparseUnionVisitor   interface{ VisitSparseUnion(*SparseUnion) error }
	DenseUnionVisitor    interface{ VisitDenseUnion(*DenseUnion) error }
	DictionaryVisitor    interface{ VisitDictionary(*Dictionary) error }
	RunEndEncodedVisitor interface{ VisitRunEndEncoded(*RunEndEncoded) error }
)

// Visit dispatches arr to the method of v matching its concrete kind,
// falling back to v.Visit.
func Visit(arr arrow.Array, v Visitor) error {
	switch a := arr.(type) {
	case *Null:
		if tv, ok := v.(NullVisitor); ok {
			return tv.VisitNull(a)
		}
	case *Boolean:
		if tv, ok := v.(BooleanVisitor); ok {
			return tv.VisitBoolean(a)
		}
	case *Binary:
		if tv, ok := v.(BinaryVisitor); ok {
			return tv.VisitBinary(a)
		}
	case *String:
		if tv, ok := v.(StringVisitor); ok {
			return tv.VisitString(a)
		}
	case *List:
		if tv, ok := v.(ListVisitor); ok {
			return tv.VisitList(a)
		}
	case *LargeList:
		if tv, ok := v.(LargeListVisitor); ok {
			return tv.VisitLargeList(a)
		}
	case *ListView:
		if tv, ok := v.(ListViewVisitor); ok {
			return tv.VisitListView(a)
		}
	case *LargeListView:
		if tv, ok := v.(LargeListViewVisitor); ok {
			return tv.VisitLargeListView(a)
		}
	case *Struct:
		if tv, ok := v.(StructVisitor); ok {
			return tv.VisitStruct(a)
		}
	case *SparseUnion:
		if tv, ok := v.(SparseUnionVisitor); ok {
			return tv.VisitSparseUnion(a)
		}
	case *DenseUnion:
		if tv, ok := v.(DenseUnionVisitor); ok {
			return tv.VisitDenseUnion(a)
		}
	case *Dictionary:
		if tv, ok := v.(DictionaryVisitor); ok {
			return tv.VisitDictionary(a)
		}
	case *RunEndEncoded:
		if tv, ok := v.(RunEndEncodedVisitor); ok {
			return tv.VisitRunEndEncoded(a)
		}
	}
	return v.Visit(arr)
}

// Validate runs the structural checks of arr and of every nested child.
func Validate(arr arrow.Array) error {
	return Visit(arr, validator{})
}

// ValidateFull runs Validate and additionally checks every offset, size,
// type code and run end against the data it refers to.
func ValidateFull(arr arrow.Array) error {
	return Visit(arr, validator{full: true})
}

type validator struct{ full bool }

type validatable interface {
	Validate() error
	ValidateFull() error
}

func (v validator) check(arr validatable, children ...arrow.Array) error {
	var err error
	if v.full {
		err = arr.ValidateFull()
	} else {
		err = arr.Validate()
	}
	if err != nil {
		return err
	}

	for _, c := range children {
		if err := Visit(c, v); err != nil {
			return err
		}
	}
	return nil
}

// Visit accepts leaf arrays, whose layout is checked on construction.
func (validator) Visit(arrow.Array) error { return nil }

func (v validator) VisitList(a *List) error           { return v.check(a, a.ListValues()) }
func (v validator) VisitLargeList(a *LargeList) error { return v.check(a, a.ListValues()) }
func (v validator) VisitListView(a *ListView) error   { return v.check(a, a.ListValues()) }
func (v validator) VisitLargeListView(a *LargeListView) error {
	return v.check(a, a.ListValues())
}

func (v validator) VisitStruct(a *Struct) error {
	fields := make([]arrow.Array, a.NumField())
	for i := range fields {
		fields[i] = a.Field(i)
	}
	return v.check(a, fields...)
}

func (v validator) visitUnion(a Union) error {
	children := make([]arrow.Array, a.NumFields())
	for i := range children {
		children[i] = a.Field(i)
	}
	return v.check(a, children...)
}

func (v validator) VisitSparseUnion(a *SparseUnion) error { return v.visitUnion(a) }
func (v validator) VisitDenseUnion(a *DenseUnion) error   { return v.visitUnion(a) }

func (v validator) VisitDictionary(a *Dictionary) error {
	if v.full {
		if err := a.ValidateFull(); err != nil {
			return err
		}
	}
	return Visit(a.Dictionary(), v)
}

func (v validator) VisitRunEndEncoded(a *RunEndEncoded) error {
	return v.check(a, a.Values())
}

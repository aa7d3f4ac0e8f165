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
	"reflect"
)

type typeEqualsConfig struct {
	metadata bool
}

// TypeEqualOption is a functional option type used for configuring type
// equality checks.
type TypeEqualOption func(*typeEqualsConfig)

// CheckMetadata is an option for TypeEqual that allows checking for metadata
// equality besides type equality. It only makes sense for types with metadata.
func CheckMetadata() TypeEqualOption {
	return func(cfg *typeEqualsConfig) {
		cfg.metadata = true
	}
}

// TypeEqual checks if two DataType are the same, optionally checking metadata
// equality for STRUCT types.
func TypeEqual(left, right DataType, opts ...TypeEqualOption) bool {
	var cfg typeEqualsConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	switch {
	case left == nil || right == nil:
		return left == nil && right == nil
	case left.ID() != right.ID():
		return false
	}

	switch l := left.(type) {
	case ListLikeType:
		r := right.(ListLikeType)
		return fieldEqual(l.ElemField(), r.ElemField(), cfg)
	case *StructType:
		r := right.(*StructType)
		switch {
		case len(l.fields) != len(r.fields):
			return false
		case !reflect.DeepEqual(l.index, r.index):
			return false
		}
		for i := range l.fields {
			if !fieldEqual(l.fields[i], r.fields[i], cfg) {
				return false
			}
		}
		if cfg.metadata && !l.meta.Equal(r.meta) {
			return false
		}
		return true
	case UnionType:
		r := right.(UnionType)
		if l.Mode() != r.Mode() {
			return false
		}

		if !reflect.DeepEqual(l.ChildIDs(), r.ChildIDs()) {
			return false
		}

		lf, rf := l.Fields(), r.Fields()
		if len(lf) != len(rf) {
			return false
		}
		for i := range lf {
			if !fieldEqual(lf[i], rf[i], cfg) {
				return false
			}
		}

		return reflect.DeepEqual(l.TypeCodes(), r.TypeCodes())
	case *DictionaryType:
		r := right.(*DictionaryType)
		return TypeEqual(l.IndexType, r.IndexType, opts...) &&
			TypeEqual(l.ValueType, r.ValueType, opts...) &&
			l.Ordered == r.Ordered
	case *RunEndEncodedType:
		r := right.(*RunEndEncodedType)
		return TypeEqual(l.Encoded(), r.Encoded(), opts...) &&
			TypeEqual(l.runEnds, r.runEnds, opts...) &&
			l.ValueNullable == r.ValueNullable
	default:
		return reflect.DeepEqual(left, right)
	}
}

func fieldEqual(l, r Field, cfg typeEqualsConfig) bool {
	switch {
	case l.Name != r.Name:
		return false
	case l.Nullable != r.Nullable:
		return false
	case !TypeEqual(l.Type, r.Type, func(c *typeEqualsConfig) { *c = cfg }):
		return false
	case cfg.metadata && !l.Metadata.Equal(r.Metadata):
		return false
	}
	return true
}

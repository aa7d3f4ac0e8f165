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

/*
Package arrow provides the type system of an in-memory columnar data format.

The fundamental data structure is an Array, which holds a sequence of values of the same type. An array
consists of memory holding the data and an additional validity bitmap that indicates if the corresponding entry in the
array is valid (not null). If the array has no null entries, it is possible to omit this bitmap.

The nested and encoded kinds build on that layout:

  - List and LargeList slots reference a contiguous run of a single child array through
    length+1 offsets.
  - ListView and LargeListView slots carry an offset and a size each, so slots may overlap
    or appear out of order.
  - Struct arrays own one child per field, all of the same length as the parent.
  - Sparse and Dense unions select a child per slot with an 8-bit type code; they have no
    validity bitmap of their own.
  - Dictionary arrays store integer indices into a shared dictionary array.
  - Run-end encoded arrays store strictly increasing run ends next to one value per run.

Types are described by DataType values. Concrete arrays and builders live in the array subpackage.

Memory Management

Arrays, builders and their underlying ArrayData are reference counted, see the Retain and Release
methods. Buffers come from a memory.Allocator supplied by the caller.
*/
package arrow

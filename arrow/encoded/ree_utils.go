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

// Package encoded resolves logical positions of run-end encoded arrays
// to physical run indexes.
package encoded

import (
	"fmt"
	"math"
	"sort"

	"github.com/colarrow/go/arrow"
	"golang.org/x/exp/constraints"
)

// RunEnds returns the logical view of the run ends stored in runEnds,
// which must be the int16, int32 or int64 child of a run-end encoded array.
func RunEnds[R arrow.IntType](runEnds arrow.ArrayData) []R {
	bufs := runEnds.Buffers()
	if len(bufs) < 2 || bufs[1] == nil {
		return nil
	}
	vals := arrow.GetData[R](bufs[1].Bytes())
	return vals[runEnds.Offset() : runEnds.Offset()+runEnds.Len()]
}

// FindPhysicalIndex performs a binary search on the run-ends to return
// the appropriate physical index into the values of the run-end encoded
// array. If logicalIdx is at or beyond the last run end, len(runEnds)
// is returned.
func FindPhysicalIndex[R constraints.Signed](runEnds []R, logicalIdx int) int {
	return sort.Search(len(runEnds), func(i int) bool { return int64(runEnds[i]) > int64(logicalIdx) })
}

// FindPhysicalOffset performs a binary search on the run-ends to return
// the appropriate physical offset into the values of the run-end encoded
// array corresponding to the logical offset of data.
func FindPhysicalOffset(data arrow.ArrayData) int {
	return physicalIndex(data, data.Offset())
}

// GetPhysicalIndex returns the physical index into the values of the
// run-end encoded array for logical slot i (relative to data's offset).
func GetPhysicalIndex(data arrow.ArrayData, i int) int {
	return physicalIndex(data, data.Offset()+i)
}

func physicalIndex(data arrow.ArrayData, logicalIdx int) int {
	runEnds := data.Children()[0]
	switch runEnds.DataType().ID() {
	case arrow.INT16:
		return FindPhysicalIndex(RunEnds[int16](runEnds), logicalIdx)
	case arrow.INT32:
		return FindPhysicalIndex(RunEnds[int32](runEnds), logicalIdx)
	case arrow.INT64:
		return FindPhysicalIndex(RunEnds[int64](runEnds), logicalIdx)
	default:
		panic(fmt.Errorf("%w: arrow/encoded: invalid run end type %s", arrow.ErrInvalid, runEnds.DataType()))
	}
}

// GetPhysicalLength returns the physical number of values which are in
// the passed in RunEndEncoded array data. This will take into account
// the offset and length of the array as reported in the array data
// (so that it properly handles slices).
func GetPhysicalLength(data arrow.ArrayData) int {
	if data.Len() == 0 {
		return 0
	}

	// find the offset of the last element and add 1
	physOffset := FindPhysicalOffset(data)
	return physicalIndex(data, data.Offset()+data.Len()-1) - physOffset + 1
}

// runEndAccessor widens the run ends of a run-end encoded array to int64.
func runEndAccessor(data arrow.ArrayData) func(int64) int64 {
	runEnds := data.Children()[0]
	switch runEnds.DataType().ID() {
	case arrow.INT16:
		vals := RunEnds[int16](runEnds)
		return func(i int64) int64 { return int64(vals[i]) }
	case arrow.INT32:
		vals := RunEnds[int32](runEnds)
		return func(i int64) int64 { return int64(vals[i]) }
	case arrow.INT64:
		vals := RunEnds[int64](runEnds)
		return func(i int64) int64 { return vals[i] }
	default:
		panic(fmt.Errorf("%w: arrow/encoded: invalid run end type %s", arrow.ErrInvalid, runEnds.DataType()))
	}
}

// MergedRuns is used to iterate over two run-end encoded arrays in
// parallel, producing the runs over which both arrays hold a constant
// value.
type MergedRuns struct {
	inputs       [2]arrow.Array
	runIndex     [2]int64
	inputRunEnds [2]func(int64) int64
	runEnds      [2]int64
	logicalLen   int
	logicalPos   int
	mergedEnd    int64
}

// NewMergedRuns takes two RunEndEncoded arrays of the same logical length
// and returns an iterator over their merged runs.
func NewMergedRuns(inputs [2]arrow.Array) *MergedRuns {
	mr := &MergedRuns{inputs: inputs, logicalLen: inputs[0].Len()}
	for i, in := range inputs {
		if in.DataType().ID() != arrow.RUN_END_ENCODED {
			panic(fmt.Errorf("%w: arrow/encoded: NewMergedRuns can only be called with RunEndEncoded arrays", arrow.ErrType))
		}
		if in.Len() != mr.logicalLen {
			panic(fmt.Errorf("%w: arrow/encoded: NewMergedRuns inputs must have the same length", arrow.ErrInvalid))
		}
		mr.inputRunEnds[i] = runEndAccessor(in.Data())
		// initialize the runIndex at the physical offset - 1 so the first
		// call to Next will increment it to the correct initial offset
		// since the initial state is logicalPos == 0 and mergedEnd == 0
		mr.runIndex[i] = int64(FindPhysicalOffset(in.Data())) - 1
	}

	return mr
}

// Next returns true if there are more values/runs to iterate and false
// otherwise.
func (mr *MergedRuns) Next() bool {
	mr.logicalPos = int(mr.mergedEnd)
	if mr.isEnd() {
		return false
	}

	for i := range mr.inputs {
		if mr.logicalPos == int(mr.runEnds[i]) {
			mr.runIndex[i]++
		}
	}
	mr.findMergedRun()

	return true
}

// IndexIntoBuffer returns the physical index into the value buffer of
// the passed in input id (0 or 1), accounting for the offset of the
// values child.
func (mr *MergedRuns) IndexIntoBuffer(id int) int64 {
	return mr.runIndex[id] + int64(mr.inputs[id].Data().Children()[1].Offset())
}

// IndexIntoArray is like IndexIntoBuffer but it doesn't take into account
// the array offset and instead is the index directly into the values
// array of the input.
func (mr *MergedRuns) IndexIntoArray(id int) int64 { return mr.runIndex[id] }

// RunLength returns the logical length of the current merged run being
// looked at.
func (mr *MergedRuns) RunLength() int64 { return mr.mergedEnd - int64(mr.logicalPos) }

// AccumulatedRunLength returns the total logical length of all runs
// visited so far, including the current one.
func (mr *MergedRuns) AccumulatedRunLength() int64 { return mr.mergedEnd }

func (mr *MergedRuns) findMergedRun() {
	mr.mergedEnd = int64(math.MaxInt64)
	for i, in := range mr.inputs {
		// logical indices of the end of the run we are currently in each input
		mr.runEnds[i] = mr.inputRunEnds[i](mr.runIndex[i]) - int64(in.Data().Offset())
		// the logical length may end in the middle of a run, in case the array was sliced
		if mr.logicalLen < int(mr.runEnds[i]) {
			mr.runEnds[i] = int64(mr.logicalLen)
		}
		if mr.runEnds[i] < mr.mergedEnd {
			mr.mergedEnd = mr.runEnds[i]
		}
	}
}

func (mr *MergedRuns) isEnd() bool { return mr.logicalPos == mr.logicalLen }

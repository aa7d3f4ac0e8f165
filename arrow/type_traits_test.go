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

package arrow_test

import (
	"testing"

	"github.com/colarrow/go/arrow"
	"github.com/stretchr/testify/assert"
)

func TestGetDataGetBytes(t *testing.T) {
	vals := []int32{1, -2, 1 << 20}
	raw := arrow.GetBytes(vals)
	assert.Len(t, raw, 12)
	assert.Equal(t, vals, arrow.GetData[int32](raw))

	// views share memory with their source
	arrow.GetData[int32](raw)[1] = 7
	assert.Equal(t, int32(7), vals[1])

	assert.Equal(t, []int16{0x0201, 0x0403}, arrow.GetData[int16]([]byte{1, 2, 3, 4}))
	assert.Empty(t, arrow.GetData[int64](nil))
	assert.Empty(t, arrow.GetBytes([]float64{}))
}

func TestSizeOf(t *testing.T) {
	assert.Equal(t, arrow.Int8SizeBytes, arrow.SizeOf[int8]())
	assert.Equal(t, arrow.Uint16SizeBytes, arrow.SizeOf[uint16]())
	assert.Equal(t, arrow.Float32SizeBytes, arrow.SizeOf[float32]())
	assert.Equal(t, arrow.Int64SizeBytes, arrow.SizeOf[int64]())
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, arrow.INT8, arrow.TypeOf[int8]())
	assert.Equal(t, arrow.UINT32, arrow.TypeOf[uint32]())
	assert.Equal(t, arrow.FLOAT64, arrow.TypeOf[float64]())

	type celsius float32
	assert.PanicsWithValue(t, "arrow: unsupported numeric type", func() { arrow.TypeOf[celsius]() })
}

func TestOffsetTraits(t *testing.T) {
	assert.Equal(t, 40, arrow.Int32Traits.BytesRequired(10))
	assert.Equal(t, 80, arrow.Int64Traits.BytesRequired(10))
	assert.Zero(t, arrow.Int64Traits.BytesRequired(0))
}

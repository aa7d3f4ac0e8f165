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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetadata(t *testing.T) {
	md := NewMetadata([]string{"k1", "k2"}, []string{"v1", "v2"})

	assert.Equal(t, 2, md.Len())
	assert.Equal(t, []string{"k1", "k2"}, md.Keys())
	assert.Equal(t, []string{"v1", "v2"}, md.Values())
	assert.Equal(t, `["k1": "v1", "k2": "v2"]`, md.String())

	assert.Equal(t, 1, md.FindKey("k2"))
	assert.Equal(t, -1, md.FindKey("k3"))

	v, ok := md.GetValue("k1")
	assert.True(t, ok)
	assert.Equal(t, "v1", v)
	_, ok = md.GetValue("k3")
	assert.False(t, ok)

	assert.Equal(t, Metadata{}, NewMetadata(nil, nil))
	assert.PanicsWithValue(t, "arrow: len mismatch", func() { NewMetadata([]string{"k"}, nil) })
}

func TestMetadataCopiesInput(t *testing.T) {
	keys, values := []string{"k"}, []string{"v"}
	md := NewMetadata(keys, values)
	keys[0], values[0] = "changed", "changed"

	assert.Equal(t, []string{"k"}, md.Keys())
	assert.Equal(t, []string{"v"}, md.Values())
}

func TestMetadataFrom(t *testing.T) {
	md := MetadataFrom(map[string]string{"b": "2", "a": "1", "c": "3"})
	assert.Equal(t, []string{"a", "b", "c"}, md.Keys())
	assert.Equal(t, []string{"1", "2", "3"}, md.Values())
}

func TestMetadataEqual(t *testing.T) {
	md := NewMetadata([]string{"a", "b"}, []string{"1", "2"})

	assert.True(t, md.Equal(NewMetadata([]string{"b", "a"}, []string{"2", "1"})))
	assert.False(t, md.Equal(NewMetadata([]string{"a", "b"}, []string{"1", "3"})))
	assert.False(t, md.Equal(NewMetadata([]string{"a"}, []string{"1"})))
	assert.True(t, Metadata{}.Equal(NewMetadata(nil, nil)))
}

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

package memory_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/colarrow/go/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingT struct {
	errs []string
}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.errs = append(r.errs, fmt.Sprintf(format, args...))
}

func (r *recordingT) Helper() {}

func TestCheckedAllocatorReportsLeak(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())

	buf := memory.NewResizableBuffer(mem)
	buf.Resize(2048)

	rec := &recordingT{}
	mem.AssertSize(rec, 0)
	require.Len(t, rec.errs, 2)
	assert.True(t, strings.HasPrefix(rec.errs[0], "LEAK of 2048 bytes (2.0 KiB)"), rec.errs[0])
	assert.Contains(t, rec.errs[1], "exp=0, got=2048")

	buf.Release()
	rec = &recordingT{}
	mem.AssertSize(rec, 0)
	assert.Empty(t, rec.errs)
}

func TestCheckedAllocatorScope(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	outer := memory.NewResizableBuffer(mem)
	outer.Resize(64)
	defer outer.Release()

	scope := memory.NewCheckedAllocatorScope(mem)
	inner := memory.NewResizableBuffer(mem)
	inner.Resize(100)

	rec := &recordingT{}
	scope.CheckSize(rec)
	assert.Len(t, rec.errs, 1)

	inner.Release()
	scope.CheckSize(t)
}

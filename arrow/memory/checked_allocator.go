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

package memory

import (
	"reflect"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/dustin/go-humanize"
	"golang.org/x/exp/slices"
)

// CheckedAllocator wraps another Allocator and remembers where every
// outstanding allocation was requested so tests can report leaks.
type CheckedAllocator struct {
	mem Allocator
	sz  int64

	mu   sync.Mutex
	live map[uintptr]allocSite
}

// allocSite is the first caller outside this package that asked for a
// live allocation.
type allocSite struct {
	fn   string
	line int
	sz   int
}

func NewCheckedAllocator(mem Allocator) *CheckedAllocator {
	return &CheckedAllocator{mem: mem, live: make(map[uintptr]allocSite)}
}

func (a *CheckedAllocator) CurrentAlloc() int { return int(atomic.LoadInt64(&a.sz)) }

func (a *CheckedAllocator) Allocate(size int) []byte {
	atomic.AddInt64(&a.sz, int64(size))
	out := a.mem.Allocate(size)
	a.track(out, nil)
	return out
}

func (a *CheckedAllocator) Reallocate(size int, b []byte) []byte {
	atomic.AddInt64(&a.sz, int64(size-len(b)))
	old := addrOf(b)
	out := a.mem.Reallocate(size, b)
	a.track(out, &old)
	return out
}

func (a *CheckedAllocator) Free(b []byte) {
	atomic.AddInt64(&a.sz, -int64(len(b)))
	if ptr := addrOf(b); ptr != 0 {
		a.mu.Lock()
		delete(a.live, ptr)
		a.mu.Unlock()
	}
	a.mem.Free(b)
}

// track records buf as live, forgetting the block at *replaced first.
func (a *CheckedAllocator) track(buf []byte, replaced *uintptr) {
	ptr := addrOf(buf)
	var site allocSite
	if ptr != 0 {
		site = callerSite()
		site.sz = len(buf)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if replaced != nil && *replaced != 0 {
		delete(a.live, *replaced)
	}
	if ptr != 0 {
		a.live[ptr] = site
	}
}

func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

var pkgPrefix = reflect.TypeOf(CheckedAllocator{}).PkgPath() + "."

// callerSite walks up the stack past Buffer and the allocators to the
// code which triggered the allocation.
func callerSite() allocSite {
	var pcs [32]uintptr
	frames := runtime.CallersFrames(pcs[:runtime.Callers(3, pcs[:])])
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, pkgPrefix) || strings.HasSuffix(f.File, "_test.go") || !more {
			return allocSite{fn: f.Function, line: f.Line}
		}
	}
}

type TestingT interface {
	Errorf(format string, args ...interface{})
	Helper()
}

// AssertSize reports every outstanding allocation as a leak, largest
// first, and fails t if the currently allocated byte count differs from sz.
func (a *CheckedAllocator) AssertSize(t TestingT, sz int) {
	t.Helper()

	a.mu.Lock()
	leaks := make([]allocSite, 0, len(a.live))
	for _, s := range a.live {
		leaks = append(leaks, s)
	}
	a.mu.Unlock()

	slices.SortFunc(leaks, func(x, y allocSite) int {
		if x.sz != y.sz {
			return y.sz - x.sz
		}
		return strings.Compare(x.fn, y.fn)
	})
	for _, l := range leaks {
		t.Errorf("LEAK of %d bytes (%s) FROM %s line %d\n",
			l.sz, humanize.IBytes(uint64(l.sz)), l.fn, l.line)
	}

	if cur := a.CurrentAlloc(); cur != sz {
		t.Errorf("invalid memory size exp=%d, got=%d (%s outstanding)",
			sz, cur, humanize.IBytes(uint64(max(cur, 0))))
	}
}

// CheckedAllocatorScope remembers the allocated byte count at creation
// so a test can check that a region of code released what it allocated.
type CheckedAllocatorScope struct {
	alloc *CheckedAllocator
	sz    int
}

func NewCheckedAllocatorScope(alloc *CheckedAllocator) *CheckedAllocatorScope {
	return &CheckedAllocatorScope{alloc: alloc, sz: alloc.CurrentAlloc()}
}

func (c *CheckedAllocatorScope) CheckSize(t TestingT) {
	if sz := c.alloc.CurrentAlloc(); sz != c.sz {
		t.Helper()
		t.Errorf("invalid memory size exp=%d, got=%d", c.sz, sz)
	}
}

var _ Allocator = (*CheckedAllocator)(nil)

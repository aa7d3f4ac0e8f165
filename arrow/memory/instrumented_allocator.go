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
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// InstrumentedAllocator counts the traffic flowing through another
// Allocator. It implements prometheus.Collector so the counters can be
// registered with any prometheus.Registerer.
type InstrumentedAllocator struct {
	mem Allocator

	allocated int64
	total     int64
	allocs    int64
	reallocs  int64
	frees     int64

	allocatedDesc *prometheus.Desc
	totalDesc     *prometheus.Desc
	opsDesc       *prometheus.Desc
}

// NewInstrumentedAllocator wraps mem. The metric names are prefixed with
// namespace when it is not empty.
func NewInstrumentedAllocator(mem Allocator, namespace string) *InstrumentedAllocator {
	return &InstrumentedAllocator{
		mem: mem,
		allocatedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "memory", "allocated_bytes"),
			"Bytes currently allocated.",
			nil, nil,
		),
		totalDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "memory", "allocated_bytes_total"),
			"Bytes allocated since creation, including reallocation growth.",
			nil, nil,
		),
		opsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "memory", "operations_total"),
			"Allocator calls by operation.",
			[]string{"op"}, nil,
		),
	}
}

func (a *InstrumentedAllocator) Allocate(size int) []byte {
	atomic.AddInt64(&a.allocs, 1)
	atomic.AddInt64(&a.allocated, int64(size))
	atomic.AddInt64(&a.total, int64(size))
	return a.mem.Allocate(size)
}

func (a *InstrumentedAllocator) Reallocate(size int, b []byte) []byte {
	atomic.AddInt64(&a.reallocs, 1)
	diff := int64(size - len(b))
	atomic.AddInt64(&a.allocated, diff)
	if diff > 0 {
		atomic.AddInt64(&a.total, diff)
	}
	return a.mem.Reallocate(size, b)
}

func (a *InstrumentedAllocator) Free(b []byte) {
	atomic.AddInt64(&a.frees, 1)
	atomic.AddInt64(&a.allocated, -int64(len(b)))
	a.mem.Free(b)
}

// CurrentAlloc returns the number of bytes currently allocated.
func (a *InstrumentedAllocator) CurrentAlloc() int { return int(atomic.LoadInt64(&a.allocated)) }

// TotalAlloc returns the number of bytes allocated since creation.
func (a *InstrumentedAllocator) TotalAlloc() int64 { return atomic.LoadInt64(&a.total) }

func (a *InstrumentedAllocator) Describe(ch chan<- *prometheus.Desc) {
	ch <- a.allocatedDesc
	ch <- a.totalDesc
	ch <- a.opsDesc
}

func (a *InstrumentedAllocator) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(a.allocatedDesc, prometheus.GaugeValue, float64(atomic.LoadInt64(&a.allocated)))
	ch <- prometheus.MustNewConstMetric(a.totalDesc, prometheus.CounterValue, float64(atomic.LoadInt64(&a.total)))
	ch <- prometheus.MustNewConstMetric(a.opsDesc, prometheus.CounterValue, float64(atomic.LoadInt64(&a.allocs)), "allocate")
	ch <- prometheus.MustNewConstMetric(a.opsDesc, prometheus.CounterValue, float64(atomic.LoadInt64(&a.reallocs)), "reallocate")
	ch <- prometheus.MustNewConstMetric(a.opsDesc, prometheus.CounterValue, float64(atomic.LoadInt64(&a.frees)), "free")
}

var (
	_ Allocator            = (*InstrumentedAllocator)(nil)
	_ prometheus.Collector = (*InstrumentedAllocator)(nil)
)

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

// Package bitutil provides the bit manipulation helpers used for validity
// bitmaps and boolean values. Bits are numbered LSB first within each byte.
package bitutil

import (
	"encoding/binary"
	"math/bits"
)

var (
	BitMask        = [8]byte{1, 2, 4, 8, 16, 32, 64, 128}
	FlippedBitMask = [8]byte{254, 253, 251, 247, 239, 223, 191, 127}
)

// IsMultipleOf8 returns whether v is a multiple of 8.
func IsMultipleOf8(v int64) bool { return v&7 == 0 }

// NextPowerOf2 rounds x to the next power of two.
func NextPowerOf2(x int) int { return 1 << uint(bits.Len(uint(x))) }

// CeilByte rounds size to the next multiple of 8.
func CeilByte(size int) int { return (size + 7) &^ 7 }

// BytesForBits returns the number of bytes needed to hold the given
// number of bits.
func BytesForBits(bits int64) int64 { return (bits + 7) >> 3 }

// BitIsSet returns true if the bit at index i in buf is set (1).
func BitIsSet(buf []byte, i int) bool { return (buf[uint(i)/8] & BitMask[byte(i)%8]) != 0 }

// BitIsNotSet returns true if the bit at index i in buf is not set (0).
func BitIsNotSet(buf []byte, i int) bool { return (buf[uint(i)/8] & BitMask[byte(i)%8]) == 0 }

// SetBit sets the bit at index i in buf to 1.
func SetBit(buf []byte, i int) { buf[uint(i)/8] |= BitMask[byte(i)%8] }

// ClearBit sets the bit at index i in buf to 0.
func ClearBit(buf []byte, i int) { buf[uint(i)/8] &= FlippedBitMask[byte(i)%8] }

// SetBitTo sets the bit at index i in buf to val.
func SetBitTo(buf []byte, i int, val bool) {
	if val {
		SetBit(buf, i)
	} else {
		ClearBit(buf, i)
	}
}

// SetBitsTo sets length bits starting at startOffset to areSet.
func SetBitsTo(bits []byte, startOffset, length int64, areSet bool) {
	if length == 0 {
		return
	}

	var fill byte
	if areSet {
		fill = 0xFF
	}

	i, end := startOffset, startOffset+length
	for ; i < end && !IsMultipleOf8(i); i++ {
		SetBitTo(bits, int(i), areSet)
	}
	for ; i+8 <= end; i += 8 {
		bits[i/8] = fill
	}
	for ; i < end; i++ {
		SetBitTo(bits, int(i), areSet)
	}
}

// CountSetBits counts the number of 1's in buf within the n bits starting
// at bit offset.
func CountSetBits(buf []byte, offset, n int) int {
	if n <= 0 {
		return 0
	}

	count := 0
	i, end := offset, offset+n

	// leading bits up to the first byte boundary
	for ; i < end && i%8 != 0; i++ {
		if BitIsSet(buf, i) {
			count++
		}
	}

	full := buf[i/8 : i/8+(end-i)/8]
	i += len(full) * 8
	for len(full) >= 8 {
		count += bits.OnesCount64(binary.LittleEndian.Uint64(full))
		full = full[8:]
	}
	for _, v := range full {
		count += bits.OnesCount8(v)
	}

	// tail bits
	for ; i < end; i++ {
		if BitIsSet(buf, i) {
			count++
		}
	}

	return count
}

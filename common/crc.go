// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common contains functions used across multiple packages. For
// example, the CRC8 used by Sensirion sensors to guard 16-bit words.
package common

// crc8Polynomial is x^8 + x^5 + x^4 + 1. x^8 is omitted due to byte size.
const crc8Polynomial byte = 0x31

// CRC8 calculates the 8-bit CRC of the byte slice parameter and returns the
// calculated value. The accumulator starts at 0xff, bits are processed most
// significant first, and there is no reflection or final XOR. CRC bytes are
// used in sensors from TI and Sensirion.
func CRC8(bytes []byte) byte {
	var crc byte = 0xff
	for _, val := range bytes {
		crc ^= val
		for n := 0; n < 8; n++ {
			if (crc & 0x80) == 0 {
				crc <<= 1
			} else {
				crc = (crc << 1) ^ crc8Polynomial
			}
		}
	}
	return crc
}

// AppendWord appends w in big-endian order to dst, followed by the CRC8 of
// those two bytes.
func AppendWord(dst []byte, w uint16) []byte {
	b := [2]byte{byte(w >> 8), byte(w)}
	return append(dst, b[0], b[1], CRC8(b[:]))
}

// CheckWord reports whether the third byte of a word group is the CRC8 of
// the first two. Groups shorter than 3 bytes never match.
func CheckWord(group []byte) bool {
	if len(group) < 3 {
		return false
	}
	return CRC8(group[:2]) == group[2]
}

// Package strutil holds a handful of string/byte primitives kept from the
// teacher's much larger helper surface. wrapper/sqlite and wrapper/hystrixgo
// call LenTrim and Itoa; Left, Padding, NextFixedLength, ByteToHex and
// HexToByte currently have no caller in this tree.
package strutil

/*
 * Copyright 2020-2026 Aldelo, LP
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// LenTrim returns the length of s after trimming leading/trailing space.
func LenTrim(s string) int {
	return len(strings.TrimSpace(s))
}

// Left returns the left side of s up to l bytes.
func Left(s string, l int) string {
	if len(s) <= l || l <= 0 {
		return s
	}
	return s[0:l]
}

// Padding pads data with padChar to totalSize, on the right if padRight,
// otherwise on the left. A blank padChar pads with a single space.
func Padding(data string, totalSize int, padRight bool, padChar string) string {
	result := data

	diff := totalSize - len(data)
	if diff > 0 {
		pChar := " "
		if len(padChar) > 0 {
			pChar = string(padChar[0])
		}

		pad := strings.Repeat(pChar, diff)
		if padRight {
			result += pad
		} else {
			result = pad + result
		}
	}

	return result
}

// NextFixedLength rounds up len(data) to the next multiple of blockSize,
// always adding at least one full block (an AES block padding target in the
// teacher's crypto helpers).
func NextFixedLength(data string, blockSize int) int {
	blocks := (len(data) / blockSize) + 1
	return blocks * blockSize
}

// ByteToHex converts a byte slice into an upper-case hex string.
func ByteToHex(data []byte) string {
	return strings.ToUpper(hex.EncodeToString(data))
}

// HexToByte converts a hex string into a byte slice.
func HexToByte(hexData string) ([]byte, error) {
	return hex.DecodeString(hexData)
}

// Itoa converts an integer into a string.
func Itoa(i int) string {
	return strconv.Itoa(i)
}

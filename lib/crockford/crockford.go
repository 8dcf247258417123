// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package crockford

import (
	"errors"
	"fmt"
	"strings"
)

// Alphabet is the Crockford base-32 digit set in value order.
const Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// ErrInvalidDigit is returned when the input contains a character that
// is not a Crockford digit or one of its folded look-alikes.
var ErrInvalidDigit = errors.New("invalid crockford digit")

// ErrOverflow is returned when the decoded value does not fit in the
// requested bit width.
var ErrOverflow = errors.New("crockford value overflows")

// ErrEmpty is returned when decoding an empty string.
var ErrEmpty = errors.New("empty crockford value")

// Encode returns value in Crockford base 32, left-padded with '0' to at
// least padding digits. Zero encodes as a single "0" when padding < 1.
func Encode(value uint64, padding int) string {
	var digits [13]byte // 64 bits needs at most 13 base-32 digits
	position := len(digits)
	for {
		position--
		digits[position] = Alphabet[value&0x1f]
		value >>= 5
		if value == 0 {
			break
		}
	}

	encoded := string(digits[position:])
	if len(encoded) < padding {
		encoded = strings.Repeat("0", padding-len(encoded)) + encoded
	}
	return encoded
}

// Decode parses s as a Crockford base-32 number that must fit in bits
// bits (1-64).
func Decode(s string, bits int) (uint64, error) {
	if s == "" {
		return 0, ErrEmpty
	}
	if bits < 1 || bits > 64 {
		return 0, fmt.Errorf("crockford: unsupported bit width %d", bits)
	}

	var result uint64
	for index := 0; index < len(s); index++ {
		digit, ok := DigitValue(s[index])
		if !ok {
			return 0, fmt.Errorf("%w %q at position %d", ErrInvalidDigit, s[index], index)
		}
		if result>>(64-5) != 0 {
			return 0, fmt.Errorf("%w %d bits: %q", ErrOverflow, bits, s)
		}
		result = result<<5 | uint64(digit)
	}

	if bits < 64 && result>>uint(bits) != 0 {
		return 0, fmt.Errorf("%w %d bits: %q", ErrOverflow, bits, s)
	}
	return result, nil
}

// DigitValue maps one input character to its digit value. Lowercase
// letters are accepted; O, I and L fold to 0, 1 and 1.
func DigitValue(c byte) (byte, bool) {
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	switch c {
	case 'O':
		return 0, true
	case 'I', 'L':
		return 1, true
	case 'U':
		return 0, false
	}
	index := strings.IndexByte(Alphabet, c)
	if index < 0 {
		return 0, false
	}
	return byte(index), true
}

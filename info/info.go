// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

// Package info provides utility functions for locating and extracting
// values from the raw responses returned by the modem.
//
// All functions operate on the bounded response buffer and never scan past
// its end.
package info

// maxDigits limits Uint to values that fit in an int on any platform.
const maxDigits = 9

// Index returns the index of the first instance of sub in s[start:],
// relative to the start of s, or -1 if sub is not present.
//
// A start that is negative or beyond the end of s never matches.
// An empty sub matches at start.
func Index(s []byte, sub string, start int) int {
	if start < 0 || start > len(s) {
		return -1
	}
	n := len(sub)
	for i := start; i+n <= len(s); i++ {
		if string(s[i:i+n]) == sub {
			return i
		}
	}
	return -1
}

// Contains returns true if sub is present anywhere in s.
func Contains(s []byte, sub string) bool {
	return Index(s, sub, 0) >= 0
}

// Uint parses the run of decimal digits starting at s[start].
//
// Parsing stops at the first non-digit, or after maxDigits digits.
// The bool is false if s[start] is not a digit.
func Uint(s []byte, start int) (int, bool) {
	if start < 0 {
		return 0, false
	}
	v := 0
	i := start
	for ; i < len(s) && i-start < maxDigits; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		v = v*10 + int(c-'0')
	}
	if i == start {
		return 0, false
	}
	return v, true
}

// Field returns the nth (zero based) comma separated numeric field following
// the first instance of prefix in s.
//
// e.g. Field("+CREG: 0,5", "+CREG:", 1) returns 5.
//
// Spaces between the prefix and the first field are skipped.
func Field(s []byte, prefix string, n int) (int, bool) {
	idx := Index(s, prefix, 0)
	if idx < 0 || n < 0 {
		return 0, false
	}
	i := idx + len(prefix)
	for i < len(s) && s[i] == ' ' {
		i++
	}
	for ; n > 0; n-- {
		for i < len(s) && s[i] != ',' {
			if s[i] == '\r' || s[i] == '\n' {
				return 0, false
			}
			i++
		}
		if i >= len(s) {
			return 0, false
		}
		i++ // skip the comma
	}
	return Uint(s, i)
}

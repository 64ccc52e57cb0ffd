package vm

import (
	"math"
	"strconv"
	"unsafe"

	"finch/internal/errors"
	"finch/internal/utils"
)

// NotFound is the sentinel returned by StringFind when the needle does not
// occur in the haystack.
const NotFound = ^uint32(0)

var stringSize = int(unsafe.Sizeof(ObjString{}))

// allocateString creates a string object with room for length bytes but
// does not fill them in. The caller fills the buffer and then hashes the
// string.
func (vm *VM) allocateString(length int) *ObjString {
	vm.allocateFlex(stringSize, 1, length)
	s := &ObjString{Value: make([]byte, length)}
	vm.initObj(s, KindString, vm.StringClass)
	return s
}

// hashString computes and stores the string's FNV-1a hash. O(n), but it
// only runs once, when the string is created.
func hashString(s *ObjString) {
	var hash uint32 = 2166136261
	for i := 0; i < len(s.Value); i++ {
		hash ^= uint32(s.Value[i])
		hash *= 16777619
	}
	s.Hash = hash
}

// NewString creates a string from text.
func (vm *VM) NewString(text string) Value {
	s := vm.allocateString(len(text))
	copy(s.Value, text)
	hashString(s)
	return ObjValue(s)
}

// NumToString converts a number to its string representation.
func (vm *VM) NumToString(value float64) Value {
	// Different C libraries format NaN and infinity inconsistently, so
	// the original runtime pinned these spellings down; keep them.
	if math.IsNaN(value) {
		return vm.NewString("nan")
	}
	if math.IsInf(value, 1) {
		return vm.NewString("infinity")
	}
	if math.IsInf(value, -1) {
		return vm.NewString("-infinity")
	}

	// 14 significant digits hides the noise digits of double arithmetic
	// (0.1 + 0.2 prints as 0.3). Values that need more digits than that
	// are rounded, so not every double round-trips through its string.
	return vm.NewString(strconv.FormatFloat(value, 'g', 14, 64))
}

// StringFromCodePoint creates a one-code-point string.
func (vm *VM) StringFromCodePoint(value int) Value {
	length := utils.Utf8NumBytes(value)
	if length == 0 {
		panic(errors.NewFault(errors.EncodingFault,
			"code point %#x out of range", value))
	}

	s := vm.allocateString(length)
	utils.Utf8Encode(value, s.Value)
	hashString(s)
	return ObjValue(s)
}

// StringFormat builds a string from a format template. Two directives are
// understood: '$' consumes a Go string argument and '@' consumes a string
// Value argument. Every other byte is literal.
func (vm *VM) StringFormat(format string, args ...interface{}) Value {
	// Measure the result first so it can be built with one allocation.
	totalLength := 0
	arg := 0
	for i := 0; i < len(format); i++ {
		switch format[i] {
		case '$':
			totalLength += len(args[arg].(string))
			arg++
		case '@':
			totalLength += len(args[arg].(Value).AsString().Value)
			arg++
		default:
			totalLength++
		}
	}

	result := vm.allocateString(totalLength)

	arg = 0
	start := 0
	for i := 0; i < len(format); i++ {
		switch format[i] {
		case '$':
			s := args[arg].(string)
			copy(result.Value[start:], s)
			start += len(s)
			arg++
		case '@':
			s := args[arg].(Value).AsString()
			copy(result.Value[start:], s.Value)
			start += len(s.Value)
			arg++
		default:
			result.Value[start] = format[i]
			start++
		}
	}

	hashString(result)
	return ObjValue(result)
}

// StringCodePointAt returns a new string containing the UTF-8 encoded code
// point starting at byte index, or an empty string if index lands in the
// middle of a sequence.
func (vm *VM) StringCodePointAt(s *ObjString, index int) Value {
	if index >= len(s.Value) {
		panic(errors.NewFault(errors.AssertionFault,
			"code point index %d out of bounds", index))
	}

	first := s.Value[index]

	// The first byte's high bits tell us how many bytes are in the
	// sequence. A 10xxxxxx byte is the middle of a sequence.
	var numBytes int
	switch {
	case first&0xc0 == 0x80:
		numBytes = 0
	case first&0xf8 == 0xf0:
		numBytes = 4
	case first&0xf0 == 0xe0:
		numBytes = 3
	case first&0xe0 == 0xc0:
		numBytes = 2
	default:
		numBytes = 1
	}

	end := index + numBytes
	if end > len(s.Value) {
		end = len(s.Value)
	}
	return vm.NewString(string(s.Value[index:end]))
}

// StringFind returns the byte index of the first occurrence of needle in
// haystack, or NotFound. Uses Boyer-Moore-Horspool.
func StringFind(haystack, needle *ObjString) uint32 {
	// An empty needle is always found.
	if len(needle.Value) == 0 {
		return 0
	}

	// A needle longer than the haystack can't be found.
	if len(needle.Value) > len(haystack.Value) {
		return NotFound
	}

	needleEnd := len(needle.Value) - 1

	// Pre-calculate the shift table: for each byte value, how far the
	// search window can advance when a match fails with that byte under
	// the window's last position. Bytes not in the needle at all allow a
	// whole needle-width skip.
	var shift [256]int
	for i := range shift {
		shift[i] = len(needle.Value)
	}
	for i := 0; i < needleEnd; i++ {
		shift[needle.Value[i]] = needleEnd - i
	}

	// Slide the needle across the haystack, comparing the window's last
	// byte first.
	lastByte := needle.Value[needleEnd]
	rangeEnd := len(haystack.Value) - len(needle.Value)

	for index := 0; index <= rangeEnd; {
		c := haystack.Value[index+needleEnd]
		if lastByte == c &&
			string(haystack.Value[index:index+needleEnd]) == string(needle.Value[:needleEnd]) {
			return uint32(index)
		}

		index += shift[c]
	}

	return NotFound
}

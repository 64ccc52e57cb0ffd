package utils

import "testing"

func TestUtf8Encode(t *testing.T) {
	tests := []struct {
		name      string
		codePoint int
		expected  []byte
	}{
		{"ascii", 0x24, []byte{0x24}},
		{"two byte", 0xA2, []byte{0xC2, 0xA2}},
		{"three byte", 0x20AC, []byte{0xE2, 0x82, 0xAC}},
		{"four byte", 0x1F600, []byte{0xF0, 0x9F, 0x98, 0x80}},
		{"nul", 0x00, []byte{0x00}},
		{"max", 0x10FFFF, []byte{0xF4, 0x8F, 0xBF, 0xBF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Utf8NumBytes(tt.codePoint); got != len(tt.expected) {
				t.Fatalf("Utf8NumBytes(%#x) = %d, want %d",
					tt.codePoint, got, len(tt.expected))
			}

			buf := make([]byte, 4)
			n := Utf8Encode(tt.codePoint, buf)
			if n != len(tt.expected) {
				t.Fatalf("Utf8Encode(%#x) wrote %d bytes, want %d",
					tt.codePoint, n, len(tt.expected))
			}
			for i, b := range tt.expected {
				if buf[i] != b {
					t.Errorf("byte %d = %#x, want %#x", i, buf[i], b)
				}
			}

			if got := Utf8Decode(buf[:n]); got != tt.codePoint {
				t.Errorf("round trip = %#x, want %#x", got, tt.codePoint)
			}
		})
	}
}

func TestUtf8RoundTrip(t *testing.T) {
	// Exhaustive over a stride of the whole range, plus the width
	// boundaries.
	boundaries := []int{0, 0x7F, 0x80, 0x7FF, 0x800, 0xFFFF, 0x10000, 0x10FFFF}
	buf := make([]byte, 4)

	check := func(cp int) {
		n := Utf8Encode(cp, buf)
		if n != Utf8NumBytes(cp) {
			t.Fatalf("encoded length of %#x = %d, want %d", cp, n, Utf8NumBytes(cp))
		}
		if got := Utf8Decode(buf[:n]); got != cp {
			t.Fatalf("Utf8Decode(Utf8Encode(%#x)) = %#x", cp, got)
		}
	}

	for _, cp := range boundaries {
		check(cp)
	}
	for cp := 0; cp <= 0x10FFFF; cp += 37 {
		check(cp)
	}
}

func TestUtf8NumBytesOutOfRange(t *testing.T) {
	if got := Utf8NumBytes(0x110000); got != 0 {
		t.Errorf("Utf8NumBytes(0x110000) = %d, want 0", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic for negative code point")
		}
	}()
	Utf8NumBytes(-1)
}

func TestUtf8DecodeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		bytes []byte
	}{
		{"empty", nil},
		{"lone continuation", []byte{0x80}},
		{"invalid leading byte", []byte{0xFF}},
		{"truncated two byte", []byte{0xC2}},
		{"truncated three byte", []byte{0xE2, 0x82}},
		{"truncated four byte", []byte{0xF0, 0x9F, 0x98}},
		{"bad continuation", []byte{0xC2, 0x24}},
		{"continuation is leading", []byte{0xE2, 0xC2, 0xAC}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Utf8Decode(tt.bytes); got != -1 {
				t.Errorf("Utf8Decode(%#v) = %d, want -1", tt.bytes, got)
			}
		})
	}
}

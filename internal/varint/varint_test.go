package varint

import (
	"bytes"
	"testing"
)

func TestPackUnpackUint(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 300, 1 << 20, 1<<64 - 1}
	for _, v := range cases {
		buf := PackUint(nil, v)
		got, rest, ok := UnpackUint(buf)
		if !ok {
			t.Fatalf("UnpackUint(%d): decoding failed", v)
		}
		if got != v {
			t.Fatalf("UnpackUint(%d): got %d", v, got)
		}
		if len(rest) != 0 {
			t.Fatalf("UnpackUint(%d): leftover bytes %v", v, rest)
		}
	}
}

func TestUnpackUintTruncated(t *testing.T) {
	if _, _, ok := UnpackUint(nil); ok {
		t.Fatalf("expected failure decoding empty input")
	}
}

func TestPackUnpackString(t *testing.T) {
	cases := [][]byte{nil, []byte(""), []byte("a"), []byte("hello world"), bytes.Repeat([]byte{0xFF}, 300)}
	for _, s := range cases {
		buf := PackString(nil, s)
		got, rest, ok := UnpackString(buf)
		if !ok {
			t.Fatalf("UnpackString(%q): decoding failed", s)
		}
		if !bytes.Equal(got, s) && !(len(got) == 0 && len(s) == 0) {
			t.Fatalf("UnpackString(%q): got %q", s, got)
		}
		if len(rest) != 0 {
			t.Fatalf("UnpackString(%q): leftover bytes %v", s, rest)
		}
	}
}

func TestPackStringConcatenation(t *testing.T) {
	var buf []byte
	buf = PackString(buf, []byte("first"))
	buf = PackString(buf, []byte("second"))

	first, rest, ok := UnpackString(buf)
	if !ok || string(first) != "first" {
		t.Fatalf("first string: got %q ok=%v", first, ok)
	}
	second, rest, ok := UnpackString(rest)
	if !ok || string(second) != "second" {
		t.Fatalf("second string: got %q ok=%v", second, ok)
	}
	if len(rest) != 0 {
		t.Fatalf("leftover bytes %v", rest)
	}
}

func TestPackUnpackUintPreservingSort(t *testing.T) {
	values := []uint64{0, 1, 255, 256, 1 << 40, 1<<64 - 1}
	for _, v := range values {
		buf := PackUintPreservingSort(nil, v)
		if len(buf) != 8 {
			t.Fatalf("PackUintPreservingSort(%d): want 8 bytes, got %d", v, len(buf))
		}
		got, rest, ok := UnpackUintPreservingSort(buf)
		if !ok || got != v {
			t.Fatalf("UnpackUintPreservingSort(%d): got %d ok=%v", v, got, ok)
		}
		if len(rest) != 0 {
			t.Fatalf("leftover bytes %v", rest)
		}
	}
}

func TestPreservingSortOrdersByteWise(t *testing.T) {
	values := []uint64{0, 1, 2, 255, 256, 65535, 65536, 1 << 40}
	for i := 1; i < len(values); i++ {
		a := PackUintPreservingSort(nil, values[i-1])
		b := PackUintPreservingSort(nil, values[i])
		if bytes.Compare(a, b) >= 0 {
			t.Fatalf("expected encoding of %d to sort before %d", values[i-1], values[i])
		}
	}
}

func TestUnpackUintPreservingSortTruncated(t *testing.T) {
	if _, _, ok := UnpackUintPreservingSort([]byte{1, 2, 3}); ok {
		t.Fatalf("expected failure decoding truncated input")
	}
}

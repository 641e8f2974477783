// Package varint provides the primitive byte encodings the value storage
// package builds keys and chunk tags out of: a self-terminating variable
// length unsigned integer (delta-coded posting-list style, the same
// encoding the indexing layer uses for postings lists), a length-prefixed
// byte string built on top of it, and a fixed-width, sort-preserving
// unsigned integer encoding for use inside keys.
package varint

import "encoding/binary"

// PackUint appends the variable-length encoding of v to dst and returns the
// extended slice. This is the same LEB128-style encoding
// encoding/binary.PutUvarint produces, used directly rather than
// reimplemented.
func PackUint(dst []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(dst, tmp[:n]...)
}

// UnpackUint decodes a value written by PackUint from the front of p,
// returning the value, the remaining bytes, and whether decoding succeeded.
func UnpackUint(p []byte) (value uint64, rest []byte, ok bool) {
	v, n := binary.Uvarint(p)
	if n <= 0 {
		return 0, p, false
	}
	return v, p[n:], true
}

// PackString appends a length-prefixed copy of s to dst.
func PackString(dst []byte, s []byte) []byte {
	dst = PackUint(dst, uint64(len(s)))
	return append(dst, s...)
}

// UnpackString decodes a value written by PackString from the front of p.
func UnpackString(p []byte) (value []byte, rest []byte, ok bool) {
	n, rest, ok := UnpackUint(p)
	if !ok || uint64(len(rest)) < n {
		return nil, p, false
	}
	return rest[:n], rest[n:], true
}

// PackUintPreservingSort appends the fixed-width, big-endian encoding of v
// to dst. Unlike PackUint, byte-wise comparison of two such encodings
// orders them the same as the numeric values they represent, which is
// required wherever the encoded bytes become part of a table key that must
// sort in docid or slot order.
func PackUintPreservingSort(dst []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(dst, tmp[:]...)
}

// UnpackUintPreservingSort decodes a value written by
// PackUintPreservingSort from the front of p.
func UnpackUintPreservingSort(p []byte) (value uint64, rest []byte, ok bool) {
	if len(p) < 8 {
		return 0, p, false
	}
	return binary.BigEndian.Uint64(p[:8]), p[8:], true
}

package valuestore

import (
	"fmt"

	"github.com/oarkflow/valuestore/internal/varint"
)

// ChunkReader is a finite, forward-only, non-restartable lazy sequence of
// (docid, value) pairs decoded from one chunk's tag bytes. It never
// materializes values it skips past, so Skip is proportional to the bytes
// it walks rather than the values it copies.
type ChunkReader struct {
	tag []byte
	pos int

	did   Did
	value []byte

	exhausted bool
}

// NewChunkReader assigns the reader to the first entry of a chunk whose tag
// is buf and whose key's first docid is firstDid.
func NewChunkReader(buf []byte, firstDid Did) (*ChunkReader, error) {
	r := &ChunkReader{tag: buf}
	if err := r.assign(firstDid); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ChunkReader) assign(firstDid Did) error {
	if len(r.tag) == 0 {
		r.exhausted = true
		return nil
	}
	value, rest, ok := varint.UnpackString(r.tag)
	if !ok {
		return fmt.Errorf("chunk reader: leading value string: %w", ErrCorrupt)
	}
	r.did = firstDid
	r.value = value
	r.pos = len(r.tag) - len(rest)
	return nil
}

// AtEnd reports whether the reader has been exhausted.
func (r *ChunkReader) AtEnd() bool { return r.exhausted }

// GetDocid returns the docid at the current position. Must not be called
// when AtEnd is true.
func (r *ChunkReader) GetDocid() Did { return r.did }

// GetValue returns the value at the current position. Must not be called
// when AtEnd is true.
func (r *ChunkReader) GetValue() []byte { return r.value }

// Next advances to the following (docid, value) pair, marking the reader
// exhausted if there is none.
func (r *ChunkReader) Next() error {
	if r.exhausted {
		return nil
	}
	rest := r.tag[r.pos:]
	if len(rest) == 0 {
		r.exhausted = true
		return nil
	}
	delta, rest, ok := varint.UnpackUint(rest)
	if !ok {
		return fmt.Errorf("chunk reader: delta at offset %d: %w", r.pos, ErrCorrupt)
	}
	value, rest, ok := varint.UnpackString(rest)
	if !ok {
		return fmt.Errorf("chunk reader: value string at offset %d: %w", r.pos, ErrCorrupt)
	}
	r.did = r.did + Did(delta) + 1
	r.value = value
	r.pos = len(r.tag) - len(rest)
	return nil
}

// SkipTo advances the reader until its current docid is >= target, or it
// is exhausted. It is a no-op if target <= the current docid. While
// skipping, values are only length-scanned, never copied, until the final
// landing entry is reached.
func (r *ChunkReader) SkipTo(target Did) error {
	if r.exhausted || target <= r.did {
		return nil
	}
	for {
		rest := r.tag[r.pos:]
		if len(rest) == 0 {
			r.exhausted = true
			return nil
		}
		delta, afterDelta, ok := varint.UnpackUint(rest)
		if !ok {
			return fmt.Errorf("chunk reader: delta at offset %d: %w", r.pos, ErrCorrupt)
		}
		nextDid := r.did + Did(delta) + 1
		strLen, afterLen, ok := varint.UnpackUint(afterDelta)
		if !ok {
			return fmt.Errorf("chunk reader: value length at offset %d: %w", r.pos, ErrCorrupt)
		}
		if uint64(len(afterLen)) < strLen {
			return fmt.Errorf("chunk reader: value truncated at offset %d: %w", r.pos, ErrCorrupt)
		}
		if nextDid >= target {
			value := afterLen[:strLen]
			r.did = nextDid
			r.value = value
			r.pos = len(r.tag) - len(afterLen) + int(strLen)
			return nil
		}
		r.did = nextDid
		r.pos = len(r.tag) - len(afterLen) + int(strLen)
	}
}

package engine

import "errors"

// ErrCorruptSegment is returned when an SSTable segment's on-disk bytes
// (index, footer, or a record) fail to decode or fail their checksum.
var ErrCorruptSegment = errors.New("engine: corrupt segment")

// errCorruptSegment is the internal alias used throughout this package so
// call sites read naturally; it is the same sentinel as ErrCorruptSegment.
var errCorruptSegment = ErrCorruptSegment

// ErrKeyNotFound names a missing key. Engine.Get does not return it: a key
// with no live entry is reported as (nil, false, nil).
var ErrKeyNotFound = errors.New("engine: key not found")

// ErrClosed is returned by operations on a closed Engine.
var ErrClosed = errors.New("engine: closed")

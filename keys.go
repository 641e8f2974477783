package valuestore

import "github.com/oarkflow/valuestore/internal/varint"

// Key prefixes for the three key families (value chunks, slot stats, slot
// docid bitmaps) that live side by side in the postlist table. All start
// with 0x00 so they never collide with a plain user key space sharing the
// same table; the second byte disambiguates the families.
var (
	valueChunkKeyPrefix  = []byte{0x00, 0xD8}
	valueStatsKeyPrefix  = []byte{0x00, 0xD9}
	valueBitmapKeyPrefix = []byte{0x00, 0xDA}
)

// ValueChunkKey builds the key under which a slot's chunk starting at
// firstDid is stored: 0x00 0xD8, pack_uint(slot), then
// pack_uint_preserving_sort(first_did). The sort-preserving encoding of
// first_did guarantees an ascending table scan restricted to one slot's
// keys yields chunks in ascending docid order.
func ValueChunkKey(slot Slot, firstDid Did) []byte {
	key := append([]byte(nil), valueChunkKeyPrefix...)
	key = varint.PackUint(key, uint64(slot))
	key = varint.PackUintPreservingSort(key, uint64(firstDid))
	return key
}

// ValueStatsKey builds the key under which a slot's aggregate stats are
// stored.
func ValueStatsKey(slot Slot) []byte {
	key := append([]byte(nil), valueStatsKeyPrefix...)
	key = varint.PackUint(key, uint64(slot))
	return key
}

// ValueBitmapKey builds the key under which a slot's docid-presence bitmap
// is stored: the roaring-encoded set of docids that currently have a live
// value in that slot.
func ValueBitmapKey(slot Slot) []byte {
	key := append([]byte(nil), valueBitmapKeyPrefix...)
	key = varint.PackUint(key, uint64(slot))
	return key
}

// isValueChunkKey reports whether key carries the value-chunk prefix and,
// if so, returns the remainder after the prefix.
func isValueChunkKey(key []byte) ([]byte, bool) {
	if len(key) < len(valueChunkKeyPrefix) {
		return nil, false
	}
	for i, b := range valueChunkKeyPrefix {
		if key[i] != b {
			return nil, false
		}
	}
	return key[len(valueChunkKeyPrefix):], true
}

// DocidFromKey decodes key as a candidate value-chunk key for slot and
// returns its first-did, or 0 if key is not a value-chunk key for that
// exact slot (a different prefix, a different slot, or malformed bytes
// preceding the slot number). A key that does carry the value-chunk prefix
// and the right slot number but has a malformed first-did suffix is
// reported as corrupt, since that combination should never occur short of
// on-disk damage.
func DocidFromKey(slot Slot, key []byte) (Did, error) {
	rest, ok := isValueChunkKey(key)
	if !ok {
		return 0, nil
	}
	gotSlot, rest, ok := varint.UnpackUint(rest)
	if !ok {
		return 0, nil
	}
	if Slot(gotSlot) != slot {
		return 0, nil
	}
	firstDid, _, ok := varint.UnpackUintPreservingSort(rest)
	if !ok {
		return 0, ErrCorrupt
	}
	return Did(firstDid), nil
}

// TermlistKey builds the key under which a document's encoded slot-set
// blob is stored in the termlist table: the sort-preserving encoding of
// its docid, so the table's key order matches docid order (useful for bulk
// termlist scans even though this package never relies on that ordering
// itself).
func TermlistKey(did Did) []byte {
	return varint.PackUintPreservingSort(nil, uint64(did))
}

// decodeChunkKeySlot extracts the slot number from an arbitrary value-chunk
// key, used when a cursor lands on a key whose slot is not yet known to the
// caller (e.g. scanning to find the next chunk of any slot).
func decodeChunkKeySlot(key []byte) (Slot, []byte, bool) {
	rest, ok := isValueChunkKey(key)
	if !ok {
		return 0, nil, false
	}
	slot, rest, ok := varint.UnpackUint(rest)
	if !ok {
		return 0, nil, false
	}
	return Slot(slot), rest, true
}

package valuestore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/oarkflow/valuestore/internal/varint"
)

// GetValueStats reads slot's aggregate stats from table's stats key. A
// missing key decodes to a zero ValueStats (freq 0, empty bounds), not an
// error.
func GetValueStats(table Table, slot Slot) (ValueStats, error) {
	tag, found, err := table.GetExactEntry(ValueStatsKey(slot))
	if err != nil {
		return ValueStats{}, err
	}
	if !found {
		return ValueStats{}, nil
	}
	return decodeValueStats(tag)
}

func decodeValueStats(tag []byte) (ValueStats, error) {
	freq64, n := binary.Uvarint(tag)
	if n == 0 {
		return ValueStats{}, fmt.Errorf("value stats: freq truncated: %w", ErrCorrupt)
	}
	if n < 0 {
		return ValueStats{}, fmt.Errorf("value stats: freq overflows 64 bits: %w", ErrRange)
	}
	if freq64 > math.MaxUint32 {
		return ValueStats{}, fmt.Errorf("value stats: freq %d exceeds uint32: %w", freq64, ErrRange)
	}

	lower, rest, ok := varint.UnpackString(tag[n:])
	if !ok {
		return ValueStats{}, fmt.Errorf("value stats: lower_bound: %w", ErrCorrupt)
	}
	upper := lower
	if len(rest) > 0 {
		upper = rest
	}

	return ValueStats{
		Freq:       uint32(freq64),
		LowerBound: append([]byte(nil), lower...),
		UpperBound: append([]byte(nil), upper...),
	}, nil
}

// SetValueStats writes back a batch of per-slot stats: an entry with
// freq == 0 is deleted rather than written, since freq 0 uniquely
// determines empty bounds and there is nothing left worth storing.
func SetValueStats(table Table, stats map[Slot]ValueStats) error {
	for slot, s := range stats {
		key := ValueStatsKey(slot)
		if s.Freq == 0 {
			if err := table.Del(key); err != nil {
				return err
			}
			continue
		}
		tag := varint.PackUint(nil, uint64(s.Freq))
		tag = varint.PackString(tag, s.LowerBound)
		if !bytes.Equal(s.UpperBound, s.LowerBound) {
			tag = append(tag, s.UpperBound...)
		}
		if err := table.Add(key, tag); err != nil {
			return err
		}
	}
	return nil
}

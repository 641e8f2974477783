package valuestore

import (
	"fmt"

	"github.com/oarkflow/valuestore/internal/bitstream"
	"github.com/oarkflow/valuestore/internal/varint"
)

// EncodeSlotBlob encodes the set of slots (must be supplied in ascending
// order, duplicate-free) a document populates into the termlist-table
// payload described in §6/§4.D. It always produces the variable form; the
// legacy 7-bit bitmap form is decode-only. An empty slots set encodes to
// the single zero header byte meaning "no value slots".
func EncodeSlotBlob(slots []Slot) []byte {
	if len(slots) == 0 {
		return []byte{0}
	}
	firstSlot := slots[0]
	lastSlot := slots[len(slots)-1]
	count := len(slots)

	payload := varint.PackUint(nil, uint64(lastSlot))
	if count > 1 {
		bw := bitstream.NewBitWriter(payload)
		bw.Encode(uint64(firstSlot), uint64(lastSlot))
		bw.Encode(uint64(count-2), uint64(lastSlot-firstSlot))
		vec := make([]uint32, count)
		for i, s := range slots {
			vec[i] = uint32(s)
		}
		bw.EncodeInterpolative(vec, 0, count-1)
		payload = bw.Freeze()
	}
	return wrapVariableForm(payload)
}

func wrapVariableForm(payload []byte) []byte {
	size := uint64(len(payload))
	var out []byte
	if size < 0x80 {
		out = append(out, byte(0x80|size))
	} else {
		out = append(out, 0x80)
		out = varint.PackUint(out, size)
	}
	return append(out, payload...)
}

// DecodeSlotBlob decodes a termlist-table entry into the ascending list of
// slots it names. It accepts both the bitmap and variable forms, since
// legacy entries may hold the bitmap form even though this package never
// writes it. A nil or header-zero blob decodes to an empty, nil slice.
func DecodeSlotBlob(blob []byte) ([]Slot, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	header := blob[0]
	if header == 0 {
		return nil, nil
	}
	if header&0x80 == 0 {
		return decodeBitmapForm(header), nil
	}
	return decodeVariableForm(header, blob[1:])
}

func decodeBitmapForm(header byte) []Slot {
	var slots []Slot
	for i := 0; i < 7; i++ {
		if header&(1<<uint(i)) != 0 {
			slots = append(slots, Slot(i))
		}
	}
	return slots
}

func decodeVariableForm(header byte, rest []byte) ([]Slot, error) {
	encSize := uint64(header & 0x7F)
	if encSize == 0 {
		var ok bool
		encSize, rest, ok = varint.UnpackUint(rest)
		if !ok {
			return nil, fmt.Errorf("slot blob: size prefix: %w", ErrCorrupt)
		}
	}
	if uint64(len(rest)) < encSize {
		return nil, fmt.Errorf("slot blob: truncated payload: %w", ErrCorrupt)
	}
	payload := rest[:encSize]

	lastSlot64, remainder, ok := varint.UnpackUint(payload)
	if !ok {
		return nil, fmt.Errorf("slot blob: last_slot: %w", ErrCorrupt)
	}
	lastSlot := Slot(lastSlot64)
	if len(remainder) == 0 {
		return []Slot{lastSlot}, nil
	}

	br := bitstream.NewBitReader(remainder, 0)
	firstSlot := Slot(br.Decode(uint64(lastSlot)))
	if firstSlot > lastSlot {
		return nil, fmt.Errorf("slot blob: first_slot exceeds last_slot: %w", ErrCorrupt)
	}
	slotCount := int(br.Decode(uint64(lastSlot-firstSlot))) + 2

	br.DecodeInterpolative(0, slotCount-1, uint32(firstSlot), uint32(lastSlot))
	slots := make([]Slot, 0, slotCount)
	slots = append(slots, firstSlot)
	cur := firstSlot
	for cur != lastSlot {
		next := Slot(br.DecodeInterpolativeNext())
		slots = append(slots, next)
		cur = next
	}
	return slots, nil
}

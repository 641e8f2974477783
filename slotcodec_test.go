package valuestore

import (
	"reflect"
	"testing"
)

func TestSlotBlobRoundTrip(t *testing.T) {
	cases := [][]Slot{
		nil,
		{5},
		{0, 1, 2},
		{1, 3, 7, 20},
		{10, 4000, 4001, 100000},
	}
	for _, slots := range cases {
		blob := EncodeSlotBlob(slots)
		got, err := DecodeSlotBlob(blob)
		if err != nil {
			t.Fatalf("DecodeSlotBlob(%v): %v", slots, err)
		}
		if len(slots) == 0 && len(got) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, slots) {
			t.Fatalf("round trip %v: got %v", slots, got)
		}
	}
}

func TestEncodeEmptySlotBlob(t *testing.T) {
	blob := EncodeSlotBlob(nil)
	if len(blob) != 1 || blob[0] != 0 {
		t.Fatalf("expected single zero header byte, got %v", blob)
	}
}

func TestDecodeSlotBlobNilInput(t *testing.T) {
	got, err := DecodeSlotBlob(nil)
	if err != nil || got != nil {
		t.Fatalf("DecodeSlotBlob(nil): got %v, %v", got, err)
	}
}

func TestDecodeSlotBlobCorrupt(t *testing.T) {
	// A variable-form header claiming a payload longer than what follows.
	blob := []byte{0x80, 0x7F}
	if _, err := DecodeSlotBlob(blob); err == nil {
		t.Fatalf("expected an error decoding a truncated variable-form blob")
	}
}

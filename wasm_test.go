package wasmmarshal

import "testing"

func TestPtr(t *testing.T) {
	if !Ptr(0).IsNull() {
		t.Error("0 must be null")
	}
	if Ptr(8).IsNull() {
		t.Error("8 must not be null")
	}
	if got := Ptr(0x10).String(); got != "0x00000010" {
		t.Errorf("got %q", got)
	}
}

func TestDescriptor_Pack(t *testing.T) {
	tests := []Descriptor{
		{},
		{Ptr: 1024, Len: 3},
		{Ptr: 0xFFFFFFFF, Len: 0xFFFFFFFF},
		{Ptr: 8, Len: 0},
	}
	for _, d := range tests {
		packed := d.Pack()
		if uint32(packed>>32) != uint32(d.Ptr) || uint32(packed) != d.Len {
			t.Errorf("%s: bad layout %#x", d, packed)
		}
		if got := UnpackDescriptor(packed); got != d {
			t.Errorf("%s: unpacked to %s", d, got)
		}
	}
	if got := (Descriptor{Ptr: 16, Len: 2}).String(); got != "{ptr: 0x00000010, len: 2}" {
		t.Errorf("got %q", got)
	}
}

package marshal

import (
	"net/url"
	"testing"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		m    Describer
		want string
	}{
		{Copy[int32]{}, "s32"},
		{Copy[uint64]{}, "u64"},
		{Copy[float32]{}, "f32"},
		{Unit{}, "_"},
		{Bool{}, "bool"},
		{String{}, "string"},
		{Str{}, "string"},
		{Path{}, "string"},
		{Vec[uint8]{}, "list<u8>"},
		{VecRef[int16]{}, "list<s16>"},
		{BoxMarshaler[counter]{}, "own<box-marshal-counter>"},
		{BoxRef[counter]{}, "borrow<box-marshal-counter>"},
		{ArcMarshaler[*dropper]{}, "own<arc-marshal-dropper>"},
		{ArcRef[counter]{}, "borrow<arc-marshal-counter>"},
		{Option[*url.URL, URL]{}, "option<string>"},
	}
	for _, tt := range tests {
		if got := FormatWIT(tt.m.WIT()); got != tt.want {
			t.Errorf("%T: got %q, want %q", tt.m, got, tt.want)
		}
	}
}

func TestKebab(t *testing.T) {
	tests := map[string]string{
		"Box[main.Session]":   "box-main-session",
		"Arc[*store.Handle]":  "arc-store-handle",
		"Arc[map[string]int]": "arc-map-string-int",
	}
	for in, want := range tests {
		if got := kebab(in); got != want {
			t.Errorf("kebab(%q) = %q, want %q", in, got, want)
		}
	}
}

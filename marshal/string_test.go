package marshal

import (
	"path/filepath"
	"strings"
	"testing"
	"unsafe"

	"github.com/wippyai/wasm-marshal/errors"
	"github.com/wippyai/wasm-marshal/internal/memtest"
)

var texts = []string{
	"",
	"hello",
	"héllo wörld",
	"日本語テキスト",
	"emoji 🦀 and tabs\t\n",
	strings.Repeat("x", 4096),
}

func TestString_RoundTripOwning(t *testing.T) {
	for _, s := range texts {
		env := newTestEnv(t)

		p, err := String{}.ToForeign(env.Env, s)
		if err != nil {
			t.Fatalf("ToForeign(%q): %v", s, err)
		}
		if p == 0 {
			t.Fatal("expected non-null address")
		}

		got, err := String{}.FromForeign(env.Env, p)
		if err != nil {
			t.Fatalf("FromForeign: %v", err)
		}
		if got != s {
			t.Errorf("round trip: got %q, want %q", got, s)
		}
		env.verify(t)
	}
}

func TestString_RoundTripBorrowing(t *testing.T) {
	for _, s := range texts {
		env := newTestEnv(t)

		p, err := String{}.ToForeign(env.Env, s)
		if err != nil {
			t.Fatalf("ToForeign(%q): %v", s, err)
		}

		got, err := Str{}.FromForeign(env.Env, p)
		if err != nil {
			t.Fatalf("Str.FromForeign: %v", err)
		}
		if got != s {
			t.Errorf("borrow: got %q, want %q", got, s)
		}

		if err := (String{}).Release(env.Env, p); err != nil {
			t.Fatalf("Release: %v", err)
		}
		env.verify(t)
	}
}

func TestString_EmbeddedNulAllocatesNothing(t *testing.T) {
	env := guardEnv(t)

	_, err := String{}.ToForeign(env, "ab\x00cd")
	if !errors.Is(err, errors.ErrEncoding) {
		t.Fatalf("expected encoding error, got %v", err)
	}
	var e *errors.Error
	if !errors.As(err, &e) || e.Value != 2 {
		t.Fatalf("expected offset 2 in error, got %#v", err)
	}
	if !strings.Contains(err.Error(), "position: 2") {
		t.Errorf("message should name the position: %q", err.Error())
	}
}

func TestString_AllocationFailure(t *testing.T) {
	env := newTestEnv(t)
	env.heap.Alloc.Fail = true

	_, err := String{}.ToForeign(env.Env, "hi")
	if !errors.Is(err, errors.ErrAllocation) {
		t.Fatalf("expected allocation error, got %v", err)
	}
	var e *errors.Error
	if !errors.As(err, &e) || e.Cause == nil {
		t.Fatal("allocator failure must be wrapped, not hidden")
	}
	env.verify(t)
}

func TestStr_LossyDecode(t *testing.T) {
	mem := memtest.NewLinear(256)
	env := &Env{Memory: mem}

	_ = mem.Write(16, []byte("ab\xffcd\x00"))
	txt, err := Str{}.Lossy(env, 16)
	if err != nil {
		t.Fatalf("Lossy: %v", err)
	}
	if txt.Value != "ab\uFFFDcd" {
		t.Errorf("got %q", txt.Value)
	}
	if txt.Borrowed {
		t.Error("substituted text must be an owned copy")
	}

	_ = mem.Write(64, []byte("valid\x00"))
	txt, err = Str{}.Lossy(env, 64)
	if err != nil {
		t.Fatalf("Lossy: %v", err)
	}
	if txt.Value != "valid" || !txt.Borrowed {
		t.Fatalf("got %+v, want borrowed %q", txt, "valid")
	}
	if unsafe.StringData(txt.Value) != &mem.Bytes()[64] {
		t.Error("borrowed text should alias linear memory")
	}
}

func TestStr_Unterminated(t *testing.T) {
	mem := memtest.NewLinear(32)
	for i := range mem.Bytes() {
		mem.Bytes()[i] = 'a'
	}
	env := &Env{Memory: mem}

	_, err := Str{}.FromForeign(env, 8)
	if !errors.Is(err, errors.ErrInvalidData) {
		t.Fatalf("expected invalid data, got %v", err)
	}

	_, err = Str{}.FromForeign(env, 64)
	if !errors.Is(err, errors.ErrOutOfBounds) {
		t.Fatalf("expected out of bounds, got %v", err)
	}
}

func TestString_ReleaseFreesExactSize(t *testing.T) {
	env := newTestEnv(t)

	p, err := String{}.ToForeign(env.Env, "twelve bytes")
	if err != nil {
		t.Fatal(err)
	}
	live := env.tracker.Live()
	if len(live) != 1 || live[0].Size != 13 || live[0].Align != 1 {
		t.Fatalf("unexpected allocation %+v", live)
	}
	if err := (String{}).Release(env.Env, p); err != nil {
		t.Fatal(err)
	}
	if st := env.tracker.Stats(); st.Allocs != 1 || st.Frees != 1 || st.Live != 0 {
		t.Fatalf("unexpected stats %v", st)
	}
	env.verify(t)
}

func TestPath_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	native := filepath.Join("var", "lib", "data.db")

	p, err := Path{}.ToForeign(env.Env, native)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := env.heap.Read(uint32(p), uint32(len(native)))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "var/lib/data.db" {
		t.Errorf("guest form: got %q", raw)
	}

	ref, err := PathRef{}.FromForeign(env.Env, p)
	if err != nil || ref != native {
		t.Fatalf("PathRef: got %q, %v", ref, err)
	}
	got, err := Path{}.FromForeign(env.Env, p)
	if err != nil || got != native {
		t.Fatalf("Path: got %q, %v", got, err)
	}
	env.verify(t)

	_, err = Path{}.ToForeign(guardEnv(t), "bad\x00path")
	if !errors.Is(err, errors.ErrEncoding) {
		t.Fatalf("expected encoding error, got %v", err)
	}
}

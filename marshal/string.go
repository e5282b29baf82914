package marshal

import (
	"bytes"
	"math"
	"strings"
	"unicode/utf8"
	"unsafe"

	"golang.org/x/text/encoding/unicode"

	wasmmarshal "github.com/wippyai/wasm-marshal"
	"github.com/wippyai/wasm-marshal/errors"
)

// String marshals Go strings as NUL-terminated buffers in guest memory.
//
// ToForeign allocates and hands the buffer to the guest; the guest must
// return it through Release or FromForeign, never both. FromForeign
// reclaims: it copies the text out and frees the buffer.
type String struct{}

func (String) ToForeign(env *Env, s string) (Ptr, error) {
	trace("to_foreign", "String", "string", 0)
	if i := strings.IndexByte(s, 0); i >= 0 {
		return 0, errors.EmbeddedNul(errors.PhaseOutbound, "string", i)
	}
	return writeCString(env, errors.PhaseOutbound, s)
}

func (String) FromForeign(env *Env, p Ptr) (string, error) {
	trace("from_foreign", "String", "string", p)
	if IsAbsent(p) {
		return "", NullPointerError(errors.PhaseInbound, "string")
	}
	raw, _, err := readCString(env, errors.PhaseInbound, p)
	if err != nil {
		return "", err
	}
	text, _ := decodeLossy(raw)
	text = strings.Clone(text)
	if err := freeCString(env, errors.PhaseInbound, p, len(raw)); err != nil {
		return "", err
	}
	return text, nil
}

// Release frees a buffer produced by ToForeign.
func (String) Release(env *Env, p Ptr) error {
	trace("release", "String", "string", p)
	if IsAbsent(p) {
		return NullPointerError(errors.PhaseRelease, "string")
	}
	raw, _, err := readCString(env, errors.PhaseRelease, p)
	if err != nil {
		return err
	}
	return freeCString(env, errors.PhaseRelease, p, len(raw))
}

func (String) ForeignDefault() Ptr {
	return 0
}

// Text is a decoded foreign string. Borrowed is true when Value aliases
// guest memory and is only valid for the current call.
type Text struct {
	Value    string
	Borrowed bool
}

// Str borrows a NUL-terminated string the guest still owns. Malformed
// UTF-8 is replaced with U+FFFD rather than rejected.
type Str struct{}

func (m Str) FromForeign(env *Env, p Ptr) (string, error) {
	t, err := m.Lossy(env, p)
	return t.Value, err
}

// Lossy decodes like FromForeign and reports whether the result borrows
// guest memory (no substitution happened) or is an owned copy.
func (Str) Lossy(env *Env, p Ptr) (Text, error) {
	trace("from_foreign", "Str", "string", p)
	if IsAbsent(p) {
		return Text{}, NullPointerError(errors.PhaseInbound, "string")
	}
	raw, aliased, err := readCString(env, errors.PhaseInbound, p)
	if err != nil {
		return Text{}, err
	}
	value, unchanged := decodeLossy(raw)
	return Text{Value: value, Borrowed: unchanged && aliased && len(raw) > 0}, nil
}

func (Str) ForeignDefault() Ptr {
	return 0
}

// writeCString allocates len(s)+1 bytes and writes s plus a terminator.
// On failure nothing stays allocated.
func writeCString(env *Env, phase errors.Phase, s string) (Ptr, error) {
	if uint64(len(s)) >= math.MaxUint32 {
		return 0, errors.InvalidData(phase, "string too large for 32-bit address space")
	}
	mem, err := env.memory(phase)
	if err != nil {
		return 0, err
	}
	alloc, err := env.allocator(phase)
	if err != nil {
		return 0, err
	}

	size := uint32(len(s)) + 1
	ptr, err := alloc.Alloc(size, 1)
	if err != nil {
		return 0, errors.AllocationFailed(phase, size, 1, err)
	}
	if ptr == 0 {
		return 0, errors.AllocationFailed(phase, size, 1, nil)
	}

	if err := mem.Write(ptr, unsafe.Slice(unsafe.StringData(s), len(s))); err != nil {
		alloc.Free(ptr, size, 1)
		return 0, errors.OutOfBounds(phase, ptr, size, err)
	}
	if err := mem.WriteU8(ptr+size-1, 0); err != nil {
		alloc.Free(ptr, size, 1)
		return 0, errors.OutOfBounds(phase, ptr, size, err)
	}
	return Ptr(ptr), nil
}

func freeCString(env *Env, phase errors.Phase, p Ptr, n int) error {
	alloc, err := env.allocator(phase)
	if err != nil {
		return err
	}
	alloc.Free(uint32(p), uint32(n)+1, 1)
	return nil
}

// readCString returns the bytes before the terminator. When the memory can
// report its size the result aliases linear memory (aliased=true).
func readCString(env *Env, phase errors.Phase, p Ptr) (raw []byte, aliased bool, err error) {
	mem, err := env.memory(phase)
	if err != nil {
		return nil, false, err
	}

	if sizer, ok := mem.(wasmmarshal.MemorySizer); ok {
		size := sizer.Size()
		if uint32(p) >= size {
			return nil, false, errors.OutOfBounds(phase, uint32(p), 1, nil)
		}
		data, err := mem.Read(uint32(p), size-uint32(p))
		if err != nil {
			return nil, false, errors.OutOfBounds(phase, uint32(p), size-uint32(p), err)
		}
		n := bytes.IndexByte(data, 0)
		if n < 0 {
			return nil, false, errors.Unterminated(phase, uint32(p))
		}
		return data[:n:n], true, nil
	}

	var out []byte
	for off := uint32(p); ; off++ {
		b, err := mem.ReadU8(off)
		if err != nil {
			return nil, false, errors.Unterminated(phase, uint32(p))
		}
		if b == 0 {
			return out, false, nil
		}
		out = append(out, b)
		if off == math.MaxUint32 {
			return nil, false, errors.Unterminated(phase, uint32(p))
		}
	}
}

// decodeLossy turns raw into a string. Valid UTF-8 is returned without a
// copy (borrowed=true); anything else is decoded into an owned string with
// each ill-formed sequence replaced by U+FFFD.
func decodeLossy(raw []byte) (string, bool) {
	if len(raw) == 0 {
		return "", true
	}
	if utf8.Valid(raw) {
		return unsafe.String(&raw[0], len(raw)), true
	}
	fixed, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), string(utf8.RuneError)), false
	}
	return string(fixed), false
}

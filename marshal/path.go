package marshal

import (
	"path/filepath"
	"strings"

	"github.com/wippyai/wasm-marshal/errors"
)

// Path marshals host filesystem paths as NUL-terminated guest strings in
// slash-separated form. Bytes are carried as-is; paths are not required to
// be valid UTF-8.
type Path struct{}

func (Path) ToForeign(env *Env, path string) (Ptr, error) {
	trace("to_foreign", "Path", "path", 0)
	guest := filepath.ToSlash(path)
	if i := strings.IndexByte(guest, 0); i >= 0 {
		return 0, errors.EmbeddedNul(errors.PhaseOutbound, "path", i)
	}
	return writeCString(env, errors.PhaseOutbound, guest)
}

// FromForeign reclaims a path buffer and returns the native host path.
func (Path) FromForeign(env *Env, p Ptr) (string, error) {
	trace("from_foreign", "Path", "path", p)
	if IsAbsent(p) {
		return "", NullPointerError(errors.PhaseInbound, "path")
	}
	raw, _, err := readCString(env, errors.PhaseInbound, p)
	if err != nil {
		return "", err
	}
	path := filepath.FromSlash(string(raw))
	if err := freeCString(env, errors.PhaseInbound, p, len(raw)); err != nil {
		return "", err
	}
	return path, nil
}

func (Path) Release(env *Env, p Ptr) error {
	trace("release", "Path", "path", p)
	if IsAbsent(p) {
		return NullPointerError(errors.PhaseRelease, "path")
	}
	raw, _, err := readCString(env, errors.PhaseRelease, p)
	if err != nil {
		return err
	}
	return freeCString(env, errors.PhaseRelease, p, len(raw))
}

func (Path) ForeignDefault() Ptr {
	return 0
}

// PathRef reads a path the guest still owns. The result is always a copy
// since separator conversion may rewrite it.
type PathRef struct{}

func (PathRef) FromForeign(env *Env, p Ptr) (string, error) {
	trace("from_foreign", "PathRef", "path", p)
	if IsAbsent(p) {
		return "", NullPointerError(errors.PhaseInbound, "path")
	}
	raw, _, err := readCString(env, errors.PhaseInbound, p)
	if err != nil {
		return "", err
	}
	return filepath.FromSlash(string(raw)), nil
}

func (PathRef) ForeignDefault() Ptr {
	return 0
}

package marshal

import (
	"net/url"
	"testing"

	"github.com/google/uuid"

	"github.com/wippyai/wasm-marshal/errors"
)

func TestURL_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	u, _ := url.Parse("https://example.com/a/b?q=1#frag")

	p, err := URL{}.ToForeign(env.Env, u)
	if err != nil {
		t.Fatal(err)
	}
	got, err := URL{}.FromForeign(env.Env, p)
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != u.String() {
		t.Fatalf("got %s, want %s", got, u)
	}
	if err := (URL{}).Release(env.Env, p); err != nil {
		t.Fatal(err)
	}
	if got.Host != "example.com" {
		t.Fatalf("parsed URL must not alias freed memory, host=%q", got.Host)
	}
	env.verify(t)

	if _, err := (URL{}).ToForeign(env.Env, nil); !errors.Is(err, errors.ErrInvalidData) {
		t.Fatalf("nil URL: expected invalid data, got %v", err)
	}
}

func TestURL_Malformed(t *testing.T) {
	env := newTestEnv(t)
	p, err := String{}.ToForeign(env.Env, "http://[::1")
	if err != nil {
		t.Fatal(err)
	}
	_, err = URL{}.FromForeign(env.Env, p)
	var e *errors.Error
	if !errors.As(err, &e) || e.Kind != errors.KindInvalidData || e.Cause == nil {
		t.Fatalf("expected invalid data with cause, got %v", err)
	}
	_ = URL{}.Release(env.Env, p)
	env.verify(t)
}

func TestUUID_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.New()

	p, err := UUID{}.ToForeign(env.Env, id)
	if err != nil {
		t.Fatal(err)
	}
	s, err := Str{}.FromForeign(env.Env, p)
	if err != nil || len(s) != 36 {
		t.Fatalf("guest form %q, %v", s, err)
	}
	got, err := UUID{}.FromForeign(env.Env, p)
	if err != nil || got != id {
		t.Fatalf("got %s, %v; want %s", got, err, id)
	}
	if err := (UUID{}).Release(env.Env, p); err != nil {
		t.Fatal(err)
	}
	env.verify(t)
}

func TestUUID_Malformed(t *testing.T) {
	env := newTestEnv(t)
	p, err := String{}.ToForeign(env.Env, "not-a-uuid")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := (UUID{}).FromForeign(env.Env, p); !errors.Is(err, errors.ErrInvalidData) {
		t.Fatalf("expected invalid data, got %v", err)
	}
	_ = UUID{}.Release(env.Env, p)
	env.verify(t)
}

func TestOption_Absence(t *testing.T) {
	env := guardEnv(t)
	opt := Option[*url.URL, URL]{}

	p, err := opt.ToForeign(env, nil)
	if err != nil || p != 0 {
		t.Fatalf("nil: got %s, %v", p, err)
	}
	u, err := opt.FromForeign(env, 0)
	if err != nil || u != nil {
		t.Fatalf("absent: got %v, %v", u, err)
	}
	if err := opt.Release(env, 0); err != nil {
		t.Fatal(err)
	}

	ids := Option[uuid.UUID, UUID]{}
	if p, err := ids.ToForeign(env, uuid.Nil); err != nil || p != 0 {
		t.Fatalf("nil UUID: got %s, %v", p, err)
	}
}

func TestOption_Present(t *testing.T) {
	env := newTestEnv(t)
	opt := Option[*Box[counter], BoxMarshaler[counter]]{}

	h, err := opt.ToForeign(env.Env, NewBox(counter{n: 3}))
	if err != nil || h == 0 {
		t.Fatalf("got %s, %v", h, err)
	}
	b, err := opt.FromForeign(env.Env, h)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := b.Get(); v.n != 3 {
		t.Fatalf("got %+v", v)
	}
}

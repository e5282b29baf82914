package main

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm-marshal/marshal"
)

func TestSession_Script(t *testing.T) {
	ctx := context.Background()
	s, err := newSession(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		args     []string
		want     string
		reported string
	}{
		{"matches", []string{"", "5"}, "true", ""},
		{"matches", []string{"", "4"}, "false", ""},
		{"matches", []string{"0", "5"}, "false", "null pointer"},
		{"tally", []string{"3"}, "3", ""},
		{"tally", []string{"4"}, "7", ""},
		{"length", []string{"héllo"}, "5", ""},
		{"sum", []string{"1, 2, 3, 400"}, "406", ""},
		{"sum", []string{""}, "0", ""},
		{"normalize_url", []string{"https://Example.COM"}, "https://example.com/", ""},
		{"normalize_url", []string{"relative/path"}, "(absent)", ""},
		{"normalize_url", []string{"http://[::1"}, "(absent)", "malformed URL"},
		{"clean_path", []string{"a/b/../c//d"}, "a/c/d", ""},
		{"id", []string{"F47AC10B-58CC-4372-A567-0E02B2C3D479"}, "f47ac10b-58cc-4372-a567-0e02b2c3d479", ""},
		{"id", []string{"not-a-uuid"}, "(failed)", "malformed UUID"},
	}
	for _, tt := range tests {
		o, ok := s.lookup(tt.name)
		if !ok {
			t.Fatalf("no op %q", tt.name)
		}
		got, err := o.run(ctx, s, tt.args)
		if err != nil {
			t.Fatalf("%s%q: %v", tt.name, tt.args, err)
		}
		if !strings.HasPrefix(got, tt.want) {
			t.Errorf("%s%q: got %q, want %q", tt.name, tt.args, got, tt.want)
		}
		if tt.reported == "" && strings.Contains(got, "reported") {
			t.Errorf("%s%q: unexpected report in %q", tt.name, tt.args, got)
		}
		if tt.reported != "" && !strings.Contains(got, tt.reported) {
			t.Errorf("%s%q: expected report containing %q, got %q", tt.name, tt.args, tt.reported, got)
		}
	}

	if s.shared.StrongCount() != 2 {
		t.Fatalf("guest should still hold one unit, count %d", s.shared.StrongCount())
	}
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.tracker.Verify(); err != nil {
		t.Fatalf("leaked guest memory: %v", err)
	}
}

func TestSession_Describe(t *testing.T) {
	ctx := context.Background()
	s, err := newSession(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)

	d := s.Describe()
	for _, want := range []string{
		"matches: func(shared: borrow<arc-main-counter>, n: s32, on-error: u32) -> bool;",
		"tally: func(acc: borrow<box-main-counter>, n: s32) -> s64;",
		"sum: func(xs: list<s32>) -> s64;",
		"normalize_url: func(raw: string, on-error: u32) -> option<string>;",
	} {
		if !strings.Contains(d, want) {
			t.Errorf("missing %q in:\n%s", want, d)
		}
	}
}

func TestSession_ReleaseFailureLogged(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	s, err := newSession(ctx, zap.New(core))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)

	s.release("text", marshal.String{}.Release(s.env, 0))
	entries := logs.FilterMessage("release failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one warning, got %d", logs.Len())
	}
	if v := entries[0].ContextMap()["value"]; v != "text" {
		t.Errorf("warning should name the value, got %v", v)
	}

	s.release("text", nil)
	if logs.FilterMessage("release failed").Len() != 1 {
		t.Fatal("a successful release must not log")
	}
}

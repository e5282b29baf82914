package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-marshal/boundary"
	"github.com/wippyai/wasm-marshal/marshal"
	"github.com/wippyai/wasm-marshal/memory"
)

func main() {
	var (
		text        = flag.String("text", "https://Example.COM", "Text passed to the string and URL functions")
		describe    = flag.Bool("describe", false, "Print the host function signatures and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Log every conversion")
	)
	flag.Parse()

	log := zap.NewNop()
	if *verbose {
		var err error
		if log, err = zap.NewDevelopment(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer log.Sync()
		marshal.SetLogger(log.Named("marshal"))
		memory.SetLogger(log.Named("memory"))
		boundary.SetLogger(log.Named("boundary"))
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(log); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*text, *describe, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(text string, describeOnly bool, log *zap.Logger) error {
	ctx := context.Background()

	s, err := newSession(ctx, log)
	if err != nil {
		return err
	}

	fmt.Printf("Host module %q:\n", "marshal")
	for _, line := range strings.Split(strings.TrimSpace(s.Describe()), "\n") {
		fmt.Printf("  %s\n", line)
	}
	if describeOnly {
		return s.Close(ctx)
	}

	script := []struct {
		name string
		args []string
	}{
		{"matches", []string{"", "5"}},
		{"matches", []string{"", "4"}},
		{"matches", []string{"0", "5"}},
		{"tally", []string{"3"}},
		{"tally", []string{"4"}},
		{"length", []string{text}},
		{"sum", []string{"1, 2, 3, 400"}},
		{"sum", []string{""}},
		{"normalize_url", []string{text}},
		{"normalize_url", []string{"relative/path"}},
		{"normalize_url", []string{"http://[::1"}},
		{"clean_path", []string{"a/b/../c//d"}},
		{"id", []string{strings.ToUpper(uuid.NewString())}},
		{"id", []string{"not-a-uuid"}},
	}

	fmt.Printf("\nCalls:\n")
	for _, step := range script {
		o, ok := s.lookup(step.name)
		if !ok {
			return fmt.Errorf("unknown function %q", step.name)
		}
		result, err := o.run(ctx, s, step.args)
		if err != nil {
			return fmt.Errorf("call %s: %w", step.name, err)
		}
		fmt.Printf("  %s(%s) = %s\n", step.name, quoteArgs(step.args), result)
	}

	if err := s.Close(ctx); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	fmt.Printf("\nAllocator: %s\n", s.tracker.Stats())
	return s.tracker.Verify()
}

func quoteArgs(args []string) string {
	q := make([]string, len(args))
	for i, a := range args {
		q[i] = fmt.Sprintf("%q", a)
	}
	return strings.Join(q, ", ")
}

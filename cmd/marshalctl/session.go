package main

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-marshal/boundary"
	"github.com/wippyai/wasm-marshal/internal/guest"
	"github.com/wippyai/wasm-marshal/marshal"
	"github.com/wippyai/wasm-marshal/memory"
)

type counter struct {
	n int64
}

// op is one exported host function plus the host-side driver that feeds it
// text arguments and renders its result.
type op struct {
	fn   *boundary.Func
	hint []string
	run  func(ctx context.Context, s *session, args []string) (string, error)
}

// session owns a runtime with the demo guest and the host module bound to
// it. Host objects handed to the guest live in the module's handle table.
type session struct {
	rt      wazero.Runtime
	guest   api.Module
	mod     *boundary.Module
	log     *zap.Logger
	env     *marshal.Env
	tracker *memory.Tracker
	shared  *marshal.Arc[counter]
	sharedH marshal.Ptr
	tallyH  marshal.Ptr
	onError uint32
	reports []string
	ops     []op
}

func newSession(ctx context.Context, log *zap.Logger) (*session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	g, err := guest.Instantiate(ctx, rt, "guest")
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate guest: %w", err)
	}

	s := &session{rt: rt, guest: g, log: log}
	s.tracker = memory.NewTracker(memory.WrapAllocator(ctx, g.ExportedFunction("cabi_realloc")))

	opts := boundary.DefaultOptions()
	opts.ModuleName = "marshal"
	opts.Logger = log.Named("boundary")
	opts.Env = boundary.StaticEnv(memory.WrapMemory(g.Memory()), s.tracker)
	s.mod = boundary.New(opts)
	s.ops = s.exports()
	for _, o := range s.ops {
		s.mod.Func(o.fn)
	}

	if _, err = s.mod.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate host module: %w", err)
	}
	if s.env, err = s.mod.Env(ctx, g); err != nil {
		s.Close(ctx)
		return nil, err
	}

	ref, err := s.mod.Callbacks().Register(s.report)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	s.onError = uint32(ref)

	s.shared = marshal.NewArc(counter{n: 5})
	if s.sharedH, err = (marshal.ArcMarshaler[counter]{}).ToForeign(s.env, s.shared.Clone()); err != nil {
		s.Close(ctx)
		return nil, err
	}
	if s.tallyH, err = (marshal.BoxMarshaler[counter]{}).ToForeign(s.env, marshal.NewBox(counter{})); err != nil {
		s.Close(ctx)
		return nil, err
	}
	return s, nil
}

// report is the error callback the session hands to every fallible call.
func (s *session) report(_ context.Context, msg marshal.Ptr) {
	text, err := marshal.Str{}.Lossy(s.env, msg)
	if err != nil {
		s.reports = append(s.reports, "unreadable report: "+err.Error())
		return
	}
	v := text.Value
	if text.Borrowed {
		v = strings.Clone(v)
	}
	s.reports = append(s.reports, v)
}

// lastReport returns and clears the most recent error report.
func (s *session) lastReport() string {
	if len(s.reports) == 0 {
		return ""
	}
	r := s.reports[len(s.reports)-1]
	s.reports = s.reports[:0]
	return r
}

// call invokes a host function with the guest as caller.
func (s *session) call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	return s.mod.Call(ctx, s.guest, name, params...)
}

// release reclaims a value the session handed to the guest. A failure
// leaves the value in guest memory, so it is logged rather than dropped.
func (s *session) release(what string, err error) {
	if err != nil {
		s.log.Warn("release failed", zap.String("value", what), zap.Error(err))
	}
}

// Describe lists the host module's signatures.
func (s *session) Describe() string {
	return s.mod.Describe()
}

// Close reclaims what the session handed out and checks the allocator.
func (s *session) Close(ctx context.Context) error {
	if s.tallyH != 0 {
		if err := (marshal.BoxMarshaler[counter]{}).Release(s.env, s.tallyH); err != nil {
			return err
		}
		s.tallyH = 0
	}
	if s.sharedH != 0 {
		if err := (marshal.ArcMarshaler[counter]{}).Release(s.env, s.sharedH); err != nil {
			return err
		}
		s.sharedH = 0
	}
	if s.shared != nil {
		s.shared.Release()
	}
	err := s.mod.Close(ctx)
	s.rt.Close(ctx)
	return err
}

func (s *session) exports() []op {
	return []op{
		{
			fn: &boundary.Func{
				Name:        "matches",
				Params:      []boundary.Slot{boundary.Arg("shared", marshal.ArcRef[counter]{}), boundary.Arg("n", marshal.Copy[int32]{})},
				Results:     []boundary.Slot{boundary.Ret("ok", marshal.Bool{})},
				ErrCallback: true,
				Body: func(c *boundary.Call) error {
					shared, err := boundary.Param(c, marshal.ArcRef[counter]{})
					if err != nil {
						return err
					}
					n, err := boundary.Param(c, marshal.Copy[int32]{})
					if err != nil {
						return err
					}
					return boundary.Result(c, marshal.Bool{}, shared.Get().n == int64(n))
				},
			},
			hint: []string{"handle, empty for the shared counter", "integer"},
			run: func(ctx context.Context, s *session, args []string) (string, error) {
				h := s.sharedH
				if args[0] != "" {
					v, err := strconv.ParseUint(args[0], 10, 32)
					if err != nil {
						return "", err
					}
					h = marshal.Ptr(v)
				}
				n, err := strconv.ParseInt(args[1], 10, 32)
				if err != nil {
					return "", err
				}
				res, err := s.call(ctx, "matches", api.EncodeU32(uint32(h)), api.EncodeI32(int32(n)), api.EncodeU32(s.onError))
				if err != nil {
					return "", err
				}
				ok, _ := marshal.Bool{}.FromForeign(s.env, uint8(res[0]))
				return withReport(strconv.FormatBool(ok), s.lastReport()), nil
			},
		},
		{
			fn: &boundary.Func{
				Name:    "tally",
				Params:  []boundary.Slot{boundary.Arg("acc", marshal.BoxRef[counter]{}), boundary.Arg("n", marshal.Copy[int32]{})},
				Results: []boundary.Slot{boundary.Ret("total", marshal.Copy[int64]{})},
				Body: func(c *boundary.Call) error {
					acc, err := boundary.Param(c, marshal.BoxRef[counter]{})
					if err != nil {
						return err
					}
					n, err := boundary.Param(c, marshal.Copy[int32]{})
					if err != nil {
						return err
					}
					acc.n += int64(n)
					return boundary.Result(c, marshal.Copy[int64]{}, acc.n)
				},
			},
			hint: []string{"integer"},
			run: func(ctx context.Context, s *session, args []string) (string, error) {
				n, err := strconv.ParseInt(args[0], 10, 32)
				if err != nil {
					return "", err
				}
				res, err := s.call(ctx, "tally", api.EncodeU32(uint32(s.tallyH)), api.EncodeI32(int32(n)))
				if err != nil {
					return "", err
				}
				return strconv.FormatInt(int64(res[0]), 10), nil
			},
		},
		{
			fn: &boundary.Func{
				Name:    "length",
				Params:  []boundary.Slot{boundary.Arg("text", marshal.Str{})},
				Results: []boundary.Slot{boundary.Ret("runes", marshal.Copy[uint32]{})},
				Body: func(c *boundary.Call) error {
					text, err := boundary.Param(c, marshal.Str{})
					if err != nil {
						return err
					}
					return boundary.Result(c, marshal.Copy[uint32]{}, uint32(utf8.RuneCountInString(text)))
				},
			},
			hint: []string{"text"},
			run: func(ctx context.Context, s *session, args []string) (string, error) {
				p, err := marshal.String{}.ToForeign(s.env, args[0])
				if err != nil {
					return "", err
				}
				defer func() { s.release("text", marshal.String{}.Release(s.env, p)) }()
				res, err := s.call(ctx, "length", api.EncodeU32(uint32(p)))
				if err != nil {
					return "", err
				}
				return strconv.FormatUint(uint64(api.DecodeU32(res[0])), 10), nil
			},
		},
		{
			fn: &boundary.Func{
				Name:    "sum",
				Params:  []boundary.Slot{boundary.Arg("xs", marshal.VecRef[int32]{})},
				Results: []boundary.Slot{boundary.Ret("total", marshal.Copy[int64]{})},
				Body: func(c *boundary.Call) error {
					xs, err := boundary.Param(c, marshal.VecRef[int32]{})
					if err != nil {
						return err
					}
					var total int64
					for _, x := range xs {
						total += int64(x)
					}
					return boundary.Result(c, marshal.Copy[int64]{}, total)
				},
			},
			hint: []string{"comma-separated integers"},
			run: func(ctx context.Context, s *session, args []string) (string, error) {
				var xs []int32
				for _, f := range strings.FieldsFunc(args[0], func(r rune) bool { return r == ',' || r == ' ' }) {
					v, err := strconv.ParseInt(f, 10, 32)
					if err != nil {
						return "", err
					}
					xs = append(xs, int32(v))
				}
				d, err := marshal.Vec[int32]{}.ToForeign(s.env, xs)
				if err != nil {
					return "", err
				}
				defer func() { s.release("xs", marshal.Vec[int32]{}.Release(s.env, d)) }()
				res, err := s.call(ctx, "sum", boundary.Encode(d)...)
				if err != nil {
					return "", err
				}
				return strconv.FormatInt(int64(res[0]), 10), nil
			},
		},
		{
			fn: &boundary.Func{
				Name:        "normalize_url",
				Params:      []boundary.Slot{boundary.Arg("raw", marshal.URL{})},
				Results:     []boundary.Slot{boundary.Ret("url", marshal.Option[*url.URL, marshal.URL]{})},
				ErrCallback: true,
				Body: func(c *boundary.Call) error {
					u, err := boundary.Param(c, marshal.URL{})
					if err != nil {
						return err
					}
					if u.Host == "" {
						return boundary.Result(c, marshal.Option[*url.URL, marshal.URL]{}, nil)
					}
					u.Scheme = strings.ToLower(u.Scheme)
					u.Host = strings.ToLower(u.Host)
					if u.Path == "" {
						u.Path = "/"
					}
					return boundary.Result(c, marshal.Option[*url.URL, marshal.URL]{}, u)
				},
			},
			hint: []string{"URL"},
			run: func(ctx context.Context, s *session, args []string) (string, error) {
				in, err := marshal.String{}.ToForeign(s.env, args[0])
				if err != nil {
					return "", err
				}
				defer func() { s.release("raw", marshal.String{}.Release(s.env, in)) }()
				res, err := s.call(ctx, "normalize_url", api.EncodeU32(uint32(in)), api.EncodeU32(s.onError))
				if err != nil {
					return "", err
				}
				out := marshal.Ptr(api.DecodeU32(res[0]))
				if out.IsNull() {
					return withReport("(absent)", s.lastReport()), nil
				}
				return marshal.String{}.FromForeign(s.env, out)
			},
		},
		{
			fn: &boundary.Func{
				Name:    "clean_path",
				Params:  []boundary.Slot{boundary.Arg("path", marshal.PathRef{})},
				Results: []boundary.Slot{boundary.Ret("clean", marshal.Path{})},
				Body: func(c *boundary.Call) error {
					p, err := boundary.Param(c, marshal.PathRef{})
					if err != nil {
						return err
					}
					return boundary.Result(c, marshal.Path{}, filepath.Clean(p))
				},
			},
			hint: []string{"path"},
			run: func(ctx context.Context, s *session, args []string) (string, error) {
				in, err := marshal.Path{}.ToForeign(s.env, args[0])
				if err != nil {
					return "", err
				}
				defer func() { s.release("path", marshal.Path{}.Release(s.env, in)) }()
				res, err := s.call(ctx, "clean_path", api.EncodeU32(uint32(in)))
				if err != nil {
					return "", err
				}
				return marshal.Path{}.FromForeign(s.env, marshal.Ptr(api.DecodeU32(res[0])))
			},
		},
		{
			fn: &boundary.Func{
				Name:        "id",
				Params:      []boundary.Slot{boundary.Arg("text", marshal.UUID{})},
				Results:     []boundary.Slot{boundary.Ret("canonical", marshal.UUID{})},
				ErrCallback: true,
				Body: func(c *boundary.Call) error {
					id, err := boundary.Param(c, marshal.UUID{})
					if err != nil {
						return err
					}
					return boundary.Result(c, marshal.UUID{}, id)
				},
			},
			hint: []string{"UUID in any accepted form"},
			run: func(ctx context.Context, s *session, args []string) (string, error) {
				in, err := marshal.String{}.ToForeign(s.env, args[0])
				if err != nil {
					return "", err
				}
				defer func() { s.release("text", marshal.String{}.Release(s.env, in)) }()
				res, err := s.call(ctx, "id", api.EncodeU32(uint32(in)), api.EncodeU32(s.onError))
				if err != nil {
					return "", err
				}
				out := marshal.Ptr(api.DecodeU32(res[0]))
				if out.IsNull() {
					return withReport("(failed)", s.lastReport()), nil
				}
				defer func() { s.release("canonical", marshal.UUID{}.Release(s.env, out)) }()
				id, err := marshal.UUID{}.FromForeign(s.env, out)
				if err != nil {
					return "", err
				}
				return id.String(), nil
			},
		},
	}
}

func (s *session) lookup(name string) (op, bool) {
	for _, o := range s.ops {
		if o.fn.Name == name {
			return o, true
		}
	}
	return op{}, false
}

func withReport(result, report string) string {
	if report == "" {
		return result
	}
	return result + " (reported: " + report + ")"
}

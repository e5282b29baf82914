package marshal

import (
	"math"
	"testing"
)

func TestBool_Mapping(t *testing.T) {
	env := guardEnv(t)

	if v, _ := (Bool{}).ToForeign(env, true); v != 1 {
		t.Errorf("true: expected 1, got %d", v)
	}
	if v, _ := (Bool{}).ToForeign(env, false); v != 0 {
		t.Errorf("false: expected 0, got %d", v)
	}
	for n := 0; n <= math.MaxUint8; n++ {
		got, err := Bool{}.FromForeign(env, uint8(n))
		if err != nil {
			t.Fatalf("FromForeign(%d): %v", n, err)
		}
		if got != (n != 0) {
			t.Errorf("FromForeign(%d) = %v", n, got)
		}
	}
	if (Bool{}).ForeignDefault() != 0 {
		t.Error("default must be false")
	}
}

func TestCopy_Passthrough(t *testing.T) {
	env := guardEnv(t)

	i, err := Copy[int64]{}.ToForeign(env, math.MinInt64)
	if err != nil || i != math.MinInt64 {
		t.Fatalf("int64: got %d, %v", i, err)
	}
	f, err := Copy[float32]{}.FromForeign(env, float32(math.Inf(-1)))
	if err != nil || !math.IsInf(float64(f), -1) {
		t.Fatalf("float32: got %v, %v", f, err)
	}
	nan, _ := Copy[float64]{}.FromForeign(env, math.NaN())
	if !math.IsNaN(nan) {
		t.Fatalf("NaN not preserved: %v", nan)
	}

	type fd int32
	if v, _ := (Copy[fd]{}).ToForeign(env, 7); v != 7 {
		t.Fatalf("named scalar: got %d", v)
	}
	if (Copy[uint16]{}).ForeignDefault() != 0 {
		t.Fatal("default must be zero")
	}
}

func TestUnit(t *testing.T) {
	env := guardEnv(t)
	if _, err := (Unit{}).ToForeign(env, struct{}{}); err != nil {
		t.Fatal(err)
	}
	if _, err := (Unit{}).FromForeign(env, struct{}{}); err != nil {
		t.Fatal(err)
	}
}

package memory

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	wasmmarshal "github.com/wippyai/wasm-marshal"
	"github.com/wippyai/wasm-marshal/errors"
)

// Allocation is one live block handed out by an Allocator.
type Allocation struct {
	Ptr   uint32
	Size  uint32
	Align uint32
}

// Stats is a snapshot of Tracker counters.
type Stats struct {
	Allocs    uint64
	Frees     uint64
	Live      int
	LiveBytes uint64
	Faults    int
}

func (s Stats) String() string {
	return fmt.Sprintf("allocs=%d frees=%d live=%d live_bytes=%d faults=%d",
		s.Allocs, s.Frees, s.Live, s.LiveBytes, s.Faults)
}

// Tracker wraps an Allocator and checks that every Alloc is paired with
// exactly one Free of the same size and alignment. Frees of unknown blocks
// are recorded as faults and not forwarded, so a double free never reaches
// the guest allocator. Safe for concurrent use.
type Tracker struct {
	next   wasmmarshal.Allocator
	live   map[uint32]Allocation
	faults []error
	allocs uint64
	frees  uint64
	bytes  uint64
	mu     sync.Mutex
}

// NewTracker wraps next.
func NewTracker(next wasmmarshal.Allocator) *Tracker {
	return &Tracker{
		next: next,
		live: make(map[uint32]Allocation),
	}
}

// Alloc forwards to the wrapped allocator and records the block.
func (t *Tracker) Alloc(size, align uint32) (uint32, error) {
	ptr, err := t.next.Alloc(size, align)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, dup := t.live[ptr]; dup && size > 0 {
		t.fault(fmt.Errorf("allocator returned live block 0x%08x (size %d) again", ptr, prev.Size))
	}
	t.live[ptr] = Allocation{Ptr: ptr, Size: size, Align: align}
	t.allocs++
	t.bytes += uint64(size)
	return ptr, nil
}

// Free forwards to the wrapped allocator if ptr is a live block freed with
// its original size and alignment.
func (t *Tracker) Free(ptr, size, align uint32) {
	t.mu.Lock()
	a, ok := t.live[ptr]
	switch {
	case !ok:
		t.fault(fmt.Errorf("free of unknown or already freed block 0x%08x", ptr))
		t.mu.Unlock()
		return
	case a.Size != size || a.Align != align:
		t.fault(fmt.Errorf("free of block 0x%08x with size %d align %d, allocated with size %d align %d",
			ptr, size, align, a.Size, a.Align))
		t.mu.Unlock()
		return
	}
	delete(t.live, ptr)
	t.frees++
	t.bytes -= uint64(size)
	t.mu.Unlock()

	t.next.Free(ptr, size, align)
}

// Stats returns current counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		Allocs:    t.allocs,
		Frees:     t.frees,
		Live:      len(t.live),
		LiveBytes: t.bytes,
		Faults:    len(t.faults),
	}
}

// Live returns the outstanding blocks ordered by address.
func (t *Tracker) Live() []Allocation {
	t.mu.Lock()
	out := make([]Allocation, 0, len(t.live))
	for _, a := range t.live {
		out = append(out, a)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Ptr < out[j].Ptr })
	return out
}

// Verify reports every recorded fault plus one error per leaked block.
func (t *Tracker) Verify() error {
	var err error
	t.mu.Lock()
	for _, f := range t.faults {
		err = multierr.Append(err, f)
	}
	t.mu.Unlock()

	for _, a := range t.Live() {
		err = multierr.Append(err, errors.New(errors.PhaseMemory, errors.KindAllocation).
			Value(a.Ptr).
			Detail("leaked block 0x%08x (size %d, align %d)", a.Ptr, a.Size, a.Align).
			Build())
	}
	return err
}

// fault requires t.mu held.
func (t *Tracker) fault(err error) {
	t.faults = append(t.faults, err)
	Logger().Error("allocation fault", zap.Error(err))
}

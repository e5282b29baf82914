package handle

import (
	"errors"
	"sync"
)

var (
	ErrClosed            = errors.New("handle table closed")
	ErrNotFound          = errors.New("handle not found")
	ErrTypeMismatch      = errors.New("handle type mismatch")
	ErrOutstandingBorrow = errors.New("cannot take handle with outstanding borrows")
)

// Table maps non-zero handles to host values so the guest can refer to
// them by a flat u32. Freed slots are reused. Safe for concurrent use.
type Table struct {
	entries   []entry
	freeList  []Handle
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	epoch     uint64
	closed    bool
}

type entry struct {
	value       any
	typeID      TypeID
	borrowCount uint32
	valid       bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// Insert stores value under a fresh handle.
func (t *Table) Insert(typeID TypeID, value any) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, ErrClosed
	}

	e := entry{
		typeID: typeID,
		value:  value,
		valid:  true,
	}

	var h Handle
	if n := len(t.freeList); n > 0 {
		h = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[h-1] = e
	} else {
		t.entries = append(t.entries, e)
		h = Handle(len(t.entries))
	}
	t.mu.Unlock()

	t.notify(Event{Type: EventInserted, Handle: h, TypeID: typeID, Value: value})
	return h, nil
}

// Get retrieves a value by handle without type checking.
func (t *Table) Get(h Handle) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.lookup(h)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Peek retrieves a value, requiring it was inserted with typeID.
// The entry stays in the table.
func (t *Table) Peek(h Handle, typeID TypeID) (any, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.lookup(h)
	if !ok {
		return nil, ErrNotFound
	}
	if e.typeID != typeID {
		return nil, &MismatchError{Handle: h, Want: typeID, Got: e.typeID}
	}
	return e.value, nil
}

// Take removes the entry and hands its value back to the caller, who now
// owns it. Drop is not called.
func (t *Table) Take(h Handle, typeID TypeID) (any, error) {
	t.mu.Lock()
	e, ok := t.lookup(h)
	if !ok {
		t.mu.Unlock()
		return nil, ErrNotFound
	}
	if e.typeID != typeID {
		t.mu.Unlock()
		return nil, &MismatchError{Handle: h, Want: typeID, Got: e.typeID}
	}
	if e.borrowCount > 0 {
		t.mu.Unlock()
		return nil, ErrOutstandingBorrow
	}
	value := e.value
	t.free(h)
	t.mu.Unlock()

	t.notify(Event{Type: EventTaken, Handle: h, TypeID: typeID, Value: value})
	return value, nil
}

// Drop removes the entry and calls Drop on its value if it is a Dropper.
func (t *Table) Drop(h Handle) bool {
	t.mu.Lock()
	e, ok := t.lookup(h)
	if !ok || e.borrowCount > 0 {
		t.mu.Unlock()
		return false
	}
	value, typeID := e.value, e.typeID
	t.free(h)
	t.mu.Unlock()

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{Type: EventDropped, Handle: h, TypeID: typeID, Value: value})
	return true
}

// Borrow increments the borrow count for a handle.
func (t *Table) Borrow(h Handle) bool {
	_, ok := t.borrow(h)
	return ok
}

// borrow increments the borrow count and reports the epoch it was taken in.
func (t *Table) borrow(h Handle) (uint64, bool) {
	t.mu.Lock()
	idx := int(h) - 1
	if h == 0 || idx >= len(t.entries) || !t.entries[idx].valid {
		t.mu.Unlock()
		return 0, false
	}
	t.entries[idx].borrowCount++
	typeID := t.entries[idx].typeID
	epoch := t.epoch
	t.mu.Unlock()

	t.notify(Event{Type: EventBorrowed, Handle: h, TypeID: typeID})
	return epoch, true
}

// ReturnBorrow decrements the borrow count for a handle.
func (t *Table) ReturnBorrow(h Handle) bool {
	return t.returnBorrow(h, nil)
}

// returnBorrow is ReturnBorrow for a borrow taken in epoch. Once Clear has
// run the borrow is gone, and a reused handle is left alone.
func (t *Table) returnBorrow(h Handle, epoch *uint64) bool {
	t.mu.Lock()
	idx := int(h) - 1
	if epoch != nil && *epoch != t.epoch {
		t.mu.Unlock()
		return false
	}
	if h == 0 || idx >= len(t.entries) || !t.entries[idx].valid || t.entries[idx].borrowCount == 0 {
		t.mu.Unlock()
		return false
	}
	t.entries[idx].borrowCount--
	typeID := t.entries[idx].typeID
	t.mu.Unlock()

	t.notify(Event{Type: EventBorrowReturned, Handle: h, TypeID: typeID})
	return true
}

// Borrows returns the outstanding borrow count for a handle.
func (t *Table) Borrows(h Handle) uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.lookup(h)
	if !ok {
		return 0
	}
	return e.borrowCount
}

// TypeID returns the type a handle was inserted with.
func (t *Table) TypeID(h Handle) (TypeID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.lookup(h)
	if !ok {
		return 0, false
	}
	return e.typeID, true
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries) - len(t.freeList)
}

// Each iterates over all live handles.
func (t *Table) Each(fn func(Handle, TypeID, any) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i, e := range t.entries {
		if e.valid {
			if !fn(Handle(i+1), e.typeID, e.value) {
				break
			}
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Clear drops every live handle, including borrowed ones.
func (t *Table) Clear() {
	t.mu.Lock()
	t.epoch++
	var dropped []Event
	for i := range t.entries {
		e := &t.entries[i]
		if !e.valid {
			continue
		}
		dropped = append(dropped, Event{Type: EventDropped, Handle: Handle(i + 1), TypeID: e.typeID, Value: e.value})
		e.borrowCount = 0
		t.free(Handle(i + 1))
	}
	t.mu.Unlock()

	for _, ev := range dropped {
		if d, ok := ev.Value.(Dropper); ok {
			d.Drop()
		}
		t.notify(ev)
	}
}

// Close drops everything and rejects further inserts.
func (t *Table) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.Clear()
	return nil
}

// lookup requires t.mu held.
func (t *Table) lookup(h Handle) (entry, bool) {
	if h == 0 {
		return entry{}, false
	}
	idx := int(h) - 1
	if idx >= len(t.entries) {
		return entry{}, false
	}
	e := t.entries[idx]
	if !e.valid {
		return entry{}, false
	}
	return e, true
}

// free requires t.mu held for writing.
func (t *Table) free(h Handle) {
	t.entries[h-1] = entry{}
	t.freeList = append(t.freeList, h)
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnHandleEvent(e)
	}
}

// MismatchError reports a handle whose stored type differs from the one requested.
type MismatchError struct {
	Handle Handle
	Want   TypeID
	Got    TypeID
}

func (e *MismatchError) Error() string {
	return "handle " + e.Handle.String() + " holds " + e.Got.Name() + ", not " + e.Want.Name()
}

// Is makes errors.Is(err, ErrTypeMismatch) hold.
func (e *MismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

package handle

import (
	"errors"
	"sync"
	"testing"

	"go.uber.org/goleak"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnHandleEvent(e Event) {
	o.events = append(o.events, e)
}

type dropCounter struct {
	count int
}

func (d *dropCounter) Drop() {
	d.count++
}

type other struct{}

func TestTable_Basic(t *testing.T) {
	table := NewTable()
	id := TypeOf[string]()

	h, err := table.Insert(id, "test")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, err := table.Peek(h, id)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	_, err = table.Peek(h, TypeOf[other]())
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("Peek with wrong type: got %v, want ErrTypeMismatch", err)
	}

	val, err = table.Take(h, id)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Take")
	}

	if _, err := table.Take(h, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Take: got %v, want ErrNotFound", err)
	}
}

func TestTable_ZeroHandle(t *testing.T) {
	table := NewTable()
	if _, ok := table.Get(0); ok {
		t.Fatal("handle 0 must never resolve")
	}
	if _, err := table.Peek(0, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Peek(0): got %v", err)
	}
	if table.Borrow(0) {
		t.Fatal("Borrow(0) should fail")
	}
}

func TestTable_HandleReuse(t *testing.T) {
	table := NewTable()
	id := TypeOf[int]()

	h1, _ := table.Insert(id, 1)
	h2, _ := table.Insert(id, 2)
	if h1 == h2 {
		t.Fatal("distinct live values must get distinct handles")
	}

	if _, err := table.Take(h1, id); err != nil {
		t.Fatal(err)
	}
	h3, _ := table.Insert(id, 3)
	if h3 != h1 {
		t.Fatalf("expected freed handle %d to be reused, got %d", h1, h3)
	}
}

func TestTable_Observer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	h, _ := table.Insert(1, "test")
	table.Borrow(h)
	table.ReturnBorrow(h)
	table.Take(h, 1)

	want := []EventType{EventInserted, EventBorrowed, EventBorrowReturned, EventTaken}
	if len(obs.events) != len(want) {
		t.Fatalf("Expected %d events, got %d", len(want), len(obs.events))
	}
	for i, w := range want {
		if obs.events[i].Type != w {
			t.Errorf("event %d = %v, want %v", i, obs.events[i].Type, w)
		}
		if obs.events[i].Handle != h {
			t.Errorf("event %d handle = %v, want %v", i, obs.events[i].Handle, h)
		}
	}

	table.Unsubscribe(obs)
	table.Insert(1, "test2")
	if len(obs.events) != len(want) {
		t.Fatal("Should not receive events after Unsubscribe")
	}
}

func TestTable_BorrowBlocksTake(t *testing.T) {
	table := NewTable()
	h, _ := table.Insert(1, "v")

	scope := table.NewScope()
	if !scope.Borrow(h) || !scope.Borrow(h) {
		t.Fatal("Borrow failed")
	}
	if table.Borrows(h) != 2 {
		t.Fatalf("Borrows = %d, want 2", table.Borrows(h))
	}

	if _, err := table.Take(h, 1); !errors.Is(err, ErrOutstandingBorrow) {
		t.Fatalf("Take during borrow: got %v", err)
	}
	if table.Drop(h) {
		t.Fatal("Drop during borrow should fail")
	}

	scope.End()
	if scope.Len() != 0 {
		t.Fatal("scope should be empty after End")
	}
	if _, err := table.Take(h, 1); err != nil {
		t.Fatalf("Take after scope end: %v", err)
	}
}

func TestTable_ScopeOutlivesClear(t *testing.T) {
	table := NewTable()
	h, _ := table.Insert(1, "old")

	scope := table.NewScope()
	if !scope.Borrow(h) {
		t.Fatal("Borrow failed")
	}
	table.Clear()

	h2, err := table.Insert(1, "new")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if h2 != h {
		t.Fatalf("expected cleared handle %d to be reused, got %d", h, h2)
	}
	if !table.Borrow(h2) {
		t.Fatal("Borrow failed")
	}

	scope.End()
	if n := table.Borrows(h2); n != 1 {
		t.Fatalf("ending a stale scope touched the reused handle: Borrows = %d, want 1", n)
	}
	if table.Drop(h2) {
		t.Fatal("Drop during the live borrow should fail")
	}
	table.ReturnBorrow(h2)
	if !table.Drop(h2) {
		t.Fatal("Drop after the live borrow returned should succeed")
	}
}

func TestTable_DropperInterface(t *testing.T) {
	table := NewTable()
	d := &dropCounter{}

	h, _ := table.Insert(1, d)
	if !table.Drop(h) {
		t.Fatal("Drop failed")
	}
	if d.count != 1 {
		t.Fatalf("Expected Drop() to be called once, called %d times", d.count)
	}

	d2 := &dropCounter{}
	h, _ = table.Insert(1, d2)
	if _, err := table.Take(h, 1); err != nil {
		t.Fatal(err)
	}
	if d2.count != 0 {
		t.Fatal("Take must hand the value back without dropping it")
	}
}

func TestTable_Close(t *testing.T) {
	table := NewTable()
	d := &dropCounter{}

	table.Insert(1, d)
	h, _ := table.Insert(1, "b")
	table.Borrow(h)

	if err := table.Close(); err != nil {
		t.Fatal(err)
	}
	if d.count != 1 {
		t.Fatal("Close should drop remaining values")
	}
	if table.Len() != 0 {
		t.Fatalf("Len() = %d after Close", table.Len())
	}
	if _, err := table.Insert(1, "c"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Insert after Close: got %v", err)
	}
	if err := table.Close(); err != nil {
		t.Fatal("second Close should be a no-op")
	}
}

func TestTypeOf(t *testing.T) {
	a := TypeOf[*dropCounter]()
	b := TypeOf[*dropCounter]()
	c := TypeOf[dropCounter]()
	if a != b {
		t.Fatal("TypeOf must be stable")
	}
	if a == c || a == 0 {
		t.Fatal("distinct types need distinct non-zero ids")
	}
	if a.Name() != "*handle.dropCounter" {
		t.Fatalf("Name() = %q", a.Name())
	}
	if TypeID(0).Name() != "untyped" {
		t.Fatal("zero TypeID should be untyped")
	}
}

func TestTable_Concurrent(t *testing.T) {
	defer goleak.VerifyNone(t)

	table := NewTable()
	id := TypeOf[int]()

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				h, err := table.Insert(id, w*perWorker+i)
				if err != nil {
					t.Error(err)
					return
				}
				if _, err := table.Peek(h, id); err != nil {
					t.Error(err)
					return
				}
				if _, err := table.Take(h, id); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	if table.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", table.Len())
	}
}

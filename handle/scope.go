package handle

// Scope records the borrows taken during one boundary call so they can all
// be returned when the call ends. A handle borrowed in a scope cannot be
// taken until the scope ends. Borrows wiped by Table.Clear are not
// returned again. Not safe for concurrent use.
type Scope struct {
	table   *Table
	borrows []scopedBorrow
}

type scopedBorrow struct {
	handle Handle
	epoch  uint64
}

// NewScope starts a borrow scope over t.
func (t *Table) NewScope() *Scope {
	return &Scope{table: t}
}

// Borrow registers a borrow of h that lasts until End.
func (s *Scope) Borrow(h Handle) bool {
	epoch, ok := s.table.borrow(h)
	if !ok {
		return false
	}
	s.borrows = append(s.borrows, scopedBorrow{handle: h, epoch: epoch})
	return true
}

// Len returns the number of borrows held by the scope.
func (s *Scope) Len() int {
	return len(s.borrows)
}

// End returns every borrow taken through the scope.
func (s *Scope) End() {
	for i := len(s.borrows) - 1; i >= 0; i-- {
		b := s.borrows[i]
		s.table.returnBorrow(b.handle, &b.epoch)
	}
	s.borrows = s.borrows[:0]
}

package marshal

// Scalar is any fixed-width numeric type that crosses the boundary by value.
type Scalar interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Copy passes a scalar through unchanged in both directions.
type Copy[T Scalar] struct{}

func (Copy[T]) ToForeign(_ *Env, v T) (T, error) {
	return v, nil
}

func (Copy[T]) FromForeign(_ *Env, v T) (T, error) {
	return v, nil
}

func (Copy[T]) ForeignDefault() T {
	var zero T
	return zero
}

// Unit marshals the absence of a value. It occupies no foreign slot.
type Unit struct{}

func (Unit) ToForeign(_ *Env, _ struct{}) (struct{}, error) {
	return struct{}{}, nil
}

func (Unit) FromForeign(_ *Env, _ struct{}) (struct{}, error) {
	return struct{}{}, nil
}

func (Unit) ForeignDefault() struct{} {
	return struct{}{}
}

// Bool maps bool to a single byte: 1 for true, 0 for false. Inbound, any
// nonzero byte is true.
type Bool struct{}

func (Bool) ToForeign(_ *Env, v bool) (uint8, error) {
	if v {
		return 1, nil
	}
	return 0, nil
}

func (Bool) FromForeign(_ *Env, v uint8) (bool, error) {
	return v != 0, nil
}

func (Bool) ForeignDefault() uint8 {
	return 0
}

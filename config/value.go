package config

// Value is an optional configuration slot. The zero value is unset.
type Value[T any] struct {
	v   T
	set bool
}

// Aliases for the five supported parameter kinds.
type (
	String = Value[string]
	Float  = Value[float32]
	Int    = Value[int32]
	List   = Value[[]int]
	Bool   = Value[bool]
)

// Get returns the value and whether it is set. Slice values are copied.
func (o *Value[T]) Get() (T, bool) { return cloneValue(o.v), o.set }

// Value returns the value, or the zero value of T if unset.
func (o *Value[T]) Value() T { return cloneValue(o.v) }

// IsSet reports whether a value was assigned.
func (o *Value[T]) IsSet() bool { return o.set }

// Set assigns v. Slice values are copied.
func (o *Value[T]) Set(v T) {
	o.v = cloneValue(v)
	o.set = true
}

// Clear resets the slot to its unset state.
func (o *Value[T]) Clear() {
	var zero T
	o.v = zero
	o.set = false
}

// Or returns the value if set, else def.
func (o *Value[T]) Or(def T) T {
	if o.set {
		return cloneValue(o.v)
	}
	return def
}

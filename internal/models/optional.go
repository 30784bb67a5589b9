package models

type presence uint8

const (
	absent presence = iota
	present
	null
)

// Optional is a field of a partial update. The zero value is absent; Some
// carries a value and Null explicitly clears the field.
type Optional[T any] struct {
	state presence
	value T
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{state: present, value: v}
}

// Null returns an Optional that clears the field.
func Null[T any]() Optional[T] {
	return Optional[T]{state: null}
}

// FromPtr returns Null for a nil pointer and Some(*v) otherwise.
func FromPtr[T any](v *T) Optional[T] {
	if v == nil {
		return Null[T]()
	}
	return Some(*v)
}

// IsSet reports whether the field was provided, either with a value or as null.
func (o Optional[T]) IsSet() bool { return o.state != absent }

// IsNull reports whether the field was provided as null.
func (o Optional[T]) IsNull() bool { return o.state == null }

// Get returns the value and true when the field holds a value.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.state == present
}

// Ptr returns a pointer to the value, or nil when the field is null or absent.
func (o Optional[T]) Ptr() *T {
	if o.state != present {
		return nil
	}
	v := o.value
	return &v
}

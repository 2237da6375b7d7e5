package params

type fieldState uint8

const (
	fieldAbsent fieldState = iota
	fieldSet
	fieldRemoved
)

// Field is an optional value with an explicit removal state.
//
// The three states are distinct and the distinction is load-bearing:
//   - absent:  the diff says nothing about this field
//   - set:     the diff assigns a value
//   - removed: the diff deletes the field on merge
//
// The zero value is absent.
type Field[T any] struct {
	state fieldState
	value T
}

// Set returns a field carrying v.
func Set[T any](v T) Field[T] {
	return Field[T]{state: fieldSet, value: v}
}

// Removed returns a field carrying a removal marker.
func Removed[T any]() Field[T] {
	return Field[T]{state: fieldRemoved}
}

// IsSet reports whether the field carries a value.
func (f Field[T]) IsSet() bool { return f.state == fieldSet }

// IsRemoved reports whether the field is a removal marker.
func (f Field[T]) IsRemoved() bool { return f.state == fieldRemoved }

// IsAbsent reports whether the diff says nothing about this field.
func (f Field[T]) IsAbsent() bool { return f.state == fieldAbsent }

// Get returns the value and whether one is set.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.state == fieldSet
}

// Or returns the value when set, otherwise def.
func (f Field[T]) Or(def T) T {
	if f.state == fieldSet {
		return f.value
	}
	return def
}

// mergeField layers src over dst: a set src wins, a removal marker
// clears the field, an absent src leaves dst untouched.
func mergeField[T any](dst, src Field[T]) Field[T] {
	switch src.state {
	case fieldSet:
		return src
	case fieldRemoved:
		return Field[T]{}
	default:
		return dst
	}
}

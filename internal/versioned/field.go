package versioned

import "errors"

var (
	ErrOverflow   = errors.New("versioned field is full")
	ErrUndefined  = errors.New("versioned field undefined at version")
	ErrOutOfOrder = errors.New("write older than the last recorded version")
)

// Entry is one (version, value) pair of a Field's modification log.
type Entry[T comparable] struct {
	Version uint64
	Value   T
}

// Field is a bounded, append-only log of values for one mutable node
// attribute. Entries are strictly increasing by version. The capacity is
// fixed when the field is created and is held as the slice capacity, so
// appends never reallocate.
//
// The zero Field has no capacity: every read is undefined and every write
// overflows.
type Field[T comparable] struct {
	entries []Entry[T]
}

// NewField creates a field of capacity p holding value as of version.
func NewField[T comparable](p int, version uint64, value T) Field[T] {
	entries := make([]Entry[T], 1, max(p, 1))
	entries[0] = Entry[T]{Version: version, Value: value}
	return Field[T]{entries: entries}
}

// Read returns the value as of version v: the latest entry whose version is
// not greater than v.
func (f *Field[T]) Read(v uint64) (T, error) {
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].Version <= v {
			return f.entries[i].Value, nil
		}
	}
	var zero T
	return zero, ErrUndefined
}

// Write records value at version v.
//
// A write at the version of the last entry replaces that entry: versions
// are published only once complete, so the intermediate value was never
// observable. Otherwise the entry is appended if capacity remains. On
// ErrOverflow the field is left untouched.
func (f *Field[T]) Write(v uint64, value T) error {
	if n := len(f.entries); n > 0 {
		last := &f.entries[n-1]
		if v < last.Version {
			return ErrOutOfOrder
		}
		if v == last.Version {
			last.Value = value
			return nil
		}
	}
	if len(f.entries) == cap(f.entries) {
		return ErrOverflow
	}
	f.entries = append(f.entries, Entry[T]{Version: v, Value: value})
	return nil
}

// Latest returns the newest entry, if any.
func (f *Field[T]) Latest() (Entry[T], bool) {
	if len(f.entries) == 0 {
		return Entry[T]{}, false
	}
	return f.entries[len(f.entries)-1], true
}

// Full reports whether a write at a new version would overflow.
func (f *Field[T]) Full() bool {
	return len(f.entries) == cap(f.entries)
}

func (f *Field[T]) Len() int { return len(f.entries) }

func (f *Field[T]) Cap() int { return cap(f.entries) }

// Entries returns a copy of the modification log, oldest first.
func (f *Field[T]) Entries() []Entry[T] {
	out := make([]Entry[T], len(f.entries))
	copy(out, f.entries)
	return out
}

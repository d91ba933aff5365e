package contacts

// Loader produces contacts from a segment source one at a time. Loaders are
// finite, single-pass, and not restartable: once Next returns false the
// loader is exhausted and must not be reused. Err reports the first error
// encountered while reading the source; it is only meaningful after
// exhaustion.
//
// Large spreadsheet sources are streamed, so consumers must never assume the
// full contact list fits in memory.
type Loader interface {
	Next() (Contact, bool)
	Err() error
}

type sliceLoader struct {
	contacts []Contact
	pos      int
}

// NewSliceLoader wraps an in-memory contact list (the usual case: the segment
// service returns the list inline as JSON).
func NewSliceLoader(cs []Contact) Loader {
	return &sliceLoader{contacts: cs}
}

func (l *sliceLoader) Next() (Contact, bool) {
	if l.pos >= len(l.contacts) {
		return Contact{}, false
	}
	c := l.contacts[l.pos]
	l.pos++
	return c, true
}

func (l *sliceLoader) Err() error { return nil }

package field

import (
	"encoding/json"
)

// Set is the ordered collection of fields owned by one target document.
// Sequence order is draw order. A Set is not safe for concurrent mutation.
type Set struct {
	fields []*Field
}

// NewSet creates a set holding copies of fields in the given order.
func NewSet(fields ...Field) *Set {
	s := &Set{fields: make([]*Field, 0, len(fields))}
	for i := range fields {
		s.fields = append(s.fields, fields[i].Clone())
	}
	return s
}

// Len returns the number of fields.
func (s *Set) Len() int {
	return len(s.fields)
}

// Add appends f; the set takes ownership of the pointer.
func (s *Set) Add(f *Field) {
	s.fields = append(s.fields, f)
}

// Get returns the field with the given id, or nil.
func (s *Set) Get(id string) *Field {
	for _, f := range s.fields {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// Remove deletes the field with the given id. It reports whether a field was
// removed; removing an unknown id leaves the set untouched.
func (s *Set) Remove(id string) bool {
	for i, f := range s.fields {
		if f.ID == id {
			s.fields = append(s.fields[:i], s.fields[i+1:]...)
			return true
		}
	}
	return false
}

// Fields returns a snapshot copy of the fields in order.
func (s *Set) Fields() []Field {
	out := make([]Field, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, *f.Clone())
	}
	return out
}

// MarshalJSON encodes the set as a JSON array of fields.
func (s *Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Fields())
}

// UnmarshalJSON replaces the set contents with the decoded array.
func (s *Set) UnmarshalJSON(data []byte) error {
	var fields []Field
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*s = *NewSet(fields...)
	return nil
}

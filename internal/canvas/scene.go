package canvas

// Scene is the ordered, id-keyed element collection of one session.
// Order is paint order; ids are unique after any Merge.
type Scene struct {
	order []string
	byID  map[string]*Element
	// dupes holds elements stored verbatim by Replace whose id already appeared
	// earlier in the sequence. They are kept so Elements returns what was given.
	dupes map[int]*Element
}

// NewScene builds a scene from a stored sequence, keeping it verbatim.
func NewScene(elements []Element) *Scene {
	s := &Scene{}
	s.Replace(elements)
	return s
}

// Len returns the number of stored records, tombstones included.
func (s *Scene) Len() int {
	return len(s.order)
}

// Get returns the element with the given id, if present. When Replace stored
// the id more than once, Get returns the last occurrence, which is the record
// a later Merge keeps.
func (s *Scene) Get(id string) (*Element, bool) {
	el, ok := s.byID[id]
	if !ok || len(s.dupes) == 0 {
		return el, ok
	}
	for i := len(s.order) - 1; i >= 0; i-- {
		if s.order[i] != id {
			continue
		}
		if dup, isDup := s.dupes[i]; isDup {
			return dup, true
		}
		break
	}
	return el, true
}

// Has reports whether id is present.
func (s *Scene) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Upsert overwrites the element with the same id in place or appends it.
func (s *Scene) Upsert(el Element) {
	if existing, ok := s.byID[el.ID]; ok {
		*existing = el
		return
	}
	stored := el
	s.byID[el.ID] = &stored
	s.order = append(s.order, el.ID)
}

// Merge overwrites records whose id is already present and appends the rest
// in input order. Records are replaced whole, never field-merged.
func (s *Scene) Merge(batch []Element) {
	if len(s.dupes) > 0 {
		s.collapse()
	}
	for _, el := range batch {
		s.Upsert(el.Clone())
	}
}

// Replace discards the current contents and stores seq exactly as given.
// No binding maintenance and no de-duplication happen here.
func (s *Scene) Replace(seq []Element) {
	s.order = make([]string, 0, len(seq))
	s.byID = make(map[string]*Element, len(seq))
	s.dupes = nil
	for i, el := range seq {
		el = el.Clone()
		if _, ok := s.byID[el.ID]; ok {
			if s.dupes == nil {
				s.dupes = make(map[int]*Element)
			}
			dup := el
			s.dupes[i] = &dup
			s.order = append(s.order, el.ID)
			continue
		}
		stored := el
		s.byID[el.ID] = &stored
		s.order = append(s.order, el.ID)
	}
}

// Elements returns a deep copy of the sequence in paint order.
func (s *Scene) Elements() []Element {
	out := make([]Element, 0, len(s.order))
	for i, id := range s.order {
		if dup, ok := s.dupes[i]; ok {
			out = append(out, dup.Clone())
			continue
		}
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// collapse folds duplicate records left by Replace: the position of the first
// occurrence is kept and the last occurrence's value wins.
func (s *Scene) collapse() {
	order := make([]string, 0, len(s.order)-len(s.dupes))
	for i, id := range s.order {
		if dup, ok := s.dupes[i]; ok {
			*s.byID[id] = *dup
			continue
		}
		order = append(order, id)
	}
	s.order = order
	s.dupes = nil
}

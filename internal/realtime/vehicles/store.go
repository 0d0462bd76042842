package vehicles

import "sort"

// Store holds one sample per vehicle id. It is plain data with no timing
// logic and is not safe for concurrent use.
type Store struct {
	samples map[string]Sample
}

// NewStore returns an initialised store
func NewStore() *Store {
	s := &Store{}
	s.Init()
	return s
}

// Init prepares an empty store. Calling it on a populated store discards
// its contents.
func (s *Store) Init() {
	s.samples = make(map[string]Sample)
}

// Clear drops every sample
func (s *Store) Clear() {
	clear(s.samples)
}

func (s *Store) Len() int {
	return len(s.samples)
}

func (s *Store) Get(id string) (Sample, bool) {
	sample, ok := s.samples[id]
	return sample, ok
}

// IDs returns every tracked id, sorted
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.samples))
	for id := range s.samples {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ScopeIDs returns the ids owned by one scope, sorted
func (s *Store) ScopeIDs(scope string) []string {
	var ids []string
	for id, sample := range s.samples {
		if sample.Scope == scope {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// replaceScope swaps a scope's contents in one step: every sample of the
// scope that is not in next is deleted, every sample in next is stored.
func (s *Store) replaceScope(scope string, next map[string]Sample) []string {
	var removed []string
	for id, sample := range s.samples {
		if sample.Scope != scope {
			continue
		}
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
			delete(s.samples, id)
		}
	}
	for id, sample := range next {
		s.samples[id] = sample
	}
	sort.Strings(removed)
	return removed
}

// each visits every sample
func (s *Store) each(fn func(Sample)) {
	for _, sample := range s.samples {
		fn(sample)
	}
}

package api

import (
	"sync"
)

// ProfileStore keeps profiles in memory, oldest first, up to a fixed
// capacity after which the oldest entries are evicted.
type ProfileStore struct {
	mu       sync.Mutex
	capacity int
	order    []string
	profiles map[string]Profile
}

// NewProfileStore returns a store holding at most capacity profiles; zero
// or less means unbounded.
func NewProfileStore(capacity int) *ProfileStore {
	return &ProfileStore{
		capacity: capacity,
		profiles: make(map[string]Profile),
	}
}

func (s *ProfileStore) Save(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.ID]; !ok {
		s.order = append(s.order, p.ID)
	}
	s.profiles[p.ID] = p
	for s.capacity > 0 && len(s.order) > s.capacity {
		delete(s.profiles, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *ProfileStore) Get(id string) (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	return p, ok
}

func (s *ProfileStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[id]; !ok {
		return false
	}
	delete(s.profiles, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns up to limit profiles, newest first, optionally restricted to
// one model. A limit of zero or less returns all of them.
func (s *ProfileStore) List(model string, limit int) []Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Profile, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		p := s.profiles[s.order[i]]
		if model != "" && p.Model != model {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (s *ProfileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}

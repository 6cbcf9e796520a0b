package mirror

// PathState is the set of relative paths the engine considers already
// accounted for: present at startup, or successfully created/renamed and not
// since deleted. It is read and mutated only from the scheduling loop, so it
// needs no internal locking.
type PathState struct {
	paths map[string]struct{}
}

// NewPathState returns an empty tracker.
func NewPathState() *PathState {
	return &PathState{paths: make(map[string]struct{})}
}

// Contains reports whether rel is accounted for.
func (s *PathState) Contains(rel string) bool {
	_, ok := s.paths[rel]
	return ok
}

// Mark records rel as accounted for.
func (s *PathState) Mark(rel string) {
	s.paths[rel] = struct{}{}
}

// Unmark removes rel.
func (s *PathState) Unmark(rel string) {
	delete(s.paths, rel)
}

// Seed records a batch of paths, called once per mapping at startup.
func (s *PathState) Seed(paths []string) {
	for _, p := range paths {
		s.paths[p] = struct{}{}
	}
}

// Len returns the number of tracked paths.
func (s *PathState) Len() int {
	return len(s.paths)
}

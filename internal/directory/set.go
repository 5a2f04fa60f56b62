package directory

// Set is a membership set over a canonical key.
type Set[K comparable] map[K]struct{}

// NewSet returns a set holding keys.
func NewSet[K comparable](keys ...K) Set[K] {
	s := make(Set[K], len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Add inserts k and reports whether it was absent.
func (s Set[K]) Add(k K) bool {
	if _, ok := s[k]; ok {
		return false
	}
	s[k] = struct{}{}
	return true
}

// Has reports whether k is in the set.
func (s Set[K]) Has(k K) bool {
	_, ok := s[k]
	return ok
}

// Delete removes k.
func (s Set[K]) Delete(k K) {
	delete(s, k)
}

// Len returns the number of members.
func (s Set[K]) Len() int {
	return len(s)
}

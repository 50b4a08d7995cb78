package internal

// Set is an unordered collection of distinct comparable values. It is not
// safe for concurrent use.
type Set[T comparable] struct {
	m map[T]struct{}
}

func NewSet[T comparable]() *Set[T] {
	return &Set[T]{
		m: make(map[T]struct{}),
	}
}

func (s *Set[T]) Add(item T) {
	s.m[item] = struct{}{}
}

// AddAll returns how many of items were not yet present.
func (s *Set[T]) AddAll(items ...T) int {
	added := 0
	for _, item := range items {
		if _, ok := s.m[item]; !ok {
			s.m[item] = struct{}{}
			added++
		}
	}
	return added
}

func (s *Set[T]) Remove(item T) {
	delete(s.m, item)
}

func (s *Set[T]) Contains(item T) bool {
	_, exists := s.m[item]
	return exists
}

func (s *Set[T]) Len() int {
	return len(s.m)
}

func (s *Set[T]) Elements() []T {
	elements := make([]T, 0, len(s.m))
	for item := range s.m {
		elements = append(elements, item)
	}
	return elements
}

package domain

// TreeSet is a tree collection keyed by tree id that keeps insertion order, so
// aggregate sums are reproducible across runs.
type TreeSet struct {
	byID  map[int]*Tree
	order []int
}

func newTreeSet() TreeSet {
	return TreeSet{byID: make(map[int]*Tree)}
}

// Put stores the tree, replacing any record with the same id in place.
func (s *TreeSet) Put(tree *Tree) {
	if s.byID == nil {
		s.byID = make(map[int]*Tree)
	}
	if _, exists := s.byID[tree.TreeID]; !exists {
		s.order = append(s.order, tree.TreeID)
	}
	s.byID[tree.TreeID] = tree
}

// Get returns the tree with the given id.
func (s TreeSet) Get(id int) (*Tree, bool) {
	t, ok := s.byID[id]
	return t, ok
}

// Remove deletes a tree by id and reports whether it existed.
func (s *TreeSet) Remove(id int) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of trees held.
func (s TreeSet) Len() int { return len(s.order) }

// List returns the trees in insertion order. The slice is fresh; the trees are shared.
func (s TreeSet) List() []*Tree {
	out := make([]*Tree, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

func (s TreeSet) clone() TreeSet {
	out := TreeSet{byID: make(map[int]*Tree, len(s.byID)), order: make([]int, 0, len(s.order))}
	for _, id := range s.order {
		out.byID[id] = s.byID[id].Clone()
		out.order = append(out.order, id)
	}
	return out
}

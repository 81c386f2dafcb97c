package framecache

import "sort"

// IndexSet is a set of frame indices
type IndexSet map[int]struct{}

func NewIndexSet(is ...int) IndexSet {
	s := IndexSet{}
	for _, i := range is {
		s.Add(i)
	}
	return s
}

// RangeSet has the indices [start, end)
func RangeSet(start, end int) IndexSet {
	s := IndexSet{}
	for i := start; i < end; i++ {
		s.Add(i)
	}
	return s
}

func (s IndexSet) Add(i int)           { s[i] = struct{}{} }
func (s IndexSet) Remove(i int)        { delete(s, i) }
func (s IndexSet) Contains(i int) bool { _, ok := s[i]; return ok }
func (s IndexSet) Len() int            { return len(s) }

// Subtract returns indices in s not in o
func (s IndexSet) Subtract(o IndexSet) IndexSet {
	r := IndexSet{}
	for i := range s {
		if !o.Contains(i) {
			r.Add(i)
		}
	}
	return r
}

// Sorted indices in ascending order
func (s IndexSet) Sorted() []int {
	is := make([]int, 0, len(s))
	for i := range s {
		is = append(is, i)
	}
	sort.Ints(is)
	return is
}

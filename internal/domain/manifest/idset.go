package manifest

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// IDSet is a set of normalized identifiers. The zero value is empty and
// read-only; use NewIDSet before calling Add.
type IDSet struct {
	set mapset.Set[string]
}

func NewIDSet(ids ...string) IDSet {
	return IDSet{set: mapset.NewThreadUnsafeSet[string](ids...)}
}

func (s IDSet) Add(id string) {
	s.set.Add(id)
}

func (s IDSet) Contains(id string) bool {
	if s.set == nil {
		return false
	}
	return s.set.Contains(id)
}

func (s IDSet) Len() int {
	if s.set == nil {
		return 0
	}
	return s.set.Cardinality()
}

// Difference returns the identifiers in s that are not in other.
func (s IDSet) Difference(other IDSet) IDSet {
	if s.set == nil {
		return NewIDSet()
	}
	if other.set == nil {
		return IDSet{set: s.set.Clone()}
	}
	return IDSet{set: s.set.Difference(other.set)}
}

func (s IDSet) Sorted() []string {
	if s.set == nil {
		return []string{}
	}
	out := s.set.ToSlice()
	slices.Sort(out)
	return out
}

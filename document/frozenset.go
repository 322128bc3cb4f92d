package document

// FrozenSet is an immutable unordered set of scalar values.
//
// Members must be comparable Go values (bool, integers, floats,
// strings). The set cannot be modified after construction; all
// accessors return copies.
type FrozenSet struct {
	members map[any]struct{}
}

// NewFrozenSet creates a FrozenSet holding the given members.
// Duplicate members collapse to a single entry. An empty call creates
// the empty set, which is a valid, distinct value (not nil).
func NewFrozenSet(members ...any) *FrozenSet {
	set := &FrozenSet{
		members: make(map[any]struct{}, len(members)),
	}
	for _, m := range members {
		set.members[m] = struct{}{}
	}
	return set
}

// Has reports whether member is in the set.
func (s *FrozenSet) Has(member any) bool {
	_, ok := s.members[member]
	return ok
}

// Len returns the number of members.
func (s *FrozenSet) Len() int {
	return len(s.members)
}

// Values returns the members in a deterministic order.
// The order carries no semantic meaning; it only makes serialization
// and test output stable.
func (s *FrozenSet) Values() []any {
	return sortedMembers(s.members)
}

// Equal reports whether two sets hold the same members.
func (s *FrozenSet) Equal(other *FrozenSet) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.members) != len(other.members) {
		return false
	}
	for m := range s.members {
		if _, ok := other.members[m]; !ok {
			return false
		}
	}
	return true
}

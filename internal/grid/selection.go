package grid

import "sort"

// Selection is a set of item ids
type Selection map[string]struct{}

func (s Selection) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s Selection) Set(id string, on bool) {
	if on {
		s[id] = struct{}{}
	} else {
		delete(s, id)
	}
}

func (s Selection) Len() int { return len(s) }

// IDs returns the selected ids in sorted order
func (s Selection) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone copies the set for read-only projections
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

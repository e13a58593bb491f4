// Package pivot reconciles submitted child keys with the rows persisted for a
// parent in a child or pivot table.
package pivot

// ChangeSet is the result of diffing a submitted key set against a persisted one.
type ChangeSet[K comparable] struct {
	// Removable holds persisted keys that were not submitted.
	Removable []K `json:"removable"`
	// NewEntries holds submitted keys that are not persisted yet.
	NewEntries []K `json:"newEntries"`
}

// Empty reports whether nothing needs to change.
func (c ChangeSet[K]) Empty() bool {
	return len(c.Removable) == 0 && len(c.NewEntries) == 0
}

// Diff computes the keys to delete and the keys to create. Both results keep
// the order of first occurrence in their source slice and contain no duplicates.
func Diff[K comparable](submitted, persisted []K) ChangeSet[K] {
	inSubmitted := make(map[K]struct{}, len(submitted))
	for _, k := range submitted {
		inSubmitted[k] = struct{}{}
	}
	inPersisted := make(map[K]struct{}, len(persisted))
	for _, k := range persisted {
		inPersisted[k] = struct{}{}
	}

	var out ChangeSet[K]
	seen := make(map[K]struct{}, len(persisted))
	for _, k := range persisted {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, keep := inSubmitted[k]; !keep {
			out.Removable = append(out.Removable, k)
		}
	}
	clear(seen)
	for _, k := range submitted {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, exists := inPersisted[k]; !exists {
			out.NewEntries = append(out.NewEntries, k)
		}
	}
	return out
}

package object

import "fmt"

// CheckAppendOnly verifies invariant 4: session_index only grows across
// successive versions. prior is the session_index of the earlier
// version, next is the later one.
func CheckAppendOnly(prior, next []string) error {
	priorSet := make(map[string]bool, len(prior))
	for _, id := range prior {
		priorSet[id] = true
	}
	for _, id := range prior {
		found := false
		for _, n := range next {
			if n == id {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("session_index must be append-only: missing id %s present in prior snapshot", id)
		}
	}
	return nil
}

// CheckSetContainment verifies invariant 3:
// active_set ⊆ metadata_pool ⊆ session_index, pinned_set ⊆ metadata_pool.
func CheckSetContainment(sessionIndex, pool, active, pinned []string) error {
	indexSet := toSet(sessionIndex)
	poolSet := toSet(pool)
	for _, id := range pool {
		if !indexSet[id] {
			return fmt.Errorf("metadata_pool member %s is not in session_index", id)
		}
	}
	for _, id := range active {
		if !poolSet[id] {
			return fmt.Errorf("active_set member %s is not in metadata_pool", id)
		}
	}
	for _, id := range pinned {
		if !poolSet[id] {
			return fmt.Errorf("pinned_set member %s is not in metadata_pool", id)
		}
	}
	return nil
}

func toSet(ids []string) map[string]bool {
	s := make(map[string]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

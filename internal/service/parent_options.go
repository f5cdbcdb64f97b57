package service

import "github.com/clearconf/config-engine/internal/models"

// parentOptions returns the configurations eligible to become the parent of
// currentID: everything except the node itself and its transitive
// descendants. An empty currentID (new entry) keeps the full set.
//
// The walk tracks visited ids so it terminates even if stored data were
// cyclic, which the persistence layer prevents.
func parentOptions(configs []models.Configuration, currentID string) []models.Configuration {
	if currentID == "" {
		return configs
	}

	excluded := map[string]struct{}{currentID: {}}
	queue := []string{currentID}
	for len(queue) > 0 {
		parentID := queue[0]
		queue = queue[1:]
		for _, cfg := range configs {
			if cfg.ParentConfigID == nil || *cfg.ParentConfigID != parentID {
				continue
			}
			if _, seen := excluded[cfg.ID]; seen {
				continue
			}
			excluded[cfg.ID] = struct{}{}
			queue = append(queue, cfg.ID)
		}
	}

	available := make([]models.Configuration, 0, len(configs))
	for _, cfg := range configs {
		if _, skip := excluded[cfg.ID]; !skip {
			available = append(available, cfg)
		}
	}
	return available
}

// isDescendant reports whether candidateID lies in the subtree rooted at
// rootID (or equals it), used to reject parent assignments that would close
// a cycle.
func isDescendant(configs []models.Configuration, rootID, candidateID string) bool {
	if rootID == candidateID {
		return true
	}
	for _, cfg := range parentOptions(configs, rootID) {
		if cfg.ID == candidateID {
			return false
		}
	}
	// candidate missing from the option set means it was excluded.
	for _, cfg := range configs {
		if cfg.ID == candidateID {
			return true
		}
	}
	return false
}

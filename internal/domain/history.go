package domain

import (
	"slices"
	"time"
)

// DefaultExclusionCap bounds the disliked-topics list.
const DefaultExclusionCap = 20

// History is the durable cross-cycle state.
type History struct {
	PostedIDs      []string   `json:"postedIds"`
	DislikedTopics []string   `json:"dislikedTopics"`
	LastRunDate    *time.Time `json:"lastRunDate"`
}

// Handled reports whether id was already recorded.
func (h History) Handled(id string) bool {
	for _, posted := range h.PostedIDs {
		if posted == id {
			return true
		}
	}
	return false
}

// MarkHandled appends id unless it is already present. Ids are never removed.
func (h *History) MarkHandled(id string) bool {
	if id == "" || h.Handled(id) {
		return false
	}
	h.PostedIDs = append(h.PostedIDs, id)
	return true
}

// MergeExclusions unions items into the disliked topics and keeps only the
// newest limit entries. It returns how many previously unknown entries were added.
func (h *History) MergeExclusions(items []string, limit int) int {
	seen := make(map[string]struct{}, len(h.DislikedTopics)+len(items))
	merged := make([]string, 0, len(h.DislikedTopics)+len(items))
	for _, topic := range h.DislikedTopics {
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		merged = append(merged, topic)
	}

	added := 0
	for _, topic := range items {
		if topic == "" {
			continue
		}
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		merged = append(merged, topic)
		added++
	}

	if limit > 0 && len(merged) > limit {
		merged = merged[len(merged)-limit:]
	}
	h.DislikedTopics = merged
	return added
}

// Clone returns a deep copy safe to mutate independently.
func (h History) Clone() History {
	out := History{
		PostedIDs:      slices.Clone(h.PostedIDs),
		DislikedTopics: slices.Clone(h.DislikedTopics),
	}
	if h.LastRunDate != nil {
		t := *h.LastRunDate
		out.LastRunDate = &t
	}
	return out
}

// EmptyHistory is the fallback when nothing valid is persisted.
func EmptyHistory() History {
	return History{PostedIDs: []string{}, DislikedTopics: []string{}}
}

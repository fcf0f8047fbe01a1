package domain

import "sort"

// MergeTimeline reconciles a fetched history with live-pushed messages.
// This is the contract the web client holds: live events whose id already
// appears in the history are dropped, the rest are appended, and a single
// stable sort on createdAt restores order when a push raced the fetch.
// Kept server-side so the contract has one tested definition.
func MergeTimeline(history []Message, live []Message) []Message {
	seen := make(map[string]struct{}, len(history))
	merged := make([]Message, 0, len(history)+len(live))

	for _, m := range history {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	for _, m := range live {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}

	// stable keeps persisted insertion order for equal timestamps
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})

	return merged
}

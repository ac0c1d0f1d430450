package domain

import (
	"fmt"
	"strings"
)

// Policy selects how the partitioner sizes the slot sequence.
//
// stable-slots - a fixed slot count is always produced; empty slots hold
// the placeholder so remote list identities never churn.
// exact-resize - slot count tracks the domain count exactly; surplus
// lists become eligible for deletion.
type Policy uint8

const (
	// PolicyStableSlots reserves a fixed number of slots regardless of
	// the current domain count.
	PolicyStableSlots Policy = iota
	// PolicyExactResize produces exactly ceil(n/capacity) slots.
	PolicyExactResize
)

// String returns a stable string representation of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyStableSlots:
		return "stable-slots"
	case PolicyExactResize:
		return "exact-resize"
	default:
		return fmt.Sprintf("Policy(%d)", p)
	}
}

// ParsePolicy converts a string into a Policy.
// Accepts: "stable-slots", "exact-resize" (case-insensitive).
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stable-slots":
		return PolicyStableSlots, nil
	case "exact-resize":
		return PolicyExactResize, nil
	default:
		return 0, fmt.Errorf("unsupported partition policy: %q", s)
	}
}

// Chunk is the desired membership of one slot: a contiguous window of
// the deduplicated domain sequence, or the lone placeholder when the
// slot has no corresponding domains.
type Chunk struct {
	Slot    Slot
	Domains []Hostname
}

// IsPlaceholder reports whether this chunk holds only the inert
// placeholder entry. Placeholder chunks must never contribute to a
// compiled filter.
func (c Chunk) IsPlaceholder() bool {
	return len(c.Domains) == 1 && c.Domains[0] == Placeholder
}

// Partition slices domains into chunks of at most capacity entries, in
// source order, and assigns ascending slot identities.
//
// Under PolicyStableSlots exactly maxSlots chunks are returned, with
// slots beyond the real data holding the placeholder; if the domains do
// not fit the slot budget the pass fails with ErrCapacityExceeded
// rather than silently dropping entries. Under PolicyExactResize the
// chunk count equals ceil(len(domains)/capacity) with no placeholders.
func Partition(domains []Hostname, capacity, maxSlots int, policy Policy) ([]Chunk, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("partition capacity must be positive, got %d", capacity)
	}
	needed := (len(domains) + capacity - 1) / capacity

	if policy == PolicyStableSlots {
		if maxSlots < 1 {
			return nil, fmt.Errorf("slot budget must be positive, got %d", maxSlots)
		}
		if needed > maxSlots {
			return nil, fmt.Errorf("%w: %d domains need %d lists of %d but only %d slots are configured",
				ErrCapacityExceeded, len(domains), needed, capacity, maxSlots)
		}
	}

	total := needed
	if policy == PolicyStableSlots {
		total = maxSlots
	}

	chunks := make([]Chunk, 0, total)
	for i := 0; i < total; i++ {
		if i < needed {
			lo := i * capacity
			hi := lo + capacity
			if hi > len(domains) {
				hi = len(domains)
			}
			chunks = append(chunks, Chunk{Slot: Slot(i), Domains: domains[lo:hi]})
			continue
		}
		chunks = append(chunks, Chunk{Slot: Slot(i), Domains: []Hostname{Placeholder}})
	}
	return chunks, nil
}

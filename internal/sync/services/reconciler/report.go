package reconciler

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/haukened/blocksync/internal/sync/domain"
)

// SlotAction describes what the list phase did for one slot.
type SlotAction uint8

const (
	// SlotUnchanged means the remote list already matched.
	SlotUnchanged SlotAction = iota
	// SlotCreated means a new remote list was created.
	SlotCreated
	// SlotUpdated means membership was patched.
	SlotUpdated
	// SlotFailed means this slot did not reach the desired state.
	SlotFailed
)

// String returns a stable string representation of the action.
func (a SlotAction) String() string {
	switch a {
	case SlotUnchanged:
		return "unchanged"
	case SlotCreated:
		return "created"
	case SlotUpdated:
		return "updated"
	case SlotFailed:
		return "failed"
	default:
		return fmt.Sprintf("SlotAction(%d)", a)
	}
}

// SlotOutcome is the per-slot result of the list phase. Err is set only
// when Action is SlotFailed.
type SlotOutcome struct {
	Slot   domain.Slot
	Name   string
	ID     string
	Active bool
	Action SlotAction
	Err    error
}

// ListReport is the explicit hand-off from the list phase to the policy
// phase: converged slot bindings plus any surplus lists found under
// exact-resize, threaded as a value rather than ambient state so the
// phases cannot be reordered silently.
type ListReport struct {
	Outcomes []SlotOutcome
	// Surplus holds managed lists whose slot no longer has a chunk
	// (exact-resize only). They are pruned after the rule stops
	// referencing them.
	Surplus []domain.RemoteList
}

// Bindings returns the slot-to-identity bindings for every slot that
// converged, in slot order.
func (r *ListReport) Bindings() []domain.ListBinding {
	out := make([]domain.ListBinding, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Action == SlotFailed {
			continue
		}
		out = append(out, domain.ListBinding{Slot: o.Slot, ID: o.ID, Name: o.Name, Active: o.Active})
	}
	return out
}

// FailedRequired reports whether any slot carrying real members failed.
// Placeholder-slot failures degrade stability but do not block the
// policy phase, since inactive slots never enter the filter.
func (r *ListReport) FailedRequired() bool {
	for _, o := range r.Outcomes {
		if o.Action == SlotFailed && o.Active {
			return true
		}
	}
	return false
}

// Err aggregates every per-slot failure. Nil when all slots converged.
func (r *ListReport) Err() error {
	var err error
	for _, o := range r.Outcomes {
		if o.Action == SlotFailed {
			err = multierr.Append(err, fmt.Errorf("slot %s: %w", o.Name, o.Err))
		}
	}
	return err
}

// Counts summarizes actions for logging.
func (r *ListReport) Counts() map[string]any {
	var created, updated, unchanged, failed int
	for _, o := range r.Outcomes {
		switch o.Action {
		case SlotCreated:
			created++
		case SlotUpdated:
			updated++
		case SlotFailed:
			failed++
		default:
			unchanged++
		}
	}
	return map[string]any{
		"created":   created,
		"updated":   updated,
		"unchanged": unchanged,
		"failed":    failed,
		"surplus":   len(r.Surplus),
	}
}

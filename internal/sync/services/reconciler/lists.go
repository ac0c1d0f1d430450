package reconciler

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/haukened/blocksync/internal/sync/domain"
)

// ApplyLists partitions the source domains and converges one remote
// list per slot. Per-slot failures are isolated: a failed slot is
// recorded in the report and the remaining slots still converge. The
// returned report is complete even when err is non-nil; err aggregates
// the slot failures.
func (s *Service) ApplyLists(ctx context.Context, domains []domain.Hostname) (*ListReport, error) {
	chunks, err := domain.Partition(domains, s.capacity, s.maxSlots, s.policy)
	if err != nil {
		return nil, err
	}

	all, err := s.lists.ListLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate lists: %w", err)
	}
	existing := s.managedLists(all)

	s.logger.Info(map[string]any{
		"domains": len(domains),
		"chunks":  len(chunks),
		"policy":  s.policy.String(),
		"remote":  len(existing),
	}, "list_phase_start")

	report := &ListReport{Outcomes: make([]SlotOutcome, len(chunks))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			report.Outcomes[i] = s.convergeSlot(gctx, chunk, existing)
			// per-slot failures are recorded, not propagated, so one
			// bad slot does not cancel the group
			return nil
		})
	}
	_ = g.Wait()

	if s.policy == domain.PolicyExactResize {
		for slot, l := range existing {
			if int(slot) >= len(chunks) {
				report.Surplus = append(report.Surplus, l)
			}
		}
	}

	s.logger.Info(report.Counts(), "list_phase_done")
	return report, report.Err()
}

// convergeSlot drives one slot to its desired membership. The snapshot
// hash is only a shortcut past the remote membership fetch; any doubt
// (missing snapshot, count mismatch) falls through to a remote compare.
func (s *Service) convergeSlot(ctx context.Context, chunk domain.Chunk, existing map[domain.Slot]domain.RemoteList) SlotOutcome {
	name := chunk.Slot.Name(s.prefix)
	active := !chunk.IsPlaceholder()
	out := SlotOutcome{Slot: chunk.Slot, Name: name, Active: active}

	desiredHash := domain.MembershipHash(chunk.Domains)

	remote, ok := existing[chunk.Slot]
	if !ok {
		created, err := s.lists.CreateList(ctx, name, chunk.Domains)
		if err != nil {
			return s.failSlot(out, err)
		}
		out.ID = created.ID
		out.Action = SlotCreated
		s.recordSlot(name, desiredHash)
		s.logger.Info(map[string]any{"slot": name, "id": created.ID, "members": len(chunk.Domains)}, "list_created")
		return out
	}
	out.ID = remote.ID

	if snapHash, found, err := s.snapshots.SlotHash(name); err == nil && found &&
		snapHash == desiredHash && remote.Count == len(chunk.Domains) {
		out.Action = SlotUnchanged
		s.logger.Debug(map[string]any{"slot": name}, "list_unchanged_snapshot")
		return out
	}

	current, err := s.lists.GetListItems(ctx, remote.ID)
	if err != nil {
		return s.failSlot(out, err)
	}
	if domain.MembershipHash(current) == desiredHash {
		out.Action = SlotUnchanged
		s.recordSlot(name, desiredHash)
		s.logger.Debug(map[string]any{"slot": name}, "list_unchanged")
		return out
	}

	add, remove := diffMembership(chunk.Domains, current)
	if err := s.lists.UpdateListItems(ctx, remote.ID, add, remove); err != nil {
		return s.failSlot(out, err)
	}
	out.Action = SlotUpdated
	s.recordSlot(name, desiredHash)
	s.logger.Info(map[string]any{
		"slot": name, "id": remote.ID, "added": len(add), "removed": len(remove),
	}, "list_updated")
	return out
}

func (s *Service) failSlot(out SlotOutcome, err error) SlotOutcome {
	out.Action = SlotFailed
	out.Err = err
	s.logger.Error(map[string]any{"slot": out.Name, "error": err.Error()}, "list_slot_failed")
	return out
}

// recordSlot persists the pushed membership hash. Snapshot write
// failures are logged, never fatal: the store is an optimization.
func (s *Service) recordSlot(name, hash string) {
	if err := s.snapshots.PutSlotHash(name, hash); err != nil {
		s.logger.Warn(map[string]any{"slot": name, "error": err.Error()}, "snapshot_write_failed")
	}
}

// diffMembership computes the append/remove deltas turning current into
// desired, both treated as sets.
func diffMembership(desired, current []domain.Hostname) (add, remove []domain.Hostname) {
	want := make(map[domain.Hostname]struct{}, len(desired))
	for _, d := range desired {
		want[d] = struct{}{}
	}
	have := make(map[domain.Hostname]struct{}, len(current))
	for _, c := range current {
		have[c] = struct{}{}
	}
	for _, d := range desired {
		if _, ok := have[d]; !ok {
			add = append(add, d)
		}
	}
	for _, c := range current {
		if _, ok := want[c]; !ok {
			remove = append(remove, c)
		}
	}
	return add, remove
}

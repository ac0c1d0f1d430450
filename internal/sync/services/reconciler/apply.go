package reconciler

import (
	"context"

	"go.uber.org/multierr"

	"github.com/haukened/blocksync/internal/sync/domain"
)

// CreateLists runs the source-read and list phases only, returning the
// report for a later policy phase.
func (s *Service) CreateLists(ctx context.Context) (*ListReport, error) {
	domains, err := s.source.Load()
	if err != nil {
		return nil, err
	}
	return s.ApplyLists(ctx, domains)
}

// CreatePolicy runs the policy phase standalone. Without a report from
// the same pass it rebuilds the bindings from the current remote state,
// trusting only lists that follow the managed naming convention.
func (s *Service) CreatePolicy(ctx context.Context) error {
	report, err := s.rebindFromRemote(ctx)
	if err != nil {
		return err
	}
	return s.ApplyPolicy(ctx, report)
}

// Apply is the full pass: read source, converge lists, converge the
// rule, then prune surplus lists (exact-resize). A per-slot failure on
// a placeholder slot does not stop the policy phase but still fails the
// pass overall: partial success is never reported as full success.
func (s *Service) Apply(ctx context.Context) error {
	domains, err := s.source.Load()
	if err != nil {
		return err
	}

	report, listErr := s.ApplyLists(ctx, domains)
	if report == nil {
		return listErr
	}

	if err := s.ApplyPolicy(ctx, report); err != nil {
		return multierr.Append(listErr, err)
	}

	if err := s.PruneLists(ctx, report); err != nil {
		return multierr.Append(listErr, err)
	}
	return listErr
}

// Reset is teardown plus re-apply with a settling delay in between, to
// tolerate the platform's eventual consistency after deletions.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.Teardown(ctx); err != nil {
		return err
	}
	s.logger.Info(map[string]any{"delay": s.settleDelay.String()}, "settle_before_apply")
	if err := s.clk.Sleep(ctx, s.settleDelay); err != nil {
		return err
	}
	return s.Apply(ctx)
}

// rebindFromRemote reconstructs slot bindings by enumerating managed
// lists and treating any list whose membership is more than the lone
// placeholder as active. Placeholder lists report Count 1; a count of
// zero means an emptied list, also inactive.
func (s *Service) rebindFromRemote(ctx context.Context) (*ListReport, error) {
	all, err := s.lists.ListLists(ctx)
	if err != nil {
		return nil, err
	}
	managed := s.managedLists(all)

	report := &ListReport{}
	for slot, l := range managed {
		active := l.Count > 1
		if l.Count == 1 {
			// a single member is ambiguous: placeholder or a one-entry
			// chunk; only a membership fetch can tell
			items, err := s.lists.GetListItems(ctx, l.ID)
			if err != nil {
				return nil, err
			}
			active = len(items) > 0 && !(len(items) == 1 && items[0] == domain.Placeholder)
		}
		report.Outcomes = append(report.Outcomes, SlotOutcome{
			Slot:   slot,
			Name:   l.Name,
			ID:     l.ID,
			Active: active,
			Action: SlotUnchanged,
		})
	}
	return report, nil
}

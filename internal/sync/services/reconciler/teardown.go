package reconciler

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// DeletePolicies removes the managed block rule. Absent rule is a
// no-op: teardown must be re-runnable.
func (s *Service) DeletePolicies(ctx context.Context) error {
	rules, err := s.rules.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("enumerate rules: %w", err)
	}
	rule, found := findRule(rules, s.ruleName)
	if !found {
		s.logger.Info(map[string]any{"rule": s.ruleName}, "rule_already_absent")
		return nil
	}
	if err := s.rules.DeleteRule(ctx, rule.ID); err != nil {
		return err
	}
	s.logger.Info(map[string]any{"rule": rule.Name, "id": rule.ID}, "rule_deleted")
	return nil
}

// DeleteLists removes every managed list. It must only run once the
// rule is gone; callers that still have a rule in place get rejections
// from the platform, so Teardown sequences the two.
func (s *Service) DeleteLists(ctx context.Context) error {
	all, err := s.lists.ListLists(ctx)
	if err != nil {
		return fmt.Errorf("enumerate lists: %w", err)
	}
	managed := s.managedLists(all)
	if len(managed) == 0 {
		s.logger.Info(map[string]any{"prefix": s.prefix}, "no_managed_lists")
		return nil
	}

	errs := make([]error, 0, len(managed))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	results := make(chan error, len(managed))
	for _, l := range managed {
		g.Go(func() error {
			if err := s.lists.DeleteList(gctx, l.ID); err != nil {
				s.logger.Error(map[string]any{"list": l.Name, "error": err.Error()}, "list_delete_failed")
				results <- fmt.Errorf("delete %s: %w", l.Name, err)
				return nil
			}
			s.logger.Info(map[string]any{"list": l.Name, "id": l.ID}, "list_deleted")
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	for err := range results {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return multierr.Combine(errs...)
	}

	if err := s.snapshots.Clear(); err != nil {
		s.logger.Warn(map[string]any{"error": err.Error()}, "snapshot_clear_failed")
	}
	return nil
}

// Teardown deletes the rule first, then every managed list. The order
// is mandatory: removing a list the rule still references would either
// be rejected or leave a dangling reference.
func (s *Service) Teardown(ctx context.Context) error {
	s.logger.Info(map[string]any{"rule": s.ruleName, "prefix": s.prefix}, "teardown_start")
	if err := s.DeletePolicies(ctx); err != nil {
		return fmt.Errorf("rule deletion failed, leaving lists in place: %w", err)
	}
	if err := s.DeleteLists(ctx); err != nil {
		return err
	}
	s.logger.Info(nil, "teardown_done")
	return nil
}

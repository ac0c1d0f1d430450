package reconciler

import (
	"context"
	"fmt"
	"strings"

	"github.com/haukened/blocksync/internal/sync/domain"
)

// ApplyPolicy converges the single managed block rule against the list
// phase's report. It is a strict barrier: the rule embeds list
// identities, so it refuses to touch the remote when a required slot
// failed or an active binding is not present remotely, surfacing an
// ordering violation instead of letting the platform reject a dangling
// reference.
func (s *Service) ApplyPolicy(ctx context.Context, report *ListReport) error {
	if report == nil {
		return fmt.Errorf("%w: policy phase requires a list report", domain.ErrOrderingViolation)
	}
	if report.FailedRequired() {
		return fmt.Errorf("%w: a required list did not converge, refusing to compile rule %q",
			domain.ErrOrderingViolation, s.ruleName)
	}

	bindings := report.Bindings()
	if err := s.verifyBindings(ctx, bindings); err != nil {
		return err
	}

	spec := domain.RuleSpec{
		Name:        s.ruleName,
		Description: s.ruleDesc,
		Enabled:     true,
		Precedence:  s.precedence,
		Traffic:     domain.CompileFilter(bindings),
	}

	rules, err := s.rules.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("enumerate rules: %w", err)
	}

	existing, found := findRule(rules, s.ruleName)
	if !found {
		created, err := s.rules.CreateRule(ctx, spec)
		if err != nil {
			return err
		}
		s.logger.Info(map[string]any{"rule": spec.Name, "id": created.ID}, "rule_created")
		return nil
	}

	if spec.Matches(existing) {
		s.logger.Debug(map[string]any{"rule": spec.Name, "id": existing.ID}, "rule_unchanged")
		return nil
	}

	if _, err := s.rules.UpdateRule(ctx, existing.ID, spec); err != nil {
		return err
	}
	s.logger.Info(map[string]any{"rule": spec.Name, "id": existing.ID}, "rule_updated")
	return nil
}

// verifyBindings confirms every active binding still names an existing
// remote list before any rule call is issued.
func (s *Service) verifyBindings(ctx context.Context, bindings []domain.ListBinding) error {
	var wanted []domain.ListBinding
	for _, b := range bindings {
		if b.Active {
			wanted = append(wanted, b)
		}
	}
	if len(wanted) == 0 {
		return nil
	}

	all, err := s.lists.ListLists(ctx)
	if err != nil {
		return fmt.Errorf("enumerate lists: %w", err)
	}
	present := make(map[string]struct{}, len(all))
	for _, l := range all {
		present[l.ID] = struct{}{}
	}
	for _, b := range wanted {
		if b.ID == "" {
			return fmt.Errorf("%w: slot %s has no remote identity", domain.ErrOrderingViolation, b.Name)
		}
		if _, ok := present[b.ID]; !ok {
			return fmt.Errorf("%w: rule %q would reference missing list %s (%s)",
				domain.ErrOrderingViolation, s.ruleName, b.ID, b.Name)
		}
	}
	return nil
}

// PruneLists deletes surplus managed lists recorded by an exact-resize
// list phase. It runs after the policy phase so the rule no longer
// references them; a list still referenced is a hard ordering violation
// and is left in place.
func (s *Service) PruneLists(ctx context.Context, report *ListReport) error {
	if report == nil || len(report.Surplus) == 0 {
		return nil
	}

	rules, err := s.rules.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("enumerate rules: %w", err)
	}
	rule, found := findRule(rules, s.ruleName)

	var firstErr error
	for _, l := range report.Surplus {
		if found && referencesList(rule.Traffic, l.ID) {
			err := fmt.Errorf("%w: list %s (%s) is still referenced by rule %q",
				domain.ErrOrderingViolation, l.ID, l.Name, rule.Name)
			s.logger.Error(map[string]any{"list": l.Name, "error": err.Error()}, "prune_refused")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := s.lists.DeleteList(ctx, l.ID); err != nil {
			s.logger.Error(map[string]any{"list": l.Name, "error": err.Error()}, "prune_failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.logger.Info(map[string]any{"list": l.Name, "id": l.ID}, "list_pruned")
	}
	return firstErr
}

// findRule locates the managed rule by its exact name.
func findRule(rules []domain.RemoteRule, name string) (domain.RemoteRule, bool) {
	for _, r := range rules {
		if r.Name == name {
			return r, true
		}
	}
	return domain.RemoteRule{}, false
}

// referencesList reports whether a compiled traffic expression mentions
// the list identity (the filter language strips UUID dashes).
func referencesList(traffic, id string) bool {
	if id == "" {
		return false
	}
	return strings.Contains(traffic, "$"+strings.ReplaceAll(id, "-", ""))
}

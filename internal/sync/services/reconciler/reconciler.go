// Package reconciler drives the remote gateway toward the state implied
// by the local blocklist: size-bounded domain lists, one per slot, and a
// single DNS block rule whose traffic filter ORs over the active lists.
package reconciler

import (
	"fmt"
	"time"

	"github.com/haukened/blocksync/internal/sync/common/clock"
	logpkg "github.com/haukened/blocksync/internal/sync/common/log"
	"github.com/haukened/blocksync/internal/sync/domain"
)

// Service orchestrates the list phase, the policy phase, and teardown.
// One Service instance assumes it is the only writer for the account;
// concurrent passes against shared remote state race.
type Service struct {
	source    Source
	lists     GatewayLists
	rules     GatewayRules
	snapshots Snapshots
	clk       clock.Clock
	logger    logpkg.Logger

	prefix      string
	ruleName    string
	ruleDesc    string
	precedence  int
	capacity    int
	maxSlots    int
	policy      domain.Policy
	concurrency int
	settleDelay time.Duration
}

// Options defines configuration parameters for the reconciler service.
type Options struct {
	// required collaborators
	Source Source
	Lists  GatewayLists
	Rules  GatewayRules
	// optional collaborators
	Snapshots Snapshots
	Clock     clock.Clock
	Logger    logpkg.Logger
	// behavior
	ListPrefix      string
	RuleName        string
	RuleDescription string
	RulePrecedence  int
	Capacity        int
	MaxSlots        int
	Policy          domain.Policy
	Concurrency     int
	SettleDelay     time.Duration
}

// NewService creates a reconciler. Returns an error when a required
// collaborator or naming parameter is missing. Defaults: capacity 1000,
// 15 slots, stable-slots policy, concurrency 3, 60s settle delay.
func NewService(opts Options) (*Service, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if opts.Lists == nil || opts.Rules == nil {
		return nil, fmt.Errorf("gateway list and rule clients are required")
	}
	if opts.ListPrefix == "" {
		return nil, fmt.Errorf("managed list prefix is required")
	}
	if opts.RuleName == "" {
		return nil, fmt.Errorf("managed rule name is required")
	}
	if opts.Snapshots == nil {
		opts.Snapshots = noopSnapshots{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.GetLogger()
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 1000
	}
	if opts.MaxSlots <= 0 {
		opts.MaxSlots = 15
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	if opts.RulePrecedence <= 0 {
		opts.RulePrecedence = 1000
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 60 * time.Second
	}
	return &Service{
		source:      opts.Source,
		lists:       opts.Lists,
		rules:       opts.Rules,
		snapshots:   opts.Snapshots,
		clk:         opts.Clock,
		logger:      opts.Logger,
		prefix:      opts.ListPrefix,
		ruleName:    opts.RuleName,
		ruleDesc:    opts.RuleDescription,
		precedence:  opts.RulePrecedence,
		capacity:    opts.Capacity,
		maxSlots:    opts.MaxSlots,
		policy:      opts.Policy,
		concurrency: opts.Concurrency,
		settleDelay: opts.SettleDelay,
	}, nil
}

// managedLists filters an enumeration down to lists following the
// managed naming convention, keyed by slot.
func (s *Service) managedLists(all []domain.RemoteList) map[domain.Slot]domain.RemoteList {
	out := make(map[domain.Slot]domain.RemoteList)
	for _, l := range all {
		if slot, ok := domain.ParseSlot(l.Name, s.prefix); ok {
			out[slot] = l
		}
	}
	return out
}

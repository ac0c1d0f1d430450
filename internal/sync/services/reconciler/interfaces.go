package reconciler

import (
	"context"

	"github.com/haukened/blocksync/internal/sync/domain"
)

// Source yields the normalized local blocklist.
type Source interface {
	Load() ([]domain.Hostname, error)
}

// GatewayLists is the list half of the remote policy platform. Managed
// lists are recognized by naming convention; enumeration returns every
// list on the account.
type GatewayLists interface {
	ListLists(ctx context.Context) ([]domain.RemoteList, error)
	GetListItems(ctx context.Context, id string) ([]domain.Hostname, error)
	CreateList(ctx context.Context, name string, items []domain.Hostname) (domain.RemoteList, error)
	UpdateListItems(ctx context.Context, id string, add, remove []domain.Hostname) error
	DeleteList(ctx context.Context, id string) error
}

// GatewayRules is the rule half of the remote policy platform.
type GatewayRules interface {
	ListRules(ctx context.Context) ([]domain.RemoteRule, error)
	CreateRule(ctx context.Context, spec domain.RuleSpec) (domain.RemoteRule, error)
	UpdateRule(ctx context.Context, id string, spec domain.RuleSpec) (domain.RemoteRule, error)
	DeleteRule(ctx context.Context, id string) error
}

// Snapshots records the membership hash last pushed per slot so
// unchanged slots can be skipped without refetching remote membership.
// The remote stays authoritative: a missing or stale entry only costs
// an extra read.
type Snapshots interface {
	SlotHash(name string) (string, bool, error)
	PutSlotHash(name, hash string) error
	Clear() error
}

// noopSnapshots disables the fast path when no snapshot store is
// configured.
type noopSnapshots struct{}

func (noopSnapshots) SlotHash(string) (string, bool, error) { return "", false, nil }
func (noopSnapshots) PutSlotHash(string, string) error      { return nil }
func (noopSnapshots) Clear() error                          { return nil }

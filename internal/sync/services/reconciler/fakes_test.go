package reconciler

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/haukened/blocksync/internal/sync/common/clock"
	"github.com/haukened/blocksync/internal/sync/common/log"
	"github.com/haukened/blocksync/internal/sync/domain"
)

// fakeList is one in-memory remote list.
type fakeList struct {
	meta  domain.RemoteList
	items []domain.Hostname
}

// fakeGateway is an in-memory stand-in for the remote platform,
// implementing both gateway interfaces with call counters, an ordered
// event log, and per-resource error injection.
type fakeGateway struct {
	mu     sync.Mutex
	lists  map[string]*fakeList         // by id
	rules  map[string]domain.RemoteRule // by id
	nextID int

	events []string

	createListCalls int
	updateListCalls int
	deleteListCalls int
	getItemsCalls   int
	listListsCalls  int
	createRuleCalls int
	updateRuleCalls int
	deleteRuleCalls int

	failCreateList map[string]error // keyed by list name
	failDeleteRule error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		lists:          make(map[string]*fakeList),
		rules:          make(map[string]domain.RemoteRule),
		failCreateList: make(map[string]error),
	}
}

func (f *fakeGateway) record(ev string) { f.events = append(f.events, ev) }

func (f *fakeGateway) ListLists(context.Context) ([]domain.RemoteList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listListsCalls++
	out := make([]domain.RemoteList, 0, len(f.lists))
	for _, l := range f.lists {
		meta := l.meta
		meta.Count = len(l.items)
		out = append(out, meta)
	}
	return out, nil
}

func (f *fakeGateway) GetListItems(_ context.Context, id string) ([]domain.Hostname, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getItemsCalls++
	l, ok := f.lists[id]
	if !ok {
		return nil, fmt.Errorf("%w: list %s not found", domain.ErrExternalRejected, id)
	}
	out := make([]domain.Hostname, len(l.items))
	copy(out, l.items)
	return out, nil
}

func (f *fakeGateway) CreateList(_ context.Context, name string, items []domain.Hostname) (domain.RemoteList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createListCalls++
	if err := f.failCreateList[name]; err != nil {
		return domain.RemoteList{}, err
	}
	for _, l := range f.lists {
		if l.meta.Name == name {
			return domain.RemoteList{}, fmt.Errorf("%w: duplicate list name %q", domain.ErrExternalRejected, name)
		}
	}
	f.nextID++
	id := fmt.Sprintf("list-%04d", f.nextID)
	copied := make([]domain.Hostname, len(items))
	copy(copied, items)
	f.lists[id] = &fakeList{
		meta:  domain.RemoteList{ID: id, Name: name, Type: domain.ListTypeDomain, Count: len(items)},
		items: copied,
	}
	f.record("create-list:" + name)
	return f.lists[id].meta, nil
}

func (f *fakeGateway) UpdateListItems(_ context.Context, id string, add, remove []domain.Hostname) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateListCalls++
	l, ok := f.lists[id]
	if !ok {
		return fmt.Errorf("%w: list %s not found", domain.ErrExternalRejected, id)
	}
	drop := make(map[domain.Hostname]struct{}, len(remove))
	for _, r := range remove {
		drop[r] = struct{}{}
	}
	kept := l.items[:0]
	for _, it := range l.items {
		if _, gone := drop[it]; !gone {
			kept = append(kept, it)
		}
	}
	l.items = append(kept, add...)
	f.record("update-list:" + l.meta.Name)
	return nil
}

func (f *fakeGateway) DeleteList(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteListCalls++
	l, ok := f.lists[id]
	if !ok {
		return fmt.Errorf("%w: list %s not found", domain.ErrExternalRejected, id)
	}
	// the platform refuses to delete a list a rule still references
	for _, r := range f.rules {
		if strings.Contains(r.Traffic, strings.ReplaceAll(id, "-", "")) {
			return fmt.Errorf("%w: list %s is in use", domain.ErrExternalRejected, id)
		}
	}
	delete(f.lists, id)
	f.record("delete-list:" + l.meta.Name)
	return nil
}

func (f *fakeGateway) ListRules(context.Context) ([]domain.RemoteRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.RemoteRule, 0, len(f.rules))
	for _, r := range f.rules {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeGateway) CreateRule(_ context.Context, spec domain.RuleSpec) (domain.RemoteRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createRuleCalls++
	for _, r := range f.rules {
		if r.Name == spec.Name {
			return domain.RemoteRule{}, fmt.Errorf("%w: duplicate rule name %q", domain.ErrExternalRejected, spec.Name)
		}
	}
	f.nextID++
	rule := domain.RemoteRule{
		ID:          fmt.Sprintf("rule-%04d", f.nextID),
		Name:        spec.Name,
		Description: spec.Description,
		Enabled:     spec.Enabled,
		Precedence:  spec.Precedence,
		Action:      "block",
		Filters:     []string{"dns"},
		Traffic:     spec.Traffic,
	}
	f.rules[rule.ID] = rule
	f.record("create-rule:" + spec.Name)
	return rule, nil
}

func (f *fakeGateway) UpdateRule(_ context.Context, id string, spec domain.RuleSpec) (domain.RemoteRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateRuleCalls++
	r, ok := f.rules[id]
	if !ok {
		return domain.RemoteRule{}, fmt.Errorf("%w: rule %s not found", domain.ErrExternalRejected, id)
	}
	r.Description = spec.Description
	r.Enabled = spec.Enabled
	r.Precedence = spec.Precedence
	r.Traffic = spec.Traffic
	f.rules[id] = r
	f.record("update-rule:" + r.Name)
	return r, nil
}

func (f *fakeGateway) DeleteRule(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteRuleCalls++
	if f.failDeleteRule != nil {
		return f.failDeleteRule
	}
	r, ok := f.rules[id]
	if !ok {
		return fmt.Errorf("%w: rule %s not found", domain.ErrExternalRejected, id)
	}
	delete(f.rules, id)
	f.record("delete-rule:" + r.Name)
	return nil
}

var (
	_ GatewayLists = (*fakeGateway)(nil)
	_ GatewayRules = (*fakeGateway)(nil)
)

// memSnapshots is a map-backed Snapshots for tests.
type memSnapshots struct {
	mu     sync.Mutex
	hashes map[string]string
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{hashes: make(map[string]string)}
}

func (m *memSnapshots) SlotHash(name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[name]
	return h, ok, nil
}

func (m *memSnapshots) PutSlotHash(name, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[name] = hash
	return nil
}

func (m *memSnapshots) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes = make(map[string]string)
	return nil
}

// staticSource serves a fixed domain slice.
type staticSource struct {
	domains []domain.Hostname
	err     error
}

func (s *staticSource) Load() ([]domain.Hostname, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.domains, nil
}

// testDomains generates n distinct hostnames.
func testDomains(n int) []domain.Hostname {
	out := make([]domain.Hostname, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Hostname(fmt.Sprintf("blocked-%05d.example.com", i)))
	}
	return out
}

// newTestService wires a Service around the fake gateway.
func newTestService(gw *fakeGateway, src *staticSource, snaps Snapshots, policy domain.Policy, opts ...func(*Options)) *Service {
	o := Options{
		Source:      src,
		Lists:       gw,
		Rules:       gw,
		Snapshots:   snaps,
		Clock:       &clock.MockClock{},
		Logger:      log.NewNoopLogger(),
		ListPrefix:  "pfx-",
		RuleName:    "Test Blocklist",
		Capacity:    1000,
		MaxSlots:    15,
		Policy:      policy,
		Concurrency: 1,
	}
	for _, fn := range opts {
		fn(&o)
	}
	svc, err := NewService(o)
	if err != nil {
		panic(err)
	}
	return svc
}

package domain

// ListTypeDomain is the platform type tag for domain lists. Managed
// lists are always this type.
const ListTypeDomain = "DOMAIN"

// RemoteList mirrors a gateway list resource: an opaque identity, a
// name derived from its slot, a type tag, and a member count. Membership
// itself is fetched separately.
type RemoteList struct {
	ID    string
	Name  string
	Type  string
	Count int
}

// RemoteRule mirrors a gateway policy rule resource.
type RemoteRule struct {
	ID          string
	Name        string
	Description string
	Enabled     bool
	Precedence  int
	Action      string
	Filters     []string
	Traffic     string
}

// RuleSpec is the desired state of the managed block rule. The name is
// the natural key used to locate the rule across runs.
type RuleSpec struct {
	Name        string
	Description string
	Enabled     bool
	Precedence  int
	Traffic     string
}

// Matches reports whether the remote rule already satisfies the spec,
// so a reconcile pass can skip the update call. Only fields the
// reconciler owns are compared.
func (s RuleSpec) Matches(r RemoteRule) bool {
	return r.Enabled == s.Enabled &&
		r.Precedence == s.Precedence &&
		r.Description == s.Description &&
		r.Traffic == s.Traffic
}

// ListBinding records the outcome of converging one slot: the remote
// list identity now bound to it and whether the slot carries real
// blocklist members (placeholder slots are inactive).
type ListBinding struct {
	Slot   Slot
	ID     string
	Name   string
	Active bool
}

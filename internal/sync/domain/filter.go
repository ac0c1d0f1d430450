package domain

import (
	"sort"
	"strings"
)

// NeverMatchFilter is the compiled expression when no active list
// exists. It tests the wire field against the placeholder domain, which
// normalization guarantees is never present in real traffic, so the
// rule can exist without matching anything. An empty expression must
// never be emitted: the platform would treat it as match-everything.
const NeverMatchFilter = `dns.fqdn == "` + string(Placeholder) + `"`

// CompileFilter builds the traffic expression for the block rule: the
// OR of one membership test per active binding, in ascending slot order
// so identical inputs always compile to the identical string and no-op
// runs produce no spurious rule diffs.
func CompileFilter(bindings []ListBinding) string {
	active := make([]ListBinding, 0, len(bindings))
	for _, b := range bindings {
		if b.Active && b.ID != "" {
			active = append(active, b)
		}
	}
	if len(active) == 0 {
		return NeverMatchFilter
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Slot < active[j].Slot })

	clauses := make([]string, 0, len(active))
	for _, b := range active {
		clauses = append(clauses, "any(dns.domains[*] in $"+filterListID(b.ID)+")")
	}
	return strings.Join(clauses, " or ")
}

// filterListID converts a list UUID into the identifier form the filter
// language expects (no dashes).
func filterListID(id string) string {
	return strings.ReplaceAll(id, "-", "")
}

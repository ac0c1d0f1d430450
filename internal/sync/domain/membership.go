package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// MembershipHash fingerprints a list membership as an unordered set:
// identical member sets hash identically regardless of source order, so
// the fingerprint of a freshly partitioned chunk can be compared to one
// recorded after a push or rebuilt from a remote fetch.
func MembershipHash(members []Hostname) string {
	vals := make([]string, 0, len(members))
	for _, m := range members {
		vals = append(vals, string(m))
	}
	sort.Strings(vals)

	h := sha256.New()
	for _, v := range vals {
		h.Write([]byte(v))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

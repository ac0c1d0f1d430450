package domain

import (
	"fmt"
	"strconv"
)

// Slot is a stable positional identity in the sequence of managed remote
// lists. The domain previously assigned to slot k stays in slot k unless
// the total domain count shrinks below k's threshold, so remote resource
// identities survive re-runs.
type Slot int

// Name derives the managed list name for this slot: the fixed prefix
// followed by a zero-padded 3-digit slot number. This naming convention
// is the round-trip key for identifying managed lists across runs.
func (s Slot) Name(prefix string) string {
	return fmt.Sprintf("%s%03d", prefix, int(s))
}

// ParseSlot recovers the slot number from a managed list name. The
// second return is false when the name does not follow the managed
// naming convention for the given prefix.
func ParseSlot(name, prefix string) (Slot, bool) {
	if len(name) != len(prefix)+3 || name[:len(prefix)] != prefix {
		return 0, false
	}
	digits := name[len(prefix):]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return Slot(n), true
}

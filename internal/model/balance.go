package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Currency denominations. WL (World Lock) is the base unit.
const (
	WLPerDL  int64 = 100
	WLPerBGL int64 = 10000
)

// Balance is a tiered currency amount. The canonical value is the total
// WL count, which is never negative; the three fields are a display
// decomposition of that total.
type Balance struct {
	WL  int64
	DL  int64
	BGL int64
}

// TotalWL returns the canonical value of the balance in base units.
func (b Balance) TotalWL() int64 {
	return b.WL + b.DL*WLPerDL + b.BGL*WLPerBGL
}

// FromWL decomposes a total WL amount greedily into the largest
// denominations. Negative totals are clamped to zero.
func FromWL(total int64) Balance {
	if total < 0 {
		total = 0
	}
	bgl := total / WLPerBGL
	total -= bgl * WLPerBGL
	dl := total / WLPerDL
	total -= dl * WLPerDL
	return Balance{WL: total, DL: dl, BGL: bgl}
}

// Format returns a human-readable form, largest denominations first,
// skipping zero components. A zero balance formats as "0 WL".
func (b Balance) Format() string {
	var parts []string
	if b.BGL > 0 {
		parts = append(parts, fmt.Sprintf("%d BGL", b.BGL))
	}
	if b.DL > 0 {
		parts = append(parts, fmt.Sprintf("%d DL", b.DL))
	}
	if b.WL > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d WL", b.WL))
	}
	return strings.Join(parts, ", ")
}

// Snapshot returns the wire form "wl|dl|bgl" used for audit-trail
// balance snapshots.
func (b Balance) Snapshot() string {
	return fmt.Sprintf("%d|%d|%d", b.WL, b.DL, b.BGL)
}

// ParseSnapshot parses the Snapshot wire form. It returns an error for
// malformed input or negative components so callers can skip corrupted
// audit records.
func ParseSnapshot(s string) (Balance, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 3 {
		return Balance{}, fmt.Errorf("malformed balance snapshot %q", s)
	}
	vals := make([]int64, 3)
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return Balance{}, fmt.Errorf("malformed balance snapshot %q: %w", s, err)
		}
		if v < 0 {
			return Balance{}, fmt.Errorf("negative component in balance snapshot %q", s)
		}
		vals[i] = v
	}
	return Balance{WL: vals[0], DL: vals[1], BGL: vals[2]}, nil
}

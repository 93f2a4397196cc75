package city

import (
	"cmp"
	"slices"
)

// TransferKey identifies a change from one (line, direction) to another.
// An empty direction matches any direction of its line.
type TransferKey struct {
	FromLine      string
	FromDirection string
	ToLine        string
	ToDirection   string
}

// TransferTable maps transfer keys to walking minutes
type TransferTable map[TransferKey]int

// Lookup finds the minutes for a key: exact match first, then wildcard directions
func (tt TransferTable) Lookup(k TransferKey) (int, bool) {
	candidates := []TransferKey{
		k,
		{FromLine: k.FromLine, ToLine: k.ToLine, ToDirection: k.ToDirection},
		{FromLine: k.FromLine, FromDirection: k.FromDirection, ToLine: k.ToLine},
		{FromLine: k.FromLine, ToLine: k.ToLine},
	}
	for _, c := range candidates {
		if m, ok := tt[c]; ok {
			return m, true
		}
	}
	return 0, false
}

// TransferEntry is one row of a transfer table
type TransferEntry struct {
	Key     TransferKey
	Minutes int
}

// Entries returns the rows sorted by key
func (tt TransferTable) Entries() []TransferEntry {
	out := make([]TransferEntry, 0, len(tt))
	for k, m := range tt {
		out = append(out, TransferEntry{Key: k, Minutes: m})
	}
	slices.SortFunc(out, func(a, b TransferEntry) int {
		return compareKeys(a.Key, b.Key)
	})
	return out
}

func compareKeys(a, b TransferKey) int {
	return cmp.Or(
		cmp.Compare(a.FromLine, b.FromLine),
		cmp.Compare(a.FromDirection, b.FromDirection),
		cmp.Compare(a.ToLine, b.ToLine),
		cmp.Compare(a.ToDirection, b.ToDirection),
	)
}

// TransferMinutes returns the in-station transfer time at a station.
// Without an entry, staying on the same line and direction is free and any
// other change costs the city default.
func (c *City) TransferMinutes(station string, k TransferKey) int {
	if tt, ok := c.Transfers[station]; ok {
		if m, ok := tt.Lookup(k); ok {
			return m
		}
	}
	if k.FromLine == k.ToLine && k.FromDirection == k.ToDirection {
		return 0
	}
	return c.DefaultTransferMinutes
}

// StationPair is an unordered pair of stations, stored sorted
type StationPair [2]string

// Pair builds a normalized StationPair
func Pair(a, b string) StationPair {
	if b < a {
		a, b = b, a
	}
	return StationPair{a, b}
}

// Less orders pairs lexicographically
func (p StationPair) Less(o StationPair) bool {
	if p[0] != o[0] {
		return p[0] < o[0]
	}
	return p[1] < o[1]
}

// VirtualTransfer is an out-of-station walk between two stations that counts
// as an interchange
type VirtualTransfer struct {
	Pair   StationPair
	tables map[[2]string]TransferTable // (from, to) -> table
}

func (v *VirtualTransfer) add(from, to string, k TransferKey, minutes int) {
	key := [2]string{from, to}
	tt, ok := v.tables[key]
	if !ok {
		tt = make(TransferTable)
		v.tables[key] = tt
	}
	tt[k] = minutes
}

// Other returns the partner of a station in the pair
func (v *VirtualTransfer) Other(station string) string {
	if v.Pair[0] == station {
		return v.Pair[1]
	}
	return v.Pair[0]
}

// Table returns the walk table from one station of the pair to the other
func (v *VirtualTransfer) Table(from, to string) TransferTable {
	return v.tables[[2]string{from, to}]
}

// Minutes returns the walk time for a line change across the pair
func (v *VirtualTransfer) Minutes(from, to string, k TransferKey) (int, bool) {
	return v.Table(from, to).Lookup(k)
}

// MinMinutes returns the shortest walk from one station to the other among
// entries accepted by match
func (v *VirtualTransfer) MinMinutes(from, to string, match func(TransferKey) bool) (int, bool) {
	best, found := 0, false
	for k, m := range v.Table(from, to) {
		if match != nil && !match(k) {
			continue
		}
		if !found || m < best {
			best, found = m, true
		}
	}
	return best, found
}

package cli

import (
	"net/netip"
	"sort"
	"strconv"
	"strings"

	"github.com/sammcj/mcp-fofa/internal/search"
)

// Bucket is one histogram row
type Bucket struct {
	Key   string `json:"key" yaml:"key"`
	Count int    `json:"count" yaml:"count"`
}

// Stats summarises a page of records
type Stats struct {
	Ports    []Bucket `json:"ports" yaml:"ports"`
	Segments []Bucket `json:"segments" yaml:"segments"`
}

// PortHistogram counts records per port, most common first with ties broken by ascending
// port. Records without a port are skipped. top <= 0 keeps every bucket.
func PortHistogram(records []search.AssetRecord, top int) []Bucket {
	counts := make(map[string]int)
	for _, rec := range records {
		port := strings.TrimSpace(rec.Port)
		if port == "" {
			continue
		}
		counts[port]++
	}

	buckets := toBuckets(counts)
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return portLess(buckets[i].Key, buckets[j].Key)
	})
	return limit(buckets, top)
}

// SegmentHistogram counts IPv4 records per /24 network, most common first with ties
// broken by address. Non-IPv4 addresses are skipped. top <= 0 keeps every bucket.
func SegmentHistogram(records []search.AssetRecord, top int) []Bucket {
	counts := make(map[netip.Prefix]int)
	for _, rec := range records {
		addr, err := netip.ParseAddr(strings.TrimSpace(rec.IP))
		if err != nil || !addr.Is4() {
			continue
		}
		prefix, err := addr.Prefix(24)
		if err != nil {
			continue
		}
		counts[prefix]++
	}

	prefixes := make([]netip.Prefix, 0, len(counts))
	for p := range counts {
		prefixes = append(prefixes, p)
	}
	sort.Slice(prefixes, func(i, j int) bool {
		if counts[prefixes[i]] != counts[prefixes[j]] {
			return counts[prefixes[i]] > counts[prefixes[j]]
		}
		return prefixes[i].Addr().Less(prefixes[j].Addr())
	})

	buckets := make([]Bucket, 0, len(prefixes))
	for _, p := range prefixes {
		buckets = append(buckets, Bucket{Key: p.String(), Count: counts[p]})
	}
	return limit(buckets, top)
}

func toBuckets(counts map[string]int) []Bucket {
	buckets := make([]Bucket, 0, len(counts))
	for key, count := range counts {
		buckets = append(buckets, Bucket{Key: key, Count: count})
	}
	return buckets
}

// portLess orders numeric ports numerically and anything else after them as text
func portLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

func limit(buckets []Bucket, top int) []Bucket {
	if top > 0 && len(buckets) > top {
		return buckets[:top]
	}
	return buckets
}


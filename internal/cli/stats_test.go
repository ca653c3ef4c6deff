package cli

import (
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/sammcj/mcp-fofa/internal/search"
	"github.com/stretchr/testify/assert"
)

func displayWidth(s string) int {
	return runewidth.StringWidth(s)
}

func records(pairs ...string) []search.AssetRecord {
	var out []search.AssetRecord
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, search.AssetRecord{IP: pairs[i], Port: pairs[i+1]})
	}
	return out
}

func TestPortHistogram(t *testing.T) {
	recs := records(
		"1.1.1.1", "443",
		"1.1.1.2", "80",
		"1.1.1.3", "8080",
		"1.1.1.4", "80",
		"1.1.1.5", "443",
		"1.1.1.6", "22",
		"1.1.1.7", "",
	)

	assert.Equal(t, []Bucket{
		{Key: "80", Count: 2},
		{Key: "443", Count: 2},
		{Key: "22", Count: 1},
		{Key: "8080", Count: 1},
	}, PortHistogram(recs, 0))

	assert.Equal(t, []Bucket{{Key: "80", Count: 2}, {Key: "443", Count: 2}}, PortHistogram(recs, 2))
	assert.Empty(t, PortHistogram(nil, 10))
}

func TestSegmentHistogram(t *testing.T) {
	recs := records(
		"10.0.0.1", "80",
		"10.0.0.200", "80",
		"9.9.9.9", "53",
		"2001:db8::1", "80",
		"::ffff:10.0.0.5", "80",
		"not-an-ip", "80",
		"", "80",
		"10.0.1.1", "80",
	)

	assert.Equal(t, []Bucket{
		{Key: "10.0.0.0/24", Count: 2},
		{Key: "9.9.9.0/24", Count: 1},
		{Key: "10.0.1.0/24", Count: 1},
	}, SegmentHistogram(recs, 0))

	assert.Len(t, SegmentHistogram(recs, 1), 1)
}

func TestPortLess(t *testing.T) {
	assert.True(t, portLess("22", "443"))
	assert.True(t, portLess("9", "10"))
	assert.True(t, portLess("80", "abc"))
	assert.False(t, portLess("abc", "80"))
	assert.True(t, portLess("abc", "abd"))
}

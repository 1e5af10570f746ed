package oid_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/munin-snmp-bridge/internal/oid"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    oid.OID
		wantErr bool
	}{
		{name: "leading dot", in: ".1.3.6.1", want: oid.OID{1, 3, 6, 1}},
		{name: "no leading dot", in: "1.3.6.1", want: oid.OID{1, 3, 6, 1}},
		{name: "single component", in: "1", want: oid.OID{1}},
		{name: "empty", in: "", wantErr: true},
		{name: "bare dot", in: ".", wantErr: true},
		{name: "alpha component", in: "1.3.x.1", wantErr: true},
		{name: "negative component", in: "1.-3.1", wantErr: true},
		{name: "empty component", in: "1..3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := oid.Parse(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	o := oid.MustParse(".1.3.6.1.4.1.123456.100.1.1")
	assert.Equal(t, ".1.3.6.1.4.1.123456.100.1.1", o.String())

	back, err := oid.Parse(o.String())
	require.NoError(t, err)
	assert.Zero(t, oid.Compare(o, back))
}

// Numeric ordering must win over string ordering when digit widths
// differ: ".2.9" > ".2.10" as strings, but 9 < 10 as components.
func TestCompareNumericNotLexicographic(t *testing.T) {
	a := oid.MustParse(".2.9")
	b := oid.MustParse(".2.10")

	assert.Equal(t, -1, oid.Compare(a, b))
	assert.Equal(t, 1, oid.Compare(b, a))
	assert.Greater(t, a.String(), b.String(), "string comparison should disagree, that is the point")
}

func TestComparePrefixSortsFirst(t *testing.T) {
	short := oid.OID{1, 9, 97}
	long := oid.OID{1, 9, 97, 98}

	assert.Equal(t, -1, oid.Compare(short, long))
	assert.Equal(t, 1, oid.Compare(long, short))
	assert.Equal(t, 0, oid.Compare(short, short.Clone()))
}

func TestCompareIsTotalOrder(t *testing.T) {
	oids := []oid.OID{
		{1, 3, 6, 2},
		{1, 3, 6, 1, 5},
		{1, 3, 6, 1},
		{1, 3, 10},
		{1, 3, 9},
		{1},
	}
	sort.Slice(oids, func(i, j int) bool { return oid.Compare(oids[i], oids[j]) < 0 })

	want := []oid.OID{
		{1},
		{1, 3, 6, 1},
		{1, 3, 6, 1, 5},
		{1, 3, 6, 2},
		{1, 3, 9},
		{1, 3, 10},
	}
	assert.Equal(t, want, oids)
}

func TestHasPrefix(t *testing.T) {
	base := oid.MustParse(".1.3.6.1.4.1.9.1")

	assert.True(t, oid.Encode(base, "load").HasPrefix(base))
	assert.True(t, base.HasPrefix(base))
	assert.False(t, base.HasPrefix(base.Append(1)))
	assert.False(t, oid.OID{1, 4}.HasPrefix(oid.OID{1, 3}))
}

func TestEncode(t *testing.T) {
	base := oid.MustParse(".1.3.6.1.4.1.9.1")

	got := oid.Encode(base, "load")
	want := base.Append('l', 'o', 'a', 'd')
	assert.Equal(t, want, got)

	// base must not be shared with the result
	got[0] = 99
	assert.EqualValues(t, 1, base[0])
}

func TestEncodeInjective(t *testing.T) {
	base := oid.MustParse(".1.3.6.1.4.1.9.1")
	names := []string{
		"load", "loa", "loads", "Load",
		"cpu.user", "cpu.system", "cpu", "cpuuser",
		"a", "ab", "b", "",
	}

	seen := map[string]string{}
	for _, name := range names {
		key := oid.Encode(base, name).String()
		if prev, ok := seen[key]; ok {
			t.Fatalf("names %q and %q both encode to %s", prev, name, key)
		}
		seen[key] = name
	}
}

// Shorter names that are prefixes of longer ones must encode to OIDs
// that sort immediately before their extensions.
func TestEncodePrefixOrdering(t *testing.T) {
	base := oid.MustParse(".1.3.6.1.4.1.9.1")

	a := oid.Encode(base, "a")   // ends .97
	ab := oid.Encode(base, "ab") // ends .97.98
	assert.Equal(t, -1, oid.Compare(a, ab))
}

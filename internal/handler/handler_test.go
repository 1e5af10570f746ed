package handler_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/posteo/go-agentx/pdu"
	"github.com/posteo/go-agentx/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/munin-snmp-bridge/internal/cache"
	"github.com/munin-snmp-bridge/internal/handler"
	"github.com/munin-snmp-bridge/internal/munin"
	"github.com/munin-snmp-bridge/internal/oid"
)

var base = oid.MustParse(".1.3.6.1.4.1.9.1")

type staticFetcher struct {
	metrics map[string][]munin.Metric
	calls   int
}

func (f *staticFetcher) Fetch(_ context.Context, plugins []string) (map[string][]munin.Metric, map[string]error) {
	f.calls++
	results := make(map[string][]munin.Metric)
	for _, p := range plugins {
		results[p] = f.metrics[p]
	}
	return results, map[string]error{}
}

// newWarmHandler builds a handler over a cache already holding the given
// metrics under the "load" plugin.
func newWarmHandler(t *testing.T, metrics ...munin.Metric) (*handler.Handler, *staticFetcher) {
	t.Helper()
	fetcher := &staticFetcher{metrics: map[string][]munin.Metric{"load": metrics}}
	c := cache.New(cache.Options{
		Fetcher: fetcher,
		Base:    base,
		Plugins: []string{"load"},
		TTL:     time.Minute,
		Clock:   clockwork.NewFakeClock(),
	})
	c.RefreshIfStale(context.Background())
	return handler.New(c, nil, nil), fetcher
}

func TestGetExactMatch(t *testing.T) {
	h, _ := newWarmHandler(t, munin.Metric{Name: "load", Value: "0.42"})

	o, typ, val, err := h.Get(value.OID(oid.Encode(base, "load")))

	require.NoError(t, err)
	assert.Equal(t, pdu.VariableTypeOctetString, typ)
	assert.Equal(t, "0.42", val)
	assert.Equal(t, oid.Encode(base, "load").String(), oid.OID(o).String())
}

func TestGetAbsentIsNoSuchObject(t *testing.T) {
	h, _ := newWarmHandler(t, munin.Metric{Name: "load", Value: "0.42"})

	o, typ, val, err := h.Get(value.OID(oid.Encode(base, "nope")))

	require.NoError(t, err)
	assert.Nil(t, o)
	assert.Nil(t, val)
	assert.Equal(t, pdu.VariableTypeNoSuchObject, typ)
}

func TestGetNextFromSubtreeRoot(t *testing.T) {
	h, _ := newWarmHandler(t, munin.Metric{Name: "load", Value: "0.42"})

	o, typ, val, err := h.GetNext(value.OID(base), false, nil)

	require.NoError(t, err)
	assert.Equal(t, pdu.VariableTypeOctetString, typ)
	assert.Equal(t, "0.42", val)
	assert.Equal(t, oid.Encode(base, "load").String(), oid.OID(o).String())
}

func TestGetNextWalksInNumericOrder(t *testing.T) {
	h, _ := newWarmHandler(t,
		munin.Metric{Name: "a", Value: "1"},
		munin.Metric{Name: "ab", Value: "2"},
	)

	// .97 is followed by .97.98, the shorter prefix sorts first
	o, _, val, err := h.GetNext(value.OID(oid.Encode(base, "a")), false, nil)
	require.NoError(t, err)
	assert.Equal(t, "2", val)
	assert.Equal(t, oid.Encode(base, "ab").String(), oid.OID(o).String())
}

func TestGetNextIncludeFrom(t *testing.T) {
	h, _ := newWarmHandler(t, munin.Metric{Name: "load", Value: "0.42"})
	loadOID := value.OID(oid.Encode(base, "load"))

	o, _, val, err := h.GetNext(loadOID, true, nil)
	require.NoError(t, err)
	assert.Equal(t, "0.42", val)
	assert.Equal(t, loadOID, o)
}

func TestGetNextExhaustedIsEndOfMIBView(t *testing.T) {
	h, _ := newWarmHandler(t, munin.Metric{Name: "load", Value: "0.42"})

	o, typ, val, err := h.GetNext(value.OID(oid.Encode(base, "load")), false, nil)

	require.NoError(t, err)
	assert.Nil(t, o)
	assert.Nil(t, val)
	assert.Equal(t, pdu.VariableTypeEndOfMIBView, typ)
}

func TestGetNextRespectsUpperBound(t *testing.T) {
	h, _ := newWarmHandler(t, munin.Metric{Name: "load", Value: "0.42"})

	// the only entry lies outside [from, to)
	to := value.OID(base.Append(1))
	_, typ, _, err := h.GetNext(value.OID(base), false, to)

	require.NoError(t, err)
	assert.Equal(t, pdu.VariableTypeEndOfMIBView, typ)
}

func TestQueriesNeverFetchInline(t *testing.T) {
	h, fetcher := newWarmHandler(t, munin.Metric{Name: "load", Value: "0.42"})
	calls := fetcher.calls

	for i := 0; i < 10; i++ {
		_, _, _, err := h.Get(value.OID(oid.Encode(base, "load")))
		require.NoError(t, err)
	}
	assert.Equal(t, calls, fetcher.calls, "the query path must not touch upstream")
}

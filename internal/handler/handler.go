// Package handler answers the master agent's GET and GETNEXT callbacks
// from the current cache snapshot. Handlers never perform upstream I/O:
// a stale snapshot is served as-is and the refresher is poked.
package handler

import (
	"github.com/posteo/go-agentx/pdu"
	"github.com/posteo/go-agentx/value"
	"go.uber.org/zap"

	"github.com/munin-snmp-bridge/internal/cache"
	"github.com/munin-snmp-bridge/internal/oid"
	"github.com/munin-snmp-bridge/internal/telemetry"
)

// Handler implements the agentx session handler interface over the cache.
type Handler struct {
	cache   *cache.Cache
	metrics *telemetry.Metrics
	log     *zap.Logger
}

// New creates a handler. metrics may be nil.
func New(c *cache.Cache, metrics *telemetry.Metrics, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{cache: c, metrics: metrics, log: log}
}

// Get answers an exact-OID query. An absent OID is a valid silent
// outcome (NoSuchObject), not an error.
func (h *Handler) Get(o value.OID) (value.OID, pdu.VariableType, interface{}, error) {
	snap := h.snapshot()

	if v, ok := snap.Lookup(oid.OID(o)); ok {
		h.metrics.ObserveRequest("get", telemetry.OutcomeFound)
		return o, pdu.VariableTypeOctetString, v, nil
	}
	h.metrics.ObserveRequest("get", telemetry.OutcomeAbsent)
	h.log.Debug("get miss", zap.String("oid", oid.OID(o).String()))
	return nil, pdu.VariableTypeNoSuchObject, nil, nil
}

// GetNext answers a successor query over the half-open range (from, to],
// with from itself included when includeFrom is set. Exhaustion is
// signalled with EndOfMIBView so the master stops walking this subtree.
func (h *Handler) GetNext(from value.OID, includeFrom bool, to value.OID) (value.OID, pdu.VariableType, interface{}, error) {
	snap := h.snapshot()
	start := oid.OID(from)

	if includeFrom {
		if v, ok := snap.Lookup(start); ok {
			h.metrics.ObserveRequest("getnext", telemetry.OutcomeFound)
			return from, pdu.VariableTypeOctetString, v, nil
		}
	}

	entry, ok := snap.NextAfter(start)
	if !ok || (len(to) > 0 && oid.Compare(entry.OID, oid.OID(to)) >= 0) {
		h.metrics.ObserveRequest("getnext", telemetry.OutcomeAbsent)
		return nil, pdu.VariableTypeEndOfMIBView, nil, nil
	}
	h.metrics.ObserveRequest("getnext", telemetry.OutcomeFound)
	return value.OID(entry.OID), pdu.VariableTypeOctetString, entry.Value, nil
}

// snapshot loads the published snapshot and nudges the refresher when it
// has gone stale. Query latency stays decoupled from upstream latency.
func (h *Handler) snapshot() *cache.Snapshot {
	if h.cache.Stale() {
		h.cache.Poke()
	}
	return h.cache.Current()
}

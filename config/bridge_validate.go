package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/munin-snmp-bridge/internal/oid"
)

// Validate checks the munin section beyond the struct tags: TTL sanity
// and the plugin spec character set. Metric names are byte-encoded into
// OID components later, so the charset is pinned down here once instead
// of on every refresh. Host reachability is deliberately not checked:
// an unreachable node is recovered per plugin at fetch time, never at
// startup.
func (m *MuninConfig) Validate() error {
	if err := valid.Struct(m); err != nil {
		return err
	}

	if m.TTL < time.Second || m.TTL > 3600*time.Second {
		return fmt.Errorf("munin.ttl must be between 1s and 3600s, got %s", m.TTL)
	}

	seen := map[string]bool{}
	for _, p := range m.Plugins {
		if strings.TrimSpace(p) == "" {
			return errors.New("munin.plugins cannot contain empty entry")
		}
		if err := validatePluginSpec(p); err != nil {
			return fmt.Errorf("munin.plugins entry %q: %w", p, err)
		}
		if seen[p] {
			return fmt.Errorf("munin.plugins contains duplicate entry: %q", p)
		}
		seen[p] = true
	}
	return nil
}

// validatePluginSpec accepts "plugin" or "plugin.field" built from
// printable ASCII without whitespace. Anything else would produce metric
// names this bridge never wants to encode.
func validatePluginSpec(spec string) error {
	if strings.HasPrefix(spec, ".") || strings.HasSuffix(spec, ".") {
		return errors.New("must not start or end with '.'")
	}
	for _, c := range spec {
		if c <= ' ' || c > '~' {
			return fmt.Errorf("contains non-printable or non-ASCII character %q", c)
		}
	}
	return nil
}

// Validate checks the snmp section: the base OID must parse and the
// master address must be reachable syntax-wise.
func (s *SNMPConfig) Validate() error {
	if err := valid.Struct(s); err != nil {
		return err
	}

	if _, err := oid.Parse(s.BaseOID); err != nil {
		return fmt.Errorf("snmp.base_oid invalid (expected dotted numeric OID), got %s: %w", s.BaseOID, err)
	}

	if s.MasterNet == "tcp" {
		if _, err := net.ResolveTCPAddr("tcp", s.MasterAddr); err != nil {
			return fmt.Errorf("snmp.master_addr format invalid (expected host:port), got %s: %w", s.MasterAddr, err)
		}
	}
	return nil
}

// Validate checks the telemetry HTTP section.
func (h *ServerConfig) Validate() error {
	if err := valid.Struct(h); err != nil {
		return err
	}
	if h.Addr == "" {
		return errors.New("server.addr cannot be empty")
	}
	if _, err := net.ResolveTCPAddr("tcp", h.Addr); err != nil {
		return fmt.Errorf("server.addr format invalid (expected :port or ip:port), got %s: %w", h.Addr, err)
	}
	return nil
}

// Validate checks process-level settings. The pidfile itself is probed
// at startup, not here, since staleness depends on the running system.
func (a *AgentConfig) Validate() error {
	if err := valid.Struct(a); err != nil {
		return err
	}
	if strings.TrimSpace(a.Pidfile) == "" {
		return errors.New("agent.pidfile cannot be empty")
	}
	return nil
}

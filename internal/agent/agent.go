// Package agent owns the process lifecycle: pidfile, telemetry, cache
// refresher, AgentX session and subtree registration, and the ordered
// teardown on shutdown.
package agent

import (
	"context"
	"fmt"

	"github.com/posteo/go-agentx"
	"github.com/posteo/go-agentx/value"
	"go.uber.org/zap"

	"github.com/munin-snmp-bridge/config"
	"github.com/munin-snmp-bridge/internal/cache"
	"github.com/munin-snmp-bridge/internal/handler"
	"github.com/munin-snmp-bridge/internal/munin"
	"github.com/munin-snmp-bridge/internal/oid"
	"github.com/munin-snmp-bridge/internal/server"
	"github.com/munin-snmp-bridge/internal/telemetry"
	"github.com/munin-snmp-bridge/pkg/goid"
	"github.com/munin-snmp-bridge/pkg/pidfile"
)

// Agent is the assembled bridge process.
type Agent struct {
	cfg *config.Config
	log *zap.Logger

	cache          *cache.Cache
	client         *agentx.Client
	session        *agentx.Session
	baseOID        value.OID
	httpServer     *server.HTTPServer
	stopRefresher  context.CancelFunc
	pidfileWritten bool
}

// New builds an agent from a validated configuration.
func New(cfg *config.Config, log *zap.Logger) *Agent {
	return &Agent{cfg: cfg, log: log}
}

// Cache exposes the metric cache, mainly for the snapshot-age gauge.
func (a *Agent) Cache() *cache.Cache {
	return a.cache
}

// Start brings the bridge up. Any error here is fatal for the process:
// an agent that cannot register its subtree serves no purpose. The
// caller is expected to run Shutdown afterwards either way, so partially
// started components are torn down cleanly.
func (a *Agent) Start(ctx context.Context) error {
	// 1. singleton pidfile; failure to write is fatal, no silent continuation
	if err := pidfile.Write(a.cfg.Agent.Pidfile); err != nil {
		return err
	}
	a.pidfileWritten = true
	a.log.Info("pidfile written", zap.String("path", a.cfg.Agent.Pidfile))

	// 2. telemetry registry and instruments
	registry, metrics := telemetry.InitRegistry(true)

	// 3. cache over the munin fetch client, refreshed in the background
	// so SNMP queries never block on upstream round-trips
	baseOID := oid.MustParse(a.cfg.SNMP.BaseOID) // validated at config load
	fetcher := munin.NewClient(a.cfg.Munin.Host, a.cfg.Munin.Port, a.cfg.Munin.Timeout, a.log)
	a.cache = cache.New(cache.Options{
		Fetcher: fetcher,
		Base:    baseOID,
		Plugins: a.cfg.Munin.Plugins,
		TTL:     a.cfg.Munin.TTL,
		Logger:  a.log,
		Metrics: metrics,
	})
	telemetry.RegisterSnapshotAge(registry, a.cache.Age)

	refreshCtx, cancel := context.WithCancel(ctx)
	a.stopRefresher = cancel
	go func() {
		a.log.Debug("cache refresher started", zap.Uint64("goid", goid.GetGID()))
		a.cache.Run(refreshCtx)
	}()

	// 4. telemetry endpoint
	if a.cfg.Server.Enable {
		a.httpServer = server.NewHTTPServer(a.cfg.Server, registry, a.log)
		if err := a.httpServer.Start(); err != nil {
			return fmt.Errorf("start telemetry server: %w", err)
		}
	}

	// 5. connect to the master agent and register the subtree
	client, err := agentx.Dial(a.cfg.SNMP.MasterNet, a.cfg.SNMP.MasterAddr)
	if err != nil {
		return fmt.Errorf("dial agentx master %s: %w", a.cfg.SNMP.MasterAddr, err)
	}
	client.Timeout = a.cfg.SNMP.Timeout
	client.ReconnectInterval = a.cfg.SNMP.ReconnectInterval
	a.client = client

	sess, err := a.client.Session()
	if err != nil {
		return fmt.Errorf("open agentx session: %w", err)
	}
	a.session = sess
	// GET and GETNEXT only; SET is deliberately not supported
	a.session.Handler = handler.New(a.cache, metrics, a.log)

	a.baseOID = value.OID(baseOID)
	if err := a.session.Register(byte(a.cfg.SNMP.Priority), a.baseOID); err != nil {
		return fmt.Errorf("register subtree %s: %w", a.cfg.SNMP.BaseOID, err)
	}

	a.log.Info("subtree registered with master agent",
		zap.String("base_oid", a.cfg.SNMP.BaseOID),
		zap.String("master", a.cfg.SNMP.MasterAddr),
		zap.Int("priority", a.cfg.SNMP.Priority),
		zap.Strings("plugins", a.cfg.Munin.Plugins),
	)
	return nil
}

// Shutdown tears the bridge down in reverse start order: stop answering
// queries first, stop refreshing, then release the pidfile. Safe on a
// partially started agent.
func (a *Agent) Shutdown() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.session != nil {
		if err := a.session.Unregister(byte(a.cfg.SNMP.Priority), a.baseOID); err != nil {
			a.log.Warn("subtree unregister failed", zap.Error(err))
			keep(err)
		}
		keep(a.session.Close())
		a.session = nil
	}
	if a.client != nil {
		keep(a.client.Close())
		a.client = nil
	}

	if a.stopRefresher != nil {
		a.stopRefresher()
		a.stopRefresher = nil
	}

	if a.httpServer != nil {
		keep(a.httpServer.Shutdown())
		a.httpServer = nil
	}

	if a.pidfileWritten {
		if err := pidfile.Remove(a.cfg.Agent.Pidfile); err != nil {
			a.log.Warn("pidfile removal failed", zap.Error(err))
			keep(err)
		}
		a.pidfileWritten = false
	}

	a.log.Info("bridge shut down")
	return firstErr
}

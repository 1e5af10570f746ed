package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/munin-snmp-bridge/config"
)

// newLoadCmd builds a cobra command carrying the real flag set, the way
// the bridge root command does.
func newLoadCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	defaults := config.NewDefaultConfig()

	cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}
	f := cmd.PersistentFlags()
	f.String("config", "", "")
	f.String("munin.host", defaults.Munin.Host, "")
	f.Int("munin.port", defaults.Munin.Port, "")
	f.StringSlice("munin.plugins", defaults.Munin.Plugins, "")
	f.Duration("munin.ttl", defaults.Munin.TTL, "")
	f.String("snmp.base-oid", defaults.SNMP.BaseOID, "")
	f.String("log.path", filepath.Join(t.TempDir(), "logs"), "")
	f.String("agent.pidfile", filepath.Join(t.TempDir(), "bridge.pid"), "")

	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Log.Path = filepath.Join(t.TempDir(), "logs")

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4949, cfg.Munin.Port)
	assert.Equal(t, config.DefaultBaseOID, cfg.SNMP.BaseOID)
	assert.Equal(t, []string{"load", "cpu", "memory", "uptime"}, cfg.Munin.Plugins)
	assert.Equal(t, 60*time.Second, cfg.Munin.TTL)
}

func TestLoadConfigWithCliFlagOverrides(t *testing.T) {
	cmd := newLoadCmd(t,
		"--munin.host=munin.example.net",
		"--munin.port=14949",
		"--munin.plugins=load,df._dev_sda1",
		"--snmp.base-oid=.1.3.6.1.4.1.9.1",
	)

	cfg, err := config.LoadConfigWithCli(cmd)
	require.NoError(t, err)

	assert.Equal(t, "munin.example.net", cfg.Munin.Host)
	assert.Equal(t, 14949, cfg.Munin.Port)
	assert.Equal(t, []string{"load", "df._dev_sda1"}, cfg.Munin.Plugins)
	assert.Equal(t, ".1.3.6.1.4.1.9.1", cfg.SNMP.BaseOID)
	// untouched sections keep their defaults
	assert.Equal(t, "localhost:705", cfg.SNMP.MasterAddr)
}

func TestLoadConfigFileWithFlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bridge.yaml")
	require.NoError(t, os.WriteFile(file, []byte(
		"munin:\n  host: from-file\n  port: 24949\n",
	), 0644))

	cmd := newLoadCmd(t, "--config="+file, "--munin.host=from-flag")

	cfg, err := config.LoadConfigWithCli(cmd)
	require.NoError(t, err)

	// flags beat the file, the file beats defaults
	assert.Equal(t, "from-flag", cfg.Munin.Host)
	assert.Equal(t, 24949, cfg.Munin.Port)
}

func TestLoadPropertiesConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bridge.properties")
	require.NoError(t, os.WriteFile(file, []byte(
		"munin.host=props-host\nmunin.ttl=120s\n",
	), 0644))

	cmd := newLoadCmd(t, "--config="+file)

	cfg, err := config.LoadConfigWithCli(cmd)
	require.NoError(t, err)

	assert.Equal(t, "props-host", cfg.Munin.Host)
	assert.Equal(t, 120*time.Second, cfg.Munin.TTL)
}

func TestLoadPropertiesLegacyKeys(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bridge.conf")
	pid := filepath.Join(dir, "legacy.pid")
	require.NoError(t, os.WriteFile(file, []byte(
		"# legacy flat option names\n"+
			"munin_host=legacy-host\n"+
			"munin_port=4950\n"+
			"munin_plugins=load,uptime\n"+
			"base_oid=.1.3.6.1.4.1.9.1\n"+
			"pidfile="+pid+"\n",
	), 0644))

	cmd := newLoadCmd(t, "--config="+file)

	cfg, err := config.LoadConfigWithCli(cmd)
	require.NoError(t, err)

	assert.Equal(t, "legacy-host", cfg.Munin.Host)
	assert.Equal(t, 4950, cfg.Munin.Port)
	assert.Equal(t, []string{"load", "uptime"}, cfg.Munin.Plugins)
	assert.Equal(t, ".1.3.6.1.4.1.9.1", cfg.SNMP.BaseOID)
	assert.Equal(t, pid, cfg.Agent.Pidfile)
}

func TestLoadMissingConfigFileFails(t *testing.T) {
	cmd := newLoadCmd(t, "--config=/no/such/file.yaml")

	_, err := config.LoadConfigWithCli(cmd)
	assert.Error(t, err)
}

func TestValidateAcceptsUnresolvableMuninHost(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Log.Path = filepath.Join(t.TempDir(), "logs")
	// .invalid never resolves; an unreachable node is a fetch-time
	// condition, not a config error
	cfg.Munin.Host = "no-such-node.invalid"

	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadBaseOID(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Log.Path = filepath.Join(t.TempDir(), "logs")
	cfg.SNMP.BaseOID = ".1.3.banana.1"

	err := cfg.Validate()
	assert.ErrorContains(t, err, "base_oid")
}

func TestValidateRejectsBadPluginSpecs(t *testing.T) {
	for _, bad := range []string{"", " ", "lo ad", ".load", "load.", "löad"} {
		cfg := config.NewDefaultConfig()
		cfg.Log.Path = filepath.Join(t.TempDir(), "logs")
		cfg.Munin.Plugins = []string{bad}

		assert.Errorf(t, cfg.Validate(), "plugin spec %q should be rejected", bad)
	}
}

func TestValidateRejectsDuplicatePlugins(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Log.Path = filepath.Join(t.TempDir(), "logs")
	cfg.Munin.Plugins = []string{"load", "load"}

	assert.ErrorContains(t, cfg.Validate(), "duplicate")
}

func TestValidateRejectsOutOfRangeTTL(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Log.Path = filepath.Join(t.TempDir(), "logs")
	cfg.Munin.TTL = 10 * time.Millisecond

	assert.Error(t, cfg.Validate())
}

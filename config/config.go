package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var valid = validator.New()

// keyFold strips the separators so "read-timeout" flags, "read_timeout"
// tags and READTIMEOUT env spellings all land on the same field.
var keyFold = strings.NewReplacer("-", "", "_", "")

func matchConfigKey(mapKey, fieldName string) bool {
	return strings.EqualFold(keyFold.Replace(mapKey), keyFold.Replace(fieldName))
}

// Config aggregates every module of the bridge. Loaded once at startup,
// immutable afterwards.
type Config struct {
	Munin  MuninConfig  `yaml:"munin" mapstructure:"munin"`
	SNMP   SNMPConfig   `yaml:"snmp" mapstructure:"snmp"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Agent  AgentConfig  `yaml:"agent" mapstructure:"agent"`
	Log    ZapLogConfig `yaml:"log" mapstructure:"log"`
}

// MuninConfig describes the upstream munin-node and the plugins to poll.
// A plugin entry is either "plugin" (all fields) or "plugin.field"
// (single-field filter).
type MuninConfig struct {
	Host    string        `yaml:"host" mapstructure:"host" env:"MUNIN_HOST" validate:"required"`
	Port    int           `yaml:"port" mapstructure:"port" env:"MUNIN_PORT" validate:"required,gt=0,lte=65535"`
	Plugins []string      `yaml:"plugins" mapstructure:"plugins" env:"MUNIN_PLUGINS" validate:"required,min=1"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" env:"MUNIN_TIMEOUT" validate:"required,gt=0"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl" env:"MUNIN_TTL" validate:"required,gt=0"`
}

// SNMPConfig describes the AgentX master connection and the registered
// subtree.
type SNMPConfig struct {
	MasterNet         string        `yaml:"master_net" mapstructure:"master_net" env:"SNMP_MASTER_NET" validate:"required,oneof=tcp unix"`
	MasterAddr        string        `yaml:"master_addr" mapstructure:"master_addr" env:"SNMP_MASTER_ADDR" validate:"required"`
	BaseOID           string        `yaml:"base_oid" mapstructure:"base_oid" env:"SNMP_BASE_OID" validate:"required"`
	Priority          int           `yaml:"priority" mapstructure:"priority" env:"SNMP_PRIORITY" validate:"gte=0,lte=255"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout" env:"SNMP_TIMEOUT" validate:"required,gt=0"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval" mapstructure:"reconnect_interval" env:"SNMP_RECONNECT_INTERVAL" validate:"required,gt=0"`
}

// ServerConfig is the telemetry HTTP endpoint (/metrics, /health).
type ServerConfig struct {
	Enable       bool          `yaml:"enable" mapstructure:"enable" env:"HTTP_ENABLE"`
	Addr         string        `yaml:"addr" mapstructure:"addr" env:"HTTP_ADDR" validate:"required,hostname_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" env:"HTTP_READ_TIMEOUT" validate:"required,gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" env:"HTTP_WRITE_TIMEOUT" validate:"required,gt=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" validate:"required,gt=0"`
}

// AgentConfig holds process-level settings.
type AgentConfig struct {
	Pidfile string `yaml:"pidfile" mapstructure:"pidfile" env:"AGENT_PIDFILE" validate:"required"`
}

// ZapLogConfig mirrors the logger setup: tee of colored console output and
// a rotated JSON file.
type ZapLogConfig struct {
	Level     string `yaml:"level" mapstructure:"level" env:"LOG_LEVEL" validate:"required,oneof=debug info warn error" default:"info"`
	Format    string `yaml:"format" mapstructure:"format" env:"LOG_FORMAT" validate:"required,oneof=json console" default:"json"`
	Path      string `yaml:"path" mapstructure:"path" env:"LOG_PATH" validate:"required" default:"./logs"`
	MaxSize   int    `yaml:"max_size" mapstructure:"max_size" env:"LOG_MAX_SIZE" validate:"required,gt=0" default:"100"`
	MaxBackup int    `yaml:"max_backup" mapstructure:"max_backup" env:"LOG_MAX_BACKUP" validate:"required,gte=0" default:"30"`
	MaxAge    int    `yaml:"max_age" mapstructure:"max_age" env:"LOG_MAX_AGE" validate:"required,gte=0" default:"7"`
	Compress  bool   `yaml:"compress" mapstructure:"compress" env:"LOG_COMPRESS" default:"true"`
}

// DefaultBaseOID is the subtree registered with the master agent when the
// configuration does not override it.
const DefaultBaseOID = ".1.3.6.1.4.1.123456.100.1.1"

// NewDefaultConfig returns a fully populated configuration so that every
// field has a sane fallback before flags, file and env are merged in.
func NewDefaultConfig() *Config {
	return &Config{
		Munin: MuninConfig{
			Host:    "localhost",
			Port:    4949,
			Plugins: []string{"load", "cpu", "memory", "uptime"},
			Timeout: 10 * time.Second,
			TTL:     60 * time.Second,
		},
		SNMP: SNMPConfig{
			MasterNet:         "tcp",
			MasterAddr:        "localhost:705",
			BaseOID:           DefaultBaseOID,
			Priority:          127,
			Timeout:           time.Minute,
			ReconnectInterval: time.Second,
		},
		Server: ServerConfig{
			Enable:       true,
			Addr:         "0.0.0.0:9146",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Agent: AgentConfig{
			Pidfile: "/var/run/munin-snmp-bridge.pid",
		},
		Log: ZapLogConfig{
			Level:     "info",
			Format:    "json",
			Path:      "./logs",
			MaxSize:   100,
			MaxBackup: 30,
			MaxAge:    7,
			Compress:  true,
		},
	}
}

// LoadConfigWithCli merges Flags + ENV + config file (descending
// precedence, viper's resolution order) into the default configuration.
// The config file format is inferred from its extension, so both YAML and
// key=value properties files load through the same path.
func LoadConfigWithCli(cmd *cobra.Command) (*Config, error) {
	cfg := NewDefaultConfig()
	v := viper.New()

	// 1. bind cobra flags -> viper
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	// 2. parse the config file (--config); missing file is an error, an
	// empty flag just means defaults + flags + env
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		if isPropertiesFile(configFile) {
			if err := mergePropertiesFile(v, configFile); err != nil {
				return nil, fmt.Errorf("read config file %s: %w", configFile, err)
			}
		} else {
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config file %s: %w", configFile, err)
			}
		}
	}

	// 3. bind environment variables (munin.host -> MUNIN_HOST)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// 4. decode into the struct (supports time.Duration and comma slices);
	// MatchName folds the dashed flag names onto the underscore tags
	decoderConfig := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           cfg,
		WeaklyTypedInput: true,
		MatchName:        matchConfigKey,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// 5. validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate runs tag validation and the per-section business rules.
func (c *Config) Validate() error {
	if err := valid.Struct(c); err != nil {
		return err
	}
	if err := c.Munin.Validate(); err != nil {
		return err
	}
	if err := c.SNMP.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Agent.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}

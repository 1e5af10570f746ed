package bridge

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func initServerFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.Bool("server.enable", defaultCfg.Server.Enable, "-> enable the telemetry HTTP endpoint")
	f.String("server.addr", defaultCfg.Server.Addr, "-> telemetry HTTP listening address")
	f.Duration("server.read-timeout", defaultCfg.Server.ReadTimeout, "-> read timeout duration")
	f.Duration("server.write-timeout", defaultCfg.Server.WriteTimeout, "-> write timeout duration")
	f.Duration("server.idle-timeout", defaultCfg.Server.IdleTimeout, "-> idle connection timeout duration")

	f.String("agent.pidfile", defaultCfg.Agent.Pidfile, "-> pid file path (singleton enforcement)")

	err := viper.BindPFlags(f)
	if err != nil {
		return
	}
}

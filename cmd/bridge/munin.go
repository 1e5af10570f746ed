package bridge

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func initMuninFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.String("munin.host", defaultCfg.Munin.Host, "-> munin-node host")
	f.Int("munin.port", defaultCfg.Munin.Port, "-> munin-node port")
	f.StringSlice("munin.plugins", defaultCfg.Munin.Plugins, "-> plugins to poll (plugin or plugin.field, comma-separated)")
	f.Duration("munin.timeout", defaultCfg.Munin.Timeout, "-> per-line dial/read timeout")
	f.Duration("munin.ttl", defaultCfg.Munin.TTL, "-> cache snapshot time-to-live")

	err := viper.BindPFlags(f)
	if err != nil {
		return
	}
}

package bridge

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func initLogFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	logPrefix := "log."

	f.String(logPrefix+"level", defaultCfg.Log.Level, "-> log level [debug,info,warn,error]")
	f.String(logPrefix+"format", defaultCfg.Log.Format, "-> log format [console,json]")
	f.String(logPrefix+"path", defaultCfg.Log.Path, "-> log file storage path")
	f.Int(logPrefix+"max-size", defaultCfg.Log.MaxSize, "-> max size of single log file (MB)")
	f.Int(logPrefix+"max-backup", defaultCfg.Log.MaxBackup, "-> number of log backup files")
	f.Int(logPrefix+"max-age", defaultCfg.Log.MaxAge, "-> maximum retention days of log files")
	f.Bool(logPrefix+"compress", defaultCfg.Log.Compress, "-> whether to compress expired log files")

	err := viper.BindPFlags(f)
	if err != nil {
		return
	}
}

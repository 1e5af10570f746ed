package bridge

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/munin-snmp-bridge/config"
	"github.com/munin-snmp-bridge/internal/agent"
	"github.com/munin-snmp-bridge/pkg/logger"
	"github.com/munin-snmp-bridge/pkg/signal"
	"github.com/munin-snmp-bridge/pkg/util"
)

var (
	cfgFile    string
	defaultCfg = config.NewDefaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "munin-snmp-bridge",
	Short: "AgentX sub-agent exposing munin-node metrics as an SNMP subtree",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithCli(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := runBridge(cmd.Context(), cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return nil
	},
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to the config file (yaml or key=value properties)")
	// flag groups, one file per concern
	initMuninFlags(rootCmd)
	initSNMPFlags(rootCmd)
	initServerFlags(rootCmd)
	initLogFlags(rootCmd)

	rootCmd.AddCommand(mocknodeCmd)
}

func runBridge(ctx context.Context, cfg *config.Config) error {
	util.PrintBanner("munin-snmp-bridge", "ColorBlue")

	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.GetLogger()

	a := agent.New(cfg, log)
	if err := a.Start(ctx); err != nil {
		// partial startup is rolled back before the process exits non-zero
		_ = a.Shutdown()
		return err
	}

	return signal.WaitForShutdown(log, a.Shutdown)
}

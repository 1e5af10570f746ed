package bridge

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/munin-snmp-bridge/pkg/munintest"
)

// mocknodeCmd runs a throwaway munin-node serving live host statistics,
// so the bridge can be exercised without a real munin installation.
var mocknodeCmd = &cobra.Command{
	Use:   "mocknode",
	Short: "Run a fake munin-node serving live host metrics (development helper)",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("listen")

		node := munintest.New()
		munintest.RegisterLivePlugins(node)
		if err := node.Listen(addr); err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		defer node.Close()

		fmt.Printf("mock munin node listening on %s (plugins: load cpu memory uptime)\n", addr)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		return nil
	},
}

func init() {
	mocknodeCmd.Flags().String("listen", "127.0.0.1:4949", "address to listen on")
}

package bridge

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func initSNMPFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.String("snmp.master-net", defaultCfg.SNMP.MasterNet, "-> master agent network [tcp,unix]")
	f.String("snmp.master-addr", defaultCfg.SNMP.MasterAddr, "-> master agent AgentX address")
	f.String("snmp.base-oid", defaultCfg.SNMP.BaseOID, "-> OID subtree to register")
	f.Int("snmp.priority", defaultCfg.SNMP.Priority, "-> registration priority")
	f.Duration("snmp.timeout", defaultCfg.SNMP.Timeout, "-> AgentX session timeout")
	f.Duration("snmp.reconnect-interval", defaultCfg.SNMP.ReconnectInterval, "-> AgentX reconnect interval")

	err := viper.BindPFlags(f)
	if err != nil {
		return
	}
}

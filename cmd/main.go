package main

import (
	"github.com/munin-snmp-bridge/cmd/bridge"
)

func main() {
	bridge.Execute()
}

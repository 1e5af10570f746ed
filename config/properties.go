package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// legacyKeys maps the flat option names of older bridge deployments onto
// the structured viper paths.
var legacyKeys = map[string]string{
	"munin_host":    "munin.host",
	"munin_port":    "munin.port",
	"munin_plugins": "munin.plugins",
	"base_oid":      "snmp.base_oid",
	"pidfile":       "agent.pidfile",
}

func isPropertiesFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".properties", ".props", ".conf":
		return true
	}
	return false
}

// mergePropertiesFile loads a key=value file into viper at config-file
// precedence, below explicitly set flags. Keys use dotted paths
// ("munin.host=..."); the flat legacy names are accepted too. Blank
// lines and #/; comments are skipped.
func mergePropertiesFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	settings := make(map[string]interface{})
	for i, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("line %d: expected key=value, got %q", i+1, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if alias, found := legacyKeys[key]; found {
			key = alias
		}

		// build the nested map viper expects for dotted keys
		node := settings
		segments := strings.Split(key, ".")
		for _, seg := range segments[:len(segments)-1] {
			child, isMap := node[seg].(map[string]interface{})
			if !isMap {
				child = make(map[string]interface{})
				node[seg] = child
			}
			node = child
		}
		node[segments[len(segments)-1]] = value
	}

	return v.MergeConfigMap(settings)
}

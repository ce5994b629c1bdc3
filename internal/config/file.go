package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	overlayMu sync.RWMutex
	overlay   map[string]string
)

// LoadFile reads a flat YAML map of NAME: value pairs. Keys use the same names
// as the environment variables.
func LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config.LoadFile ReadFile: %w", err)
	}
	return LoadYAML(data)
}

func LoadYAML(data []byte) error {
	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("config.LoadYAML Unmarshal: %w", err)
	}
	overlayMu.Lock()
	overlay = values
	overlayMu.Unlock()
	return nil
}

// ResetOverlay drops any loaded file values.
func ResetOverlay() {
	overlayMu.Lock()
	overlay = nil
	overlayMu.Unlock()
}

func overlayValue(name string) (string, bool) {
	overlayMu.RLock()
	defer overlayMu.RUnlock()
	v, ok := overlay[name]
	return v, ok
}

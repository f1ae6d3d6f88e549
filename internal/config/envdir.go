package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadOverrides loads override values from an env directory, one file per
// variable, restricted to the given names. A missing directory or missing
// files simply yield fewer entries.
func ReadOverrides(dir string, names []string) (map[string]string, error) {
	overrides := make(map[string]string)

	if dir == "" {
		return overrides, nil
	}

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return nil, fmt.Errorf("failed to read override %s: %w", name, err)
		}

		overrides[name] = strings.TrimSpace(string(data))
	}

	return overrides, nil
}

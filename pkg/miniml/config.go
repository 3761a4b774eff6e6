package miniml

import (
	"github.com/funvibe/miniml/internal/config"
)

// LoadConfig reads the nearest miniml.yaml or miniml.toml at or above dir.
// Without one it returns the defaults.
func LoadConfig(dir string) (*config.Config, error) {
	path, err := config.FindConfig(dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

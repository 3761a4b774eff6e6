package miniml

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "miniml.toml"), []byte(`
module = "Tools"

[log]
level = "debug"
`), 0o644))

	cfg, err := LoadConfig(nested)
	require.NoError(t, err)
	require.Equal(t, "Tools", cfg.Module)
	require.Equal(t, "debug", cfg.Log.Level)
}

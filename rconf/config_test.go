package rconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMultiplePorts(t *testing.T) {
	cfg, err := Parse([]byte(`
PortCount: 3
Port1: 8000
Port2: 8001
Port3: 8002
WorkerConnections: 512
`))
	require.NoError(t, err)
	require.Equal(t, 3, cfg.PortCount)
	require.Equal(t, []int{8000, 8001, 8002}, cfg.Ports)
	require.Equal(t, 512, cfg.WorkerConnections)
}

func TestParseRejectsZeroPortCount(t *testing.T) {
	_, err := Parse([]byte(`
PortCount: 0
WorkerConnections: 16
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "PortCount")
}

func TestParseRejectsMissingPortKey(t *testing.T) {
	_, err := Parse([]byte(`
PortCount: 2
Port1: 8000
WorkerConnections: 16
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "Port2")
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("PortCount: [not an int"))
	require.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
PortCount: 1
Port1: 9000
WorkerConnections: 64
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []int{9000}, cfg.Ports)
	require.Equal(t, 64, cfg.WorkerConnections)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

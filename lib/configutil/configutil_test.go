package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseUrl   string            `json:"base_url" env:"TEST_SGASSIST_BASE_URL"`
	SessionId string            `json:"session_id" env:"TEST_SGASSIST_SESSION_ID"`
	Pages     int               `json:"pages"`
	Extra     map[string]string `json:"extra"`
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		// comments are allowed
		base_url: "https://example.com",
		pages: 3,
	}`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		pages: 7,
		session_id: "abc",
	}`), 0600))

	cfg, err := ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, "https://example.com", cfg.BaseUrl)
	require.Equal(t, 7, cfg.Pages)
	require.Equal(t, "abc", cfg.SessionId)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "missing.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(root, "nested-test.json5"), []byte(`{pages: 2}`), 0600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	defer os.Chdir(wd)

	cfg, err := ReadRecursively[testConfig]("nested-test.json5")
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Pages)
}

func TestApplyEnv(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("TEST_SGASSIST_SESSION_ID=from-dotenv\n"), 0600))
	t.Setenv("TEST_SGASSIST_BASE_URL", "https://env.example.com")

	cfg := testConfig{BaseUrl: "https://file.example.com", Pages: 1}
	require.NoError(t, ApplyEnv(&cfg, dotenv))
	require.Equal(t, "https://env.example.com", cfg.BaseUrl)
	require.Equal(t, "from-dotenv", cfg.SessionId)
	require.Equal(t, 1, cfg.Pages)
	os.Unsetenv("TEST_SGASSIST_SESSION_ID")
}

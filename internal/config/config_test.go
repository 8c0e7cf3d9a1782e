package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmptyViper_Defaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	cc, err := cfg.GetClassifier()
	require.NoError(t, err)
	assert.Equal(t, "openrouter", cc.Provider)
	assert.Equal(t, 60*time.Second, cc.Timeout)

	or := cfg.GetChat("openrouter")
	assert.Equal(t, "https://openrouter.ai/api/v1", or.BaseURL)
	assert.Equal(t, "deepseek/deepseek-r1:free", or.ModelName)

	ac, err := cfg.GetArchive()
	require.NoError(t, err)
	assert.Equal(t, "memory", ac.Type)
	assert.Equal(t, 168*time.Hour, ac.TTL)

	tc, err := cfg.GetTaxonomy()
	require.NoError(t, err)
	assert.Empty(t, tc.RequestTypes)
	assert.Empty(t, tc.SubRequestTypes)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triage.yaml")
	content := `
classifier:
  provider: gemini
  timeout: 5s
archive:
  type: sqlite
  sqlite_path: /tmp/archive.db
taxonomy:
  request_types:
    - Fee Payment
    - Adjustment
  sub_request_types:
    - request_type: Fee Payment
      sub_types:
        - Ongoing Fee
        - Letter of Credit Fee
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)

	cc, err := cfg.GetClassifier()
	require.NoError(t, err)
	assert.Equal(t, "gemini", cc.Provider)
	assert.Equal(t, 5*time.Second, cc.Timeout)

	ac, err := cfg.GetArchive()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", ac.Type)
	assert.Equal(t, "/tmp/archive.db", ac.SQLitePath)

	tc, err := cfg.GetTaxonomy()
	require.NoError(t, err)
	assert.Equal(t, []string{"Fee Payment", "Adjustment"}, tc.RequestTypes)
	assert.Equal(t, map[string][]string{
		"Fee Payment": {"Ongoing Fee", "Letter of Credit Fee"},
	}, tc.SubRequestTypes)
}

func TestNewFromFile_Missing(t *testing.T) {
	_, err := NewFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestGetClassifier_InvalidTimeout(t *testing.T) {
	v := NewEmptyViper()
	v.Set("classifier.timeout", "soon")

	_, err := NewFromViper(v).GetClassifier()
	assert.Error(t, err)
}

package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDotEnv(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected map[string]string
	}{
		{
			name:     "simple key-value",
			content:  "API_KEY=secret123",
			expected: map[string]string{"API_KEY": "secret123"},
		},
		{
			name:     "multiple keys",
			content:  "BASE_URL=http://localhost:8080/\nTIMEOUT=5000",
			expected: map[string]string{"BASE_URL": "http://localhost:8080/", "TIMEOUT": "5000"},
		},
		{
			name:     "double quoted value",
			content:  `API_KEY="secret with spaces"`,
			expected: map[string]string{"API_KEY": "secret with spaces"},
		},
		{
			name:     "single quoted value",
			content:  `API_KEY='secret with spaces'`,
			expected: map[string]string{"API_KEY": "secret with spaces"},
		},
		{
			name:     "comments and blank lines are skipped",
			content:  "# credentials\n\nAPI_KEY=secret\n",
			expected: map[string]string{"API_KEY": "secret"},
		},
		{
			name:     "export prefix",
			content:  "export LOG_LEVEL=debug",
			expected: map[string]string{"LOG_LEVEL": "debug"},
		},
		{
			name:     "value with equals sign",
			content:  "BASE_URL=http://host/api?x=1",
			expected: map[string]string{"BASE_URL": "http://host/api?x=1"},
		},
		{
			name:     "empty file",
			content:  "",
			expected: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadDotEnv(writeEnvFile(t, tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLoadDotEnvFileNotFound(t *testing.T) {
	_, err := LoadDotEnv("/nonexistent/path/.env")
	assert.ErrorContains(t, err, "cannot read env file")
}

func TestLoadAndExportDotEnvKeepsExistingValues(t *testing.T) {
	t.Setenv("APIHARNESS_TEST_KEEP", "from-process")
	path := writeEnvFile(t, "APIHARNESS_TEST_KEEP=from-file\nAPIHARNESS_TEST_NEW=added\n")
	t.Cleanup(func() { os.Unsetenv("APIHARNESS_TEST_NEW") })

	vars, err := LoadAndExportDotEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", vars["APIHARNESS_TEST_KEEP"])
	assert.Equal(t, "from-process", os.Getenv("APIHARNESS_TEST_KEEP"))
	assert.Equal(t, "added", os.Getenv("APIHARNESS_TEST_NEW"))
}

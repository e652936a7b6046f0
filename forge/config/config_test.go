package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()
}

func (suite *ConfigTestSuite) writeConfig(name, content string) string {
	path := filepath.Join(suite.tempDir, name)
	err := os.WriteFile(path, []byte(content), 0o644)
	require.NoError(suite.T(), err)
	return path
}

func (suite *ConfigTestSuite) TestLoadConfigWithDefaults() {
	cfg, err := LoadConfig(filepath.Join(suite.tempDir, "does-not-exist.yaml"))
	// An explicit missing path errors; defaults come from the search path
	// case below.
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)

	cfg, err = LoadConfig("")
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), 0, cfg.Prompting.TotalBudget)
	assert.Equal(suite.T(), 2, cfg.Prompting.RawKeepLast)
	assert.Equal(suite.T(), "memory", cfg.Store.Driver)
	assert.Equal(suite.T(), "file:promptforge.db", cfg.Store.DSN)
	assert.True(suite.T(), cfg.Summarizer.Enabled)
	assert.Equal(suite.T(), 2000, cfg.Summarizer.MaxToolChars)
	assert.Equal(suite.T(), 3, cfg.Summarizer.Workers)
	assert.Equal(suite.T(), 128, cfg.Summarizer.CacheCapacity)
}

func (suite *ConfigTestSuite) TestLoadConfigWithFile() {
	configFile := suite.writeConfig("config.yaml", `
prompting:
  total_budget: 8000
  raw_keep_last: 3
  blocks:
    tool_results: false
    previous_iterations:
      max_chars: 1500
store:
  driver: libsql
  dsn: "file:test.db"
summarizer:
  enabled: false
  workers: 8
`)

	cfg, err := LoadConfig(configFile)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), 8000, cfg.Prompting.TotalBudget)
	assert.Equal(suite.T(), 3, cfg.Prompting.RawKeepLast)
	assert.Equal(suite.T(), "libsql", cfg.Store.Driver)
	assert.Equal(suite.T(), "file:test.db", cfg.Store.DSN)
	assert.False(suite.T(), cfg.Summarizer.Enabled)
	assert.Equal(suite.T(), 8, cfg.Summarizer.Workers)
	// File values merge over defaults.
	assert.Equal(suite.T(), 2000, cfg.Summarizer.MaxToolChars)

	require.Contains(suite.T(), cfg.Prompting.Blocks, "tool_results")
	assert.Equal(suite.T(), false, cfg.Prompting.Blocks["tool_results"])
}

func (suite *ConfigTestSuite) TestLoadConfigMalformedFile() {
	configFile := suite.writeConfig("malformed.yaml", `
prompting:
  total_budget: [unclosed bracket
`)

	cfg, err := LoadConfig(configFile)
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestPolicyInput() {
	cfg := &Config{
		Prompting: PromptingConfig{
			TotalBudget: 5000,
			Blocks:      map[string]any{"tool_results": false},
		},
	}

	policy := cfg.PolicyInput()
	assert.Equal(suite.T(), 5000, policy["total_budget"])
	assert.Equal(suite.T(), map[string]any{"tool_results": false}, policy["blocks"])

	// Unset sections stay absent so downstream defaults apply.
	empty := (&Config{}).PolicyInput()
	assert.NotContains(suite.T(), empty, "total_budget")
	assert.NotContains(suite.T(), empty, "blocks")
}

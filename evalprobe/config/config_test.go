package config

import (
	"os"
	"path/filepath"
	"testing"

	internal "github.com/ZanzyTHEbar/evalprobe/evalprobe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	suite.tempDir = suite.T().TempDir()

	// Change to temp directory so no stray config.yaml is picked up
	err = os.Chdir(suite.tempDir)
	require.NoError(suite.T(), err)
}

func (suite *ConfigTestSuite) TearDownTest() {
	if suite.origDir != "" {
		os.Chdir(suite.origDir)
	}
}

func (suite *ConfigTestSuite) TestLoadConfigWithDefaults() {
	cfg, err := LoadConfig("")

	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), internal.DefaultModelPath, cfg.Model.Path)
	assert.Equal(suite.T(), "auto", cfg.Model.Backend)
	assert.Equal(suite.T(), internal.DefaultDataDir, cfg.Data.Dir)
	assert.Equal(suite.T(), "alpacaeval", cfg.Data.Task)
	assert.Equal(suite.T(), 2048, cfg.Data.MaxLength)
	assert.True(suite.T(), cfg.Data.UseChatFormat)
	assert.Equal(suite.T(), "tulu", cfg.Data.ChatFormat)
	assert.Equal(suite.T(), 1, cfg.Loader.BatchSize)
	assert.Equal(suite.T(), "right", cfg.Loader.PaddingSide)
	assert.Equal(suite.T(), 3, cfg.Inspect.Limit)
	assert.False(suite.T(), cfg.Inspect.SkipSpecialTokens)
	assert.False(suite.T(), cfg.Inspect.Strict)
}

func (suite *ConfigTestSuite) TestLoadConfigWithFile() {
	configContent := `
model:
  path: "/models/llama"
  backend: "sentencepiece"
data:
  dir: "gs://bucket/data"
  task: "bbh"
  maxLength: 512
  useChatFormat: false
  chatFormat: "llama-chat"
loader:
  batchSize: 4
  paddingSide: "left"
inspect:
  limit: 10
  strict: true
log:
  level: "debug"
`

	configFile := filepath.Join(suite.tempDir, "config.yaml")
	err := os.WriteFile(configFile, []byte(configContent), 0o644)
	require.NoError(suite.T(), err)

	cfg, err := LoadConfig(configFile)

	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), "/models/llama", cfg.Model.Path)
	assert.Equal(suite.T(), "sentencepiece", cfg.Model.Backend)
	assert.Equal(suite.T(), "gs://bucket/data", cfg.Data.Dir)
	assert.Equal(suite.T(), "bbh", cfg.Data.Task)
	assert.Equal(suite.T(), 512, cfg.Data.MaxLength)
	assert.False(suite.T(), cfg.Data.UseChatFormat)
	assert.Equal(suite.T(), "llama-chat", cfg.Data.ChatFormat)
	assert.Equal(suite.T(), 4, cfg.Loader.BatchSize)
	assert.Equal(suite.T(), "left", cfg.Loader.PaddingSide)
	assert.Equal(suite.T(), 10, cfg.Inspect.Limit)
	assert.True(suite.T(), cfg.Inspect.Strict)
	assert.Equal(suite.T(), "debug", cfg.Log.Level)
}

func (suite *ConfigTestSuite) TestLoadConfigFromEnv() {
	suite.T().Setenv("DATA_TASK", "bbh")
	suite.T().Setenv("MODEL_AUTHTOKEN", "")
	suite.T().Setenv("HF_TOKEN", "hf_test")

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "bbh", cfg.Data.Task)
	assert.Equal(suite.T(), "hf_test", cfg.Model.AuthToken)
}

func (suite *ConfigTestSuite) TestLoadConfigInvalidFile() {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestLoadConfigMalformedFile() {
	malformedContent := `
data:
  task: "alpacaeval"
  invalid_yaml: [unclosed bracket
`

	configFile := filepath.Join(suite.tempDir, "malformed.yaml")
	err := os.WriteFile(configFile, []byte(malformedContent), 0o644)
	require.NoError(suite.T(), err)

	cfg, err := LoadConfig(configFile)

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestLoadConfigRejectsBadValues() {
	configFile := filepath.Join(suite.tempDir, "bad.yaml")
	err := os.WriteFile(configFile, []byte("loader:\n  batchSize: 0\n"), 0o644)
	require.NoError(suite.T(), err)

	cfg, err := LoadConfig(configFile)
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestAppConfigGlobal() {
	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), cfg.Data.Task, AppConfig.Data.Task)
	assert.Equal(suite.T(), cfg.Model.Path, AppConfig.Model.Path)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Model:   ModelConfig{Path: "m"},
			Data:    DataConfig{MaxLength: 16},
			Loader:  LoaderConfig{BatchSize: 1, PaddingSide: "right"},
			Inspect: InspectConfig{Limit: 3},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty model", func(c *Config) { c.Model.Path = " " }, true},
		{"zero max length", func(c *Config) { c.Data.MaxLength = 0 }, true},
		{"negative limit", func(c *Config) { c.Inspect.Limit = -1 }, true},
		{"zero limit", func(c *Config) { c.Inspect.Limit = 0 }, false},
		{"bad padding side", func(c *Config) { c.Loader.PaddingSide = "middle" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

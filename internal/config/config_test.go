package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := defaultConfig()

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, "ragd_default", cfg.VectorStore.Collection)
	assert.Equal(t, 384, cfg.VectorStore.VectorSize)
	assert.Equal(t, "cosine", cfg.VectorStore.Qdrant.Distance)
	assert.Equal(t, 6334, cfg.VectorStore.Qdrant.Port)

	assert.Equal(t, "fastembed", cfg.Embeddings.Provider)
	assert.Equal(t, "BAAI/bge-small-en-v1.5", cfg.Embeddings.Model)

	assert.Equal(t, 500, cfg.Retrieval.ChunkSize)
	assert.Equal(t, 50, cfg.Retrieval.ChunkOverlap)
	assert.Equal(t, 12, cfg.Retrieval.RetrieveK)
	assert.Equal(t, 4, cfg.Retrieval.RerankTopN)
	assert.Equal(t, 400, cfg.Retrieval.SnippetLength)

	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.Generator.BaseURL)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.Generator.Model)
	assert.Equal(t, 20, cfg.Uploads.MaxFileSizeMB)
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, defaultConfig().Validate())
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad provider", func(c *Config) { c.VectorStore.Provider = "pinecone" }},
		{"bad distance", func(c *Config) { c.VectorStore.Qdrant.Distance = "manhattan" }},
		{"bad embeddings provider", func(c *Config) { c.Embeddings.Provider = "cohere" }},
		{"dimension mismatch", func(c *Config) { c.Embeddings.Dimension = 768 }},
		{"zero chunk size", func(c *Config) { c.Retrieval.ChunkSize = -1 }},
		{"top n above k", func(c *Config) { c.Retrieval.RerankTopN = 20 }},
		{"bad temperature", func(c *Config) { c.Generator.Temperature = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_DimensionMatchAccepted(t *testing.T) {
	cfg := defaultConfig()
	cfg.Embeddings.Dimension = 384
	assert.NoError(t, cfg.Validate())
}

// writeConfigFile places a YAML config in a fake home honored by the path
// validation, with the required 0600 permissions.
func writeConfigFile(t *testing.T, content string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "ragd")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))
}

func TestLoadWithFile_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
}

func TestLoadWithFile_YAMLValues(t *testing.T) {
	writeConfigFile(t, `
server:
  http_port: 9000
vectorstore:
  provider: qdrant
  collection: docs
retrieval:
  retrieve_k: 20
  rerank_top_n: 6
`)

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
	assert.Equal(t, "docs", cfg.VectorStore.Collection)
	assert.Equal(t, 20, cfg.Retrieval.RetrieveK)
	assert.Equal(t, 6, cfg.Retrieval.RerankTopN)
}

func TestLoadWithFile_EnvOverridesYAML(t *testing.T) {
	writeConfigFile(t, `
server:
  http_port: 9000
`)
	t.Setenv("SERVER_HTTP_PORT", "9100")
	t.Setenv("VECTORSTORE_COLLECTION", "from_env")

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "from_env", cfg.VectorStore.Collection)
}

func TestLoadWithFile_APIKeyAliases(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("OPENAI_API_KEY", "sk_test")

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, "gsk_test", cfg.Generator.APIKey.Value())
	assert.Equal(t, "sk_test", cfg.Embeddings.APIKey.Value())
}

func TestLoadWithFile_RejectsWorldReadable(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "ragd")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9000\n"), 0o644))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permissions")
}

func TestLoadWithFile_RejectsOutsideAllowedDirs(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	outside := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(outside, []byte("{}"), 0o600))

	_, err := LoadWithFile(outside)
	assert.Error(t, err)
}

func TestLoadWithFile_InvalidValuesRejected(t *testing.T) {
	writeConfigFile(t, `
logging:
  level: loud
`)

	_, err := LoadWithFile("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("super-secret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "super-secret", s.Value())
	assert.True(t, s.IsSet())

	json, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(json))

	assert.Equal(t, "", Secret("").String())
	assert.False(t, Secret("").IsSet())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("nonsense")))
}

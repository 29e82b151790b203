package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "llama3.2-vision:latest", cfg.Vision.Model)
	assert.Equal(t, "gemma3n:e4b", cfg.Vision.TextModel)
	assert.Equal(t, "http://localhost:11434", cfg.Vision.Host)
	assert.Equal(t, "images/processed", cfg.Output.Dir)
	assert.Equal(t, "jadescribe.db", cfg.Telemetry.DSN)
	assert.Equal(t, 1, cfg.Analysis.Workers)
	assert.Equal(t, 2, cfg.Analysis.MaxRetries)
	assert.Equal(t, time.Second, cfg.Analysis.RetryDelay)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Vision.Backend = BackendGemini
	cfg.Analysis.Workers = 4
	cfg.Analysis.CropTimeout = 90 * time.Second
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vision:\n  model: qwen2.5vl:7b\nanalysis:\n  retry_delay: 250ms\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5vl:7b", cfg.Vision.Model)
	assert.Equal(t, 250*time.Millisecond, cfg.Analysis.RetryDelay)
	assert.Equal(t, "gemma3n:e4b", cfg.Vision.TextModel)
	assert.Equal(t, 19, cfg.Segment.BlockSize)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"output": {"dir": "crops", "format": "webp"}}`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "crops", cfg.Output.Dir)
	assert.Equal(t, "webp", cfg.Output.Format)
}

func TestLoadErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vision: [oops"), 0o644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"OLLAMA_HOST":                    "http://gpu-box:11434",
		"VISION_MODEL":                   "llava:13b",
		"TEXT_MODEL":                     "qwen3:8b",
		"VISION_BACKEND":                 "gemini",
		"GEMINI_API_KEY":                 "key-123",
		"REDIS_ADDR":                     "redis:6379",
		"REDIS_PASSWORD":                 "secret",
		"TELEMETRY_DSN":                  "postgres://jade@db/jade",
		"JWT_SECRET":                     "jwt",
		"GOOGLE_APPLICATION_CREDENTIALS": "/etc/sa.json",
		"VISION_WORKERS":                 "3",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "http://gpu-box:11434", cfg.Vision.Host)
	assert.Equal(t, "llava:13b", cfg.Vision.Model)
	assert.Equal(t, "qwen3:8b", cfg.Vision.TextModel)
	assert.Equal(t, BackendGemini, cfg.Vision.Backend)
	assert.Equal(t, "key-123", cfg.Vision.APIKey)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "redis:6379", cfg.Cache.Addr)
	assert.Equal(t, "secret", cfg.Cache.Password)
	assert.Equal(t, "postgres://jade@db/jade", cfg.Telemetry.DSN)
	assert.Equal(t, "jwt", cfg.Server.JWTSecret)
	assert.Equal(t, "/etc/sa.json", cfg.OCR.CredentialsFile)
	assert.Equal(t, 3, cfg.Analysis.Workers)
}

func TestApplyEnvIgnoresEmpty(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(func(string) string { return "" })
	assert.Equal(t, Default(), cfg)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Vision.Backend = "openai" }},
		{"host without scheme", func(c *Config) { c.Vision.Host = "localhost:11434" }},
		{"empty model", func(c *Config) { c.Vision.Model = "" }},
		{"even block size", func(c *Config) { c.Segment.BlockSize = 18 }},
		{"even blur kernel", func(c *Config) { c.Segment.BlurKernel = 4 }},
		{"area ratio out of range", func(c *Config) { c.Segment.MinAreaRatio = 1.5 }},
		{"zero workers", func(c *Config) { c.Analysis.Workers = 0 }},
		{"negative retries", func(c *Config) { c.Analysis.MaxRetries = -1 }},
		{"bad quality", func(c *Config) { c.Output.Quality = 101 }},
		{"bad format", func(c *Config) { c.Output.Format = "gif" }},
		{"bad ocr backend", func(c *Config) { c.OCR.Backend = "abbyy" }},
		{"cache without addr", func(c *Config) { c.Cache.Enabled = true; c.Cache.Addr = "" }},
		{"telemetry without dsn", func(c *Config) { c.Telemetry.DSN = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateGeminiSkipsHost(t *testing.T) {
	cfg := Default()
	cfg.Vision.Backend = BackendGemini
	cfg.Vision.Host = ""
	assert.NoError(t, cfg.Validate())
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "config.yaml", filepath.Base(GetConfigPath()))
	assert.Contains(t, GetConfigPath(), "jadescribe")
}

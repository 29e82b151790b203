// Package config loads the JadeScribe configuration: defaults, then a YAML
// file, then environment overrides, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Vision backends
const (
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
	BackendGemini   = "gemini"
)

// Config holds the application configuration
type Config struct {
	Vision    VisionConfig    `yaml:"vision" json:"vision"`
	OCR       OCRConfig       `yaml:"ocr" json:"ocr"`
	Segment   SegmentConfig   `yaml:"segment" json:"segment"`
	Enhance   EnhanceConfig   `yaml:"enhance" json:"enhance"`
	Analysis  AnalysisConfig  `yaml:"analysis" json:"analysis"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Describe  DescribeConfig  `yaml:"describe" json:"describe"`
}

// VisionConfig selects the inference backend
type VisionConfig struct {
	Backend     string        `yaml:"backend" json:"backend"`
	Host        string        `yaml:"host" json:"host"`
	Model       string        `yaml:"model" json:"model"`
	TextModel   string        `yaml:"text_model" json:"text_model"`
	APIKey      string        `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Temperature float64       `yaml:"temperature" json:"temperature"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// OCRConfig holds the label reader settings
type OCRConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	Backend         string `yaml:"backend" json:"backend"`
	Language        string `yaml:"language" json:"language"`
	CredentialsFile string `yaml:"credentials_file,omitempty" json:"credentials_file,omitempty"`
}

// SegmentConfig holds contour segmentation parameters
type SegmentConfig struct {
	BlurKernel   int     `yaml:"blur_kernel" json:"blur_kernel"`
	BlockSize    int     `yaml:"block_size" json:"block_size"`
	Offset       float64 `yaml:"offset" json:"offset"`
	MinAreaRatio float64 `yaml:"min_area_ratio" json:"min_area_ratio"`
	Padding      int     `yaml:"padding" json:"padding"`
}

// EnhanceConfig holds white balance and CLAHE parameters
type EnhanceConfig struct {
	ClipLimit float64 `yaml:"clip_limit" json:"clip_limit"`
	TileGrid  int     `yaml:"tile_grid" json:"tile_grid"`
	CastGain  float64 `yaml:"cast_gain" json:"cast_gain"`
}

// AnalysisConfig holds orchestration settings
type AnalysisConfig struct {
	Workers     int           `yaml:"workers" json:"workers"`
	CropTimeout time.Duration `yaml:"crop_timeout" json:"crop_timeout"`
	MaxRetries  int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay  time.Duration `yaml:"retry_delay" json:"retry_delay"`
	MaxImageDim int           `yaml:"max_image_dim" json:"max_image_dim"`
	JPEGQuality int           `yaml:"jpeg_quality" json:"jpeg_quality"`
}

// OutputConfig holds where and how crops are written
type OutputConfig struct {
	Dir     string `yaml:"dir" json:"dir"`
	Format  string `yaml:"format" json:"format"`
	Quality int    `yaml:"quality" json:"quality"`
}

// CacheConfig holds the Redis reply cache settings
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password,omitempty" json:"password,omitempty"`
	DB       int           `yaml:"db" json:"db"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// TelemetryConfig holds the event database settings
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	DSN     string `yaml:"dsn" json:"dsn"`
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Addr        string `yaml:"addr" json:"addr"`
	JWTSecret   string `yaml:"jwt_secret,omitempty" json:"jwt_secret,omitempty"`
	MaxUploadMB int    `yaml:"max_upload_mb" json:"max_upload_mb"`
}

// DescribeConfig holds description generation settings
type DescribeConfig struct {
	Temperature float64 `yaml:"temperature" json:"temperature"`
	Glossary    string  `yaml:"glossary,omitempty" json:"glossary,omitempty"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Vision: VisionConfig{
			Backend:     BackendOllama,
			Host:        "http://localhost:11434",
			Model:       "llama3.2-vision:latest",
			TextModel:   "gemma3n:e4b",
			Temperature: 0.1,
			Timeout:     300 * time.Second,
		},
		OCR: OCRConfig{
			Enabled:  false,
			Backend:  "tesseract",
			Language: "eng",
		},
		Segment: SegmentConfig{
			BlurKernel:   5,
			BlockSize:    19,
			Offset:       3,
			MinAreaRatio: 0.02,
			Padding:      20,
		},
		Enhance: EnhanceConfig{
			ClipLimit: 2.5,
			TileGrid:  8,
			CastGain:  1.1,
		},
		Analysis: AnalysisConfig{
			Workers:     1,
			MaxRetries:  2,
			RetryDelay:  time.Second,
			MaxImageDim: 1536,
			JPEGQuality: 90,
		},
		Output: OutputConfig{
			Dir:     "images/processed",
			Format:  "jpg",
			Quality: 95,
		},
		Cache: CacheConfig{
			Addr: "localhost:6379",
			TTL:  24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
			DSN:     "jadescribe.db",
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxUploadMB: 32,
		},
		Describe: DescribeConfig{
			Temperature: 0.7,
		},
	}
}

// LoadFromFile loads configuration from a YAML (or JSON) file on top of
// the defaults, so omitted keys keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Load reads filename when it exists, otherwise returns the defaults.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return LoadFromFile(filename)
}

// SaveToFile saves configuration as YAML
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from environment variables. Unset or empty
// variables are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Vision.Host, "OLLAMA_HOST")
	set(&c.Vision.Model, "VISION_MODEL")
	set(&c.Vision.TextModel, "TEXT_MODEL")
	set(&c.Vision.Backend, "VISION_BACKEND")
	set(&c.Vision.APIKey, "GEMINI_API_KEY")
	set(&c.OCR.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	set(&c.Telemetry.DSN, "TELEMETRY_DSN")
	set(&c.Server.JWTSecret, "JWT_SECRET")
	set(&c.Cache.Password, "REDIS_PASSWORD")

	if v := strings.TrimSpace(getenv("REDIS_ADDR")); v != "" {
		c.Cache.Addr = v
		c.Cache.Enabled = true
	}
	if v := strings.TrimSpace(getenv("VISION_WORKERS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Analysis.Workers = n
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.Vision.Backend {
	case BackendOllama, BackendLlamaCpp:
		u, err := url.Parse(c.Vision.Host)
		check(err == nil && u.Scheme != "" && u.Host != "", "vision.host %q must be an http(s) URL", c.Vision.Host)
	case BackendGemini:
	default:
		errs = append(errs, fmt.Errorf("vision.backend must be one of ollama, llamacpp, gemini; got %q", c.Vision.Backend))
	}
	check(c.Vision.Model != "", "vision.model cannot be empty")
	check(c.Vision.Temperature >= 0 && c.Vision.Temperature <= 2, "vision.temperature must be between 0 and 2")
	check(c.Vision.Timeout >= 0, "vision.timeout cannot be negative")

	switch c.OCR.Backend {
	case "tesseract", "cloudvision":
	default:
		errs = append(errs, fmt.Errorf("ocr.backend must be tesseract or cloudvision; got %q", c.OCR.Backend))
	}

	check(c.Segment.BlurKernel > 0 && c.Segment.BlurKernel%2 == 1, "segment.blur_kernel must be a positive odd number")
	check(c.Segment.BlockSize >= 3 && c.Segment.BlockSize%2 == 1, "segment.block_size must be an odd number of at least 3")
	check(c.Segment.MinAreaRatio > 0 && c.Segment.MinAreaRatio < 1, "segment.min_area_ratio must be between 0 and 1")
	check(c.Segment.Padding >= 0, "segment.padding cannot be negative")

	check(c.Enhance.ClipLimit > 0, "enhance.clip_limit must be positive")
	check(c.Enhance.TileGrid > 0, "enhance.tile_grid must be positive")
	check(c.Enhance.CastGain >= 0, "enhance.cast_gain cannot be negative")

	check(c.Analysis.Workers >= 1, "analysis.workers must be at least 1")
	check(c.Analysis.MaxRetries >= 0, "analysis.max_retries cannot be negative")
	check(c.Analysis.RetryDelay >= 0, "analysis.retry_delay cannot be negative")
	check(c.Analysis.CropTimeout >= 0, "analysis.crop_timeout cannot be negative")
	check(c.Analysis.MaxImageDim >= 64, "analysis.max_image_dim must be at least 64")
	check(c.Analysis.JPEGQuality >= 1 && c.Analysis.JPEGQuality <= 100, "analysis.jpeg_quality must be between 1 and 100")

	check(c.Output.Dir != "", "output.dir cannot be empty")
	switch strings.ToLower(c.Output.Format) {
	case "jpg", "jpeg", "png", "webp":
	default:
		errs = append(errs, fmt.Errorf("output.format must be jpg, png or webp; got %q", c.Output.Format))
	}
	check(c.Output.Quality >= 1 && c.Output.Quality <= 100, "output.quality must be between 1 and 100")

	check(!c.Cache.Enabled || c.Cache.Addr != "", "cache.addr is required when the cache is enabled")
	check(c.Cache.TTL >= 0, "cache.ttl cannot be negative")
	check(!c.Telemetry.Enabled || c.Telemetry.DSN != "", "telemetry.dsn is required when telemetry is enabled")
	check(c.Server.MaxUploadMB > 0, "server.max_upload_mb must be positive")
	check(c.Describe.Temperature >= 0 && c.Describe.Temperature <= 2, "describe.temperature must be between 0 and 2")

	return errors.Join(errs...)
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "jadescribe", "config.yaml")
}

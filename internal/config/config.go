// Package config loads the smre configuration.
//
// Configuration is layered in order of increasing precedence:
//  1. Hardcoded defaults (NewConfig)
//  2. User config ($XDG_CONFIG_HOME/smre/config.yaml or ~/.config/smre/config.yaml)
//  3. Project config (smre.yaml, smre.yml or config.yaml in the working directory),
//     or an explicit file passed to LoadFile
//  4. Environment variables (SMRE_*)
//
// The resulting *Config is treated as immutable once loaded and is passed
// by pointer into the components that need it.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in configuration.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
	// BackendElasticsearch is accepted as an alias of BackendRemote.
	BackendElasticsearch = "elasticsearch"
)

// Embedding providers.
const (
	ProviderStatic = "static"
	ProviderOllama = "ollama"
)

// Config represents the complete smre configuration.
type Config struct {
	Backend   string          `yaml:"backend" json:"backend"`
	IndexName string          `yaml:"index_name" json:"index_name"`
	TopK      int             `yaml:"top_k" json:"top_k"`
	Local     LocalConfig     `yaml:"local" json:"local"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Hybrid    HybridConfig    `yaml:"hybrid" json:"hybrid"`
	Remote    RemoteConfig    `yaml:"remote" json:"remote"`
	UI        UIConfig        `yaml:"ui" json:"ui"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// LocalConfig locates the corpus and the local index directory.
type LocalConfig struct {
	IndexDir string `yaml:"index_dir" json:"index_dir"`
	DataPath string `yaml:"data_path" json:"data_path"`
}

// EmbeddingConfig configures the embedding function.
type EmbeddingConfig struct {
	// Provider is "static" (hash embedder, no model) or "ollama".
	Provider   string `yaml:"provider" json:"provider"`
	ModelName  string `yaml:"model_name" json:"model_name"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	// Timeout bounds a single query embedding; on expiry the vector path
	// contributes zero.
	Timeout   string `yaml:"timeout" json:"timeout"`
	CacheSize int    `yaml:"cache_size" json:"cache_size"`
}

// HybridConfig holds the fusion weights and BM25 constants.
// Weights are non-negative; they usually sum to 1 but are not required to.
type HybridConfig struct {
	AlphaBM25 *float64 `yaml:"alpha_bm25" json:"alpha_bm25"`
	BetaEmbed *float64 `yaml:"beta_embed" json:"beta_embed"`
	K1        float64  `yaml:"k1" json:"k1"`
	B         *float64 `yaml:"b" json:"b"`
}

// RemoteConfig configures the remote document-search backend.
type RemoteConfig struct {
	// URL is an Elasticsearch base URL, or bleve://<dir> for the embedded index.
	URL     string `yaml:"url" json:"url"`
	Timeout string `yaml:"timeout" json:"timeout"`
	// FallbackLocal runs local fusion when the remote search fails.
	FallbackLocal bool `yaml:"fallback_local" json:"fallback_local"`
	MaxRetries    *int `yaml:"max_retries" json:"max_retries"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	Title string `yaml:"title" json:"title"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

func float64Ptr(v float64) *float64 { return &v }
func intPtr(v int) *int             { return &v }

// NewConfig returns a configuration populated with defaults.
func NewConfig() *Config {
	return &Config{
		Backend:   BackendLocal,
		IndexName: "tennis_moments",
		TopK:      10,
		Local: LocalConfig{
			IndexDir: filepath.Join("data", "index"),
			DataPath: filepath.Join("data", "processed", "moments.csv"),
		},
		Embedding: EmbeddingConfig{
			Provider:   ProviderStatic,
			ModelName:  "all-minilm",
			OllamaHost: "http://localhost:11434",
			BatchSize:  64,
			Timeout:    "5s",
			CacheSize:  1000,
		},
		Hybrid: HybridConfig{
			AlphaBM25: float64Ptr(0.5),
			BetaEmbed: float64Ptr(0.5),
			K1:        1.5,
			B:         float64Ptr(0.75),
		},
		Remote: RemoteConfig{
			URL:        "http://localhost:9200",
			Timeout:    "10s",
			MaxRetries: intPtr(2),
		},
		UI: UIConfig{
			Title: "Sport Moments Retrieval",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file,
// following the XDG Base Directory specification.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "smre", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "smre", "config.yaml")
	}
	return filepath.Join(home, ".config", "smre", "config.yaml")
}

// projectConfigNames are tried in order in the working directory.
var projectConfigNames = []string{"smre.yaml", "smre.yml", "config.yaml"}

// Load loads configuration for the given working directory.
func Load(dir string) (*Config, error) {
	return load(dir, "")
}

// LoadFile loads configuration with an explicit file replacing the project
// config lookup. The file must exist.
func LoadFile(path string) (*Config, error) {
	if !fileExists(path) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return load("", path)
}

func load(dir, explicit string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	switch {
	case explicit != "":
		if err := cfg.loadYAML(explicit); err != nil {
			return nil, err
		}
	case dir != "":
		for _, name := range projectConfigNames {
			p := filepath.Join(dir, name)
			if fileExists(p) {
				if err := cfg.loadYAML(p); err != nil {
					return nil, err
				}
				break
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML parses path and merges its set values into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c. Weights are pointers
// so an explicit 0 in a file overrides a non-zero default.
func (c *Config) mergeWith(other *Config) {
	if other.Backend != "" {
		c.Backend = other.Backend
	}
	if other.IndexName != "" {
		c.IndexName = other.IndexName
	}
	if other.TopK != 0 {
		c.TopK = other.TopK
	}

	if other.Local.IndexDir != "" {
		c.Local.IndexDir = other.Local.IndexDir
	}
	if other.Local.DataPath != "" {
		c.Local.DataPath = other.Local.DataPath
	}

	if other.Embedding.Provider != "" {
		c.Embedding.Provider = other.Embedding.Provider
	}
	if other.Embedding.ModelName != "" {
		c.Embedding.ModelName = other.Embedding.ModelName
	}
	if other.Embedding.OllamaHost != "" {
		c.Embedding.OllamaHost = other.Embedding.OllamaHost
	}
	if other.Embedding.BatchSize != 0 {
		c.Embedding.BatchSize = other.Embedding.BatchSize
	}
	if other.Embedding.Timeout != "" {
		c.Embedding.Timeout = other.Embedding.Timeout
	}
	if other.Embedding.CacheSize != 0 {
		c.Embedding.CacheSize = other.Embedding.CacheSize
	}

	if other.Hybrid.AlphaBM25 != nil {
		c.Hybrid.AlphaBM25 = other.Hybrid.AlphaBM25
	}
	if other.Hybrid.BetaEmbed != nil {
		c.Hybrid.BetaEmbed = other.Hybrid.BetaEmbed
	}
	if other.Hybrid.K1 != 0 {
		c.Hybrid.K1 = other.Hybrid.K1
	}
	if other.Hybrid.B != nil {
		c.Hybrid.B = other.Hybrid.B
	}

	if other.Remote.URL != "" {
		c.Remote.URL = other.Remote.URL
	}
	if other.Remote.Timeout != "" {
		c.Remote.Timeout = other.Remote.Timeout
	}
	if other.Remote.FallbackLocal {
		c.Remote.FallbackLocal = true
	}
	if other.Remote.MaxRetries != nil {
		c.Remote.MaxRetries = other.Remote.MaxRetries
	}

	if other.UI.Title != "" {
		c.UI.Title = other.UI.Title
	}
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
}

// applyEnvOverrides applies SMRE_* environment variables. Values that fail
// to parse are ignored so a typo cannot clear a configured value.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SMRE_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("SMRE_INDEX_NAME"); v != "" {
		c.IndexName = v
	}
	if v := os.Getenv("SMRE_TOP_K"); v != "" {
		if k, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.TopK = k
		}
	}
	if v := os.Getenv("SMRE_ALPHA_BM25"); v != "" {
		if w, err := parseFloat64(v); err == nil {
			c.Hybrid.AlphaBM25 = &w
		}
	}
	if v := os.Getenv("SMRE_BETA_EMBED"); v != "" {
		if w, err := parseFloat64(v); err == nil {
			c.Hybrid.BetaEmbed = &w
		}
	}
	if v := os.Getenv("SMRE_EMBEDDING_MODEL"); v != "" {
		c.Embedding.ModelName = v
	}
	if v := os.Getenv("SMRE_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("SMRE_OLLAMA_HOST"); v != "" {
		c.Embedding.OllamaHost = v
	}
	if v := os.Getenv("SMRE_INDEX_DIR"); v != "" {
		c.Local.IndexDir = v
	}
	if v := os.Getenv("SMRE_DATA_PATH"); v != "" {
		c.Local.DataPath = v
	}
	if v := os.Getenv("SMRE_REMOTE_URL"); v != "" {
		c.Remote.URL = v
	}
	if v := os.Getenv("SMRE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case BackendLocal, BackendRemote, BackendElasticsearch:
	default:
		return fmt.Errorf("backend must be 'local', 'remote' or 'elasticsearch', got %q", c.Backend)
	}

	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}

	if err := checkWeight("alpha_bm25", c.AlphaBM25()); err != nil {
		return err
	}
	if err := checkWeight("beta_embed", c.BetaEmbed()); err != nil {
		return err
	}

	if c.Hybrid.K1 < 0 || math.IsNaN(c.Hybrid.K1) || math.IsInf(c.Hybrid.K1, 0) {
		return fmt.Errorf("hybrid.k1 must be a non-negative number, got %v", c.Hybrid.K1)
	}
	if b := c.BM25B(); b < 0 || b > 1 || math.IsNaN(b) {
		return fmt.Errorf("hybrid.b must be between 0 and 1, got %v", b)
	}

	switch strings.ToLower(c.Embedding.Provider) {
	case ProviderStatic, ProviderOllama:
	default:
		return fmt.Errorf("embedding.provider must be 'static' or 'ollama', got %q", c.Embedding.Provider)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be positive, got %d", c.Embedding.BatchSize)
	}

	if _, err := time.ParseDuration(c.Embedding.Timeout); err != nil {
		return fmt.Errorf("embedding.timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Remote.Timeout); err != nil {
		return fmt.Errorf("remote.timeout: %w", err)
	}
	if c.RemoteMaxRetries() < 0 {
		return fmt.Errorf("remote.max_retries must be non-negative, got %d", c.RemoteMaxRetries())
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

func checkWeight(name string, w float64) error {
	if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return fmt.Errorf("hybrid.%s must be a non-negative number, got %v", name, w)
	}
	return nil
}

// IsRemote reports whether the remote backend is selected.
func (c *Config) IsRemote() bool {
	b := strings.ToLower(c.Backend)
	return b == BackendRemote || b == BackendElasticsearch
}

// AlphaBM25 returns the lexical weight.
func (c *Config) AlphaBM25() float64 {
	if c.Hybrid.AlphaBM25 == nil {
		return 0
	}
	return *c.Hybrid.AlphaBM25
}

// BetaEmbed returns the embedding weight.
func (c *Config) BetaEmbed() float64 {
	if c.Hybrid.BetaEmbed == nil {
		return 0
	}
	return *c.Hybrid.BetaEmbed
}

// BM25B returns the BM25 length normalization constant.
func (c *Config) BM25B() float64 {
	if c.Hybrid.B == nil {
		return 0.75
	}
	return *c.Hybrid.B
}

// RemoteMaxRetries returns the retry budget for remote calls.
func (c *Config) RemoteMaxRetries() int {
	if c.Remote.MaxRetries == nil {
		return 0
	}
	return *c.Remote.MaxRetries
}

// EmbeddingTimeout returns the parsed query embedding timeout.
func (c *Config) EmbeddingTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Embedding.Timeout)
	return d
}

// RemoteTimeout returns the parsed remote call timeout.
func (c *Config) RemoteTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Remote.Timeout)
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Package config loads project settings from .coderag.toml or .coderag.json.
//
// Keys present in the file override the defaults; absent keys keep them.
// Environment variables (CODERAG_*) override the file, and command-line
// flags override both.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// File names searched in the working directory, in order.
const (
	FileTOML = ".coderag.toml"
	FileJSON = ".coderag.json"
)

// Names of files inside the index directory.
const (
	DBFile     = "index.db"
	LedgerFile = "ledger.json"
)

var (
	// ErrInvalid is returned by Validate.
	ErrInvalid = errors.New("invalid config")
	// ErrMalformed is returned by Load when the file cannot be decoded.
	ErrMalformed = errors.New("malformed config file")
)

// Config holds the project settings.
type Config struct {
	IndexDirectory string   `toml:"index_directory" json:"index_directory"`
	FilePatterns   []string `toml:"file_patterns" json:"file_patterns"`
	IgnorePatterns []string `toml:"ignore_patterns" json:"ignore_patterns"`
	MaxFileSize    int64    `toml:"max_file_size" json:"max_file_size"`

	EmbeddingModel    string `toml:"embedding_model" json:"embedding_model"`
	EmbeddingProvider string `toml:"embedding_provider" json:"embedding_provider"`
	OllamaURL         string `toml:"ollama_url" json:"ollama_url"`
	ChatProvider      string `toml:"chat_provider" json:"chat_provider"`
	ChatModel         string `toml:"chat_model" json:"chat_model"`

	EmbedBatchSize   int `toml:"embed_batch_size" json:"embed_batch_size"`
	EmbedConcurrency int `toml:"embed_concurrency" json:"embed_concurrency"`
	SearchCacheSize  int `toml:"search_cache_size" json:"search_cache_size"`

	// GeminiAPIKey is only read from the environment.
	GeminiAPIKey string `toml:"-" json:"-"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		IndexDirectory: ".coderag",
		FilePatterns:   []string{"*.py", "*.js", "*.jsx", "*.ts", "*.tsx", "*.go"},
		IgnorePatterns: []string{
			"node_modules/**",
			".git/**",
			"__pycache__/**",
			"*.pyc",
			".venv/**",
			"venv/**",
			"build/**",
			"dist/**",
			".coderag/**",
		},
		MaxFileSize:       1024 * 1024,
		EmbeddingModel:    "nomic-embed-text",
		EmbeddingProvider: "ollama",
		OllamaURL:         "http://localhost:11434",
		ChatProvider:      "ollama",
		ChatModel:         "qwen3:8b",
		EmbedBatchSize:    32,
		EmbedConcurrency:  2,
		SearchCacheSize:   256,
	}
}

// Find returns the config file in dir, or "" if there is none.
func Find(dir string) string {
	for _, name := range []string{FileTOML, FileJSON} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load reads the config at path over the defaults. An empty path yields
// the defaults. A file that cannot be decoded also yields the defaults,
// together with an error wrapping ErrMalformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	loaded := Default()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, loaded)
	} else {
		_, err = toml.Decode(string(data), loaded)
	}
	if err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	return loaded, nil
}

// Save writes cfg to path as TOML, or as JSON for a .json path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		return os.WriteFile(path, append(data, '\n'), 0o644)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from CODERAG_* variables. Unparseable numbers
// are ignored.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("CODERAG_INDEX_DIRECTORY"); v != "" {
		c.IndexDirectory = v
	}
	if v := os.Getenv("CODERAG_EMBEDDING_MODEL"); v != "" {
		c.EmbeddingModel = v
	}
	if v := os.Getenv("CODERAG_EMBEDDING_PROVIDER"); v != "" {
		c.EmbeddingProvider = v
	}
	if v := os.Getenv("CODERAG_OLLAMA_URL"); v != "" {
		c.OllamaURL = v
	}
	if v := os.Getenv("CODERAG_CHAT_PROVIDER"); v != "" {
		c.ChatProvider = v
	}
	if v := os.Getenv("CODERAG_CHAT_MODEL"); v != "" {
		c.ChatModel = v
	}
	if v := os.Getenv("CODERAG_MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxFileSize = n
		}
	}
	if v := os.Getenv("CODERAG_EMBED_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.EmbedBatchSize = n
		}
	}
	if v := os.Getenv("CODERAG_EMBED_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.EmbedConcurrency = n
		}
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.GeminiAPIKey = v
	}
}

var providers = map[string]bool{"ollama": true, "gemini": true}

// Validate reports every problem found, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var problems []string
	if c.IndexDirectory == "" {
		problems = append(problems, "index_directory is empty")
	}
	if len(c.FilePatterns) == 0 {
		problems = append(problems, "file_patterns is empty")
	}
	if c.MaxFileSize <= 0 {
		problems = append(problems, fmt.Sprintf("max_file_size must be positive, got %d", c.MaxFileSize))
	}
	if c.EmbeddingModel == "" {
		problems = append(problems, "embedding_model is empty")
	}
	if !providers[strings.ToLower(c.EmbeddingProvider)] {
		problems = append(problems, fmt.Sprintf("unknown embedding_provider %q", c.EmbeddingProvider))
	}
	if !providers[strings.ToLower(c.ChatProvider)] {
		problems = append(problems, fmt.Sprintf("unknown chat_provider %q", c.ChatProvider))
	}
	if c.EmbedBatchSize <= 0 {
		problems = append(problems, fmt.Sprintf("embed_batch_size must be positive, got %d", c.EmbedBatchSize))
	}
	if c.EmbedConcurrency <= 0 {
		problems = append(problems, fmt.Sprintf("embed_concurrency must be positive, got %d", c.EmbedConcurrency))
	}
	if c.SearchCacheSize <= 0 {
		problems = append(problems, fmt.Sprintf("search_cache_size must be positive, got %d", c.SearchCacheSize))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// IndexDir resolves the index directory against the project root.
func (c *Config) IndexDir(root string) string {
	if filepath.IsAbs(c.IndexDirectory) {
		return c.IndexDirectory
	}
	return filepath.Join(root, c.IndexDirectory)
}

// DBPath is the store's database file for the project at root.
func (c *Config) DBPath(root string) string {
	return filepath.Join(c.IndexDir(root), DBFile)
}

// LedgerPath is the ledger file for the project at root.
func (c *Config) LedgerPath(root string) string {
	return filepath.Join(c.IndexDir(root), LedgerFile)
}

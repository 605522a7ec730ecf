// Package config provides configuration for the graph memory service. It
// loads settings from environment variables with the GRAPHMEMORY_ prefix,
// optionally overlaid by a YAML file, and provides defaults for everything.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all settings for the graph memory service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Extract   ExtractConfig   `yaml:"extract"`
	Security  SecurityConfig  `yaml:"security"`
}

// ServerConfig contains the admin inspection server settings.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"` // Serve the inspection API (default: true)
	Host    string `yaml:"host"`    // Bind host (default: 127.0.0.1)
	Port    int    `yaml:"port"`    // Bind port (default: 6380)
}

// StorageConfig locates the graph documents and the payload inbox.
type StorageConfig struct {
	GraphPath string `yaml:"graphPath"` // Graph document file (default: ./data/graph.json)
	InboxPath string `yaml:"inboxPath"` // Payload drop directory (default: ./data/inbox)
}

// RetrievalConfig holds the search defaults.
type RetrievalConfig struct {
	MaxHops       int     `yaml:"maxHops"`       // Neighbor-expansion depth (default: 2)
	NeighborLimit int     `yaml:"neighborLimit"` // Expansion entity budget (default: 8)
	MinScore      float64 `yaml:"minScore"`      // Embedding similarity floor (default: 0.3)
	Deterministic bool    `yaml:"deterministic"` // Keyword-only retrieval, no embeddings
}

// ExtractConfig holds the background extraction settings.
type ExtractConfig struct {
	Enabled      bool   `yaml:"enabled"`      // Run background extraction (default: false)
	TemplatePath string `yaml:"templatePath"` // Prompt template file
	BaseURL      string `yaml:"baseUrl"`      // Ollama API base URL (default: http://localhost:11434)
	Model        string `yaml:"model"`        // Ollama model name (default: llama3.2)
}

// SecurityConfig contains the inspection server's auth settings.
type SecurityConfig struct {
	Mode     string `yaml:"mode"`     // development or production (default: development)
	APIToken string `yaml:"apiToken"` // Bearer token required in production
}

// Load builds the configuration from environment variables, overlaid by the
// YAML file at path when path is non-empty. A missing or unreadable YAML
// file is an error; missing env vars fall back to defaults.
func Load(path string) (*Config, error) {
	cfg := fromEnv()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Enabled: getEnvBool("GRAPHMEMORY_SERVER_ENABLED", true),
			Host:    getEnv("GRAPHMEMORY_HOST", "127.0.0.1"),
			Port:    getEnvInt("GRAPHMEMORY_PORT", 6380),
		},
		Storage: StorageConfig{
			GraphPath: getEnv("GRAPHMEMORY_GRAPH_PATH", "./data/graph.json"),
			InboxPath: getEnv("GRAPHMEMORY_INBOX_PATH", "./data/inbox"),
		},
		Retrieval: RetrievalConfig{
			MaxHops:       getEnvInt("GRAPHMEMORY_MAX_HOPS", 2),
			NeighborLimit: getEnvInt("GRAPHMEMORY_NEIGHBOR_LIMIT", 8),
			MinScore:      getEnvFloat("GRAPHMEMORY_MIN_SCORE", 0.3),
			Deterministic: getEnvBool("GRAPHMEMORY_DETERMINISTIC", false),
		},
		Extract: ExtractConfig{
			Enabled:      getEnvBool("GRAPHMEMORY_EXTRACT_ENABLED", false),
			TemplatePath: getEnv("GRAPHMEMORY_EXTRACT_TEMPLATE", "./prompts/extract.txt"),
			BaseURL:      getEnv("GRAPHMEMORY_EXTRACT_BASE_URL", "http://localhost:11434"),
			Model:        getEnv("GRAPHMEMORY_EXTRACT_MODEL", "llama3.2"),
		},
		Security: SecurityConfig{
			Mode:     getEnv("GRAPHMEMORY_SECURITY_MODE", "development"),
			APIToken: getEnv("GRAPHMEMORY_API_TOKEN", ""),
		},
	}
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value, also on parse failure.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value, also on parse failure.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. It recognizes true/1/yes and false/0/no, case-insensitive.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}

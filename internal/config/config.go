package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig              `json:"server"`
	Database  DatabaseConfig            `json:"database"`
	Providers map[string]ProviderConfig `json:"providers"`
	Routing   RoutingConfig             `json:"routing"`
	Retrieval RetrievalConfig           `json:"retrieval"`
	Contract  ContractConfig            `json:"contract"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslmode"`
}

// ProviderConfig describes one completion backend. APIKey may be left
// empty, in which case the credential is resolved from the integrations
// table under Integration (defaulting to the provider id).
type ProviderConfig struct {
	Type            string  `json:"type"`
	Name            string  `json:"name"`
	BaseURL         string  `json:"base_url,omitempty"`
	APIKey          string  `json:"api_key,omitempty"`
	Integration     string  `json:"integration,omitempty"`
	Model           string  `json:"model"`
	PremiumModel    string  `json:"premium_model,omitempty"`
	CostPer1kInput  float64 `json:"cost_per_1k_input"`
	CostPer1kOutput float64 `json:"cost_per_1k_output"`
}

// RoutingConfig ranks providers for the fallback chain. Preference is
// an ordered list of provider ids; available providers not listed are
// attempted after the ranked ones.
type RoutingConfig struct {
	Preference []string `json:"preference"`
}

type RetrievalConfig struct {
	EmbeddingModel      string  `json:"embedding_model"`
	MaxTextLength       int     `json:"max_text_length"`
	CacheSize           int     `json:"cache_size"`
	TopK                int     `json:"top_k"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

type ContractConfig struct {
	MaxGenerationAttempts int `json:"max_generation_attempts"`
	RawFallbackLimit      int `json:"raw_fallback_limit"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".replycore"))
	}

	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "replycore")
	viper.SetDefault("database.database", "replycore")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("routing.preference", []string{"openai", "anthropic", "deepseek", "ollama"})
	viper.SetDefault("retrieval.embedding_model", "text-embedding-3-small")
	viper.SetDefault("retrieval.max_text_length", 8192)
	viper.SetDefault("retrieval.cache_size", 1000)
	viper.SetDefault("retrieval.top_k", 3)
	viper.SetDefault("retrieval.similarity_threshold", 0.75)
	viper.SetDefault("contract.max_generation_attempts", 2)
	viper.SetDefault("contract.raw_fallback_limit", 600)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createDefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvOverrides(&cfg)

	return &cfg, nil
}

func createDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 3000,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "replycore",
			Password: "",
			Database: "replycore",
			SSLMode:  "disable",
		},
		Providers: map[string]ProviderConfig{
			"openai": {
				Type:            "openai",
				Name:            "OpenAI",
				Model:           "gpt-4o-mini",
				PremiumModel:    "gpt-4o",
				CostPer1kInput:  0.00015,
				CostPer1kOutput: 0.0006,
			},
			"anthropic": {
				Type:            "anthropic",
				Name:            "Anthropic",
				Model:           "claude-3-5-haiku-20241022",
				PremiumModel:    "claude-3-5-sonnet-20241022",
				CostPer1kInput:  0.0008,
				CostPer1kOutput: 0.004,
			},
			"gemini": {
				Type:            "gemini",
				Name:            "Gemini",
				Model:           "gemini-1.5-flash",
				CostPer1kInput:  0.000075,
				CostPer1kOutput: 0.0003,
			},
			"deepseek": {
				Type:            "openai-compatible",
				Name:            "DeepSeek",
				BaseURL:         "https://api.deepseek.com",
				Model:           "deepseek-chat",
				CostPer1kInput:  0.00014,
				CostPer1kOutput: 0.00028,
			},
			"ollama": {
				Type:    "openai-compatible",
				Name:    "Ollama",
				BaseURL: "http://localhost:11434",
				Model:   "llama3.1",
			},
		},
		Routing: RoutingConfig{
			Preference: []string{"openai", "anthropic", "deepseek", "ollama"},
		},
		Retrieval: RetrievalConfig{
			EmbeddingModel:      "text-embedding-3-small",
			MaxTextLength:       8192,
			CacheSize:           1000,
			TopK:                3,
			SimilarityThreshold: 0.75,
		},
		Contract: ContractConfig{
			MaxGenerationAttempts: 2,
			RawFallbackLimit:      600,
		},
	}
}

func loadEnvOverrides(cfg *Config) {
	if port := os.Getenv("REPLYCORE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if host := os.Getenv("REPLYCORE_HOST"); host != "" {
		cfg.Server.Host = host
	}

	if dbHost := os.Getenv("POSTGRES_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("POSTGRES_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			cfg.Database.Port = port
		}
	}
	if dbUser := os.Getenv("POSTGRES_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPass := os.Getenv("POSTGRES_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if dbName := os.Getenv("POSTGRES_DB"); dbName != "" {
		cfg.Database.Database = dbName
	}

	// API keys live in the integrations table; only the explicit
	// per-provider override comes from the environment.
	for id, p := range cfg.Providers {
		if key := os.Getenv("REPLYCORE_" + envKey(id) + "_API_KEY"); key != "" {
			p.APIKey = key
			cfg.Providers[id] = p
		}
	}
}

func envKey(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
			out = append(out, r-('a'-'A'))
		case r == '-':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

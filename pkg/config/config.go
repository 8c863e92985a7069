package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	SQLite      SQLiteConfig
	Redis       RedisConfig
	LLM         LLMConfig
	Connectors  ConnectorsConfig
	Breach      BreachConfig
	Remediation RemediationConfig
	Audit       AuditConfig
	Logging     LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type ConnectorsConfig struct {
	GitHubToken  string
	Anonymize    bool
	TimeoutSec   int
	MaxRepos     int
	UserAgent    string
}

type BreachConfig struct {
	Enabled    bool
	APIKey     string
	BaseURL    string
	TimeoutSec int
}

type RemediationConfig struct {
	DryRun bool
}

type AuditConfig struct {
	Concurrency      int
	SnapshotTTLHours int
	InferenceTypes   []string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/ai-audit")

	viper.SetEnvPrefix("AI_AUDIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/audit.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 1024)
	viper.SetDefault("llm.timeoutSec", 30)

	viper.SetDefault("connectors.anonymize", false)
	viper.SetDefault("connectors.timeoutSec", 15)
	viper.SetDefault("connectors.maxRepos", 30)
	viper.SetDefault("connectors.userAgent", "ai-audit/1.0")

	viper.SetDefault("breach.enabled", false)
	viper.SetDefault("breach.baseURL", "https://haveibeenpwned.com/api/v3")
	viper.SetDefault("breach.timeoutSec", 10)

	viper.SetDefault("remediation.dryRun", true)

	viper.SetDefault("audit.concurrency", 8)
	viper.SetDefault("audit.snapshotTTLHours", 24)
	viper.SetDefault("audit.inferenceTypes", []string{})

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Neo4j     Neo4jConfig
	LLM       LLMConfig
	Logging   LoggingConfig
	Session   SessionConfig
	Progress  ProgressConfig
	Gaming    GamingConfig
	Catalog   CatalogConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
	Development    bool
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

type Neo4jConfig struct {
	Enabled  bool
	URI      string
	Username string
	Password string
	Database string
}

type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

type SessionConfig struct {
	TTLHours      int
	MaxMessages   int
	MinReflection int
	ReadyMinAreas int
}

type WindowConfig struct {
	Start string
	End   string
}

type ProgressConfig struct {
	ExchangeThreshold int
	MidtermWeeks      []int
	FinalWeeks        []int
	MidtermWindow     WindowConfig
	FinalWindow       WindowConfig
}

type GamingConfig struct {
	MinBaselineMessages int
	LengthMultiplier    float64
	MinOutlierWords     int
	AbsoluteWordLimit   int
	MinStockPhrases     int
	RegisterShiftRatio  float64
	MinRegisterWords    int
	MinSignals          int
}

type CatalogConfig struct {
	Source string
	Path   string
}

type RateLimitConfig struct {
	MaxRequestsPerMinute int
}

func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/reasoning-mirror")

	v.SetEnvPrefix("MIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.Progress.ExchangeThreshold < 1 {
		return fmt.Errorf("progress.exchangeThreshold must be positive, got %d", c.Progress.ExchangeThreshold)
	}
	for name, w := range map[string]WindowConfig{"midterm": c.Progress.MidtermWindow, "final": c.Progress.FinalWindow} {
		start, end, err := w.Parse()
		if err != nil {
			return fmt.Errorf("progress.%sWindow: %w", name, err)
		}
		if end.Before(start) {
			return fmt.Errorf("progress.%sWindow ends before it starts", name)
		}
	}
	switch c.Catalog.Source {
	case "builtin", "file", "neo4j":
	default:
		return fmt.Errorf("unknown catalog.source %q", c.Catalog.Source)
	}
	if c.Catalog.Source == "file" && c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path is required when catalog.source is file")
	}
	if c.Catalog.Source == "neo4j" && !c.Neo4j.Enabled {
		return fmt.Errorf("catalog.source neo4j requires neo4j.enabled")
	}
	return nil
}

// Parse returns the window bounds as RFC 3339 timestamps.
func (w WindowConfig) Parse() (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, w.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, w.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %w", err)
	}
	return start, end, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 60)
	v.SetDefault("server.bodyLimit", 10485760)
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("server.development", false)

	v.SetDefault("sqlite.path", "./data/mirror.db")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("neo4j.enabled", false)
	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "password")
	v.SetDefault("neo4j.database", "neo4j")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.4)
	v.SetDefault("llm.maxTokens", 600)
	v.SetDefault("llm.timeoutSec", 30)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")

	v.SetDefault("session.ttlHours", 72)
	v.SetDefault("session.maxMessages", 200)
	v.SetDefault("session.minReflection", 40)
	v.SetDefault("session.readyMinAreas", 3)

	v.SetDefault("progress.exchangeThreshold", 10)
	v.SetDefault("progress.midtermWeeks", []int{2, 3, 4, 5, 6, 7, 8})
	v.SetDefault("progress.finalWeeks", []int{2, 3, 4, 5, 6, 7, 8, 10, 11, 12, 13, 14, 15, 16})
	v.SetDefault("progress.midtermWindow.start", "2026-10-19T00:00:00-07:00")
	v.SetDefault("progress.midtermWindow.end", "2026-10-25T23:59:59-07:00")
	v.SetDefault("progress.finalWindow.start", "2026-12-07T00:00:00-08:00")
	v.SetDefault("progress.finalWindow.end", "2026-12-13T23:59:59-08:00")

	v.SetDefault("gaming.minBaselineMessages", 3)
	v.SetDefault("gaming.lengthMultiplier", 3.0)
	v.SetDefault("gaming.minOutlierWords", 80)
	v.SetDefault("gaming.absoluteWordLimit", 300)
	v.SetDefault("gaming.minStockPhrases", 2)
	v.SetDefault("gaming.registerShiftRatio", 1.3)
	v.SetDefault("gaming.minRegisterWords", 30)
	v.SetDefault("gaming.minSignals", 2)

	v.SetDefault("catalog.source", "builtin")

	v.SetDefault("rateLimit.maxRequestsPerMinute", 30)
}

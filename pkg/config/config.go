package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Classifier  ClassifierConfig  `mapstructure:"classifier"`
	Recommender RecommenderConfig `mapstructure:"recommender"`
	Chat        ChatConfig        `mapstructure:"chat"`
	OpenAI      OpenAIConfig      `mapstructure:"openai"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	JWTSecret  string `mapstructure:"jwt_secret"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type ClassifierConfig struct {
	// Strategy is "gpt" or "keyword".
	Strategy           string  `mapstructure:"strategy"`
	MaxTags            int     `mapstructure:"max_tags"`
	Temperature        float64 `mapstructure:"temperature"`
	FallbackToKeywords bool    `mapstructure:"fallback_to_keywords"`
}

type RecommenderConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

type ChatConfig struct {
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	SessionMaxAge   time.Duration `mapstructure:"session_max_age"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	// SessionBackend is "database" or "redis".
	SessionBackend string `mapstructure:"session_backend"`
}

type OpenAIConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if u.Hostname() == "" {
		return DatabaseConfig{}, fmt.Errorf("missing host in %q", u.Redacted())
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  sslMode,
	}, nil
}

func parseRedisURL(redisURL string, current RedisConfig) (RedisConfig, error) {
	u, err := url.Parse(redisURL)
	if err != nil {
		return RedisConfig{}, err
	}
	if u.Host == "" {
		return RedisConfig{}, fmt.Errorf("missing host in %q", u.Redacted())
	}
	cfg := current
	cfg.Addr = u.Host
	if password, ok := u.User.Password(); ok {
		cfg.Password = password
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		if _, err := fmt.Sscanf(db, "%d", &cfg.DB); err != nil {
			return RedisConfig{}, fmt.Errorf("invalid database %q: %w", db, err)
		}
	}
	return cfg, nil
}

// LoadConfig reads path when it exists, then applies environment overrides.
// A missing file is not an error; every setting has a default or an
// environment variable.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "tracely")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.prefix", "tracely:")
	v.SetDefault("classifier.strategy", "gpt")
	v.SetDefault("classifier.max_tags", 3)
	v.SetDefault("classifier.temperature", 0.3)
	v.SetDefault("classifier.fallback_to_keywords", false)
	v.SetDefault("recommender.temperature", 0.8)
	v.SetDefault("recommender.max_tokens", 1500)
	v.SetDefault("chat.temperature", 0.7)
	v.SetDefault("chat.max_tokens", 800)
	v.SetDefault("chat.session_max_age", 24*time.Hour)
	v.SetDefault("chat.cleanup_interval", time.Hour)
	v.SetDefault("chat.session_backend", "database")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 500)
	v.SetDefault("openai.timeout", 15*time.Second)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read the config file
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		dbConfig.UseInMemory = config.Database.UseInMemory
		config.Database = dbConfig
	}

	if redisURL := v.GetString("REDIS_URL"); redisURL != "" {
		redisConfig, err := parseRedisURL(redisURL, config.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
		}
		config.Redis = redisConfig
	}

	// Get other environment variables
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if secret := v.GetString("JWT_SECRET"); secret != "" {
		config.Server.JWTSecret = secret
	}

	return &config, nil
}

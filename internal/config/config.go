package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration, loaded once at startup
// from a .env file and the environment.
type Config struct {
	AppPort      int    `mapstructure:"APP_PORT"`
	DatabasePath string `mapstructure:"DATABASE_PATH"`

	// StoreBackend selects the message store implementation: "sqlite" or "redis".
	StoreBackend string `mapstructure:"STORE_BACKEND"`
	RedisAddr    string `mapstructure:"REDIS_ADDR"`

	AgentURL     string `mapstructure:"AGENT_URL"`
	AgentAPIKey  string `mapstructure:"AGENT_API_KEY"`
	MainModel    string `mapstructure:"MAIN_MODEL"`
	SupportModel string `mapstructure:"SUPPORT_MODEL"`
	SystemPrompt string `mapstructure:"SYSTEM_PROMPT"`

	// TurnTimeout bounds one agent invocation; exceeding it cancels the call.
	TurnTimeout time.Duration `mapstructure:"TURN_TIMEOUT"`

	ObjectDir       string        `mapstructure:"OBJECT_DIR"`
	ObjectURLSecret string        `mapstructure:"OBJECT_URL_SECRET"`
	ObjectURLTTL    time.Duration `mapstructure:"OBJECT_URL_TTL"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("APP_PORT", 8000)
	viper.SetDefault("DATABASE_PATH", "/data/eva.db")
	viper.SetDefault("STORE_BACKEND", "sqlite")
	viper.SetDefault("REDIS_ADDR", "redis:6379")
	viper.SetDefault("AGENT_URL", "http://agent:9000")
	viper.SetDefault("AGENT_API_KEY", "")
	viper.SetDefault("MAIN_MODEL", "eva-main")
	viper.SetDefault("SUPPORT_MODEL", "eva-support")
	viper.SetDefault("SYSTEM_PROMPT", "When you call tools, their result will be automatically displayed to the user. Do not repeat them to the user. Instead, assert that you successfully called the tool and give a bit of context if needed.")
	viper.SetDefault("TURN_TIMEOUT", 2*time.Minute)
	viper.SetDefault("OBJECT_DIR", "/data/objects")
	viper.SetDefault("OBJECT_URL_SECRET", "")
	viper.SetDefault("OBJECT_URL_TTL", 24*time.Hour)
	viper.SetDefault("LOG_LEVEL", "INFO")

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./backend")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env from the working directory if present. It reports
// whether a file was loaded.
func LoadDotEnv() bool {
	return godotenv.Load() == nil
}

type Config struct {
	DiscordToken      string `env:"DISCORD_TOKEN"`
	InitSlashCommands bool   `env:"INIT_SLASH_COMMANDS" envDefault:"true"`
	CommandCacheDir   string `env:"COMMAND_CACHE_DIR" envDefault:"data/commands"`

	DiscordGuildBlacklist []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"json"`
	StoragePath   string `env:"STORAGE_PATH" envDefault:"datastore.json"`

	LavalinkHost     string        `env:"LAVALINK_HOST" envDefault:"localhost"`
	LavalinkPort     int           `env:"LAVALINK_PORT" envDefault:"2333"`
	LavalinkPassword string        `env:"LAVALINK_PASSWORD" envDefault:"youshallnotpass"`
	LavalinkSecure   bool          `env:"LAVALINK_SECURE" envDefault:"false"`
	LavalinkUserID   string        `env:"LAVALINK_USER_ID"`
	NodeReadyTimeout time.Duration `env:"NODE_READY_TIMEOUT" envDefault:"10s"`

	SearchCacheTTL  time.Duration `env:"SEARCH_CACHE_TTL" envDefault:"10s"`
	SearchCacheSize int           `env:"SEARCH_CACHE_SIZE" envDefault:"64"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// New parses the environment into a Config.
func New() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.StorageDriver != "json" && cfg.StorageDriver != "sqlite" {
		return nil, fmt.Errorf("STORAGE_DRIVER must be json or sqlite, got %q", cfg.StorageDriver)
	}
	if cfg.SearchCacheSize <= 0 {
		return nil, errors.New("SEARCH_CACHE_SIZE must be positive")
	}
	return &cfg, nil
}

// ValidateBot checks the settings only the bot needs.
func (c *Config) ValidateBot() error {
	if c.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN is not set")
	}
	return nil
}

func Get(key string) string {
	return os.Getenv(key)
}

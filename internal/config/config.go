package config

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Port        string `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`

	// AdminPasswordHash is the bcrypt hash checked by the admin login. Empty disables it.
	AdminPasswordHash string `mapstructure:"ADMIN_PASSWORD_HASH"`

	// RedisURL enables the cross-process session directory when set.
	RedisURL string `mapstructure:"REDIS_URL"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// SendBuffer is the number of frames queued per connection before it is dropped.
	SendBuffer   int           `mapstructure:"SEND_BUFFER"`
	WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
	PingInterval time.Duration `mapstructure:"PING_INTERVAL"`
	// AllowedOrigins is a comma-separated list of extra origins allowed to open /ws.
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	// ShuffleSeed fixes the deck shuffler for reproducible games. 0 seeds from the clock.
	ShuffleSeed uint64 `mapstructure:"SHUFFLE_SEED"`
}

var AppConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SEND_BUFFER", 32)
	v.SetDefault("WRITE_TIMEOUT", 10*time.Second)
	v.SetDefault("PING_INTERVAL", 30*time.Second)
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("SHUFFLE_SEED", 0)
}

// LoadConfig loads the configuration from a .env file and environment variables.
func LoadConfig() {
	cfg, err := Load(".")
	if err != nil {
		logrus.WithError(err).Fatal("Unable to decode config")
	}
	AppConfig = cfg
}

// Load reads <dir>/.env, then lets environment variables override it.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	setDefaults(v)

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		logrus.Warn(".env file not found, loading from environment variables")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Origins splits AllowedOrigins, skipping blanks.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Logger builds the process logger at the configured level.
func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logger.WithField("level", c.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

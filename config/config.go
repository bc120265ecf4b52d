package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Game     GameConfig     `mapstructure:"game"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress      string        `mapstructure:"http_address"`
	RPCAddress       string        `mapstructure:"rpc_address"`
	MetricsNamespace string        `mapstructure:"metrics_namespace"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"` // gorm | pq | memory
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// DSN 连接串
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.User, p.Password, p.DBName)
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"` // empty disables the delegation cache
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	DevTokens bool          `mapstructure:"dev_tokens"` // expose POST /token
}

type GameConfig struct {
	DefaultWaitWindow time.Duration `mapstructure:"default_wait_window"`
	RandomnessDelay   time.Duration `mapstructure:"randomness_delay"`
	Hasher            string        `mapstructure:"hasher"`
	Oracle            string        `mapstructure:"oracle"` // crypto | deterministic
	AllowedAssets     []string      `mapstructure:"allowed_assets"`
	StartingBalance   uint64        `mapstructure:"starting_balance"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.metrics_namespace", "whot")
	v.SetDefault("server.idle_timeout", 30*time.Minute)
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("redis.ttl", 2*time.Hour)
	v.SetDefault("auth.issuer", "whotserver")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("game.default_wait_window", 60*time.Second)
	v.SetDefault("game.randomness_delay", time.Second)
	v.SetDefault("game.hasher", "sha256")
	v.SetDefault("game.oracle", "crypto")
	v.SetDefault("game.allowed_assets", []string{"SOL"})
	v.SetDefault("log.level", "info")
}

// LoadConfig reads .env (if any), then config.yaml under path, then the environment.
// A missing config file is not an error; defaults apply.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the values that have no usable zero.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "gorm", "pq", "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Game.DefaultWaitWindow < 30*time.Second || c.Game.DefaultWaitWindow > 120*time.Second {
		return fmt.Errorf("game.default_wait_window %s out of range", c.Game.DefaultWaitWindow)
	}
	switch c.Game.Oracle {
	case "crypto", "deterministic":
	default:
		return fmt.Errorf("unknown randomness oracle %q", c.Game.Oracle)
	}
	if len(c.Game.AllowedAssets) == 0 {
		return errors.New("game.allowed_assets is empty")
	}
	return nil
}

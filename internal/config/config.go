package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	PLC      PLCConfig      `mapstructure:"plc"`
	Register RegisterConfig `mapstructure:"register"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Profiles ProfilesConfig `mapstructure:"register_profiles"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type PLCConfig struct {
	Address string        `mapstructure:"address"`
	Rack    int           `mapstructure:"rack"`
	Slot    int           `mapstructure:"slot"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RegisterConfig is the polled register. The byte offset varies between
// installations (the same encoder has been observed at several offsets),
// so all three geometry fields are configuration, never constants.
type RegisterConfig struct {
	Name   string `mapstructure:"name"`
	Block  int    `mapstructure:"block"`
	Offset int    `mapstructure:"offset"`
	Length int    `mapstructure:"length"`
	Unit   string `mapstructure:"unit"`
}

type MonitorConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	MaxDuration time.Duration `mapstructure:"max_duration"`
	MinValue    *float64      `mapstructure:"min_value"`
	MaxValue    *float64      `mapstructure:"max_value"`
	AutoStart   bool          `mapstructure:"auto_start"`
}

type ProfilesConfig struct {
	SearchPaths []string `mapstructure:"search_paths"`
}

type AuthConfig struct {
	JWTSecretEnv       string        `mapstructure:"jwt_secret_env"`
	AccessTokenTTL     time.Duration `mapstructure:"access_token_ttl"`
	MachineTokenHashes []string      `mapstructure:"machine_token_hashes"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.shutdown_timeout", "30s")

	viper.SetDefault("plc.address", "192.168.0.1")
	viper.SetDefault("plc.rack", 0)
	viper.SetDefault("plc.slot", 1)
	viper.SetDefault("plc.timeout", "5s")

	viper.SetDefault("register.name", "encoder_position")
	viper.SetDefault("register.block", 5)
	viper.SetDefault("register.offset", 124)
	viper.SetDefault("register.length", 4)
	viper.SetDefault("register.unit", "mm")

	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.max_retries", 3)
	viper.SetDefault("monitor.retry_delay", "1s")
	viper.SetDefault("monitor.auto_start", true)

	viper.SetDefault("database.max_connections", 10)

	viper.SetDefault("auth.jwt_secret_env", "JWT_SECRET")
	viper.SetDefault("auth.access_token_ttl", "60m")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ENCODERD")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// JWT secret comes from the environment, never from the config file.
func (a *AuthConfig) GetJWTSecret() string {
	envVar := a.JWTSecretEnv
	if envVar == "" {
		envVar = "JWT_SECRET"
	}

	secret := os.Getenv(envVar)
	if secret == "" {
		return "dev-secret-change-in-production-min-32-chars"
	}
	return secret
}

package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Logging  LoggingConfig  `yaml:"logging"`
	Trading  TradingConfig  `yaml:"trading"`
	Feed     FeedConfig     `yaml:"feed"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpireHours int    `yaml:"expire_hours"`
}

type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// TradingConfig holds the trade lifecycle parameters
type TradingConfig struct {
	StartingBalance     float64 `yaml:"starting_balance"`
	ReferralBonus       float64 `yaml:"referral_bonus"`
	MinStake            float64 `yaml:"min_stake"`
	MinDurationMinutes  int     `yaml:"min_duration_minutes"`
	MaxDurationMinutes  int     `yaml:"max_duration_minutes"`
	CancelWindowSeconds int     `yaml:"cancel_window_seconds"`
	SweepIntervalSecs   int     `yaml:"sweep_interval_seconds"`
}

// CancelWindow returns the cancellation grace window as a duration
func (c TradingConfig) CancelWindow() time.Duration {
	return time.Duration(c.CancelWindowSeconds) * time.Second
}

// SweepInterval returns the settlement sweep cadence as a duration
func (c TradingConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSecs) * time.Second
}

// FeedConfig holds the price feed refresh policy
type FeedConfig struct {
	CryptoRefreshSeconds int     `yaml:"crypto_refresh_seconds"`
	ForexRefreshSeconds  int     `yaml:"forex_refresh_seconds"`
	SimTickSeconds       int     `yaml:"sim_tick_seconds"`
	SimMoveChance        float64 `yaml:"sim_move_chance"`
	BinanceURL           string  `yaml:"binance_url"`
	FrankfurterURL       string  `yaml:"frankfurter_url"`
}

func (c FeedConfig) CryptoRefresh() time.Duration {
	return time.Duration(c.CryptoRefreshSeconds) * time.Second
}

func (c FeedConfig) ForexRefresh() time.Duration {
	return time.Duration(c.ForexRefreshSeconds) * time.Second
}

func (c FeedConfig) SimTick() time.Duration {
	return time.Duration(c.SimTickSeconds) * time.Second
}

// Load loads configuration from file and environment variables
func Load(path string) (*Config, error) {
	cfg := &Config{}

	// Load from YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Override with environment variables if present
	cfg.loadFromEnv()
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SERVER_MODE"); v != "" {
		c.Server.Mode = v
	}

	// Database
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.DBName = v
	}

	// Redis
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = port
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}

	// JWT
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := os.Getenv("JWT_EXPIRE_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil {
			c.JWT.ExpireHours = hours
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Trading.StartingBalance == 0 {
		c.Trading.StartingBalance = 10000
	}
	if c.Trading.ReferralBonus == 0 {
		c.Trading.ReferralBonus = 50
	}
	if c.Trading.MinStake == 0 {
		c.Trading.MinStake = 1
	}
	if c.Trading.MinDurationMinutes == 0 {
		c.Trading.MinDurationMinutes = 1
	}
	if c.Trading.MaxDurationMinutes == 0 {
		c.Trading.MaxDurationMinutes = 60
	}
	if c.Trading.CancelWindowSeconds == 0 {
		c.Trading.CancelWindowSeconds = 30
	}
	if c.Trading.SweepIntervalSecs == 0 {
		c.Trading.SweepIntervalSecs = 60
	}
	if c.Feed.CryptoRefreshSeconds == 0 {
		c.Feed.CryptoRefreshSeconds = 30
	}
	if c.Feed.ForexRefreshSeconds == 0 {
		c.Feed.ForexRefreshSeconds = 120
	}
	if c.Feed.SimTickSeconds == 0 {
		c.Feed.SimTickSeconds = 5
	}
	if c.Feed.SimMoveChance == 0 {
		c.Feed.SimMoveChance = 0.35
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

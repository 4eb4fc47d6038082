package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|prod
	Service   string `yaml:"service"`   // support-chat
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN string `yaml:"dsn"`
}

type Redis struct {
	Addr     string `yaml:"addr"` // пусто — in-memory presence
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type NATS struct {
	URL string `yaml:"url"` // пусто — push-канал выключен
}

type Storage struct {
	Endpoint  string `yaml:"endpoint"` // пусто — загрузки выключены
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"useSSL"`
	SignTTL   string `yaml:"signTTL"` // "1h"
}

type Auth struct {
	JWTSecret string `yaml:"jwtSecret"`
}

type Presence struct {
	LeaseTTL   string `yaml:"leaseTTL"`   // "30s"
	OfflineTTL string `yaml:"offlineTTL"` // "60s"
}

type Chat struct {
	MaxMessageLen int `yaml:"maxMessageLen"`
	NotifyWorkers int `yaml:"notifyWorkers"`
	NotifyQueue   int `yaml:"notifyQueue"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	NATS     NATS     `yaml:"nats"`
	Storage  Storage  `yaml:"storage"`
	Auth     Auth     `yaml:"auth"`
	Presence Presence `yaml:"presence"`
	Chat     Chat     `yaml:"chat"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret is required")
	}
	if c.Storage.Endpoint != "" && c.Storage.Bucket == "" {
		return errors.New("storage.bucket is required when storage.endpoint set")
	}
	// установка дефолтов, если значения не указаны
	if c.Logging.Service == "" {
		c.Logging.Service = "support-chat"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Chat.MaxMessageLen <= 0 {
		c.Chat.MaxMessageLen = 4000
	}
	if c.Chat.NotifyWorkers <= 0 {
		c.Chat.NotifyWorkers = 2
	}
	if c.Chat.NotifyQueue <= 0 {
		c.Chat.NotifyQueue = 256
	}
	return nil
}

func (c *Config) PresenceLeaseTTL() time.Duration {
	return parseDurationOr(30*time.Second, c.Presence.LeaseTTL)
}

func (c *Config) PresenceOfflineTTL() time.Duration {
	return parseDurationOr(60*time.Second, c.Presence.OfflineTTL)
}

func (c *Config) StorageSignTTL() time.Duration {
	return parseDurationOr(time.Hour, c.Storage.SignTTL)
}

// helper для парсинга timeout-ов
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}

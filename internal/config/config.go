// Package config loads process configuration from a YAML file with
// environment-variable overrides (spec.md §6.7), replacing the
// teacher's package-level config singletons with one struct
// constructed explicitly in main and passed down (spec.md §9).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DB       string `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// IsZero reports whether the replica config was omitted, in which case
// callers fall back to the primary (spec.md §6.7).
func (c DBConfig) IsZero() bool { return c.Host == "" && c.Port == 0 }

// DSN renders the pgx connection string for this database.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?pool_max_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.DB, c.PoolSize)
}

type SentinelConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	MasterName string `yaml:"masterName"`
}

type CacheConfig struct {
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	PoolSize int            `yaml:"poolSize"`
	Sentinel SentinelConfig `yaml:"sentinel"`
}

func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type Config struct {
	GatewayID string `yaml:"gatewayId"`

	GatewayPort  int `yaml:"gatewayPort"`
	AuthPort     int `yaml:"authPort"`
	ChatPort     int `yaml:"chatPort"`
	PresencePort int `yaml:"presencePort"`

	PeerAddrs map[string]string `yaml:"peerAddrs"`

	Cache CacheConfig `yaml:"cache"`

	PrimaryDB DBConfig `yaml:"primaryDb"`
	ReplicaDB DBConfig `yaml:"replicaDb"`

	NatsURL string `yaml:"natsUrl"`

	JWTSecret string `yaml:"jwtSecret"`

	HeartbeatIdle time.Duration `yaml:"heartbeatIdle"`
	HeartbeatDead time.Duration `yaml:"heartbeatDead"`
	TokenTTL      time.Duration `yaml:"tokenTtl"`

	LogDevelopment bool `yaml:"logDevelopment"`
}

// Load reads the YAML file at path (if it exists) and then applies
// environment overrides, matching the pack's gateway service pattern
// of config.Load(path) + os.Getenv for secrets/ports.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnvOverrides(&cfg)
	if cfg.ReplicaDB.IsZero() {
		cfg.ReplicaDB = cfg.PrimaryDB
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		GatewayID:     "gateway_01",
		GatewayPort:   8080,
		AuthPort:      8081,
		ChatPort:      8082,
		PresencePort:  8083,
		Cache:         CacheConfig{Host: "127.0.0.1", Port: 6379, PoolSize: 20},
		PrimaryDB:     DBConfig{Host: "127.0.0.1", Port: 5432, User: "im", DB: "im", PoolSize: 20},
		NatsURL:       "nats://127.0.0.1:4222",
		HeartbeatIdle: 60 * time.Second,
		HeartbeatDead: 120 * time.Second,
		TokenTTL:      24 * time.Hour,
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EDGE_GATEWAY_ID"); v != "" {
		cfg.GatewayID = v
	}
	if v := os.Getenv("EDGE_CACHE_HOST"); v != "" {
		cfg.Cache.Host = v
	}
	if v := os.Getenv("EDGE_CACHE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.Port = n
		}
	}
	if v := os.Getenv("EDGE_DB_PASSWORD"); v != "" {
		cfg.PrimaryDB.Password = v
	}
	if v := os.Getenv("EDGE_NATS_URL"); v != "" {
		cfg.NatsURL = v
	}
	if v := os.Getenv("EDGE_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
}

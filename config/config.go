package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	mu sync.RWMutex `yaml:"-"`

	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Web       WebConfig       `yaml:"web"`
	Fleet     FleetConfig     `yaml:"fleet"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Messaging MessagingConfig `yaml:"messaging"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WebConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	SessionSecret   string        `yaml:"session_secret"`
	RateLimitPerSec float64       `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
}

// FleetConfig covers robot liveness and the arrival confirmation algorithm.
type FleetConfig struct {
	LivenessWindow time.Duration `yaml:"liveness_window"`
	ConfirmCount   int           `yaml:"confirm_count"`
	ConfirmSpacing time.Duration `yaml:"confirm_spacing"`
	TargetGrace    time.Duration `yaml:"target_grace"`
	WeightMinGrams int           `yaml:"weight_min_grams"`
	WeightMaxGrams int           `yaml:"weight_max_grams"`
}

// DispatchConfig covers auto-assignment and the per-status timeout thresholds.
type DispatchConfig struct {
	AutoAccept        bool          `yaml:"auto_accept"`
	AutoStartDelivery bool          `yaml:"auto_start_delivery"`
	TimeoutInterval   time.Duration `yaml:"timeout_interval"`
	OfflineInterval   time.Duration `yaml:"offline_interval"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	LoadTimeout       time.Duration `yaml:"load_timeout"`
	UnloadTimeout     time.Duration `yaml:"unload_timeout"`
	DeliveryTimeout   time.Duration `yaml:"delivery_timeout"`
}

type MessagingConfig struct {
	Backend             string        `yaml:"backend"`
	MQTT                MQTTConfig    `yaml:"mqtt"`
	Kafka               KafkaConfig   `yaml:"kafka"`
	NotifyTopicPrefix   string        `yaml:"notify_topic_prefix"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "washfleet.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "washfleet",
				User:     "washfleet",
				Password: "",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Address:  "localhost:6379",
			Password: "",
			DB:       0,
		},
		Web: WebConfig{
			Host:            "0.0.0.0",
			Port:            8084,
			SessionSecret:   "change-me-in-production",
			RateLimitPerSec: 10,
			RateLimitBurst:  5,
			CacheTTL:        5 * time.Second,
		},
		Fleet: FleetConfig{
			LivenessWindow: 5 * time.Second,
			ConfirmCount:   3,
			ConfirmSpacing: time.Second,
			TargetGrace:    10 * time.Second,
			WeightMinGrams: 0,
			WeightMaxGrams: 6000,
		},
		Dispatch: DispatchConfig{
			AutoAccept:        true,
			AutoStartDelivery: true,
			TimeoutInterval:   10 * time.Second,
			OfflineInterval:   30 * time.Second,
			NavigationTimeout: 5 * time.Minute,
			LoadTimeout:       10 * time.Minute,
			UnloadTimeout:     10 * time.Minute,
			DeliveryTimeout:   5 * time.Minute,
		},
		Messaging: MessagingConfig{
			Backend: "mqtt",
			MQTT: MQTTConfig{
				Broker:   "localhost",
				Port:     1883,
				ClientID: "washfleet",
			},
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "washfleet",
			},
			NotifyTopicPrefix:   "washfleet/notify",
			OutboxDrainInterval: 5 * time.Second,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Lock()   { c.mu.Lock() }
func (c *Config) Unlock() { c.mu.Unlock() }

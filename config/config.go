package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ModeDefault = "default"
	ModeDemo    = "demo"
)

type Config struct {
	mu sync.RWMutex `yaml:"-"`

	App        AppConfig        `yaml:"app"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Web        WebConfig        `yaml:"web"`
	Messaging  MessagingConfig  `yaml:"messaging"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Mail       MailConfig       `yaml:"mail"`
	Simulation SimulationConfig `yaml:"simulation"`
}

type AppConfig struct {
	Name     string `yaml:"name"`
	Mode     string `yaml:"mode"` // "default" or "demo"
	Timezone string `yaml:"timezone"`
}

type LogConfig struct {
	Level string `yaml:"level"`
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
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	SessionSecret  string   `yaml:"session_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// MessagingConfig selects the broker used for the container event outbox and
// the sensor telemetry feed. An empty backend disables messaging.
type MessagingConfig struct {
	Backend             string        `yaml:"backend"` // "kafka", "mqtt" or ""
	Kafka               KafkaConfig   `yaml:"kafka"`
	MQTT                MQTTConfig    `yaml:"mqtt"`
	EventsTopic         string        `yaml:"events_topic"`
	SensorTopic         string        `yaml:"sensor_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
	SourceID            string        `yaml:"source_id"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

type AlertsConfig struct {
	CriticalFillLevel int    `yaml:"critical_fill_level"`
	AdminEmail        string `yaml:"admin_email"`
}

type MailConfig struct {
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	FromEmail      string `yaml:"from_email"`
	FromName       string `yaml:"from_name"`
	Sandbox        bool   `yaml:"sandbox"`
}

// SimulationConfig holds the cron specs of the demo-mode jobs.
type SimulationConfig struct {
	FillSpec   string `yaml:"fill_spec"`
	DamageSpec string `yaml:"damage_spec"`
	RepairSpec string `yaml:"repair_spec"`
}

func Defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:     "sustainablecity",
			Mode:     ModeDefault,
			Timezone: "Europe/Madrid",
		},
		Log: LogConfig{Level: "info"},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "sustainablecity.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "sustainablecity",
				User:     "sustainablecity",
				Password: "",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Enabled: false,
			Address: "localhost:6379",
		},
		Web: WebConfig{
			Host:           "0.0.0.0",
			Port:           8083,
			SessionSecret:  "change-me-in-production",
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Messaging: MessagingConfig{
			Backend: "",
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "sustainablecity",
			},
			MQTT: MQTTConfig{
				Broker: "localhost",
				Port:   1883,
			},
			EventsTopic:         "sustainablecity.containers",
			SensorTopic:         "sustainablecity.sensors",
			OutboxDrainInterval: 5 * time.Second,
			SourceID:            "core",
		},
		Alerts: AlertsConfig{
			CriticalFillLevel: 85,
		},
		Mail: MailConfig{
			FromEmail: "no-reply@sustainablecity.local",
			FromName:  "SustainableCity",
		},
		Simulation: SimulationConfig{
			FillSpec:   "@every 30m",
			DamageSpec: "@every 2h",
			RepairSpec: "@every 3h",
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file yields the
// defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("APP_MODE"); v != "" {
		c.App.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("ADMIN_EMAIL"); v != "" {
		c.Alerts.AdminEmail = v
	}
	if v := os.Getenv("SENDGRID_API_KEY"); v != "" {
		c.Mail.SendGridAPIKey = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
}

func (c *Config) Validate() error {
	if c.Alerts.CriticalFillLevel < 1 || c.Alerts.CriticalFillLevel > 100 {
		return fmt.Errorf("alerts.critical_fill_level must be within 1..100, got %d", c.Alerts.CriticalFillLevel)
	}
	switch c.App.Mode {
	case ModeDefault, ModeDemo:
	default:
		return fmt.Errorf("app.mode must be %q or %q, got %q", ModeDefault, ModeDemo, c.App.Mode)
	}
	switch c.Messaging.Backend {
	case "", "kafka", "mqtt":
	default:
		return fmt.Errorf("messaging.backend must be kafka, mqtt or empty, got %q", c.Messaging.Backend)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	return nil
}

// Location resolves the configured timezone, falling back to local time.
func (c *Config) Location() *time.Location {
	if c.App.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) Demo() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.App.Mode == ModeDemo
}

func (c *Config) AdminEmail() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Alerts.AdminEmail
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

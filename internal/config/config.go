package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Store    StoreConfig   `json:"store"`
	Weather  WeatherConfig `json:"weather"`
	InfluxDB InfluxConfig  `json:"influxdb"`
	MQTT     MQTTConfig    `json:"mqtt"`
	Logger   LoggerConfig  `json:"logger"`
	Service  ServiceConfig `json:"service"`
}

// StoreConfig carries the two required connection parameters for the
// persisted store. URL is a postgres:// endpoint URL; Key is the access
// key injected as the connection password. Both must be set or the
// process aborts before any work.
type StoreConfig struct {
	URL     string        `json:"url"`
	Key     string        `json:"-"`
	Dsn     string        `json:"-"`
	Timeout time.Duration `json:"timeout"`
}

type WeatherConfig struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

type InfluxConfig struct {
	URL           string `json:"url"`
	Token         string `json:"token"`
	Organization  string `json:"organization"`
	Bucket        string `json:"bucket"`
	BatchSize     int    `json:"batch_size"`
	FlushInterval int    `json:"flush_interval_seconds"`
}

// Enabled reports whether the run-metrics sink is configured. An unset
// URL disables the sink without error.
func (i *InfluxConfig) Enabled() bool {
	return i.URL != "" && i.Token != ""
}

type MQTTConfig struct {
	Host      string        `json:"host"`
	Port      int           `json:"port"`
	Username  string        `json:"username"`
	Password  string        `json:"password"`
	ClientID  string        `json:"client_id"`
	BaseTopic string        `json:"base_topic"`
	QoS       byte          `json:"qos"`
	Timeout   time.Duration `json:"timeout"`
}

// Enabled reports whether the downstream notifier is configured.
func (m *MQTTConfig) Enabled() bool {
	return m.Host != ""
}

type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type ServiceConfig struct {
	Name     string        `json:"name"`
	Version  string        `json:"version"`
	Interval time.Duration `json:"interval"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Store: StoreConfig{
			URL:     getEnv("STORE_URL", ""),
			Key:     getEnv("STORE_KEY", ""),
			Timeout: getEnvAsDuration("STORE_TIMEOUT", "30s"),
		},
		Weather: WeatherConfig{
			BaseURL: getEnv("WEATHER_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
			Timeout: getEnvAsDuration("WEATHER_TIMEOUT", "30s"),
		},
		InfluxDB: InfluxConfig{
			URL:           getEnv("INFLUXDB_URL", ""),
			Token:         getEnv("INFLUXDB_TOKEN", ""),
			Organization:  getEnv("INFLUXDB_ORG", "ambient-sync"),
			Bucket:        getEnv("INFLUXDB_BUCKET", "sync_runs"),
			BatchSize:     getEnvAsInt("INFLUXDB_BATCH_SIZE", 100),
			FlushInterval: getEnvAsInt("INFLUXDB_FLUSH_INTERVAL", 10),
		},
		MQTT: MQTTConfig{
			Host:      getEnv("MQTT_HOST", ""),
			Port:      getEnvAsInt("MQTT_PORT", 1883),
			Username:  getEnv("MQTT_USERNAME", ""),
			Password:  getEnv("MQTT_PASSWORD", ""),
			ClientID:  getEnv("MQTT_CLIENT_ID", "ambient-sync"),
			BaseTopic: getEnv("MQTT_BASE_TOPIC", "grid/fleet"),
			QoS:       byte(getEnvAsInt("MQTT_QOS", 1)),
			Timeout:   getEnvAsDuration("MQTT_TIMEOUT", "5s"),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Service: ServiceConfig{
			Name:     getEnv("SERVICE_NAME", "ambient-sync"),
			Version:  getEnv("SERVICE_VERSION", "1.0.0"),
			Interval: getEnvAsDuration("SYNC_INTERVAL", "0"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	dsn, err := config.Store.buildDsn()
	if err != nil {
		return nil, err
	}
	config.Store.Dsn = dsn

	return config, nil
}

func (c *Config) validate() error {
	if c.Store.URL == "" {
		return fmt.Errorf("STORE_URL has to be set")
	}
	if c.Store.Key == "" {
		return fmt.Errorf("STORE_KEY has to be set")
	}
	return nil
}

func (s *StoreConfig) buildDsn() (string, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return "", fmt.Errorf("invalid STORE_URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("STORE_URL must be a postgres:// URL, got %q", u.Scheme)
	}

	user := "postgres"
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, s.Key)

	return u.String(), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

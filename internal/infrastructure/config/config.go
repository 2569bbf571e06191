package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "NLUHERMES_"

// Config is the root configuration structure for the NLU bridge.
// Values come from defaults, then the YAML file, then environment
// variables, then command-line flags (applied by the caller).
type Config struct {
	MQTT      MQTTConfig      `yaml:"mqtt"`
	NLU       NLUConfig       `yaml:"nlu"`
	Sentences SentencesConfig `yaml:"sentences"`
	HTTP      HTTPConfig      `yaml:"http"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains reconnect backoff bounds in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// NLUConfig controls recognition, training and graph persistence.
type NLUConfig struct {
	// IntentGraph is the graph file read at startup. Empty disables
	// loading and write-back.
	IntentGraph string `yaml:"intent_graph"`

	// WriteGraph writes the graph back to IntentGraph after each
	// successful train.
	WriteGraph bool `yaml:"write_graph"`

	// SiteIDs restricts the bridge to these sites. Empty answers all sites.
	SiteIDs []string `yaml:"site_ids"`

	// Casing is the word transform: ignore, upper or lower.
	Casing string `yaml:"casing"`

	// Fuzzy enables dropping unknown words during recognition.
	Fuzzy bool `yaml:"fuzzy"`

	// ReplaceNumbers spells out digits before matching.
	ReplaceNumbers bool `yaml:"replace_numbers"`

	// Language selects the number expansion word table.
	Language string `yaml:"language"`

	// TransformTraining applies the word transform to training sentences.
	TransformTraining bool `yaml:"transform_training"`

	// MaxSentences caps template expansion per intent.
	MaxSentences int `yaml:"max_sentences"`

	// TrainQueueSize is how many train requests may wait behind the
	// running one before new requests are rejected.
	TrainQueueSize int `yaml:"train_queue_size"`

	// HealthInterval is the retained health publish period in seconds.
	HealthInterval int `yaml:"health_interval"`
}

// SentencesConfig lists sentence files trained at startup and watched for
// changes.
type SentencesConfig struct {
	Files []string `yaml:"files"`

	// Watch retrains when a file changes.
	Watch bool `yaml:"watch"`

	// WatchDelay is the debounce delay in milliseconds.
	WatchDelay int `yaml:"watch_delay"`

	// SiteID is reported in results of file-triggered trains. Empty uses
	// the first nlu.site_ids entry, or "default" without a site filter.
	SiteID string `yaml:"site_id"`
}

// HTTPConfig contains the health and metrics server settings.
// A zero port disables the server.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// JWTSecret, when set, requires an HS256 bearer token on
	// POST /api/v1/train. Read-only endpoints stay open.
	JWTSecret string `yaml:"jwt_secret"`
}

// InfluxDBConfig contains InfluxDB telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load builds the configuration from defaults, the optional YAML file at
// path and NLUHERMES_* environment variables. An empty path skips the file.
//
// Validation is left to the caller so that command-line flags can be
// applied first; call Validate afterwards.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with the bridge defaults.
func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		NLU: NLUConfig{
			Casing:            "ignore",
			Fuzzy:             true,
			Language:          "en",
			TransformTraining: true,
			TrainQueueSize:    4,
			HealthInterval:    30,
		},
		Sentences: SentencesConfig{
			WatchDelay: 1000,
		},
		HTTP: HTTPConfig{
			Host: "0.0.0.0",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies NLUHERMES_* environment variables.
func applyEnvOverrides(cfg *Config) error {
	var errs []error

	str := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	// MQTT
	str("MQTT_HOST", &cfg.MQTT.Broker.Host)
	num("MQTT_PORT", &cfg.MQTT.Broker.Port)
	str("MQTT_USERNAME", &cfg.MQTT.Auth.Username)
	str("MQTT_PASSWORD", &cfg.MQTT.Auth.Password)
	str("MQTT_CLIENT_ID", &cfg.MQTT.Broker.ClientID)
	flag("MQTT_TLS", &cfg.MQTT.Broker.TLS)

	// NLU
	str("INTENT_GRAPH", &cfg.NLU.IntentGraph)
	flag("WRITE_GRAPH", &cfg.NLU.WriteGraph)
	str("CASING", &cfg.NLU.Casing)
	flag("FUZZY", &cfg.NLU.Fuzzy)
	str("LANGUAGE", &cfg.NLU.Language)
	if v := os.Getenv(EnvPrefix + "SITE_IDS"); v != "" {
		cfg.NLU.SiteIDs = splitList(v)
	}

	// Ambient
	num("HTTP_PORT", &cfg.HTTP.Port)
	str("HTTP_JWT_SECRET", &cfg.HTTP.JWTSecret)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	str("INFLUXDB_TOKEN", &cfg.InfluxDB.Token)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	// MQTT
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		errs = append(errs, "mqtt.reconnect.max_delay must not be less than initial_delay")
	}

	// NLU
	switch strings.ToLower(c.NLU.Casing) {
	case "", "ignore", "upper", "lower":
	default:
		errs = append(errs, "nlu.casing must be ignore, upper, or lower")
	}
	for _, id := range c.NLU.SiteIDs {
		if id == "" || strings.ContainsAny(id, "/+#") {
			errs = append(errs, fmt.Sprintf("nlu.site_ids: invalid site id %q", id))
		}
	}
	if c.NLU.WriteGraph && c.NLU.IntentGraph == "" {
		errs = append(errs, "nlu.write_graph requires nlu.intent_graph")
	}
	if c.NLU.TrainQueueSize < 1 {
		errs = append(errs, "nlu.train_queue_size must be at least 1")
	}
	if c.NLU.MaxSentences < 0 {
		errs = append(errs, "nlu.max_sentences must not be negative")
	}

	// Sentences
	if c.Sentences.Watch && len(c.Sentences.Files) == 0 {
		errs = append(errs, "sentences.watch requires sentences.files")
	}
	if id := c.Sentences.SiteID; id != "" {
		if strings.ContainsAny(id, "/+#") {
			errs = append(errs, fmt.Sprintf("sentences.site_id: invalid site id %q", id))
		} else if len(c.NLU.SiteIDs) > 0 && !slices.Contains(c.NLU.SiteIDs, id) {
			errs = append(errs, fmt.Sprintf("sentences.site_id %q is not in nlu.site_ids", id))
		}
	}
	if c.Sentences.WatchDelay < 0 {
		errs = append(errs, "sentences.watch_delay must not be negative")
	}

	// HTTP
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		errs = append(errs, "http.port must be between 0 and 65535")
	}
	// A short HMAC secret can be brute-forced offline from any issued token.
	const minJWTSecretLength = 32
	if c.HTTP.JWTSecret != "" && len(c.HTTP.JWTSecret) < minJWTSecretLength {
		errs = append(errs, "http.jwt_secret must be at least 32 characters")
	}

	// InfluxDB
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetHealthInterval returns the health publish period.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.NLU.HealthInterval) * time.Second
}

// SentenceSiteID returns the site reported for file-triggered trains.
func (c *Config) SentenceSiteID() string {
	switch {
	case c.Sentences.SiteID != "":
		return c.Sentences.SiteID
	case len(c.NLU.SiteIDs) > 0:
		return c.NLU.SiteIDs[0]
	default:
		return "default"
	}
}

// GetWatchDelay returns the sentence watcher debounce delay.
func (c *Config) GetWatchDelay() time.Duration {
	return time.Duration(c.Sentences.WatchDelay) * time.Millisecond
}

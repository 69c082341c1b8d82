package config

import (
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/afero"
)

//go:embed defaults.yaml
var defaults []byte

const (
	maxBatchSize  = 1000
	defaultBroker = "localhost:9092"
)

// Config holds all service settings. Values come from built-in defaults, an
// optional YAML file named by CONFIG_FILE, and environment variables, in
// increasing order of precedence.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DataDir         string
	StoreKey        string
	RowExitDuration time.Duration

	// Kafka intake and change feed. Setting KAFKA_BROKERS turns it on
	// unless KAFKA_ENABLED says otherwise.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaIntakeTopic string
	KafkaEventsTopic string
	KafkaGroupID     string

	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from the process environment and the local filesystem.
func Load() (*Config, error) {
	return LoadFs(afero.NewOsFs())
}

// LoadFs is Load with CONFIG_FILE resolved against fs.
func LoadFs(fs afero.Fs) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(defaults), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	envK := koanf.New(".")
	if err := envK.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if path := envK.String("config_file"); path != "" {
		content, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("read CONFIG_FILE: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse CONFIG_FILE %s: %w", path, err)
		}
	}

	// Set-but-empty variables fall back to the file or the defaults.
	for key, v := range envK.All() {
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("apply %s: %w", strings.ToUpper(key), err)
		}
	}

	return build(k)
}

func build(k *koanf.Koanf) (*Config, error) {
	shutdownTimeout, err := positiveDuration(k, "shutdown_timeout")
	if err != nil {
		return nil, err
	}
	rowExit, err := duration(k, "row_exit_duration")
	if err != nil {
		return nil, err
	}
	flushInterval, err := positiveDuration(k, "batch_flush_interval")
	if err != nil {
		return nil, err
	}

	batchSize, err := strconv.Atoi(k.String("batch_size"))
	if err != nil || batchSize < 1 || batchSize > maxBatchSize {
		return nil, fmt.Errorf("invalid BATCH_SIZE: must be between 1 and %d", maxBatchSize)
	}

	brokers := ParseBrokers(k.String("kafka_brokers"))
	kafkaEnabled := len(brokers) > 0
	if !kafkaEnabled {
		brokers = []string{defaultBroker}
	}
	if k.Exists("kafka_enabled") {
		kafkaEnabled, err = strconv.ParseBool(k.String("kafka_enabled"))
		if err != nil {
			return nil, errors.New("invalid KAFKA_ENABLED")
		}
	}

	cfg := &Config{
		HTTPAddr:           k.String("http_addr"),
		LogLevel:           k.String("log_level"),
		LogFormat:          k.String("log_format"),
		ShutdownTimeout:    shutdownTimeout,
		DataDir:            k.String("data_dir"),
		StoreKey:           k.String("store_key"),
		RowExitDuration:    rowExit,
		KafkaEnabled:       kafkaEnabled,
		KafkaBrokers:       brokers,
		KafkaIntakeTopic:   k.String("kafka_intake_topic"),
		KafkaEventsTopic:   k.String("kafka_events_topic"),
		KafkaGroupID:       k.String("kafka_group_id"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if cfg.KafkaEnabled {
		if cfg.KafkaIntakeTopic == "" {
			return nil, errors.New("KAFKA_INTAKE_TOPIC is required")
		}
		if cfg.KafkaEventsTopic == "" {
			return nil, errors.New("KAFKA_EVENTS_TOPIC is required")
		}
	}

	return cfg, nil
}

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func duration(k *koanf.Koanf, key string) (time.Duration, error) {
	d, err := time.ParseDuration(k.String(key))
	if err != nil || d < 0 {
		return 0, errors.New("invalid " + strings.ToUpper(key))
	}
	return d, nil
}

func positiveDuration(k *koanf.Koanf, key string) (time.Duration, error) {
	d, err := duration(k, key)
	if err != nil || d == 0 {
		return 0, errors.New("invalid " + strings.ToUpper(key))
	}
	return d, nil
}

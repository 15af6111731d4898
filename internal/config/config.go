// Package config loads the minerva configuration file (HCL).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the top-level configuration.
type Config struct {
	// ReferencePrefix leads every document reference, e.g. "DI" in
	// DI-2024-03-007.
	ReferencePrefix string `hcl:"reference_prefix,optional"`

	// StorageRoot is the directory file content is stored under.
	StorageRoot string `hcl:"storage_root,optional"`

	Database *Database `hcl:"database,block"`
	Kafka    *Kafka    `hcl:"kafka,block"`
}

// Database configures the persistence store.
type Database struct {
	// Driver is "postgres" (default) or "sqlite".
	Driver string `hcl:"driver,optional"`

	Host     string `hcl:"host,optional"`
	Port     int    `hcl:"port,optional"`
	User     string `hcl:"user,optional"`
	Password string `hcl:"password,optional"`
	DBName   string `hcl:"dbname,optional"`
	SSLMode  string `hcl:"sslmode,optional"`

	// Path is the SQLite database file.
	Path string `hcl:"path,optional"`
}

// Kafka configures the event publisher.
type Kafka struct {
	Brokers []string `hcl:"brokers,optional"`
	Topic   string   `hcl:"topic,optional"`
}

// FromFile decodes an HCL configuration file and applies defaults.
func FromFile(path string) (*Config, error) {
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("error decoding configuration file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration for zero-config local mode: SQLite under
// the data directory, local file storage, no broker.
func Default(dataDir string) *Config {
	cfg := &Config{
		StorageRoot: dataDir + "/files",
		Database: &Database{
			Driver: "sqlite",
			Path:   dataDir + "/minerva.db",
		},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.ReferencePrefix == "" {
		c.ReferencePrefix = "DI"
	}
	if c.StorageRoot == "" {
		c.StorageRoot = "./files"
	}
	if c.Database == nil {
		c.Database = &Database{}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Kafka == nil {
		c.Kafka = &Kafka{}
	}
}

// KafkaBrokers returns the broker addresses, with the MINERVA_KAFKA_BROKERS
// environment variable taking precedence over the config file.
func (c *Config) KafkaBrokers() []string {
	if brokers := os.Getenv("MINERVA_KAFKA_BROKERS"); brokers != "" {
		return strings.Split(brokers, ",")
	}
	if c.Kafka != nil && len(c.Kafka.Brokers) > 0 {
		return c.Kafka.Brokers
	}
	return nil
}

// KafkaTopic returns the event topic, with the MINERVA_KAFKA_TOPIC
// environment variable taking precedence over the config file.
func (c *Config) KafkaTopic() string {
	if topic := os.Getenv("MINERVA_KAFKA_TOPIC"); topic != "" {
		return topic
	}
	if c.Kafka != nil && c.Kafka.Topic != "" {
		return c.Kafka.Topic
	}
	return "minerva.events"
}

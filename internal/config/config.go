package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Source  EndpointConfig `yaml:"source"`
	Target  EndpointConfig `yaml:"target"`
	Monitor MonitorConfig  `yaml:"monitor"`
}

// EndpointConfig describes one MySQL endpoint.
type EndpointConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DSN builds the go-sql-driver DSN for one schema on this endpoint.
func (e EndpointConfig) DSN(schema string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&timeout=5s",
		e.Username, e.Password, e.Host, e.Port, schema)
}

// Addr is the host:port pair, for log fields.
func (e EndpointConfig) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

type MonitorConfig struct {
	Databases            []string `yaml:"databases"`
	RefreshInterval      int      `yaml:"refreshInterval"`      // seconds between target ticks
	SourceInterval       int      `yaml:"sourceInterval"`       // target ticks per source tick
	QueryTimeout         int      `yaml:"queryTimeout"`         // seconds per count query
	IgnoredTablePrefixes []string `yaml:"ignoredTablePrefixes"` // raw names starting with these are skipped
	MaxTablesDisplay     int      `yaml:"maxTablesDisplay"`     // advisory cap for the dashboard
	DisableNameMapping   bool     `yaml:"disableNameMapping"`   // true = 1:1 identity mode, no suffix rules
}

func (m MonitorConfig) RefreshPeriod() time.Duration {
	return time.Duration(m.RefreshInterval) * time.Second
}

func (m MonitorConfig) QueryDeadline() time.Duration {
	return time.Duration(m.QueryTimeout) * time.Second
}

func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Monitor.RefreshInterval == 0 {
		c.Monitor.RefreshInterval = 2
	}
	if c.Monitor.SourceInterval == 0 {
		c.Monitor.SourceInterval = 3
	}
	if c.Monitor.QueryTimeout == 0 {
		c.Monitor.QueryTimeout = 30
	}
	if c.Monitor.MaxTablesDisplay == 0 {
		c.Monitor.MaxTablesDisplay = 500
	}
	c.Monitor.Databases = trimList(c.Monitor.Databases)
	c.Monitor.IgnoredTablePrefixes = trimList(c.Monitor.IgnoredTablePrefixes)
}

func (c *Config) validate() error {
	for side, ep := range map[string]EndpointConfig{"source": c.Source, "target": c.Target} {
		if ep.Host == "" {
			return fmt.Errorf("%s.host is required", side)
		}
		if ep.Port <= 0 || ep.Port > 65535 {
			return fmt.Errorf("%s.port must be in 1..65535", side)
		}
		if ep.Username == "" {
			return fmt.Errorf("%s.username is required", side)
		}
	}
	if len(c.Monitor.Databases) == 0 {
		return errors.New("monitor.databases requires at least one schema")
	}
	if c.Monitor.RefreshInterval < 1 {
		return errors.New("monitor.refreshInterval must be a positive number of seconds")
	}
	if c.Monitor.SourceInterval < 1 {
		return errors.New("monitor.sourceInterval must be a positive integer")
	}
	if c.Monitor.QueryTimeout < 1 {
		return errors.New("monitor.queryTimeout must be a positive number of seconds")
	}
	return nil
}

func trimList(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Package config loads the daemon's YAML configuration.
package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Me describes the services server itself.
type Me struct {
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	SID           string `yaml:"sid"`
	Logging       string `yaml:"logging"`
	ReconnectTime int    `yaml:"reconnect_time"`
	DataDir       string `yaml:"data_dir"`
	MetricsListen string `yaml:"metrics_listen"`
}

// UplinkConfig describes one server we may link to. Uplinks are tried in
// priority order, cycling back to the first after the list is exhausted.
type UplinkConfig struct {
	Name            string  `yaml:"name"`
	Host            string  `yaml:"host"`
	Port            int     `yaml:"port"`
	BindHost        string  `yaml:"bind_host"`
	SendPassword    string  `yaml:"send_password"`
	ReceivePassword string  `yaml:"receive_password"`
	Protocol        string  `yaml:"protocol"`
	Priority        int     `yaml:"priority"`
	Network         string  `yaml:"network"`
	Casemapping     string  `yaml:"casemapping"`
	FloodRate       float64 `yaml:"flood_rate"`
	FloodBurst      int     `yaml:"flood_burst"`
}

// Addr returns the dial target for this uplink.
func (u *UplinkConfig) Addr() string {
	return fmt.Sprintf("%s:%d", u.Host, u.Port)
}

// DNSBLConfig configures the DNSBL-checking service.
type DNSBLConfig struct {
	Nick       string   `yaml:"nick"`
	Blacklists []string `yaml:"blacklists"`
	Delay      int      `yaml:"delay"`
}

// Config holds all daemon configuration.
type Config struct {
	Me      Me             `yaml:"me"`
	Uplinks []UplinkConfig `yaml:"uplinks"`
	DNSBL   *DNSBLConfig   `yaml:"dnsbl"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults
	if cfg.Me.DataDir == "" {
		cfg.Me.DataDir = "./data"
	}
	if cfg.Me.Logging == "" {
		cfg.Me.Logging = "info"
	}
	if cfg.Me.ReconnectTime == 0 {
		cfg.Me.ReconnectTime = 10
	}
	for i := range cfg.Uplinks {
		if cfg.Uplinks[i].Port == 0 {
			cfg.Uplinks[i].Port = 6667
		}
		if cfg.Uplinks[i].Protocol == "" {
			cfg.Uplinks[i].Protocol = "ts6"
		}
	}
	if cfg.DNSBL != nil {
		if cfg.DNSBL.Nick == "" {
			cfg.DNSBL.Nick = "DNSBL"
		}
		if cfg.DNSBL.Delay == 0 {
			cfg.DNSBL.Delay = 2
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Uplinks are tried in priority order.
	sort.SliceStable(cfg.Uplinks, func(i, j int) bool {
		return cfg.Uplinks[i].Priority < cfg.Uplinks[j].Priority
	})

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Me.Name == "" {
		return fmt.Errorf("me.name is required")
	}
	if c.Me.SID == "" {
		return fmt.Errorf("me.sid is required")
	}
	if len(c.Uplinks) == 0 {
		return fmt.Errorf("at least one uplink is required")
	}
	for i, u := range c.Uplinks {
		if u.Host == "" {
			return fmt.Errorf("uplink %d: host is required", i)
		}
	}
	return nil
}

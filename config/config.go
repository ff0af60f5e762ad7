// Package config loads the daemon configuration. The config file location
// comes from $BEAMD_CONFIG, falling back to /etc/beamd/config.yaml; a
// missing file yields defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "/etc/beamd/config.yaml"

// Duration is a yaml-decodable time.Duration ("2s", "150ms").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

type Transport struct {
	Interface    string   `yaml:"interface"`
	ProbeHost    string   `yaml:"probe_host"`
	ProbeTimeout Duration `yaml:"probe_timeout"`
}

type Config struct {
	ListenAddr   string    `yaml:"listen_addr"`
	DeviceName   string    `yaml:"device_name"`
	ConnectDelay Duration  `yaml:"connect_delay"`
	Transport    Transport `yaml:"transport"`
}

func Default() *Config {
	return &Config{
		ListenAddr:   ":5000",
		DeviceName:   "beamdrop",
		ConnectDelay: Duration(2 * time.Second),
		Transport: Transport{
			Interface:    "bnep0",
			ProbeTimeout: Duration(3 * time.Second),
		},
	}
}

// Load reads the config from $BEAMD_CONFIG or the default path.
func Load() (*Config, error) {
	path := os.Getenv("BEAMD_CONFIG")
	if path == "" {
		path = DefaultPath
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path. A nonexistent file is not
// an error; defaults are returned.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.DeviceName == "" {
		c.DeviceName = def.DeviceName
	}
	if c.ConnectDelay <= 0 {
		c.ConnectDelay = def.ConnectDelay
	}
	if c.Transport.Interface == "" {
		c.Transport.Interface = def.Transport.Interface
	}
	if c.Transport.ProbeTimeout <= 0 {
		c.Transport.ProbeTimeout = def.Transport.ProbeTimeout
	}
}

package biflow

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimeoutCacheSeconds uint32 = 5
	defaultTimeoutMsgSeconds   uint32 = 10
)

// Config is the plugin's configuration, consumed as a plain struct
// regardless of how the host loads it (XML, YAML, flags, ...).
type Config struct {
	ODID                 uint32 `yaml:"odid"`
	TimeoutCache         uint32 `yaml:"timeoutCache"`
	TimeoutMsg           uint32 `yaml:"timeoutMsg"`
	IgnoreMissingReverse bool   `yaml:"ignoreMissingReverse"`
	PairMissingPorts     bool   `yaml:"pairMissingPorts"`

	odidSet bool
}

// UnmarshalYAML tracks whether odid was actually present in the document,
// since zero is both its zero value and a plausible configured value.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type plain Config
	p := plain(*c) // seed with whatever defaults the caller already set
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = Config(p)

	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "odid" {
			c.odidSet = true
		}
	}
	return nil
}

// LoadConfig reads and validates a Config from r, applying the defaults
// from spec §6 for any field the document omits.
func LoadConfig(r io.Reader) (*Config, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("biflow: failed to read configuration, %w", err)
	}

	cfg := &Config{
		TimeoutCache: defaultTimeoutCacheSeconds,
		TimeoutMsg:   defaultTimeoutMsgSeconds,
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("biflow: failed to parse configuration, %w", err)
	}
	if !cfg.odidSet {
		return nil, fmt.Errorf("biflow: %w: odid is required", ErrInvariant)
	}
	return cfg, nil
}

// config.go
//
// Read-only configuration surface consumed by the assembly and its
// components. Files are HuJSON (JSON with comments and trailing commas),
// standardized and then decoded. The recognized keys:
//
//	ethers.<EtherName>      path of the shared-memory backing file;
//	                        "default" is the fallback entry
//	ether_init.<EtherName>  whether this process resets the region
//	attributes.<Object>.<Attribute>  free-form component settings (strings)

package assembly

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sugawarayuuta/sonnet"
	"github.com/tailscale/hujson"
)

// ErrNoEtherPath means neither the named entry nor "default" is configured.
var ErrNoEtherPath = errors.New("assembly: no backing path configured for ether")

// Config is the decoded configuration document.
type Config struct {
	Ethers     map[string]string            `json:"ethers"`
	EtherInit  map[string]bool              `json:"ether_init"`
	Attributes map[string]map[string]string `json:"attributes"`
}

// NewConfig returns an empty configuration (all lookups fall to defaults).
func NewConfig() *Config {
	return &Config{
		Ethers:     map[string]string{},
		EtherInit:  map[string]bool{},
		Attributes: map[string]map[string]string{},
	}
}

// LoadConfig reads and decodes a HuJSON configuration file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	std, err := hujson.Standardize(raw)
	if err != nil {
		return nil, err
	}
	cfg := NewConfig()
	if err := sonnet.Unmarshal(std, cfg); err != nil {
		return nil, err
	}
	if cfg.Ethers == nil {
		cfg.Ethers = map[string]string{}
	}
	if cfg.EtherInit == nil {
		cfg.EtherInit = map[string]bool{}
	}
	if cfg.Attributes == nil {
		cfg.Attributes = map[string]map[string]string{}
	}
	return cfg, nil
}

// EtherPath resolves the backing file for a shared ether, falling back to
// the "default" entry.
func (c *Config) EtherPath(name string) (string, error) {
	if p, ok := c.Ethers[name]; ok {
		return p, nil
	}
	if p, ok := c.Ethers["default"]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: '%s'", ErrNoEtherPath, name)
}

// EtherReset reports whether this process initializes the named region.
// Absent means attach-only, matching the one-resetter discipline.
func (c *Config) EtherReset(name string) bool {
	return c.EtherInit[name]
}

// SetAttribute overrides one component attribute in memory. Wiring and
// tests; never persisted.
func (c *Config) SetAttribute(object, attribute, value string) {
	m, ok := c.Attributes[object]
	if !ok {
		m = map[string]string{}
		c.Attributes[object] = m
	}
	m[attribute] = value
}

// Attribute returns the raw string attribute, or defval when unset.
func (c *Config) Attribute(object, attribute, defval string) string {
	if m, ok := c.Attributes[object]; ok {
		if v, ok := m[attribute]; ok {
			return v
		}
	}
	return defval
}

// AttributeInt parses an integer attribute, falling back on any error.
func (c *Config) AttributeInt(object, attribute string, defval int) int {
	v, err := strconv.Atoi(c.Attribute(object, attribute, ""))
	if err != nil {
		return defval
	}
	return v
}

// AttributeBool parses a boolean attribute.
func (c *Config) AttributeBool(object, attribute string, defval bool) bool {
	v, err := strconv.ParseBool(c.Attribute(object, attribute, ""))
	if err != nil {
		return defval
	}
	return v
}

// AttributeDuration parses a Go duration attribute ("250ms", "2s").
func (c *Config) AttributeDuration(object, attribute string, defval time.Duration) time.Duration {
	v, err := time.ParseDuration(c.Attribute(object, attribute, ""))
	if err != nil {
		return defval
	}
	return v
}

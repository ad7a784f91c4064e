package settings

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// InvalidPolicy selects what the scanner does with an entry the dispatcher rejects.
type InvalidPolicy string

const (
	// PolicySkip ignores the rejected entry and keeps walking.
	PolicySkip InvalidPolicy = "skip"
	// PolicyFallback drops every Rock Ridge contribution for the record.
	PolicyFallback InvalidPolicy = "fallback"
)

// DefaultMaxFileIDLen matches the on-disk driver's ISO9660_RRIP_MAX_FILE_ID_LEN.
const DefaultMaxFileIDLen = 256

// Settings holds reader options.
type Settings struct {
	MaxFileIDLen  int           `yaml:"max_file_id_len"`
	InvalidPolicy InvalidPolicy `yaml:"invalid_policy"`
	RockRidge     bool          `yaml:"rock_ridge"`
	LogLevel      string        `yaml:"log_level"`
}

func Default() Settings {
	return Settings{
		MaxFileIDLen:  DefaultMaxFileIDLen,
		InvalidPolicy: PolicySkip,
		RockRidge:     true,
		LogLevel:      "info",
	}
}

// Load reads a YAML settings file on top of the defaults.
func Load(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func (s *Settings) Validate() error {
	if s.MaxFileIDLen < 2 {
		return fmt.Errorf("max_file_id_len must be at least 2, got %d", s.MaxFileIDLen)
	}
	s.InvalidPolicy = InvalidPolicy(strings.ToLower(string(s.InvalidPolicy)))
	switch s.InvalidPolicy {
	case PolicySkip, PolicyFallback:
	case "":
		s.InvalidPolicy = PolicySkip
	default:
		return fmt.Errorf("unknown invalid_policy %q", s.InvalidPolicy)
	}
	return nil
}

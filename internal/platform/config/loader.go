package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SearchPaths are the config file locations tried in order when no explicit
// path is given.
var SearchPaths = []string{
	"./config.yaml",
	"~/.quadlink/config.yaml",
	"/etc/quadlink/config.yaml",
}

// Credentials are the QuadStream account credentials. Either inline
// username/secret or a file containing "username:secret" (or the secret
// alone, with the username inline).
type Credentials struct {
	Username string `yaml:"username"`
	Secret   string `yaml:"secret"`
	File     string `yaml:"file"`
}

// Twitch holds the Helix API application credentials.
type Twitch struct {
	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" validate:"required"`
}

// QuadStream holds the display sink endpoint settings.
type QuadStream struct {
	BaseURL string `yaml:"base_url"`
}

// Filters are the raw allow/block regex patterns for the filter engine.
// Patterns are compiled (and so validated) when the daemon builds its
// runtime from this config.
type Filters struct {
	AllowCategories []string `yaml:"allow_categories"`
	AllowTitles     []string `yaml:"allow_titles"`
	BlockCategories []string `yaml:"block_categories"`
	BlockTitles     []string `yaml:"block_titles"`
}

// PriorityRule is one entry of the ordered priority rule table.
type PriorityRule struct {
	Category string `yaml:"category"`
	Author   string `yaml:"author"`
	Title    string `yaml:"title"`
	Priority int    `yaml:"priority"`
}

// Webhook configures the fire-and-forget change notifier.
type Webhook struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Timeout int    `yaml:"timeout"` // seconds
}

// Config is the full daemon configuration, loaded once at startup and
// re-loaded on file change. Each cycle reads an immutable snapshot.
type Config struct {
	Credentials   Credentials    `yaml:"credentials"`
	Twitch        Twitch         `yaml:"twitch"`
	QuadStream    QuadStream     `yaml:"quadstream"`
	Channels      []string       `yaml:"channels" validate:"min=1,dive,required"`
	Filters       Filters        `yaml:"filters"`
	PriorityRules []PriorityRule `yaml:"priority_rules"`

	DefaultPriority int `yaml:"default_priority"`
	StabilityBonus  int `yaml:"stability_bonus" validate:"gt=0"`
	DiversityBonus  int `yaml:"diversity_bonus" validate:"gt=0"`
	SlotCount       int `yaml:"slot_count"`

	Webhook Webhook `yaml:"webhook"`
}

const (
	defaultPriority       = 50
	defaultStabilityBonus = 30
	defaultDiversityBonus = 25
	defaultSlotCount      = 4
	defaultWebhookTimeout = 10
	defaultQuadStreamURL  = "https://quadstream.tv"
)

// Load reads, defaults, and validates the configuration. With an empty
// explicitPath the SearchPaths are tried in order. The resolved path is
// returned for file watching. notes carries non-fatal normalizations the
// caller should log (e.g. the stability bonus oscillation guard).
func Load(explicitPath string) (cfg *Config, path string, notes []string, err error) {
	path, err = resolvePath(explicitPath)
	if err != nil {
		return nil, "", nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg = &Config{
		DefaultPriority: defaultPriority,
		StabilityBonus:  defaultStabilityBonus,
		DiversityBonus:  defaultDiversityBonus,
		SlotCount:       defaultSlotCount,
		QuadStream:      QuadStream{BaseURL: defaultQuadStreamURL},
		Webhook:         Webhook{Timeout: defaultWebhookTimeout},
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	notes, err = cfg.normalize()
	if err != nil {
		return nil, "", nil, fmt.Errorf("config %s: %w", path, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, "", nil, fmt.Errorf("validate config %s: %w", path, err)
	}

	return cfg, path, notes, nil
}

// normalize resolves the credentials file and applies cross-field checks
// that yaml tags cannot express. The system must not run with ambiguous
// scoring semantics, so slot count and bonus mismatches are errors here.
func (c *Config) normalize() ([]string, error) {
	var notes []string

	if c.Credentials.File != "" {
		if err := c.Credentials.resolveFile(); err != nil {
			return nil, err
		}
	}
	if c.Credentials.Username == "" || c.Credentials.Secret == "" {
		return nil, fmt.Errorf("credentials: both username and secret required (inline or via 'file')")
	}

	if c.SlotCount != defaultSlotCount {
		return nil, fmt.Errorf("slot_count must be %d, got %d", defaultSlotCount, c.SlotCount)
	}

	if c.Webhook.Enabled && c.Webhook.URL == "" {
		return nil, fmt.Errorf("webhook enabled without url")
	}
	if c.Webhook.Timeout <= 0 {
		c.Webhook.Timeout = defaultWebhookTimeout
	}

	// Oscillation guard: a stream must not be evictable by its own category
	// diversity bonus. Auto-raise instead of failing, as the original did.
	if c.StabilityBonus > 0 && c.DiversityBonus > 0 && c.StabilityBonus < c.DiversityBonus+1 {
		notes = append(notes, fmt.Sprintf(
			"stability_bonus raised from %d to %d (must exceed diversity_bonus %d)",
			c.StabilityBonus, c.DiversityBonus+1, c.DiversityBonus))
		c.StabilityBonus = c.DiversityBonus + 1
	}

	return notes, nil
}

// resolveFile reads credentials from the configured file: "username:secret"
// on one line, or the secret alone when the username is set inline.
func (c *Credentials) resolveFile() error {
	path := expandHome(c.File)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read credentials file %s: %w", c.File, err)
	}

	content := strings.TrimSpace(string(data))
	if username, secret, found := strings.Cut(content, ":"); found {
		c.Username = username
		c.Secret = secret
	} else {
		c.Secret = content
	}
	return nil
}

func resolvePath(explicitPath string) (string, error) {
	if explicitPath != "" {
		path := expandHome(explicitPath)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return path, nil
	}

	for _, candidate := range SearchPaths {
		path := expandHome(candidate)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no config file found, searched: %s", strings.Join(SearchPaths, ", "))
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

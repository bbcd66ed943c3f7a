package gateway

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zrupay/zrugate/internal/zru"
	"gopkg.in/yaml.v3"
)

// Way is how the shopper is shown the hosted payment page.
type Way string

const (
	WayRedirect Way = "redirect"
	WayIframe   Way = "iframe"
)

// Config is the merchant configuration of the gateway service.
type Config struct {
	HTTPAddr   string        `yaml:"http_addr"`
	APIBaseURL string        `yaml:"api_base_url"`
	APITimeout time.Duration `yaml:"api_timeout"`

	Enabled bool   `yaml:"enabled"`
	Key     string `yaml:"key"`
	Secret  string `yaml:"secret"`

	// Shown by the checkout presentation layer.
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`

	Way Way `yaml:"way"`
	// SetCompleted moves paid orders straight to completed instead of processing.
	SetCompleted bool `yaml:"set_completed"`

	NotifyURL string `yaml:"notify_url"`
	Currency  string `yaml:"currency"`

	// FingerprintKey keys the credential fingerprints written to logs.
	FingerprintKey string `yaml:"fingerprint_key"`

	// DevRoutes mounts the /dev order seeding endpoints.
	DevRoutes bool `yaml:"dev_routes"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:       "localhost:9090",
		APIBaseURL:     zru.DefaultBaseURL,
		APITimeout:     30 * time.Second,
		Enabled:        true,
		Title:          "ZRU",
		Description:    "Pay with ZRU",
		Way:            WayRedirect,
		NotifyURL:      "http://localhost:9090/notifications",
		Currency:       "EUR",
		FingerprintKey: "dev-fingerprint-key",
	}
}

// LoadConfig reads path (when not empty) over the defaults and then applies
// ZRU_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.HTTPAddr = getenv("ZRU_HTTP_ADDR", c.HTTPAddr)
	c.APIBaseURL = getenv("ZRU_API_BASE_URL", c.APIBaseURL)
	c.Key = getenv("ZRU_KEY", c.Key)
	c.Secret = getenv("ZRU_SECRET", c.Secret)
	c.Way = Way(getenv("ZRU_WAY", string(c.Way)))
	c.NotifyURL = getenv("ZRU_NOTIFY_URL", c.NotifyURL)
	c.Currency = getenv("ZRU_CURRENCY", c.Currency)
	c.FingerprintKey = getenv("ZRU_FINGERPRINT_KEY", c.FingerprintKey)

	for name, dst := range map[string]*bool{
		"ZRU_ENABLED":       &c.Enabled,
		"ZRU_SET_COMPLETED": &c.SetCompleted,
		"ZRU_DEV_ROUTES":    &c.DevRoutes,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", name, err)
		}
		*dst = b
	}

	if v := os.Getenv("ZRU_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing ZRU_API_TIMEOUT: %w", err)
		}
		c.APITimeout = d
	}
	return nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.HTTPAddr == "" {
		problems = append(problems, "http_addr is required")
	}
	if c.Way != WayRedirect && c.Way != WayIframe {
		problems = append(problems, fmt.Sprintf("way must be %q or %q", WayRedirect, WayIframe))
	}
	if len(c.Currency) != 3 {
		problems = append(problems, "currency must be a 3-letter code")
	}
	if c.APITimeout < 0 {
		problems = append(problems, "api_timeout must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Ready reports whether the gateway can be offered at checkout.
func (c *Config) Ready() bool {
	return c.Enabled && (c.Key != "" || c.Secret != "")
}

func (c *Config) Credentials() zru.Credentials {
	return zru.Credentials{Key: c.Key, Secret: c.Secret}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

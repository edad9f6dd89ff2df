package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	// DefaultPath is read when no path is given; a missing file there is not an error.
	DefaultPath = "./config.yaml"
	// PathEnv overrides the config file location.
	PathEnv = "CONTACT_API_CONFIG"
)

// Mail providers.
const (
	ProviderSMTP   = "smtp"
	ProviderResend = "resend"
	ProviderLog    = "log"
)

type Server struct {
	// ListenAddress is the host part of the listen address, empty binds all interfaces.
	ListenAddress string `yaml:"listenAddress"`
	Port          int    `yaml:"port"`
	// AllowedOrigins is the fixed CORS allow-list.
	AllowedOrigins []string `yaml:"allowedOrigins"`
	// AllowedOrigin is the deployed frontend, appended to AllowedOrigins.
	AllowedOrigin   string        `yaml:"allowedOrigin"`
	TrustedProxies  []string      `yaml:"trustedProxies"` // IPs/CIDRs trusted for X-Forwarded-For
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type Mail struct {
	Provider           string        `yaml:"provider"`
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	SenderAddress      string        `yaml:"senderAddress"`
	SenderName         string        `yaml:"senderName"`
	InsecureSkipVerify bool          `yaml:"insecureSkipVerify"`
	SendTimeout        time.Duration `yaml:"sendTimeout"` // 0 waits for the transport indefinitely
	ResendAPIKey       string        `yaml:"resendAPIKey"`
}

type Notification struct {
	// AdminEmail receives the admin copies; falls back to Mail.User.
	AdminEmail string `yaml:"adminEmail"`
}

// Window is one fixed-window limit.
type Window struct {
	Window time.Duration `yaml:"window"`
	Max    int           `yaml:"max"`
}

// Burst is the per-IP token bucket in front of every API route.
// Rate 0 disables it.
type Burst struct {
	Rate float64 `yaml:"rate"`
	Size int     `yaml:"size"`
}

type RateLimit struct {
	Contact    Window `yaml:"contact"`
	Newsletter Window `yaml:"newsletter"`
	Burst      Burst  `yaml:"burst"`
}

type Redis struct {
	// URL enables the shared counter store, e.g. redis://localhost:6379/0.
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// Branding feeds the email templates and the informational endpoints.
type Branding struct {
	Name         string `yaml:"name"`
	Domain       string `yaml:"domain"`
	Website      string `yaml:"website"`
	ContactEmail string `yaml:"contactEmail"`
	Phone        string `yaml:"phone"`
	Location     string `yaml:"location"`
	TimeZone     string `yaml:"timeZone"`
}

type Config struct {
	Server          Server       `yaml:"server"`
	Mail            Mail         `yaml:"mail"`
	Notification    Notification `yaml:"notification"`
	RateLimit       RateLimit    `yaml:"rateLimit"`
	Redis           Redis        `yaml:"redis"`
	Branding        Branding     `yaml:"branding"`
	DevelopmentMode bool         `yaml:"developmentMode"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Server: Server{
			Port: 3001,
			AllowedOrigins: []string{
				"https://quantumdatasynergy.com",
				"https://www.quantumdatasynergy.com",
				"http://localhost:3000",
				"http://localhost:5173",
			},
			MaxBodyBytes:    10 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Mail: Mail{
			Provider:    ProviderSMTP,
			Host:        "smtp.gmail.com",
			Port:        587,
			SendTimeout: 30 * time.Second,
		},
		RateLimit: RateLimit{
			Contact:    Window{Window: 15 * time.Minute, Max: 5},
			Newsletter: Window{Window: time.Hour, Max: 3},
			Burst:      Burst{Rate: 5, Size: 20},
		},
		Redis: Redis{KeyPrefix: "contact-api:ratelimit:"},
		Branding: Branding{
			Name:         "Quantum Data Synergy",
			Domain:       "quantumdatasynergy.com",
			Website:      "https://quantumdatasynergy.com",
			ContactEmail: "contact@quantumdatasynergy.com",
			Phone:        "+5076897-6654",
			Location:     "Panama City, Panama",
			TimeZone:     "America/Panama",
		},
	}
}

// LoadDotEnv exports the variables of the given .env files (default ".env")
// into the process environment without overriding variables already set.
// Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading dotenv: %w", err)
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file and the
// environment, in that order of precedence.
// If configPath is empty the PathEnv variable is consulted, then DefaultPath.
func Load(configPath ...string) (Config, error) {
	path, explicit := DefaultPath, false
	if len(configPath) > 0 && configPath[0] != "" {
		path, explicit = configPath[0], true
	} else if p := os.Getenv(PathEnv); p != "" {
		path, explicit = p, true
	}

	cfg := Defaults()

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("trying to open contact-api config file %s: %w", path, err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	cfg.fillDerived()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. The GMAIL_* names of
// the original deployment are accepted as aliases.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(names ...string) (string, bool) {
		for _, n := range names {
			if v, ok := lookup(n); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), true
			}
		}
		return "", false
	}
	getInt := func(dst *int, names ...string) error {
		v, ok := get(names...)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", names[0], v, err)
		}
		*dst = n
		return nil
	}

	if v, ok := get("MAIL_USER", "GMAIL_USER"); ok {
		c.Mail.User = v
	}
	if v, ok := get("MAIL_PASSWORD", "GMAIL_APP_PASSWORD"); ok {
		c.Mail.Password = v
	}
	if v, ok := get("MAIL_PROVIDER"); ok {
		c.Mail.Provider = strings.ToLower(v)
	}
	if v, ok := get("SMTP_HOST"); ok {
		c.Mail.Host = v
	}
	if err := getInt(&c.Mail.Port, "SMTP_PORT"); err != nil {
		return err
	}
	if v, ok := get("MAIL_SENDER_ADDRESS"); ok {
		c.Mail.SenderAddress = v
	}
	if v, ok := get("RESEND_API_KEY"); ok {
		c.Mail.ResendAPIKey = v
	}
	if v, ok := get("ADMIN_EMAIL"); ok {
		c.Notification.AdminEmail = v
	}
	if err := getInt(&c.Server.Port, "PORT"); err != nil {
		return err
	}
	if v, ok := get("FRONTEND_URL", "ALLOWED_ORIGIN"); ok {
		c.Server.AllowedOrigin = v
	}
	if v, ok := get("REDIS_URL"); ok {
		c.Redis.URL = v
	}
	if v, ok := get("APP_ENV", "NODE_ENV"); ok {
		c.DevelopmentMode = strings.EqualFold(v, "development")
	}
	return nil
}

func (c *Config) fillDerived() {
	if c.Mail.SenderAddress == "" {
		c.Mail.SenderAddress = c.Mail.User
	}
	if c.Mail.SenderName == "" {
		c.Mail.SenderName = c.Branding.Name
	}
	c.Server.AllowedOrigin = strings.TrimSuffix(c.Server.AllowedOrigin, "/")
}

// Validate reports structural problems. Missing credentials are not an
// error here; the transport readiness check reports them at startup.
func (c Config) Validate() error {
	var errs []error
	switch c.Mail.Provider {
	case ProviderSMTP:
		if c.Mail.Host == "" {
			errs = append(errs, errors.New("mail.host is required for the smtp provider"))
		}
		if c.Mail.Port < 1 || c.Mail.Port > 65535 {
			errs = append(errs, fmt.Errorf("mail.port %d out of range", c.Mail.Port))
		}
	case ProviderResend, ProviderLog:
	default:
		errs = append(errs, fmt.Errorf("unknown mail.provider %q (want %s, %s or %s)",
			c.Mail.Provider, ProviderSMTP, ProviderResend, ProviderLog))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.maxBodyBytes must be positive"))
	}
	for _, o := range c.Origins() {
		u, err := url.Parse(o)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid CORS origin %q", o))
		}
	}
	for name, w := range map[string]Window{"contact": c.RateLimit.Contact, "newsletter": c.RateLimit.Newsletter} {
		if w.Window <= 0 || w.Max <= 0 {
			errs = append(errs, fmt.Errorf("rateLimit.%s needs a positive window and max", name))
		}
	}
	if b := c.RateLimit.Burst; b.Rate < 0 || (b.Rate > 0 && b.Size < 1) {
		errs = append(errs, errors.New("rateLimit.burst needs a non-negative rate and a positive size"))
	}
	if c.Mail.SendTimeout < 0 {
		errs = append(errs, errors.New("mail.sendTimeout must not be negative"))
	}
	return errors.Join(errs...)
}

// AdminRecipient is where admin copies go.
func (c Config) AdminRecipient() string {
	if c.Notification.AdminEmail != "" {
		return c.Notification.AdminEmail
	}
	return c.Mail.User
}

// Origins merges the allow-list with the configured frontend origin.
func (c Config) Origins() []string {
	seen := make(map[string]struct{}, len(c.Server.AllowedOrigins)+1)
	out := make([]string, 0, len(c.Server.AllowedOrigins)+1)
	for _, o := range append(append([]string{}, c.Server.AllowedOrigins...), c.Server.AllowedOrigin) {
		o = strings.TrimSuffix(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		if _, dup := seen[o]; dup {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	return out
}

// ListenAddr is the address handed to http.Server.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.ListenAddress, strconv.Itoa(c.Server.Port))
}

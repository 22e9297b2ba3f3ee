// Package config loads educrawler settings from a YAML file, the
// environment and command-line flags, and validates them.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jmylchreest/educrawler/internal/aggregator"
	"github.com/jmylchreest/educrawler/internal/browser"
	"github.com/jmylchreest/educrawler/internal/model"
)

// EnvPrefix prefixes every environment variable, e.g. EDUCRAWLER_LOGIN_EMAIL.
const EnvPrefix = "EDUCRAWLER"

// VerboseEnv is the legacy verbosity variable, honoured alongside
// EDUCRAWLER_VERBOSE.
const VerboseEnv = "EC_VERBOSE_LEVEL"

// Config holds every setting of a crawl run.
type Config struct {
	LoginEmail    string `mapstructure:"login_email" validate:"required,email"`
	LoginPassword string `mapstructure:"login_password" validate:"required"`

	Headless   bool   `mapstructure:"headless"`
	MFA        bool   `mapstructure:"mfa"`
	Stealth    bool   `mapstructure:"stealth"`
	ChromePath string `mapstructure:"chrome_path"`

	PollInterval  time.Duration `mapstructure:"poll_interval" validate:"gt=0,ltfield=PanelTimeout"`
	PanelTimeout  time.Duration `mapstructure:"panel_timeout" validate:"gt=0"`
	MFATimeout    time.Duration `mapstructure:"mfa_timeout" validate:"gt=0"`
	SettleDelay   time.Duration `mapstructure:"settle_delay" validate:"gte=0"`
	ActionTimeout time.Duration `mapstructure:"action_timeout" validate:"gt=0"`

	DownloadDir string `mapstructure:"download_dir" validate:"required"`
	Verbose     int    `mapstructure:"verbose" validate:"gte=0,lte=3"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("login_email", "")
	v.SetDefault("login_password", "")
	v.SetDefault("headless", true)
	v.SetDefault("mfa", true)
	v.SetDefault("stealth", false)
	v.SetDefault("chrome_path", "")
	v.SetDefault("poll_interval", 50*time.Millisecond)
	v.SetDefault("panel_timeout", 30*time.Second)
	v.SetDefault("mfa_timeout", 100*time.Second)
	v.SetDefault("settle_delay", 1500*time.Millisecond)
	v.SetDefault("action_timeout", browser.DefaultActionTimeout)
	v.SetDefault("download_dir", os.TempDir())
	v.SetDefault("verbose", 1)
}

// New returns a viper instance with defaults and environment bindings,
// reading cfgFile when set or else the first of config.yml and
// .educrawler.yaml found in the working directory or $HOME. A missing
// default file is not an error.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("verbose", EnvPrefix+"_VERBOSE", VerboseEnv)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return v, nil
	}

	v.SetConfigType("yaml")
	home, _ := os.UserHomeDir()
	for _, name := range []string{"config", ".educrawler"} {
		v.SetConfigName(name)
		v.AddConfigPath(".")
		if home != "" {
			v.AddConfigPath(home)
		}
		err := v.ReadInConfig()
		if err == nil {
			return v, nil
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks cfg against its field rules.
func Validate(cfg Config) error {
	return check("config", cfg)
}

// ValidateFilter requires a course whenever a lab or handout is given.
func ValidateFilter(f model.Filter) error {
	return check("filter", f)
}

func check(what string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid %s: %w", what, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, key(e.StructField())+" "+formatValidationError(e))
	}
	return fmt.Errorf("invalid %s: %s", what, strings.Join(msgs, "; "))
}

// formatValidationError creates a human-readable error message.
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "required_with":
		return "is required when " + strings.ToLower(strings.ReplaceAll(e.Param(), " ", " or ")) + " is set"
	case "email":
		return "must be a valid email address"
	case "gt":
		return "must be positive"
	case "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "ltfield":
		return "must be less than " + key(e.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}

// key maps a struct field name to its config key.
func key(field string) string {
	switch field {
	case "MFATimeout":
		return "mfa_timeout"
	case "Course", "Lab", "Handout":
		return strings.ToLower(field)
	}
	var b strings.Builder
	for i, r := range field {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// Settings returns the crawl settings of cfg.
func (c Config) Settings() aggregator.Settings {
	return aggregator.Settings{
		Email:        c.LoginEmail,
		Password:     c.LoginPassword,
		MFA:          c.MFA,
		PollInterval: c.PollInterval,
		PanelTimeout: c.PanelTimeout,
		MFATimeout:   c.MFATimeout,
		SettleDelay:  c.SettleDelay,
	}
}

// Browser returns the browser launch options of cfg.
func (c Config) Browser() browser.Options {
	return browser.Options{
		Headless:      c.Headless,
		Stealth:       c.Stealth,
		ChromePath:    c.ChromePath,
		ActionTimeout: c.ActionTimeout,
	}
}

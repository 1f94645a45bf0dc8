// Package config loads dashboard configuration from config.yaml and
// DASHBOARD_* environment variables, and sets up the global logger.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Auth   AuthConfig   `yaml:"auth" mapstructure:"auth"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Export ExportConfig `yaml:"export" mapstructure:"export"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the company CSV.
type DataConfig struct {
	// Source is a local path, file://, http(s):// or ftp:// URL.
	Source    string `yaml:"source" mapstructure:"source"`
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
}

// StoreConfig configures the state store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AuthConfig configures the login gate and the /auth endpoint.
type AuthConfig struct {
	Mode          string `yaml:"mode" mapstructure:"mode"`
	Username      string `yaml:"username" mapstructure:"username"`
	Password      string `yaml:"password" mapstructure:"password"`
	APIBase       string `yaml:"api_base" mapstructure:"api_base"`
	UsernameParam string `yaml:"username_param" mapstructure:"username_param"`
	PasswordParam string `yaml:"password_param" mapstructure:"password_param"`
	Region        string `yaml:"region" mapstructure:"region"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	StaticDir      string   `yaml:"static_dir" mapstructure:"static_dir"`
}

// ExportConfig configures export output.
type ExportConfig struct {
	Filename string `yaml:"filename" mapstructure:"filename"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DelimiterRune returns the configured delimiter, defaulting to comma.
func (d DataConfig) DelimiterRune() rune {
	if d.Delimiter == "" {
		return ','
	}
	if d.Delimiter == `\t` || d.Delimiter == "tab" {
		return '\t'
	}
	return []rune(d.Delimiter)[0]
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DASHBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.source", "data.csv")
	v.SetDefault("data.delimiter", ",")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "dashboard.db")
	v.SetDefault("auth.mode", "local")
	v.SetDefault("auth.username_param", "/dashboard/auth/username")
	v.SetDefault("auth.password_param", "/dashboard/auth/password")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("export.filename", "roofing_companies.csv")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. Mode is the command name.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
		errs = append(errs, c.validateData()...)
		errs = append(errs, c.validateStore()...)
		if c.Auth.UsernameParam == "" || c.Auth.PasswordParam == "" {
			errs = append(errs, "auth.username_param and auth.password_param are required")
		}
	case "export":
		errs = append(errs, c.validateData()...)
		errs = append(errs, c.validateStore()...)
		if c.Export.Filename == "" {
			errs = append(errs, "export.filename is required")
		}
	case "login":
		errs = append(errs, c.validateStore()...)
		switch strings.ToLower(c.Auth.Mode) {
		case "", "local", "api":
		case "ssm":
			if c.Auth.UsernameParam == "" || c.Auth.PasswordParam == "" {
				errs = append(errs, "auth.username_param and auth.password_param are required in ssm mode")
			}
		default:
			errs = append(errs, fmt.Sprintf("auth.mode %q must be local, api or ssm", c.Auth.Mode))
		}
	case "aggregate":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateData() []string {
	var errs []string
	if c.Data.Source == "" {
		errs = append(errs, "data.source is required")
	}
	if len([]rune(c.Data.Delimiter)) > 1 && c.Data.Delimiter != `\t` && c.Data.Delimiter != "tab" {
		errs = append(errs, "data.delimiter must be a single character")
	}
	return errs
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "memory", "sqlite":
		return nil
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required for postgres"}
		}
		return nil
	default:
		return []string{fmt.Sprintf("store.driver %q must be memory, sqlite or postgres", c.Store.Driver)}
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

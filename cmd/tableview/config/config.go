package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. TABLEVIEW_SERVER_PORT.
const EnvPrefix = "TABLEVIEW"

// Config holds the tableview configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Export  ExportConfig  `mapstructure:"export"`
	PDF     PDFConfig     `mapstructure:"pdf"`
	Session SessionConfig `mapstructure:"session"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	BasePath        string        `mapstructure:"base_path"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// FetchConfig holds upstream request settings.
type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	WaitTimeout  time.Duration `mapstructure:"wait_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	UserAgent    string        `mapstructure:"user_agent"`

	// DenyPrivateNetworks blocks fetches to loopback and private addresses.
	DenyPrivateNetworks bool `mapstructure:"deny_private_networks"`
}

// ExportConfig holds export settings.
type ExportConfig struct {
	Formats     []string `mapstructure:"formats"`
	Filename    string   `mapstructure:"filename"`
	Timezone    string   `mapstructure:"timezone"`
	SQLiteTable string   `mapstructure:"sqlite_table"`
}

// PDFConfig selects and tunes the PDF engine.
type PDFConfig struct {
	Engine           string        `mapstructure:"engine"`
	ChromiumPath     string        `mapstructure:"chromium_path"`
	Headless         bool          `mapstructure:"headless"`
	Args             []string      `mapstructure:"args"`
	WKHTMLTOPDFPath  string        `mapstructure:"wkhtmltopdf_path"`
	Timeout          time.Duration `mapstructure:"timeout"`
	PageSize         string        `mapstructure:"page_size"`
	LandscapeColumns int           `mapstructure:"landscape_columns"`
	MarginTop        string        `mapstructure:"margin_top"`
	MarginBottom     string        `mapstructure:"margin_bottom"`
	MarginLeft       string        `mapstructure:"margin_left"`
	MarginRight      string        `mapstructure:"margin_right"`
	FitColumns       int           `mapstructure:"fit_columns"`
	PageNumbers      bool          `mapstructure:"page_numbers"`
}

// SessionConfig holds browser session settings.
type SessionConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	Capacity   uint64        `mapstructure:"capacity"`
	CookieName string        `mapstructure:"cookie_name"`
	// SweepSchedule is the cron expression serve uses to drop idle
	// sessions. Empty disables the sweep.
	SweepSchedule string `mapstructure:"sweep_schedule"`
}

// LogConfig holds logrus settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// PDF engines.
const (
	PDFEngineChromium    = "chromium"
	PDFEngineWKHTMLTOPDF = "wkhtmltopdf"
	PDFEngineNone        = "none"
)

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            "8080",
			BasePath:        "/",
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    64 * 1024,
		},
		Fetch: FetchConfig{
			Timeout:      30 * time.Second,
			WaitTimeout:  60 * time.Second,
			MaxBodyBytes: 16 << 20,
			UserAgent:    "go-tableview",
		},
		Export: ExportConfig{
			Formats:     []string{"csv", "pdf"},
			Filename:    "table_data",
			SQLiteTable: "table_data",
		},
		PDF: PDFConfig{
			Engine:           PDFEngineChromium,
			Headless:         true,
			Timeout:          30 * time.Second,
			PageSize:         "A4",
			LandscapeColumns: 6,
			FitColumns:       10,
			PageNumbers:      true,
		},
		Session: SessionConfig{
			TTL:        30 * time.Minute,
			Capacity:   1000,
			CookieName: "tableview_sid",

			SweepSchedule: "*/5 * * * *",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "tableview",
		},
	}
}

// FlagKeys maps command line flags onto configuration keys.
var FlagKeys = map[string]string{
	"host":       "server.host",
	"port":       "server.port",
	"base-path":  "server.base_path",
	"pdf-engine": "pdf.engine",
	"log-level":  "log.level",
	"log-format": "log.format",
	"timeout":    "fetch.timeout",
}

// Load reads the configuration. Values resolve in order: flags, environment,
// config file, defaults. An explicit path must exist; without one the file
// "tableview.{yaml,json,toml}" is looked up in the working directory and
// ./configs and may be absent.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tableview")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return Config{}, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.base_path", cfg.Server.BasePath)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("server.max_body_bytes", cfg.Server.MaxBodyBytes)

	v.SetDefault("fetch.timeout", cfg.Fetch.Timeout)
	v.SetDefault("fetch.wait_timeout", cfg.Fetch.WaitTimeout)
	v.SetDefault("fetch.max_body_bytes", cfg.Fetch.MaxBodyBytes)
	v.SetDefault("fetch.user_agent", cfg.Fetch.UserAgent)
	v.SetDefault("fetch.deny_private_networks", cfg.Fetch.DenyPrivateNetworks)

	v.SetDefault("export.formats", cfg.Export.Formats)
	v.SetDefault("export.filename", cfg.Export.Filename)
	v.SetDefault("export.timezone", cfg.Export.Timezone)
	v.SetDefault("export.sqlite_table", cfg.Export.SQLiteTable)

	v.SetDefault("pdf.engine", cfg.PDF.Engine)
	v.SetDefault("pdf.chromium_path", cfg.PDF.ChromiumPath)
	v.SetDefault("pdf.headless", cfg.PDF.Headless)
	v.SetDefault("pdf.args", cfg.PDF.Args)
	v.SetDefault("pdf.wkhtmltopdf_path", cfg.PDF.WKHTMLTOPDFPath)
	v.SetDefault("pdf.timeout", cfg.PDF.Timeout)
	v.SetDefault("pdf.page_size", cfg.PDF.PageSize)
	v.SetDefault("pdf.landscape_columns", cfg.PDF.LandscapeColumns)
	v.SetDefault("pdf.margin_top", cfg.PDF.MarginTop)
	v.SetDefault("pdf.margin_bottom", cfg.PDF.MarginBottom)
	v.SetDefault("pdf.margin_left", cfg.PDF.MarginLeft)
	v.SetDefault("pdf.margin_right", cfg.PDF.MarginRight)
	v.SetDefault("pdf.fit_columns", cfg.PDF.FitColumns)
	v.SetDefault("pdf.page_numbers", cfg.PDF.PageNumbers)

	v.SetDefault("session.ttl", cfg.Session.TTL)
	v.SetDefault("session.capacity", cfg.Session.Capacity)
	v.SetDefault("session.cookie_name", cfg.Session.CookieName)
	v.SetDefault("session.sweep_schedule", cfg.Session.SweepSchedule)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
	v.SetDefault("metrics.namespace", cfg.Metrics.Namespace)
}

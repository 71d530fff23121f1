package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Log      LogConfig
	HTTP     HTTPConfig
	PDF      PDFConfig
	Storage  StorageConfig
	Tenants  TenantsConfig
	Internal InternalConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name    string
	Env     string
	Port    string
	Version string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// PDFConfig holds headless rendering and artifact lifecycle settings
type PDFConfig struct {
	NavigationTimeout time.Duration // page navigation bound
	CleanupDelay      time.Duration // temp file deletion delay (production only)
	TempDir           string
	ChromeExecPath    string // optional explicit Chrome binary
	RemoteURL         string // optional remote DevTools endpoint
	Headless          bool
	NoSandbox         bool
	BulkConcurrency   int // concurrent pages during bulk generation
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Enabled      bool
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	Endpoint     string
	UsePathStyle bool
	UseSSL       bool
}

// TenantURLs is one tenant's frontend/backend pair
type TenantURLs struct {
	Frontend string
	Backend  string
	Keyword  string // optional substring that routes any containing origin here
}

// TenantsConfig holds the tenant routing table
type TenantsConfig struct {
	DefaultFrontend string
	DefaultBackend  string
	Sites           map[string]TenantURLs
}

// InternalConfig holds settings for service-to-service endpoints
type InternalConfig struct {
	AuthToken string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with REPORTS_ prefix (e.g. REPORTS_STORAGE_SECRET_KEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("REPORTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Port:    v.GetString("app.port"),
			Version: v.GetString("app.version"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		PDF: PDFConfig{
			NavigationTimeout: v.GetDuration("pdf.navigation_timeout"),
			CleanupDelay:      v.GetDuration("pdf.cleanup_delay"),
			TempDir:           v.GetString("pdf.temp_dir"),
			ChromeExecPath:    v.GetString("pdf.chrome_exec_path"),
			RemoteURL:         v.GetString("pdf.remote_url"),
			Headless:          v.GetBool("pdf.headless"),
			NoSandbox:         v.GetBool("pdf.no_sandbox"),
			BulkConcurrency:   v.GetInt("pdf.bulk_concurrency"),
		},
		Storage: StorageConfig{
			Enabled:      v.GetBool("storage.enabled"),
			Bucket:       v.GetString("storage.bucket"),
			Region:       v.GetString("storage.region"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			Endpoint:     v.GetString("storage.endpoint"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
			UseSSL:       v.GetBool("storage.use_ssl"),
		},
		Tenants: TenantsConfig{
			DefaultFrontend: v.GetString("tenants.default_frontend"),
			DefaultBackend:  v.GetString("tenants.default_backend"),
			Sites:           loadTenantSites(v),
		},
		Internal: InternalConfig{
			AuthToken: v.GetString("internal.auth_token"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadTenantSites reads the [tenants.sites.<name>] tables
func loadTenantSites(v *viper.Viper) map[string]TenantURLs {
	sites := make(map[string]TenantURLs)
	for name := range v.GetStringMap("tenants.sites") {
		prefix := "tenants.sites." + name + "."
		sites[name] = TenantURLs{
			Frontend: v.GetString(prefix + "frontend"),
			Backend:  v.GetString(prefix + "backend"),
			Keyword:  v.GetString(prefix + "keyword"),
		}
	}
	return sites
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "report-pdf-service"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "dev"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// Renders can legitimately take minutes; the write timeout must
		// outlive the navigation and readiness bounds combined.
		cfg.HTTP.WriteTimeout = 5 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB, bulk id lists are small
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 60
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.PDF.NavigationTimeout == 0 {
		cfg.PDF.NavigationTimeout = 120 * time.Second
	}
	if cfg.PDF.CleanupDelay == 0 {
		cfg.PDF.CleanupDelay = 2 * time.Minute
	}
	if cfg.PDF.TempDir == "" {
		cfg.PDF.TempDir = os.TempDir()
	}
	if cfg.PDF.BulkConcurrency == 0 {
		// Sequential by default: concurrent tabs share one browser's
		// memory ceiling, so raising this is an explicit operator choice.
		cfg.PDF.BulkConcurrency = 1
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "ap-south-1"
	}
	if cfg.Tenants.DefaultFrontend == "" {
		cfg.Tenants.DefaultFrontend = "https://app.inzighted.com"
	}
	if cfg.Tenants.DefaultBackend == "" {
		cfg.Tenants.DefaultBackend = "https://api.inzighted.com"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.PDF.BulkConcurrency < 1 {
		return fmt.Errorf("pdf.bulk_concurrency must be at least 1")
	}
	if c.HTTP.RateLimitRequests <= 0 {
		return fmt.Errorf("http.rate_limit_requests must be positive")
	}

	if c.Storage.Enabled {
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required when storage is enabled")
		}
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return fmt.Errorf("storage.access_key and storage.secret_key are required when storage is enabled")
		}
	}

	if c.App.Env == "production" {
		if c.Internal.AuthToken == "" {
			return fmt.Errorf("internal.auth_token is required in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	return nil
}

// IsProduction reports whether the service runs with production semantics
// (temp-file cleanup scheduling, suppressed error details).
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

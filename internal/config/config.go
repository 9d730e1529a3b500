// Package config resolves the gateway configuration once at startup.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Keys recognised in the environment and in config files.
const (
	KeyHost               = "mcp_host"
	KeyPort               = "mcp_port"
	KeyEnv                = "mcp_env"
	KeyCORSOrigins        = "cors_origins"
	KeyRateLimitWindowMS  = "rate_limit_window_ms"
	KeyRateLimitMax       = "rate_limit_max_requests"
	KeyMaxRequestSize     = "max_request_size"
	KeyBinary             = "claude_code_bin"
	KeyTimeoutMS          = "claude_code_timeout"
	KeyWorkDir            = "claude_code_workdir"
	KeyHome               = "claude_code_home"
	KeyPathPrefix         = "claude_code_path_prefix"
	KeyProjectsRoot       = "projects_root"
	KeyHealthCheckTimeout = "health_check_timeout"
	KeyAuditDBPath        = "audit_db_path"
	KeyMetricsEnabled     = "metrics_enabled"
	KeyLogLevel           = "log_level"
	KeyLogFormat          = "log_format"
)

// EnvDevelopment enables verbose error messages and gin debug mode.
const EnvDevelopment = "development"

// RunnerConfig configures how the external binary is spawned.
type RunnerConfig struct {
	// Binary is the executable name or path of the external tool.
	Binary string
	// Timeout bounds a single invocation.
	Timeout time.Duration
	// WorkDir is the fixed working directory of every child process.
	WorkDir string
	// Home overrides HOME for the child process.
	Home string
	// PathPrefix is prepended to PATH for the child process.
	PathPrefix string
}

// Config holds every setting the gateway reads at startup.
type Config struct {
	Host string
	Port int
	Env  string

	CORSOrigins []string

	RateLimitWindow time.Duration
	RateLimitMax    int

	// MaxRequestSize caps request bodies, in bytes.
	MaxRequestSize int64

	Runner       RunnerConfig
	ProjectsRoot string

	HealthCheckTimeout time.Duration

	// AuditDBPath enables the SQLite run journal when non-empty.
	AuditDBPath    string
	MetricsEnabled bool

	LogLevel  string
	LogFormat string
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsDevelopment reports whether detailed error messages should be exposed.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, EnvDevelopment)
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            3001,
		Env:             "production",
		CORSOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		RateLimitWindow: 15 * time.Minute,
		RateLimitMax:    100,
		MaxRequestSize:  10 * 1000 * 1000,
		Runner: RunnerConfig{
			Binary:     "claude-code",
			Timeout:    300 * time.Second,
			WorkDir:    "/workspace",
			Home:       "/home/claude",
			PathPrefix: "/usr/local/lib/claude-code/bin",
		},
		ProjectsRoot:       "/workspace/projects",
		HealthCheckTimeout: 5 * time.Second,
		MetricsEnabled:     true,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyHost, d.Host)
	v.SetDefault(KeyPort, d.Port)
	v.SetDefault(KeyEnv, d.Env)
	v.SetDefault(KeyCORSOrigins, strings.Join(d.CORSOrigins, ","))
	v.SetDefault(KeyRateLimitWindowMS, d.RateLimitWindow.Milliseconds())
	v.SetDefault(KeyRateLimitMax, d.RateLimitMax)
	v.SetDefault(KeyMaxRequestSize, "10mb")
	v.SetDefault(KeyBinary, d.Runner.Binary)
	v.SetDefault(KeyTimeoutMS, d.Runner.Timeout.Milliseconds())
	v.SetDefault(KeyWorkDir, d.Runner.WorkDir)
	v.SetDefault(KeyHome, d.Runner.Home)
	v.SetDefault(KeyPathPrefix, d.Runner.PathPrefix)
	v.SetDefault(KeyProjectsRoot, d.ProjectsRoot)
	v.SetDefault(KeyHealthCheckTimeout, int(d.HealthCheckTimeout/time.Second))
	v.SetDefault(KeyAuditDBPath, "")
	v.SetDefault(KeyMetricsEnabled, d.MetricsEnabled)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)
}

// Load resolves the configuration from, in increasing precedence: defaults,
// configFile (if non-empty) and the environment. envFiles are loaded into the
// environment first; without any, an optional .env in the working directory
// is used. Variables already present in the environment are never replaced.
func Load(configFile string, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	return fromViper(v)
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Host:         strings.TrimSpace(v.GetString(KeyHost)),
		Env:          strings.TrimSpace(v.GetString(KeyEnv)),
		CORSOrigins:  splitList(v.GetString(KeyCORSOrigins)),
		ProjectsRoot: v.GetString(KeyProjectsRoot),
		AuditDBPath:  v.GetString(KeyAuditDBPath),
		LogLevel:     v.GetString(KeyLogLevel),
		LogFormat:    v.GetString(KeyLogFormat),
		Runner: RunnerConfig{
			Binary:     v.GetString(KeyBinary),
			WorkDir:    v.GetString(KeyWorkDir),
			Home:       v.GetString(KeyHome),
			PathPrefix: v.GetString(KeyPathPrefix),
		},
	}

	var err error
	if cfg.Port, err = positiveInt(v, KeyPort); err != nil {
		return nil, err
	}
	if cfg.Port > 65535 {
		return nil, fmt.Errorf("%s: port %d out of range", KeyPort, cfg.Port)
	}
	if cfg.RateLimitMax, err = positiveInt(v, KeyRateLimitMax); err != nil {
		return nil, err
	}

	windowMS, err := positiveInt(v, KeyRateLimitWindowMS)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitWindow = time.Duration(windowMS) * time.Millisecond

	timeoutMS, err := positiveInt(v, KeyTimeoutMS)
	if err != nil {
		return nil, err
	}
	cfg.Runner.Timeout = time.Duration(timeoutMS) * time.Millisecond

	probeSec, err := positiveInt(v, KeyHealthCheckTimeout)
	if err != nil {
		return nil, err
	}
	cfg.HealthCheckTimeout = time.Duration(probeSec) * time.Second

	size, err := humanize.ParseBytes(v.GetString(KeyMaxRequestSize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", KeyMaxRequestSize, err)
	}
	if size == 0 {
		return nil, fmt.Errorf("%s: must be greater than zero", KeyMaxRequestSize)
	}
	cfg.MaxRequestSize = int64(size)

	if cfg.MetricsEnabled, err = strconv.ParseBool(strings.TrimSpace(v.GetString(KeyMetricsEnabled))); err != nil {
		return nil, fmt.Errorf("%s: %w", KeyMetricsEnabled, err)
	}

	if cfg.Runner.Binary == "" {
		return nil, fmt.Errorf("%s: must not be empty", KeyBinary)
	}
	return cfg, nil
}

func positiveInt(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, raw)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: must be greater than zero, got %d", key, n)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

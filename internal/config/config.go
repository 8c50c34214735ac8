// Package config loads clipd configuration from flags, environment variables,
// a .env file and an optional YAML file of engine tunables.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Import policies accepted by EngineConfig.ImportPolicy.
const (
	ImportPolicyReplace = "replace"
	ImportPolicyMerge   = "merge"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Server   ServerConfig
	Storage  StorageConfig
	Engine   EngineConfig
	Autosave AutosaveConfig
	Search   SearchConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        // default: 8080
	ReadTimeout    time.Duration // default: 15s
	WriteTimeout   time.Duration // default: 15s
	IdleTimeout    time.Duration // default: 60s
	AllowedOrigins []string      // CORS origins of the rendering client
	RateLimit      float64       // requests per second per client IP; 0 disables
	RateBurst      int
}

// SearchConfig holds flashcard search index configuration.
type SearchConfig struct {
	Enabled bool
	// DataPath is the index directory. Empty keeps the index in memory.
	DataPath string
}

// StorageConfig holds snapshot database configuration.
type StorageConfig struct {
	DatabasePath string
}

// EngineConfig holds the interval-editing tunables. It is also the shape of the
// optional YAML engine file.
type EngineConfig struct {
	// MinDuration is the shortest clip a gesture may produce.
	MinDuration time.Duration `yaml:"min_duration"`
	// EdgeHitRadiusPx is how close to a clip edge a pointer-down must land to stretch it.
	EdgeHitRadiusPx float64 `yaml:"edge_hit_radius_px"`
	// MoveStartDelay separates a click on a clip from a drag of it.
	MoveStartDelay time.Duration `yaml:"move_start_delay"`
	// PixelsPerSecond is used when a timeline is opened without its own rate.
	PixelsPerSecond float64 `yaml:"pixels_per_second"`
	// EdgeBufferPx keeps a newly selected clip away from the viewport edge.
	EdgeBufferPx float64 `yaml:"edge_buffer_px"`
	// ImportPolicy is the default bulk import policy (replace or merge).
	ImportPolicy string `yaml:"import_policy"`
}

// AutosaveConfig controls snapshot persistence triggered by change events.
type AutosaveConfig struct {
	Enabled  bool
	Interval time.Duration // minimum spacing between saves of one timeline
}

// DefaultEngine returns the engine defaults.
func DefaultEngine() EngineConfig {
	return EngineConfig{
		MinDuration:     150 * time.Millisecond,
		EdgeHitRadiusPx: 5,
		MoveStartDelay:  400 * time.Millisecond,
		PixelsPerSecond: 50,
		EdgeBufferPx:    20,
		ImportPolicy:    ImportPolicyReplace,
	}
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load builds a Config from args with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. YAML engine file (engine section only).
// 5. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("clipd", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	port := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	origins := fs.String("allowed-origins", "", "Comma separated CORS origins")
	dbPath := fs.String("db-path", "", "Path to the snapshot database")
	envFile := fs.String("env-file", ".env", "Path to .env file")
	engineFile := fs.String("engine-config", "", "Path to a YAML file of engine tunables")
	minDuration := fs.String("min-duration", "", "Minimum clip duration (default: 150ms)")
	edgeRadius := fs.String("edge-hit-radius", "", "Edge hit radius in pixels (default: 5)")
	moveDelay := fs.String("move-start-delay", "", "Hold time before a drag moves a clip (default: 400ms)")
	pps := fs.String("pixels-per-second", "", "Default waveform pixels per second (default: 50)")
	importPolicy := fs.String("import-policy", "", "Bulk import policy: replace or merge")
	autosave := fs.String("autosave", "", "Persist timeline snapshots on change (default: true)")
	autosaveInterval := fs.String("autosave-interval", "", "Minimum spacing between saves (default: 2s)")
	rateLimit := fs.String("rate-limit", "", "API requests per second per client IP, 0 disables (default: 50)")
	searchEnabled := fs.String("search", "", "Index flashcard text for search (default: true)")
	searchPath := fs.String("search-path", "", "Search index directory (default: next to the database)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// A missing .env file is normal.
	_ = loadEnvFile(*envFile)

	engine := DefaultEngine()
	if path := getConfigValue(*engineFile, "ENGINE_CONFIG", ""); path != "" {
		if err := loadEngineFile(path, &engine); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*port, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*origins, "ALLOWED_ORIGINS", "*")),
			RateLimit:      getFloatConfigValue(*rateLimit, "RATE_LIMIT", 50),
			RateBurst:      100,
		},
		Storage: StorageConfig{
			DatabasePath: getConfigValue(*dbPath, "DATABASE_PATH", ""),
		},
		Engine: EngineConfig{
			EdgeHitRadiusPx: getFloatConfigValue(*edgeRadius, "EDGE_HIT_RADIUS", engine.EdgeHitRadiusPx),
			PixelsPerSecond: getFloatConfigValue(*pps, "PIXELS_PER_SECOND", engine.PixelsPerSecond),
			EdgeBufferPx:    engine.EdgeBufferPx,
			ImportPolicy:    strings.ToLower(getConfigValue(*importPolicy, "IMPORT_POLICY", engine.ImportPolicy)),
		},
		Autosave: AutosaveConfig{
			Enabled: getBoolConfigValue(*autosave, "AUTOSAVE", true),
		},
		Search: SearchConfig{
			Enabled:  getBoolConfigValue(*searchEnabled, "SEARCH", true),
			DataPath: getConfigValue(*searchPath, "SEARCH_PATH", ""),
		},
	}

	durations := []struct {
		flagValue string
		envKey    string
		def       time.Duration
		dst       *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", 15 * time.Second, &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", 15 * time.Second, &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", 60 * time.Second, &cfg.Server.IdleTimeout},
		{*minDuration, "MIN_DURATION", engine.MinDuration, &cfg.Engine.MinDuration},
		{*moveDelay, "MOVE_START_DELAY", engine.MoveStartDelay, &cfg.Engine.MoveStartDelay},
		{*autosaveInterval, "AUTOSAVE_INTERVAL", 2 * time.Second, &cfg.Autosave.Interval},
	}
	for _, d := range durations {
		v, err := getDurationConfigValue(d.flagValue, d.envKey, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if err := cfg.expandDatabasePath(); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}
	if cfg.Search.DataPath == "" {
		cfg.Search.DataPath = filepath.Dir(cfg.Storage.DatabasePath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.DatabasePath == "" {
		return errors.New("database path cannot be empty after expansion")
	}

	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %g", c.Server.RateLimit)
	}

	return c.Engine.Validate()
}

// Validate checks the engine tunables.
func (e EngineConfig) Validate() error {
	if e.MinDuration < time.Millisecond {
		return fmt.Errorf("min duration must be at least 1ms, got %s", e.MinDuration)
	}
	if e.EdgeHitRadiusPx < 0 {
		return fmt.Errorf("edge hit radius must not be negative, got %g", e.EdgeHitRadiusPx)
	}
	if e.MoveStartDelay < 0 {
		return fmt.Errorf("move start delay must not be negative, got %s", e.MoveStartDelay)
	}
	if e.PixelsPerSecond <= 0 {
		return fmt.Errorf("pixels per second must be positive, got %g", e.PixelsPerSecond)
	}
	if e.ImportPolicy != ImportPolicyReplace && e.ImportPolicy != ImportPolicyMerge {
		return fmt.Errorf("invalid import policy: %q (must be replace or merge)", e.ImportPolicy)
	}
	return nil
}

// expandDatabasePath expands ~ and makes the path absolute, defaulting to
// ~/.clipdeck/clipdeck.db.
func (c *Config) expandDatabasePath() error {
	path := c.Storage.DatabasePath
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.Storage.DatabasePath = filepath.Join(homeDir, ".clipdeck", "clipdeck.db")
		return nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	c.Storage.DatabasePath = filepath.Clean(abs)
	return nil
}

// loadEngineFile overlays the YAML file at path onto engine. Keys absent from
// the file keep their current values.
func loadEngineFile(path string, engine *EngineConfig) error {
	data, err := os.ReadFile(path) //#nosec G304 -- operator supplied config path
	if err != nil {
		return fmt.Errorf("read engine config: %w", err)
	}
	if err := yaml.Unmarshal(data, engine); err != nil {
		return fmt.Errorf("parse engine config %s: %w", path, err)
	}
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1" and "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getFloatConfigValue returns the default when the value is missing or malformed.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getDurationConfigValue(flagValue, envKey string, defaultValue time.Duration) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(envKey), strValue, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads KEY=value lines from a .env file. Variables already set in
// the environment win.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/hpungsan/revise/internal/prompt"
)

// DirName is the name of the global and per-repo configuration directory.
const DirName = ".revise"

// Config holds application configuration.
type Config struct {
	// DefaultPlatform labels versions saved without an explicit platform.
	// Empty keeps the session's own platform.
	DefaultPlatform string `json:"default_platform,omitempty"`

	// HistoryLimit is the default number of sessions or versions returned by history reads.
	HistoryLimit int `json:"history_limit,omitempty"`

	// AutoSave seeds the autoSave setting of a fresh store.
	// Pointer so a repo config can turn it off over a global "true".
	AutoSave *bool `json:"auto_save,omitempty"`

	// CheckpointIntervalMinutes seeds the scheduled checkpoint period of a fresh store.
	CheckpointIntervalMinutes int `json:"checkpoint_interval_minutes,omitempty"`

	// MaxVersions seeds the advisory version limit of a fresh store.
	MaxVersions int `json:"max_versions,omitempty"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.revise/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// When true, any directory is allowed (but symlink and extension checks still apply).
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// HTTPAddr is the listen address of the HTTP message channel.
	HTTPAddr string `json:"http_addr,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	autoSave := true
	return &Config{
		HistoryLimit:              50,
		AutoSave:                  &autoSave,
		CheckpointIntervalMinutes: prompt.DefaultCheckpointIntervalMinutes,
		MaxVersions:               prompt.DefaultMaxVersions,
		HTTPAddr:                  "127.0.0.1:8765",
	}
}

// Settings returns the store settings a fresh store starts with.
func (c *Config) Settings() prompt.Settings {
	autoSave := true
	if c.AutoSave != nil {
		autoSave = *c.AutoSave
	}
	interval := c.CheckpointIntervalMinutes
	if interval <= 0 {
		interval = prompt.DefaultCheckpointIntervalMinutes
	}
	maxVersions := c.MaxVersions
	if maxVersions <= 0 {
		maxVersions = prompt.DefaultMaxVersions
	}
	return prompt.Settings{
		AutoSave:                  &autoSave,
		CheckpointIntervalMinutes: &interval,
		MaxVersions:               &maxVersions,
	}
}

// Platform returns p, or DefaultPlatform when p is blank.
func (c *Config) Platform(p string) string {
	if strings.TrimSpace(p) != "" {
		return p
	}
	return c.DefaultPlatform
}

// Limit returns n, or HistoryLimit when n is zero.
func (c *Config) Limit(n int) int {
	if n > 0 {
		return n
	}
	return c.HistoryLimit
}

// BaseDir returns REVISE_HOME if set, else ~/.revise.
func BaseDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("REVISE_HOME")); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// LoadEnv loads baseDir/.env into the process environment.
// Variables already set are not overridden. A missing file is not an error.
func LoadEnv(baseDir string) error {
	path := filepath.Join(baseDir, ".env")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.revise.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.revise) and repo (.revise) directories.
// Repo config is found by walking upward from startDir to find the nearest .revise/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	// Walk upward from startDir to find repo config
	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .revise/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, not found
			return ""
		}
		dir = parent
	}
}

// ApplyEnv overlays REVISE_* environment variables onto c.
// Malformed numbers and booleans are reported, not ignored.
func ApplyEnv(c *Config) error {
	if v, ok := lookupEnv("REVISE_DEFAULT_PLATFORM"); ok {
		c.DefaultPlatform = v
	}
	if v, ok := lookupEnv("REVISE_HTTP_ADDR"); ok {
		c.HTTPAddr = v
	}
	if v, ok := lookupEnv("REVISE_AUTO_SAVE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REVISE_AUTO_SAVE: %w", err)
		}
		c.AutoSave = &b
	}
	if v, ok := lookupEnv("REVISE_ALLOW_UNSAFE_PATHS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REVISE_ALLOW_UNSAFE_PATHS: %w", err)
		}
		c.AllowUnsafePaths = b
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"REVISE_HISTORY_LIMIT", &c.HistoryLimit},
		{"REVISE_CHECKPOINT_INTERVAL_MINUTES", &c.CheckpointIntervalMinutes},
		{"REVISE_MAX_VERSIONS", &c.MaxVersions},
		{"REVISE_DB_MAX_OPEN_CONNS", &c.DBMaxOpenConns},
		{"REVISE_DB_MAX_IDLE_CONNS", &c.DBMaxIdleConns},
	}
	for _, e := range ints {
		v, ok := lookupEnv(e.name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%s: invalid value %q", e.name, v)
		}
		*e.dst = n
	}

	if v, ok := lookupEnv("REVISE_DISABLED_TOOLS"); ok {
		c.DisabledTools = mergeStringSlice(c.DisabledTools, strings.Split(v, ","))
	}
	return nil
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// File doesn't exist, return zero config
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.DefaultPlatform = overlayString(base.DefaultPlatform, overlay.DefaultPlatform)
	result.HTTPAddr = overlayString(base.HTTPAddr, overlay.HTTPAddr)
	result.HistoryLimit = overlayInt(base.HistoryLimit, overlay.HistoryLimit)
	result.CheckpointIntervalMinutes = overlayInt(base.CheckpointIntervalMinutes, overlay.CheckpointIntervalMinutes)
	result.MaxVersions = overlayInt(base.MaxVersions, overlay.MaxVersions)
	result.DBMaxOpenConns = overlayInt(base.DBMaxOpenConns, overlay.DBMaxOpenConns)
	result.DBMaxIdleConns = overlayInt(base.DBMaxIdleConns, overlay.DBMaxIdleConns)

	// Pointer booleans: overlay wins if set, including an explicit false
	switch {
	case overlay.AutoSave != nil:
		v := *overlay.AutoSave
		result.AutoSave = &v
	case base.AutoSave != nil:
		v := *base.AutoSave
		result.AutoSave = &v
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func overlayString(base, overlay string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func overlayInt(base, overlay int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

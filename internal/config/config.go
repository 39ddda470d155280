package config

import (
	"os"
	"runtime"
)

// Default limits applied when a config file and caller overrides are both absent.
const (
	DefaultMaxFileSize     = 10 * 1024 * 1024
	DefaultThreads         = 0 // 0 = auto-detect (NumCPU)
	DefaultChunkSize       = 256
	DefaultMaxPendingTasks = 1000
	DefaultCacheMaxSizeMB  = 500
)

// Config is the on-disk/in-process configuration surface. Options holds the
// fields that map directly onto the run(options) contract; Project and Cache
// hold everything ambient to this process that the contract itself doesn't need.
type Config struct {
	Project Project
	Options Options
	Cache   CacheConfig
	Performance Performance
}

type Project struct {
	Root string
	Name string
}

// Options mirrors the recognized keys of the consumer-facing run contract.
type Options struct {
	MaxFileSize     int64
	IncludeBinary   bool
	ExcludedFolders []string
	ExcludedFiles   []string
	ExcludePatterns []string
	FollowSymlinks  bool
	ImageExtensions []string
	Threads         int
	Encoding        string // "auto" or an explicit encoding name
	HashAlgorithm   string // empty disables hashing and cache writes
	ChunkSize       int
	MaxPendingTasks int
}

// CacheConfig controls the persistent content-addressed cache store.
type CacheConfig struct {
	Enabled   bool
	Dir       string
	MaxSizeMB int64
}

type Performance struct {
	MaxGoroutines  int
	StartupDelayMs int
}

func defaultImageExtensions() []string {
	return []string{
		".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp", ".avif",
		".ico", ".tiff", ".tif", ".svg",
	}
}

func defaultExcludedFolders() []string {
	return []string{
		".git", "node_modules", "vendor", "bower_components",
		"dist", "build", "out", "target", "bin", "obj",
		"__pycache__", ".venv", "venv",
	}
}

func defaultExcludePatterns() []string {
	return []string{
		"**/*.min.js",
		"**/*.min.css",
		"**/*.pyc",
		"**/*.swp",
		"**/*~",
	}
}

func defaultConfig(root string) *Config {
	return &Config{
		Project: Project{Root: root},
		Options: Options{
			MaxFileSize:     DefaultMaxFileSize,
			IncludeBinary:   false,
			ExcludedFolders: defaultExcludedFolders(),
			ExcludedFiles:   []string{},
			ExcludePatterns: defaultExcludePatterns(),
			FollowSymlinks:  false,
			ImageExtensions: defaultImageExtensions(),
			Threads:         DefaultThreads,
			Encoding:        "auto",
			HashAlgorithm:   "xxh64",
			ChunkSize:       DefaultChunkSize,
			MaxPendingTasks: DefaultMaxPendingTasks,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MaxSizeMB: DefaultCacheMaxSizeMB,
		},
		Performance: Performance{
			MaxGoroutines:  0,
			StartupDelayMs: 0,
		},
	}
}

// Load loads configuration rooted at path, falling back to built-in defaults
// when no .samuraizer.kdl file is present.
func Load(path string) (*Config, error) {
	return LoadWithRoot(path, path)
}

// LoadWithRoot loads a project config from rootDir (or "." if empty), layering
// it over any global config found in the user's home directory.
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}

	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	var projectConfig *Config
	kdlCfg, err := LoadKDL(searchDir)
	if err != nil {
		return nil, err
	}
	if kdlCfg != nil {
		projectConfig = kdlCfg
	}

	switch {
	case baseConfig != nil && projectConfig != nil:
		return mergeConfigs(baseConfig, projectConfig), nil
	case projectConfig != nil:
		return projectConfig, nil
	case baseConfig != nil:
		baseConfig.Project.Root = searchDir
		return baseConfig, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = searchDir
	}
	return defaultConfig(cwd), nil
}

// mergeConfigs merges a base (e.g. ~/.samuraizer.kdl) config with a project
// config. The project's Options win field-for-field; exclusions are unioned
// so a home-directory ignore list still applies inside every project.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	merged.Options.ExcludedFolders = unionStrings(base.Options.ExcludedFolders, project.Options.ExcludedFolders)
	merged.Options.ExcludedFiles = unionStrings(base.Options.ExcludedFiles, project.Options.ExcludedFiles)
	merged.Options.ExcludePatterns = unionStrings(base.Options.ExcludePatterns, project.Options.ExcludePatterns)

	return &merged
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// ResolveThreads returns Options.Threads with 0 resolved to NumCPU.
func (c *Config) ResolveThreads() int {
	if c.Options.Threads > 0 {
		return c.Options.Threads
	}
	return runtime.NumCPU()
}

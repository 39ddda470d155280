package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// configFileName is the project/home-directory config file this package looks for.
const configFileName = ".samuraizer.kdl"

// LoadKDL attempts to load configuration from a .samuraizer.kdl file under
// projectRoot. It returns (nil, nil) when the file doesn't exist, which
// callers treat as "fall back to built-in defaults".
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, configFileName)
	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", configFileName, err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	if cfg.Project.Root != "" {
		if filepath.IsAbs(cfg.Project.Root) {
			cfg.Project.Root = filepath.Clean(cfg.Project.Root)
		} else {
			cfg.Project.Root = filepath.Clean(filepath.Join(projectRoot, cfg.Project.Root))
		}
	} else if absRoot, err := filepath.Abs(projectRoot); err == nil {
		cfg.Project.Root = absRoot
	} else {
		cfg.Project.Root = projectRoot
	}

	if cfg.Cache.Dir != "" && !filepath.IsAbs(cfg.Cache.Dir) {
		cfg.Cache.Dir = filepath.Clean(filepath.Join(projectRoot, cfg.Cache.Dir))
	}

	return cfg, nil
}

// parseKDL parses the body of a .samuraizer.kdl document into a Config,
// starting from built-in defaults and overriding whatever nodes are present.
func parseKDL(content string) (*Config, error) {
	defaultRoot, err := os.Getwd()
	if err != nil {
		defaultRoot = "."
	}
	cfg := defaultConfig(defaultRoot)

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "options":
			parseOptionsSection(&cfg.Options, n)
		case "cache":
			parseCacheSection(&cfg.Cache, n)
		case "performance":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_goroutines":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.MaxGoroutines = v
					}
				case "startup_delay_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.StartupDelayMs = v
					}
				}
			}
		}
	}

	return cfg, nil
}

func parseOptionsSection(opts *Options, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "max_file_size":
			if s, ok := firstStringArg(cn); ok {
				if sz, err := parseSize(s); err == nil {
					opts.MaxFileSize = sz
				}
			} else if v, ok := firstIntArg(cn); ok {
				opts.MaxFileSize = int64(v)
			}
		case "include_binary":
			if b, ok := firstBoolArg(cn); ok {
				opts.IncludeBinary = b
			}
		case "excluded_folders":
			if v := collectStringArgs(cn); len(v) > 0 {
				opts.ExcludedFolders = v
			}
		case "excluded_files":
			if v := collectStringArgs(cn); len(v) > 0 {
				opts.ExcludedFiles = v
			}
		case "exclude_patterns":
			if v := collectStringArgs(cn); len(v) > 0 {
				opts.ExcludePatterns = v
			}
		case "follow_symlinks":
			if b, ok := firstBoolArg(cn); ok {
				opts.FollowSymlinks = b
			}
		case "image_extensions":
			if v := collectStringArgs(cn); len(v) > 0 {
				opts.ImageExtensions = v
			}
		case "threads":
			if v, ok := firstIntArg(cn); ok {
				opts.Threads = v
			}
		case "encoding":
			if s, ok := firstStringArg(cn); ok {
				opts.Encoding = s
			}
		case "hash_algorithm":
			if s, ok := firstStringArg(cn); ok {
				opts.HashAlgorithm = s
			} else if b, ok := firstBoolArg(cn); ok && !b {
				opts.HashAlgorithm = ""
			}
		case "chunk_size":
			if v, ok := firstIntArg(cn); ok {
				opts.ChunkSize = v
			}
		case "max_pending_tasks":
			if v, ok := firstIntArg(cn); ok {
				opts.MaxPendingTasks = v
			}
		}
	}
}

func parseCacheSection(cache *CacheConfig, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "enabled":
			if b, ok := firstBoolArg(cn); ok {
				cache.Enabled = b
			}
		case "dir":
			if s, ok := firstStringArg(cn); ok {
				cache.Dir = s
			}
		case "max_size_mb":
			if v, ok := firstIntArg(cn); ok {
				cache.MaxSizeMB = int64(v)
			}
		}
	}
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		log.Printf("WARNING: invalid float value for '%s' in KDL config, expected number but got %T", nodeName(n), n.Arguments[0].Value)
		return 0, false
	}
}

// collectStringArgs reads a list of strings either from a node's inline
// arguments (exclude_patterns "a" "b") or its block children
// (exclude_patterns { "a"; "b" }).
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// parseSize handles size strings like "10MB", "500KB", "1GB".
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		multiplier = 1
		numStr = strings.TrimSuffix(s, "B")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return 0, err
	}

	return num * multiplier, nil
}

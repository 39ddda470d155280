package config

import (
	"errors"
	"fmt"
	"runtime"

	lcierrors "github.com/standardbeagle/samuraizer-go/internal/errors"
)

// Validator validates configuration and sets smart defaults.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults.
// Returns an error if validation fails.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return lcierrors.NewConfigError("project", "", err)
	}

	if err := v.validateOptions(&cfg.Options); err != nil {
		return lcierrors.NewConfigError("options", "", err)
	}

	if err := v.validateCacheConfig(&cfg.Cache); err != nil {
		return lcierrors.NewConfigError("cache", "", err)
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	return nil
}

func (v *Validator) validateOptions(opts *Options) error {
	if opts.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive, got %d", opts.MaxFileSize)
	}
	if opts.Threads < 0 {
		return fmt.Errorf("threads cannot be negative, got %d", opts.Threads)
	}
	if opts.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be at least 1, got %d", opts.ChunkSize)
	}
	if opts.MaxPendingTasks < 0 {
		return fmt.Errorf("max_pending_tasks cannot be negative, got %d", opts.MaxPendingTasks)
	}
	for _, ext := range opts.ImageExtensions {
		if len(ext) == 0 || ext[0] != '.' {
			return fmt.Errorf("image_extensions entries must start with '.', got %q", ext)
		}
	}
	return nil
}

func (v *Validator) validateCacheConfig(cache *CacheConfig) error {
	if cache.MaxSizeMB < 0 {
		return fmt.Errorf("cache max_size_mb cannot be negative, got %d", cache.MaxSizeMB)
	}
	return nil
}

// setSmartDefaults fills in zero-valued fields that are meant to be
// auto-detected rather than left at zero.
func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Options.Threads == 0 {
		numCPU := runtime.NumCPU()
		cfg.Options.Threads = max(1, numCPU-1)
	}

	if cfg.Performance.MaxGoroutines == 0 {
		cfg.Performance.MaxGoroutines = cfg.Options.Threads
	}

	if cfg.Options.ChunkSize == 0 {
		cfg.Options.ChunkSize = DefaultChunkSize
	}

	if cfg.Options.MaxPendingTasks == 0 {
		cfg.Options.MaxPendingTasks = DefaultMaxPendingTasks
	}

	if cfg.Cache.MaxSizeMB == 0 {
		cfg.Cache.MaxSizeMB = DefaultCacheMaxSizeMB
	}

	if len(cfg.Options.ImageExtensions) == 0 {
		cfg.Options.ImageExtensions = defaultImageExtensions()
	}
}

// ValidateConfig is a convenience function for quick validation.
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}

// Package config defines the JSON configuration shared by the cogs tools and how it is read and
// validated.
package config

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/skeletex/cogs/aabbtree"
	"github.com/skeletex/cogs/logging"
	"github.com/skeletex/cogs/octree"
	"github.com/skeletex/cogs/selection"
)

// Config is the top level configuration.
type Config struct {
	Octree    octree.Config    `json:"octree"`
	AabbTree  AabbTreeConfig   `json:"aabb_tree"`
	Selection selection.Config `json:"selection"`
	Log       logging.Options  `json:"log"`

	// ConfigFilePath is the path the config was read from, if any.
	ConfigFilePath string `json:"-"`
}

// AabbTreeConfig controls triangle hierarchy construction.
type AabbTreeConfig struct {
	MaxDepth int `json:"max_depth"`
}

// Validate ensures all parts of the config are valid.
func (cfg *AabbTreeConfig) Validate(path string) error {
	if cfg.MaxDepth < 0 {
		return errors.Errorf("%s: max_depth must not be negative, got %d", path, cfg.MaxDepth)
	}
	return nil
}

// Options returns the hierarchy options matching the config.
func (cfg *AabbTreeConfig) Options() []aabbtree.Option {
	return []aabbtree.Option{aabbtree.WithMaxDepth(cfg.MaxDepth)}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Octree:   octree.DefaultConfig(),
		AabbTree: AabbTreeConfig{MaxDepth: aabbtree.DefaultMaxDepth},
	}
}

// Validate checks every section and returns all problems found.
func (c *Config) Validate() error {
	var allErrs error
	allErrs = multierr.Append(allErrs, c.Octree.Validate("octree"))
	allErrs = multierr.Append(allErrs, c.AabbTree.Validate("aabb_tree"))
	allErrs = multierr.Append(allErrs, c.Selection.Validate("selection"))
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		allErrs = multierr.Append(allErrs, errors.Wrap(err, "log"))
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 {
		allErrs = multierr.Append(allErrs, errors.New("log: max_size_mb and max_backups must not be negative"))
	}
	return allErrs
}

// SelectionOptions returns the selector options matching the config.
func (c *Config) SelectionOptions() []selection.Option {
	return []selection.Option{
		selection.WithConfig(c.Selection),
		selection.WithOctreeConfig(c.Octree),
	}
}

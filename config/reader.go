package config

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"go.uber.org/multierr"

	"github.com/skeletex/cogs/logging"
)

// Read reads a config from the given file. Sections and keys that are not set keep their defaults.
func Read(filePath string, logger logging.Logger) (cfg *Config, err error) {
	//nolint:gosec
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config file %q", filePath)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	cfg, err = FromReader(f, logger)
	if err != nil {
		return nil, errors.Wrapf(err, "bad config file %q", filePath)
	}
	cfg.ConfigFilePath = filePath
	return cfg, nil
}

// FromReader reads and validates a config from the reader. The input is JSON5, so hand written
// files may carry comments and unquoted keys.
func FromReader(r io.Reader, logger logging.Logger) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read config")
	}
	var attrs AttributeMap
	if err := json5.Unmarshal(data, &attrs); err != nil {
		return nil, errors.Wrap(err, "cannot parse config")
	}
	return FromAttributes(attrs, logger)
}

// FromAttributes decodes and validates a config from an already parsed JSON object.
func FromAttributes(attrs AttributeMap, logger logging.Logger) (*Config, error) {
	cfg := Default()
	if err := attrs.Decode(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger != nil {
		for _, section := range []string{"octree", "aabb_tree", "selection", "log"} {
			if !attrs.Has(section) {
				logger.Debugw("config section not set, using defaults", "section", section)
			}
		}
	}
	return cfg, nil
}

package handlers

import (
	"fmt"

	"github.com/kapctl/kap/internal/config"
)

// Options are the command-line inputs shared by the handlers.
type Options struct {
	ConfigPath string
	Verbosity  int
	Overrides  config.Overrides
}

var findConfigFile = config.FindConfigFile

func configPath(opts Options) (string, error) {
	if opts.ConfigPath != "" {
		return opts.ConfigPath, nil
	}
	return findConfigFile()
}

// loadSpec merges the command-line overrides over the persisted file and the
// defaults and validates the result. Nothing is written.
func loadSpec(opts Options) (*config.ClusterSpec, error) {
	path, err := configPath(opts)
	if err != nil {
		return nil, err
	}

	persisted, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	spec := opts.Overrides.Apply(persisted)
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return spec, nil
}

// persistSpec stores an accepted spec for the next invocation. The
// orchestrator calls it once the request passed its checks.
func persistSpec(opts Options) func(*config.ClusterSpec) error {
	return func(spec *config.ClusterSpec) error {
		path, err := configPath(opts)
		if err != nil {
			return err
		}
		return config.Save(spec, path)
	}
}

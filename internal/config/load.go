package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Load reads the configuration at path from fsys on top of the built-in
// defaults. A directory is taken to hold config.yaml. A missing file
// yields the defaults. Keys the configuration does not know are an error.
func Load(fsys afero.Fs, path string) (*Configuration, error) {
	out := defaultConfig()
	out.configFs = fsys

	if path == "" {
		return out, nil
	}

	if isDir, err := afero.IsDir(fsys, path); err == nil && isDir {
		path = filepath.Join(path, ConfigurationName)
	}

	configContents, err := afero.ReadFile(fsys, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return out, nil
	case err != nil:
		return nil, err
	}

	if err := yaml.UnmarshalStrict(configContents, out); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

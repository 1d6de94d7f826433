// Package config provides the configuration loader for the engine cache.
package config

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/accelforge/enginecache/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Loader reads the pipeline configuration from enginecache.yaml.
type Loader struct {
	fs FileSystem
}

// NewLoader creates a new Loader.
func NewLoader(filesystem FileSystem) *Loader {
	if filesystem == nil {
		filesystem = NewOSFS()
	}
	return &Loader{fs: filesystem}
}

// Load searches upward from cwd for enginecache.yaml and returns the resolved
// cache configuration. A missing file is not an error: the defaults apply.
func (l *Loader) Load(cwd string) (*domain.CacheConfig, error) {
	path, found := l.findConfiguration(cwd)
	if !found {
		// No file: defaults apply, with the relative default root anchored at
		// cwd just as a file found there would anchor it.
		cfg := resolve(File{}, cwd)
		return &cfg, nil
	}

	data, err := l.fs.ReadFile(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", path)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "path", path)
	}

	cfg := resolve(file, filepath.Dir(path))
	return &cfg, nil
}

// findConfiguration walks from cwd toward the filesystem root looking for the
// config file, the same discovery rule build tools use for their manifests.
func (l *Loader) findConfiguration(cwd string) (string, bool) {
	currentDir := cwd
	for {
		candidate := filepath.Join(currentDir, domain.ConfigFileName)
		if _, err := l.fs.Stat(candidate); err == nil {
			return candidate, true
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", false
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", false
		}
		currentDir = parentDir
	}
}

// resolve merges the parsed file over the defaults. A relative cache root is
// anchored at the config file's directory so the cache location does not
// depend on the process working directory.
func resolve(file File, baseDir string) domain.CacheConfig {
	cfg := domain.DefaultCacheConfig()

	if file.CacheEnabled != nil {
		cfg.CacheEnabled = *file.CacheEnabled
	}
	if file.ReuseEnabled != nil {
		cfg.ReuseEnabled = *file.ReuseEnabled
	}
	if file.CacheRoot != "" {
		cfg.CacheRoot = file.CacheRoot
	}
	if !filepath.IsAbs(cfg.CacheRoot) {
		cfg.CacheRoot = filepath.Join(baseDir, cfg.CacheRoot)
	}
	if file.CapacityBytes != nil {
		cfg.CapacityBytes = *file.CapacityBytes
	}
	cfg.Compress = file.Compress
	cfg.LogJSON = file.LogJSON

	return cfg
}

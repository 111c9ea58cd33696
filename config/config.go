// Package config builds a [gedbpromise.Config] from a YAML file, dotenv files
// and GEDBP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/vinicius-lino-figueiredo/gedbpromise"
	"github.com/vinicius-lino-figueiredo/gedbpromise/pkg/logger"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of the environment variables read by [Load].
const EnvPrefix = "gedbp"

// DefaultEnvFiles are the dotenv files loaded when none is given.
var DefaultEnvFiles = []string{".env", ".env.local"}

// Environment keys. GEDBP_ is prepended and dashes become underscores, so
// "in-memory-only" is read from GEDBP_IN_MEMORY_ONLY.
const (
	KeyFilename               = "filename"
	KeyAutoload               = "autoload"
	KeyInMemoryOnly           = "in-memory-only"
	KeyTimestampData          = "timestamp-data"
	KeyCorruptAlertThreshold  = "corrupt-alert-threshold"
	KeyFileMode               = "file-mode"
	KeyDirMode                = "dir-mode"
	KeyAutocompactionInterval = "autocompaction-interval"
	KeyLogLevel               = "log-level"
)

// Load reads the YAML file at path, then applies the environment. Missing
// files are skipped. Dotenv files never override variables that are
// already set. File modes are read from the environment as octal numbers.
func Load(path string, envFiles ...string) (gedbpromise.Config, error) {
	var cfg gedbpromise.Config

	if len(envFiles) == 0 {
		envFiles = DefaultEnvFiles
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	if err := loadFile(path, &cfg); err != nil {
		return cfg, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := applyEnv(v, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *gedbpromise.Config) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func applyEnv(v *viper.Viper, cfg *gedbpromise.Config) error {
	if v.IsSet(KeyFilename) {
		cfg.Filename = v.GetString(KeyFilename)
	}
	if v.IsSet(KeyAutoload) {
		cfg.Autoload = v.GetBool(KeyAutoload)
	}
	if v.IsSet(KeyInMemoryOnly) {
		cfg.InMemoryOnly = v.GetBool(KeyInMemoryOnly)
	}
	if v.IsSet(KeyTimestampData) {
		cfg.TimestampData = v.GetBool(KeyTimestampData)
	}
	if v.IsSet(KeyCorruptAlertThreshold) {
		t := v.GetFloat64(KeyCorruptAlertThreshold)
		cfg.CorruptAlertThreshold = &t
	}
	if v.IsSet(KeyAutocompactionInterval) {
		cfg.AutocompactionInterval = v.GetDuration(KeyAutocompactionInterval)
	}
	for key, target := range map[string]*os.FileMode{KeyFileMode: &cfg.FileMode, KeyDirMode: &cfg.DirMode} {
		if !v.IsSet(key) {
			continue
		}
		mode, err := strconv.ParseUint(v.GetString(key), 8, 32)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*target = os.FileMode(mode)
	}
	if v.IsSet(KeyLogLevel) {
		l, err := logger.NewWithLevel(v.GetString(KeyLogLevel))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
		}
		cfg.Logger = l
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rileyhilliard/kstats/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the per-directory config file name.
	ConfigFileName = ".kstats.yaml"
	// GlobalConfigDir is the directory for the user config, relative to home.
	GlobalConfigDir = ".config/kstats"
	// GlobalConfigFile is the user config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. KSTATS_CONCURRENCY.
	EnvPrefix = "KSTATS"
)

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .kstats.yaml in the current directory
// 3. ~/.config/kstats/config.yaml
//
// Returns the path to the config file, or empty string if none exists.
func Find(explicit string) (string, error) {
	if explicit != "" {
		explicit = ExpandTilde(explicit)
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, ConfigFileName)
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		global := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(global); err == nil {
			return global, nil
		}
	}

	return "", nil
}

// Load builds the configuration from defaults, the config file found by
// Find(explicit), and KSTATS_* environment variables, in increasing order of
// precedence. It returns the config and the file it read ("" if none).
// The result is not validated; callers apply flag overrides and then Validate.
func Load(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, path, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file "+path,
				"Check the file exists and is valid YAML")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		timeoutHook(),
		rangeListHook(),
	))); err != nil {
		return nil, path, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the values in "+describeSource(path))
	}

	cfg.SSH.IdentityFile = ExpandTilde(cfg.SSH.IdentityFile)
	cfg.SSH.KnownHostsFile = ExpandTilde(cfg.SSH.KnownHostsFile)
	return cfg, path, nil
}

// setDefaults registers every key so that environment overrides apply to
// keys missing from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("timeout", d.Timeout.String())
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("format", d.Format)
	v.SetDefault("transport", d.Transport)
	v.SetDefault("exclude", d.Exclude)
	v.SetDefault("confirm_threshold", d.ConfirmThreshold)
	v.SetDefault("color", d.Color)
	v.SetDefault("ssh.user", d.SSH.User)
	v.SetDefault("ssh.port", d.SSH.Port)
	v.SetDefault("ssh.identity_file", d.SSH.IdentityFile)
	v.SetDefault("ssh.known_hosts_file", d.SSH.KnownHostsFile)
	v.SetDefault("ssh.strict_host_key_checking", d.SSH.StrictHostKeyChecking)
	v.SetDefault("ssh.command", d.SSH.Command)
	v.SetDefault("libvirt.uri", d.Libvirt.URI)
}

// ParseTimeout accepts a Go duration ("45s", "1m30s") or a bare number of
// seconds ("30", "2.5").
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%q is neither a duration like 30s nor a number of seconds", s)
	}
	return d, nil
}

// timeoutHook decodes durations written as strings or bare seconds.
func timeoutHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch from.Kind() {
		case reflect.String:
			return ParseTimeout(data.(string))
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return time.Duration(reflect.ValueOf(data).Uint()) * time.Second, nil
		case reflect.Float32, reflect.Float64:
			return time.Duration(reflect.ValueOf(data).Float() * float64(time.Second)), nil
		}
		return data, nil
	}
}

// rangeListHook keeps a string such as KSTATS_EXCLUDE="a[1,3],b" whole.
// Range expressions already separate hosts with commas, so splitting here
// would break bracket groups.
func rangeListHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string(nil)) {
			return data, nil
		}
		if strings.TrimSpace(data.(string)) == "" {
			return []string{}, nil
		}
		return []string{data.(string)}, nil
	}
}

func describeSource(path string) string {
	if path == "" {
		return "your " + EnvPrefix + "_* environment variables"
	}
	return path
}

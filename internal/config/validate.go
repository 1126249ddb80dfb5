package config

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/kstats/internal/errors"
)

var (
	validFormats    = []string{FormatTable, FormatJSON, FormatYAML}
	validTransports = []string{TransportSSH, TransportLibvirt, TransportExec}
	validColors     = []string{ColorAuto, ColorAlways, ColorNever}
)

// Validate checks the merged config and returns a CONFIG error describing
// the first problem found.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try running the command again.")
	}

	if cfg.Timeout <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Timeout must be positive, got %s", cfg.Timeout),
			"Use a duration like 30s or a number of seconds: --timeout 30")
	}

	if cfg.Concurrency < 1 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Concurrency must be at least 1, got %d", cfg.Concurrency),
			"Pick how many hosts to poll at once, e.g. --concurrency 16")
	}

	if cfg.ConfirmThreshold < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("confirm_threshold can't be negative, got %d", cfg.ConfirmThreshold),
			"Use 0 to turn the confirmation prompt off")
	}

	if err := validateChoice("format", cfg.Format, validFormats); err != nil {
		return err
	}
	if err := validateChoice("transport", cfg.Transport, validTransports); err != nil {
		return err
	}
	if err := validateChoice("color", cfg.Color, validColors); err != nil {
		return err
	}

	if cfg.SSH.Port < 0 || cfg.SSH.Port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("ssh.port %d is out of range", cfg.SSH.Port),
			"Use a port between 1 and 65535, or 0 to follow ~/.ssh/config")
	}

	switch cfg.Transport {
	case TransportSSH, TransportExec:
		if strings.TrimSpace(cfg.SSH.Command) == "" {
			return errors.New(errors.ErrConfig,
				"ssh.command is empty",
				"Set it to a command that prints domstats, e.g. 'virsh --readonly domstats --raw'")
		}
	case TransportLibvirt:
		if !strings.Contains(cfg.Libvirt.URI, HostPlaceholder) {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("libvirt.uri %q has no %s placeholder", cfg.Libvirt.URI, HostPlaceholder),
				"Use a template like qemu+tcp://{host}/system")
		}
		scheme, _, _ := strings.Cut(cfg.Libvirt.URI, "://")
		if _, via, ok := strings.Cut(scheme, "+"); ok && via != "tcp" && via != "unix" {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("libvirt.uri uses unsupported transport '%s'", via),
				"Use qemu+tcp:// or qemu+unix://")
		}
	}

	return nil
}

func validateChoice(key, value string, valid []string) error {
	for _, v := range valid {
		if value == v {
			return nil
		}
	}
	return errors.New(errors.ErrConfig,
		fmt.Sprintf("Unknown %s '%s'", key, value),
		fmt.Sprintf("Valid values: %s", strings.Join(valid, ", ")))
}

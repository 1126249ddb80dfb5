package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/kstats/internal/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "Timeout must be positive"},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, "Timeout must be positive"},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, "Concurrency must be at least 1"},
		{"negative threshold", func(c *Config) { c.ConfirmThreshold = -1 }, "confirm_threshold"},
		{"unknown format", func(c *Config) { c.Format = "xml" }, "Unknown format 'xml'"},
		{"unknown transport", func(c *Config) { c.Transport = "snmp" }, "Unknown transport 'snmp'"},
		{"unknown color", func(c *Config) { c.Color = "rainbow" }, "Unknown color 'rainbow'"},
		{"port out of range", func(c *Config) { c.SSH.Port = 70000 }, "ssh.port"},
		{"empty ssh command", func(c *Config) { c.SSH.Command = "  " }, "ssh.command is empty"},
		{"empty command with exec", func(c *Config) { c.Transport = TransportExec; c.SSH.Command = "" }, "ssh.command is empty"},
		{"empty command ignored for libvirt", func(c *Config) { c.Transport = TransportLibvirt; c.SSH.Command = "" }, ""},
		{"uri without placeholder", func(c *Config) { c.Transport = TransportLibvirt; c.Libvirt.URI = "qemu:///system" }, "placeholder"},
		{"ssh libvirt transport", func(c *Config) { c.Transport = TransportLibvirt; c.Libvirt.URI = "qemu+ssh://{host}/system" }, "unsupported transport 'ssh'"},
		{"tcp libvirt transport", func(c *Config) { c.Transport = TransportLibvirt; c.Libvirt.URI = "qemu+tcp://{host}:16510/system" }, ""},
		{"yaml format", func(c *Config) { c.Format = FormatYAML }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	err := Validate(nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

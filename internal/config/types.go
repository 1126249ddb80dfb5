package config

import "time"

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Transports.
const (
	TransportSSH     = "ssh"
	TransportLibvirt = "libvirt"
	TransportExec    = "exec"
)

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// HostPlaceholder is replaced by the target host in libvirt.uri.
const HostPlaceholder = "{host}"

// Config is the complete kstats configuration after file, environment and
// flag layers are merged.
type Config struct {
	// Timeout bounds each host's collection.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Concurrency caps how many hosts are polled at once.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`

	Format    string `yaml:"format" mapstructure:"format"`
	Transport string `yaml:"transport" mapstructure:"transport"`

	// Exclude lists range expressions that are never polled.
	Exclude []string `yaml:"exclude" mapstructure:"exclude"`

	// ConfirmThreshold asks before polling more hosts than this on a TTY.
	// Zero disables the prompt.
	ConfirmThreshold int `yaml:"confirm_threshold" mapstructure:"confirm_threshold"`

	Color string `yaml:"color" mapstructure:"color"`

	SSH     SSHConfig     `yaml:"ssh" mapstructure:"ssh"`
	Libvirt LibvirtConfig `yaml:"libvirt" mapstructure:"libvirt"`
}

// SSHConfig controls the ssh and exec transports.
type SSHConfig struct {
	// User overrides ~/.ssh/config and $USER.
	User string `yaml:"user" mapstructure:"user"`

	// Port overrides ~/.ssh/config; 0 keeps the config or 22.
	Port int `yaml:"port" mapstructure:"port"`

	IdentityFile          string `yaml:"identity_file" mapstructure:"identity_file"`
	KnownHostsFile        string `yaml:"known_hosts_file" mapstructure:"known_hosts_file"`
	StrictHostKeyChecking bool   `yaml:"strict_host_key_checking" mapstructure:"strict_host_key_checking"`

	// Command prints `virsh domstats --raw` output on the hypervisor.
	Command string `yaml:"command" mapstructure:"command"`
}

// LibvirtConfig controls the libvirt transport.
type LibvirtConfig struct {
	// URI is a libvirt connection URI template containing {host}.
	URI string `yaml:"uri" mapstructure:"uri"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout:          30 * time.Second,
		Concurrency:      16,
		Format:           FormatTable,
		Transport:        TransportSSH,
		Exclude:          []string{},
		ConfirmThreshold: 256,
		Color:            ColorAuto,
		SSH: SSHConfig{
			StrictHostKeyChecking: true,
			Command:               "virsh --readonly domstats --raw",
		},
		Libvirt: LibvirtConfig{
			URI: "qemu+tcp://" + HostPlaceholder + "/system",
		},
	}
}

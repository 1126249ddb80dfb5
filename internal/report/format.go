package report

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/kstats/internal/errors"
)

// Format selects how a ClusterReport is written.
type Format string

const (
	Table Format = "table"
	JSON  Format = "json"
	YAML  Format = "yaml"
)

// ParseFormat accepts a format name case-insensitively. The empty string
// selects Table.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", Table:
		return Table, nil
	case JSON:
		return JSON, nil
	case YAML:
		return YAML, nil
	}
	return "", errors.New(errors.ErrConfig,
		fmt.Sprintf("Unknown output format '%s'", s),
		"Use one of: table, json, yaml")
}

// Machine reports whether f is meant for programs rather than people.
func (f Format) Machine() bool {
	return f == JSON || f == YAML
}

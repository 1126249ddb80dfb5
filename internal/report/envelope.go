package report

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// Envelope wraps machine-readable output in a consistent structure.
// Every json and yaml document kstats writes uses it.
type Envelope struct {
	Success bool           `json:"success" yaml:"success"`
	Data    interface{}    `json:"data,omitempty" yaml:"data,omitempty"`
	Error   *EnvelopeError `json:"error,omitempty" yaml:"error,omitempty"`
}

// EnvelopeError provides structured error information for machine parsing.
type EnvelopeError struct {
	Code       string `json:"code" yaml:"code"`
	Message    string `json:"message" yaml:"message"`
	Suggestion string `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

// WriteEnvelope writes env as json or yaml. Table falls back to json since
// an envelope has no human layout.
func WriteEnvelope(w io.Writer, format Format, env Envelope) error {
	if format == YAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(env); err != nil {
			return err
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const redacted = "***"

// Redacted returns a copy of cfg with secrets masked, safe for logging and dumps.
func Redacted(cfg AppConfig) AppConfig {
	out := cfg
	if out.Cache.RedisPassword != "" {
		out.Cache.RedisPassword = redacted
	}
	return out
}

// Dump writes the redacted effective configuration as yaml or json.
func Dump(w io.Writer, cfg AppConfig, format string) error {
	safe := Redacted(cfg)
	switch format {
	case "", "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(safe); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(safe)
	default:
		return fmt.Errorf("unknown dump format %q (yaml|json)", format)
	}
}

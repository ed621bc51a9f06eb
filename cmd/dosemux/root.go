// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/dosemux/internal/config"
	"github.com/ManuGH/dosemux/internal/log"
	"github.com/ManuGH/dosemux/internal/version"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:           "dosemux",
		Short:         "Customize and optimize exposure doses of MSLA print files",
		Version:       version.String(),
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// Safe defaults until a command loads the configuration.
			log.Configure(log.Config{
				Level:   g.logLevel,
				Output:  cmd.ErrOrStderr(),
				Service: "dosemux",
				Version: version.Version,
				Pretty:  true,
			})
		},
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to YAML configuration file (default $DOSEMUX_DATA/config.yaml if present)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newOptimizeCmd(g),
		newInspectCmd(),
		newRenderCmd(g),
		newLayoutCmd(g),
		newServeCmd(g),
		newWatchCmd(g),
		newJobsCmd(g),
		newConfigCmd(g),
		newVersionCmd(),
	)
	return root
}

// resolveConfigPath returns the explicit --config path, or
// $DOSEMUX_DATA/config.yaml when that file exists.
func (g *globalOptions) resolveConfigPath() string {
	if p := strings.TrimSpace(g.configPath); p != "" {
		return p
	}
	dataDir := strings.TrimSpace(config.ParseString("DOSEMUX_DATA", ""))
	if dataDir == "" {
		return ""
	}
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}

// load reads the configuration and reconfigures logging from it. Pretty
// selects console output for interactive commands; serve logs JSON.
func (g *globalOptions) load(cmd *cobra.Command, pretty bool) (config.AppConfig, string, error) {
	path := g.resolveConfigPath()
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		return cfg, path, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Output:  cmd.ErrOrStderr(),
		Service: cfg.LogService,
		Version: cfg.Version,
		Pretty:  pretty,
	})
	return cfg, path, nil
}

func sourceLabel(path string) string {
	if path == "" {
		return "env+defaults"
	}
	return path
}

// intList parses a comma separated list of component IDs.
func intList(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var id int
		if _, err := fmt.Sscanf(part, "%d", &id); err != nil {
			return nil, fmt.Errorf("invalid component id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

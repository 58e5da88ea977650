// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/spf13/cobra"
)

// Execute builds and runs the magnets command tree, mirroring the
// teacher's root/subcommand shape (cmd/qui/db_command.go's RunE
// convention) with serve and version in place of qui's db operations.
func Execute() error {
	var configPath string

	root := &cobra.Command{
		Use:   "magnets",
		Short: "Anime torrent matching engine",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to config.toml")

	root.AddCommand(newServeCommand(&configPath))
	root.AddCommand(newVersionCommand())

	return root.Execute()
}

// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// keyLinePattern matches a TOML key assignment line, optionally
// commented out and indented, for the given key.
func keyLinePattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^(\s*)#?\s*` + regexp.QuoteMeta(key) + `\s*=.*$`)
}

// setTOMLKey rewrites the first line assigning key in content to value,
// uncommenting it in place if it was commented out. If no line assigns
// key anywhere (commented or not), value is appended to the end of
// content instead, so a hand-trimmed config file still gets the key.
func setTOMLKey(content, key, value string) string {
	pattern := keyLinePattern(key)
	if pattern.MatchString(content) {
		replaced := false
		return pattern.ReplaceAllStringFunc(content, func(line string) string {
			if replaced {
				return line
			}
			replaced = true
			indent := pattern.FindStringSubmatch(line)[1]
			return fmt.Sprintf("%s%s = %s", indent, key, value)
		})
	}
	return strings.TrimRight(content, "\n") + fmt.Sprintf("\n%s = %s\n", key, value)
}

// updateLogSettingsInTOML updates the logLevel, logPath, logMaxSize,
// and logMaxBackups keys in content in place, uncommenting them if the
// generated config shipped them commented out, rather than appending a
// new log-settings section after whatever the user already has.
func updateLogSettingsInTOML(content, logLevel, logPath string, logMaxSize, logMaxBackups int) string {
	content = setTOMLKey(content, "logLevel", fmt.Sprintf("%q", logLevel))
	content = setTOMLKey(content, "logPath", fmt.Sprintf("%q", logPath))
	content = setTOMLKey(content, "logMaxSize", fmt.Sprintf("%d", logMaxSize))
	content = setTOMLKey(content, "logMaxBackups", fmt.Sprintf("%d", logMaxBackups))
	return content
}

// PersistLogSettings rewrites configPath's logLevel, logPath,
// logMaxSize, and logMaxBackups keys in place, preserving every other
// line untouched. Nothing in the processor calls it; the admin API has
// no config update endpoint.
func PersistLogSettings(configPath, logLevel, logPath string, logMaxSize, logMaxBackups int) error {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("cannot read config file %s: %w", configPath, err)
	}
	updated := updateLogSettingsInTOML(string(raw), logLevel, logPath, logMaxSize, logMaxBackups)
	if err := os.WriteFile(configPath, []byte(updated), 0644); err != nil {
		return fmt.Errorf("cannot write config file %s: %w", configPath, err)
	}
	return nil
}

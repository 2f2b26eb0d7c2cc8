// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the GUI
// client.
//
// Configuration is loaded from a single file specified by either the
// MYCROFT_GUI_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no ~/.config
// discovery, and no automatic file search. This ensures deterministic,
// auditable configuration with no hidden overrides.
//
// Unlike most deployments of this doctrine, the config file itself is
// optional: the zero configuration targets a backend on the local
// machine at its well-known port, which is the common case for an
// embedded voice assistant display. [Load] falls back to [Default]
// when the environment variable is unset; an explicitly named file
// that cannot be read is still an error.
//
// Key exports:
//
//   - [Config] -- Backend endpoint and Log settings
//   - [Default] -- a Config targeting a local backend
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other packages in this module.
package config

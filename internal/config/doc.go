// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

// Package config loads and validates Gateward configuration.
//
// Configuration is layered with Koanf v2, in order of precedence:
//
//  1. Built-in defaults (lowest)
//  2. Optional YAML config file
//  3. Environment variables (highest)
//
// Environment variables map to config paths through an explicit
// allow-list, so stray variables never leak into the configuration.
// The config file path can be forced with CONFIG_PATH.
package config

// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

// Package logging provides centralized zerolog-based structured logging
// for Gateward.
//
// The package exposes a single global logger configured once at startup
// plus request-scoped helpers that stamp every line with the request id.
//
// # Quick Start
//
//	import "github.com/tomtom215/gateward/internal/logging"
//
//	// Initialize at application startup
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	// Log messages
//	logging.Info().Msg("server starting")
//	logging.Error().Err(err).Msg("operation failed")
//
//	// With request context
//	logging.Ctx(ctx).Debug().Str("operation", op).Msg("decision made")
//
// Always terminate log chains with .Msg() or .Send(); an unterminated
// chain is silently dropped by zerolog.
package logging

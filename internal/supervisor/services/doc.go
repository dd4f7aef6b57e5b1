// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

// Package services wraps components that don't natively speak suture's
// Serve(ctx) contract: the HTTP server's blocking ListenAndServe and
// the periodic retention sweeps.
package services

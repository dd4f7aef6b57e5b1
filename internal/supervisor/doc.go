// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

// Package supervisor builds the suture supervision tree the gateway
// runs under. The tree has two layers: the audit layer (event pipeline,
// stream hub, retention janitors) and the api layer (HTTP server).
// Layering isolates failures: an audit pipeline crash restarts inside
// its own layer while the API keeps serving and denying requests.
package supervisor

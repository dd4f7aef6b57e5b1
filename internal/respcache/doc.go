// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

// Package respcache is the server's private response cache, built to
// stay consistent with per-caller authorization.
//
// The cache stores successful GET responses together with the
// revalidation callbacks the authorization layer registered while the
// response was produced. It implements the cache side of the authz
// revalidation protocol: the middleware places a callback collector on
// the request context before the authorization filter runs, and the
// collected (token, callback) pairs are kept on the stored entry.
//
// On a later lookup the entry's callbacks run with the CURRENT request
// context. Only when every callback reports Valid are the stored bytes
// served; a single Bypass sends this one access to the origin while the
// entry itself stays untouched. Because only GET responses with status
// 200 are stored, a denial produced by the fall-through never replaces
// a cached response.
//
// Cache-Control handling is deliberately asymmetric: "no-store" and
// "max-age" are honored when deciding whether and how long to store,
// while "private" and "s-maxage" address downstream shared caches, not
// this one, and are preserved verbatim on the stored response.
package respcache

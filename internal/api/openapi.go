// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package api

import (
	_ "embed"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/gateward/internal/logging"
)

// openapiDoc is the hand-authored API document. It is served statically
// rather than generated, so the contract is reviewed like code.
//
//go:embed openapi.json
var openapiDoc []byte

// OpenAPIDoc serves the raw OpenAPI document.
func OpenAPIDoc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if _, err := w.Write(openapiDoc); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to write OpenAPI document")
	}
}

// SwaggerUI returns the Swagger UI handler pointed at the static
// document.
func SwaggerUI() http.HandlerFunc {
	return httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	)
}

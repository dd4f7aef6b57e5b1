// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package services

import (
	"context"
	"time"

	"github.com/tomtom215/gateward/internal/logging"
)

// JanitorService runs a periodic sweep under supervision. Audit event
// retention and badger value-log GC both run as janitors.
type JanitorService struct {
	name     string
	interval time.Duration
	sweep    func(ctx context.Context) error
}

// NewJanitorService creates a janitor running sweep every interval. An
// interval of zero or less falls back to one hour.
func NewJanitorService(name string, interval time.Duration, sweep func(ctx context.Context) error) *JanitorService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &JanitorService{
		name:     name,
		interval: interval,
		sweep:    sweep,
	}
}

// Serve implements suture.Service. A failed sweep is logged and the
// ticker keeps running; only context cancellation ends the service.
func (j *JanitorService) Serve(ctx context.Context) error {
	logger := logging.WithComponent(j.name)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := j.sweep(ctx); err != nil {
				logger.Warn().Err(err).Msg("Sweep failed")
				continue
			}
			logger.Debug().Msg("Sweep completed")
		}
	}
}

// String implements fmt.Stringer for suture's logging.
func (j *JanitorService) String() string {
	return j.name
}

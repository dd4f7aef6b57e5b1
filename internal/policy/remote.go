// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/gateward/internal/auth"
	"github.com/tomtom215/gateward/internal/config"
	"github.com/tomtom215/gateward/internal/logging"
)

// ErrNoRemoteURL indicates a remote validator was configured without a
// decision endpoint.
var ErrNoRemoteURL = errors.New("remote policy URL is required")

// decisionRequest is the wire contract of the external decision point.
type decisionRequest struct {
	Subject   string   `json:"subject"`
	Roles     []string `json:"roles,omitempty"`
	Operation string   `json:"operation"`
}

type decisionResponse struct {
	Allowed bool `json:"allowed"`
}

// RemoteValidator asks an external policy decision point whether a
// subject may perform an operation. Every transport problem, non-2xx
// response, and open-circuit rejection is returned as an error: the
// decision engine turns those into faults, so an unreachable decision
// point can never silently deny (or allow) anything.
type RemoteValidator struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker[bool]
	url     string
}

// NewRemoteValidator creates the remote validator. The breaker opens
// after BreakerMaxFailures consecutive failures and stays open for
// BreakerOpenTimeout before probing again.
func NewRemoteValidator(cfg config.RemotePolicyConfig) (*RemoteValidator, error) {
	if cfg.URL == "" {
		return nil, ErrNoRemoteURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	openTimeout := cfg.BreakerOpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	client.JSONMarshal = json.Marshal
	client.JSONUnmarshal = json.Unmarshal

	remoteBreakerState.Set(breakerStateValue(gobreaker.StateClosed))

	breaker := gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
		Name:        "policy-decision-point",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", breakerStateLabel(from)).
				Str("to", breakerStateLabel(to)).
				Msg("Policy decision point circuit state changed")
			remoteBreakerState.Set(breakerStateValue(to))
		},
	})

	return &RemoteValidator{
		client:  client,
		breaker: breaker,
		url:     cfg.URL,
	}, nil
}

// HasPermission implements authz.AccessValidator by querying the
// decision point through the circuit breaker.
func (v *RemoteValidator) HasPermission(ctx context.Context, subject auth.Subject, operation string) (bool, error) {
	allowed, err := v.breaker.Execute(func() (bool, error) {
		return v.decide(ctx, subject, operation)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			remoteDecisions.WithLabelValues("rejected").Inc()
			return false, fmt.Errorf("policy decision point unavailable: %w", err)
		}
		remoteDecisions.WithLabelValues("failure").Inc()
		return false, err
	}

	if allowed {
		remoteDecisions.WithLabelValues("allowed").Inc()
	} else {
		remoteDecisions.WithLabelValues("denied").Inc()
	}
	return allowed, nil
}

// decide performs one decision request.
func (v *RemoteValidator) decide(ctx context.Context, subject auth.Subject, operation string) (bool, error) {
	var result decisionResponse
	resp, err := v.client.R().
		SetContext(ctx).
		SetBody(decisionRequest{
			Subject:   subject.ID,
			Roles:     subject.Roles,
			Operation: operation,
		}).
		SetResult(&result).
		Post(v.url)
	if err != nil {
		return false, fmt.Errorf("failed to query policy decision point: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("policy decision point returned %s", resp.Status())
	}
	return result.Allowed, nil
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func breakerStateLabel(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

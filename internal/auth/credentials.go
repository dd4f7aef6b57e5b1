// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package auth

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// CredentialStore verifies username/password pairs against bcrypt
// hashes. Passwords are hashed once at registration so verification
// never handles plaintext beyond the incoming request.
type CredentialStore struct {
	mu    sync.RWMutex
	users map[string]*credentialEntry

	// dummyHash is compared when the username is unknown so lookup
	// misses cost the same as a wrong password and are not observable
	// through response timing.
	dummyHash []byte
}

type credentialEntry struct {
	passwordHash []byte
	roles        []string
}

// NewCredentialStore creates an empty credential store.
func NewCredentialStore() *CredentialStore {
	// Cost 12 is fixed and valid, so this cannot fail at runtime.
	dummy, err := bcrypt.GenerateFromPassword([]byte("gateward.invalid"), 12)
	if err != nil {
		dummy = nil
	}
	return &CredentialStore{
		users:     make(map[string]*credentialEntry),
		dummyHash: dummy,
	}
}

// Add registers a user with a bcrypt-hashed password and the given
// roles. Passwords must be at least 8 characters.
func (cs *CredentialStore) Add(username, password string, roles ...string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, exists := cs.users[username]; exists {
		return fmt.Errorf("user %q already exists", username)
	}

	stored := make([]string, len(roles))
	copy(stored, roles)
	cs.users[username] = &credentialEntry{
		passwordHash: hash,
		roles:        stored,
	}
	return nil
}

// Verify checks a username/password pair and returns the authenticated
// subject on success. Unknown usernames and wrong passwords both return
// ErrInvalidCredentials.
func (cs *CredentialStore) Verify(username, password string) (Subject, error) {
	cs.mu.RLock()
	entry, exists := cs.users[username]
	cs.mu.RUnlock()

	if !exists {
		if cs.dummyHash != nil {
			_ = bcrypt.CompareHashAndPassword(cs.dummyHash, []byte(password))
		}
		return Subject{}, ErrInvalidCredentials
	}

	// bcrypt.CompareHashAndPassword is timing-safe by design.
	if err := bcrypt.CompareHashAndPassword(entry.passwordHash, []byte(password)); err != nil {
		return Subject{}, ErrInvalidCredentials
	}

	roles := make([]string, len(entry.roles))
	copy(roles, entry.roles)

	return Subject{
		ID:            username,
		Name:          username,
		Roles:         roles,
		Authenticated: true,
	}, nil
}

// Len returns the number of registered users.
func (cs *CredentialStore) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.users)
}

// DecodeBasic extracts the username and password from an HTTP Basic
// Authorization header value. All failure modes wrap
// ErrInvalidCredentials.
func DecodeBasic(authHeader string) (username, password string, err error) {
	if !strings.HasPrefix(authHeader, "Basic ") {
		return "", "", fmt.Errorf("%w: invalid authorization header format", ErrInvalidCredentials)
	}

	encoded := strings.TrimPrefix(authHeader, "Basic ")
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", fmt.Errorf("%w: failed to decode credentials", ErrInvalidCredentials)
	}

	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: invalid credentials format", ErrInvalidCredentials)
	}

	return parts[0], parts[1], nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package watttime

import (
	"context"
	"sync"
	"time"

	"github.com/l5-scheduler/l5/internal/secrets"
	"github.com/l5-scheduler/l5/internal/upstream"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
)

// tokenTTL is kept under the 30 minute lifetime WattTime issues tokens for.
const tokenTTL = 25 * time.Minute

// Login exchanges a username and password for a bearer token.
func Login(ctx context.Context, client *upstream.Client, baseURL, username, password string) (string, error) {
	var body struct {
		Token string `json:"token"`
	}
	if err := client.GetJSON(ctx, baseURL+"/login", &body, upstream.WithBasicAuth(username, password)); err != nil {
		return "", l5err.With(err, l5err.FieldProvider(ID))
	}
	if body.Token == "" {
		return "", l5err.New(l5err.CodeCarbonAuthTokenMissing, "login response missing token",
			l5err.FieldProvider(ID))
	}
	return body.Token, nil
}

// tokenSource logs in on demand and reuses the token until it ages out or
// the username changes.
type tokenSource struct {
	client  *upstream.Client
	baseURL string
	creds   secrets.CredentialSource

	mu       sync.Mutex
	token    string
	username string
	issuedAt time.Time
	nowFunc  func() time.Time
}

func (s *tokenSource) Token(ctx context.Context) (string, error) {
	if s.creds == nil {
		return "", l5err.New(l5err.CodeSecretCredentialsMissing, "no credential source configured")
	}
	creds, err := s.creds.Credentials(ctx)
	if err != nil {
		return "", err
	}
	username, password, err := creds.WattTime()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	if s.token != "" && s.username == username && now.Sub(s.issuedAt) < tokenTTL {
		return s.token, nil
	}

	token, err := Login(ctx, s.client, s.baseURL, username, password)
	if err != nil {
		return "", err
	}
	s.token, s.username, s.issuedAt = token, username, now
	return token, nil
}

// Invalidate drops the cached token, forcing the next call to log in.
func (s *tokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

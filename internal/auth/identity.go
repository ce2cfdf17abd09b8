// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth holds the client-side credential.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
)

// claimPriority is the fixed order in which identity claims are tried.
// The admin API has issued tokens with all three over its lifetime.
var claimPriority = []string{"userId", "nameid", "sub"}

// Resolver derives the current user's identity from a bearer token.
//
// Resolution is cached per token value: the decode runs once per distinct
// token, not on every call. A well-formed token that carries none of the
// known claims resolves to "" without error - dependent features degrade
// to "no user" rather than failing.
type Resolver struct {
	mu        sync.Mutex
	lastToken string
	lastID    string
	resolved  bool
}

// NewResolver creates an identity resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Identity returns the user id claimed by token, or "" when token is empty,
// malformed, or carries no known identity claim.
func (r *Resolver) Identity(token string) string {
	if token == "" {
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved && token == r.lastToken {
		return r.lastID
	}

	r.lastToken = token
	r.lastID = decodeIdentity(token)
	r.resolved = true
	return r.lastID
}

// decodeIdentity extracts the first present identity claim from a JWT.
// The signature is not verified; the server authenticates every request
// and hub connection with the full token.
func decodeIdentity(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ""
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		// Some issuers pad; try the padded alphabet before giving up.
		payload, err = base64.URLEncoding.DecodeString(parts[1])
		if err != nil {
			return ""
		}
	}

	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return ""
	}

	for _, name := range claimPriority {
		if v, ok := claims[name]; ok {
			switch id := v.(type) {
			case string:
				if id != "" {
					return id
				}
			case float64:
				// Numeric ids arrive as JSON numbers.
				return strconv.FormatFloat(id, 'f', -1, 64)
			}
		}
	}
	return ""
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth holds the client-side credential.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

// makeToken builds an unsigned JWT with the given payload claims.
// The signature segment is garbage: identity resolution never checks it.
func makeToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	return header + "." + body + ".sig"
}

// =============================================================================
// CLAIM PRIORITY
// =============================================================================

func TestIdentity_ClaimPriority(t *testing.T) {
	tests := []struct {
		name   string
		claims map[string]any
		want   string
	}{
		{"userId wins", map[string]any{"userId": "u1", "nameid": "n1", "sub": "s1"}, "u1"},
		{"nameid next", map[string]any{"nameid": "n1", "sub": "s1"}, "n1"},
		{"sub last", map[string]any{"sub": "s1"}, "s1"},
		{"no known claim", map[string]any{"email": "a@b.c"}, ""},
		{"empty userId falls through", map[string]any{"userId": "", "sub": "s1"}, "s1"},
		{"numeric id", map[string]any{"userId": float64(42)}, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			got := r.Identity(makeToken(t, tt.claims))
			if got != tt.want {
				t.Errorf("Identity = %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// DEGRADED INPUTS
// =============================================================================

func TestIdentity_EmptyToken(t *testing.T) {
	r := NewResolver()
	if got := r.Identity(""); got != "" {
		t.Errorf("Identity of empty token = %q, want empty", got)
	}
}

func TestIdentity_MalformedToken(t *testing.T) {
	r := NewResolver()

	for _, token := range []string{
		"not-a-jwt",
		"a.b",
		"a.!!!.c",
		"a." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".c",
	} {
		if got := r.Identity(token); got != "" {
			t.Errorf("Identity(%q) = %q, want empty", token, got)
		}
	}
}

func TestIdentity_PaddedPayload(t *testing.T) {
	// Some issuers emit standard (padded) base64.
	payload := base64.URLEncoding.EncodeToString([]byte(`{"sub":"s1"}`))
	r := NewResolver()
	if got := r.Identity("h." + payload + ".s"); got != "s1" {
		t.Errorf("Identity with padded payload = %q, want s1", got)
	}
}

// =============================================================================
// CACHING
// =============================================================================

func TestIdentity_CachedPerToken(t *testing.T) {
	r := NewResolver()
	tok1 := makeToken(t, map[string]any{"userId": "u1"})
	tok2 := makeToken(t, map[string]any{"userId": "u2"})

	if got := r.Identity(tok1); got != "u1" {
		t.Fatalf("first resolve = %q", got)
	}
	// Same token resolves from cache to the same id.
	if got := r.Identity(tok1); got != "u1" {
		t.Errorf("cached resolve = %q", got)
	}
	// A new token must not reuse the cached identity.
	if got := r.Identity(tok2); got != "u2" {
		t.Errorf("resolve after token change = %q, want u2", got)
	}
}

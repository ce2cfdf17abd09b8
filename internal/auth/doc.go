// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth holds the client-side credential: storage of the bearer
// token issued by the admin API, and resolution of the session identity
// from that token.
//
// The token is opaque to every other package. Identity resolution decodes
// the JWT payload without verifying the signature - verification is the
// server's job; the client only needs a display identity to classify
// messages as its own.
//
// # Key Types
//
//   - Store: reads, writes, and watches the persisted token file
//   - Resolver: extracts the user id from the token claims
package auth

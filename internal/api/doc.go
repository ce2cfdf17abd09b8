// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the admin service REST API.
//
// The client covers the chat surfaces of the service: authentication,
// the user roster, group membership, message history, and message send.
// Every request carries the bearer token obtained from the credential
// store via a token supplier, read per request rather than captured at
// construction time.
//
// # Key Types
//
//   - Client: the REST client
//   - ClientError: typed error with an ErrorType category
//   - User, Group, Message: wire types as the service serves them
package api

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the admin service REST API.
package api

import "time"

// =============================================================================
// WIRE TYPES
// =============================================================================

// User is a roster entry. Immutable from the client's perspective; the
// list is refreshed wholesale on mount.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Group is a chat group the current user belongs to.
type Group struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	MemberIDs []string `json:"memberIds"`
}

// Message is a chat message as the service serves it. Exactly one of
// ReceiverID (direct) or ChatGroupID (group) is meaningful; never both.
type Message struct {
	SenderID    string    `json:"senderId"`
	SenderName  string    `json:"senderName"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	ReceiverID  string    `json:"receiverId,omitempty"`
	ChatGroupID string    `json:"chatGroupId,omitempty"`
}

// =============================================================================
// REQUEST/RESPONSE BODIES
// =============================================================================

// LoginRequest is the body of POST /Auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token issued on successful login.
type LoginResponse struct {
	Token string `json:"token"`
}

// SendMessageRequest is the body of POST /Message/send. Exactly one of
// ReceiverID and ChatGroupID is non-nil.
type SendMessageRequest struct {
	Content     string  `json:"content"`
	ReceiverID  *string `json:"receiverId"`
	ChatGroupID *string `json:"chatGroupId"`
}

// CreateGroupRequest is the body of POST /Message/groups.
type CreateGroupRequest struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"memberIds"`
}

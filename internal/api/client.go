// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the admin service REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the admin API client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeUnauthorized
	ErrTypeNotFound
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrTimeout      = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrUnauthorized = &ClientError{Type: ErrTypeUnauthorized, Message: "credential rejected by the service"}
)

// IsUnauthorized checks if an error indicates a rejected credential.
func IsUnauthorized(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeUnauthorized
	}
	return errors.Is(err, ErrUnauthorized)
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTimeout
	}
	return errors.Is(err, ErrTimeout)
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// TokenSupplier returns the bearer token to attach to a request, or ""
// when no credential is held. It is consulted per request so a login or
// logout mid-session takes effect immediately.
type TokenSupplier func() string

// ClientConfig holds configuration options for the API client.
type ClientConfig struct {
	// BaseURL is the admin API base URL (no default: required)
	BaseURL string

	// Timeout for requests (default: 30s)
	Timeout time.Duration

	// Token supplies the bearer token per request (default: no auth header)
	Token TokenSupplier
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the admin service REST API.
//
// The Client is safe for concurrent use.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(config ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Token == nil {
		config.Token = func() string { return "" }
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// AUTH OPERATIONS
// =============================================================================

// Login exchanges credentials for a bearer token. The token is returned,
// not stored; persisting it is the credential store's job.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, "/Auth/login", LoginRequest{
		Email:    strings.TrimSpace(email),
		Password: password,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "login response carried no token"}
	}
	return resp.Token, nil
}

// AllUsers retrieves the full user roster.
func (c *Client) AllUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/Auth/AllUsers", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// =============================================================================
// GROUP OPERATIONS
// =============================================================================

// GroupsForCurrentUser retrieves the groups the authenticated user belongs to.
func (c *Client) GroupsForCurrentUser(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := c.do(ctx, http.MethodGet, "/Message/groupsUser", nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// CreateGroup creates a group and returns the server's confirmed entity.
func (c *Client) CreateGroup(ctx context.Context, name string, memberIDs []string) (*Group, error) {
	var group Group
	err := c.do(ctx, http.MethodPost, "/Message/groups", CreateGroupRequest{
		Name:      name,
		MemberIDs: memberIDs,
	}, &group)
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// =============================================================================
// MESSAGE OPERATIONS
// =============================================================================

// PrivateMessages retrieves the ordered direct-message history with a peer.
func (c *Client) PrivateMessages(ctx context.Context, peerID string) ([]Message, error) {
	var msgs []Message
	path := "/Message/private/" + url.PathEscape(peerID)
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// GroupMessages retrieves the ordered message history of a group.
func (c *Client) GroupMessages(ctx context.Context, groupID string) ([]Message, error) {
	var msgs []Message
	path := "/Message/group/" + url.PathEscape(groupID)
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage posts one outgoing message. Exactly one of receiverID and
// chatGroupID must be non-empty; the other is sent as JSON null, matching
// the service contract.
func (c *Client) SendMessage(ctx context.Context, content, receiverID, chatGroupID string) error {
	if (receiverID == "") == (chatGroupID == "") {
		return &ClientError{
			Type:    ErrTypeUnknown,
			Message: "send requires exactly one of receiverId and chatGroupId",
		}
	}

	req := SendMessageRequest{Content: content}
	if receiverID != "" {
		req.ReceiverID = &receiverID
	}
	if chatGroupID != "" {
		req.ChatGroupID = &chatGroupID
	}
	return c.do(ctx, http.MethodPost, "/Message/send", req, nil)
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// do performs one JSON request/response round trip. A nil body sends no
// payload; a nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.config.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return &ClientError{Type: ErrTypeConnection, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return &ClientError{Type: ErrTypeNotFound, Message: method + " " + path + ": not found"}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: method + " " + path + " failed: " + resp.Status,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hub manages the live connection to the push-messaging hub.
package hub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// recordSeparator terminates every record in the SignalR JSON protocol.
const recordSeparator = 0x1e

// SignalR message types used by this client. Stream-related types are not
// part of the hub's contract and are ignored on receipt.
const (
	typeInvocation = 1
	typeCompletion = 3
	typePing       = 6
	typeClose      = 7
)

// Server->client targets. All three funnel into the same normalization
// path on receipt.
const (
	TargetPrivateMessage = "ReceivePrivateMessage"
	TargetGroupMessage   = "ReceiveGroupMessage"
	TargetMessage        = "ReceiveMessage"
)

// targetJoinGroup is the client->server invocation adding this connection
// to a group channel.
const targetJoinGroup = "JoinGroup"

// hubMessage is the wire form of one SignalR record.
type hubMessage struct {
	Type         int               `json:"type"`
	Target       string            `json:"target,omitempty"`
	Arguments    []json.RawMessage `json:"arguments,omitempty"`
	InvocationID string            `json:"invocationId,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// handshakeRequest opens the protocol negotiation.
type handshakeRequest struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

// handshakeResponse acknowledges (or rejects) the negotiation.
type handshakeResponse struct {
	Error string `json:"error,omitempty"`
}

// encodeRecord marshals v and appends the record separator.
func encodeRecord(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode hub record: %w", err)
	}
	return append(data, recordSeparator), nil
}

// splitRecords splits a websocket frame into its JSON records. A frame may
// carry several records; a trailing empty chunk after the final separator
// is discarded.
func splitRecords(frame []byte) [][]byte {
	parts := bytes.Split(frame, []byte{recordSeparator})
	records := parts[:0]
	for _, p := range parts {
		if len(p) > 0 {
			records = append(records, p)
		}
	}
	return records
}

// decodeStringArg decodes one invocation argument that the hub may serve
// as either a JSON string or a bare number.
func decodeStringArg(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

// decodeTimeArg decodes a timestamp argument served as an RFC 3339 string.
// An unparseable value degrades to receipt time rather than dropping the
// event.
func decodeTimeArg(raw json.RawMessage) time.Time {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts
			}
		}
	}
	return time.Now()
}

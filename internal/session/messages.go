// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package session

import (
	"time"

	"github.com/callejero-app/callejero/internal/models"
)

// Wire message types of the streaming session protocol. Every frame is a
// JSON object carrying a "type" discriminator.
const (
	TypeHello          = "hello"
	TypeHelloAck       = "hello_ack"
	TypeHeartbeat      = "heartbeat"
	TypeHeartbeatAck   = "heartbeat_ack"
	TypeLocationUpdate = "location_update"
	TypeRouteUpdate    = "route_update"
	TypeWarning        = "warning"
	TypeError          = "error"
)

// Envelope is the minimal frame read first to dispatch on type.
type Envelope struct {
	Type string `json:"type"`
}

// Hello opens a session: the destination and constraints are fixed here and
// reused for every subsequent recomputation.
type Hello struct {
	Type        string                   `json:"type"`
	PlanID      string                   `json:"plan_id,omitempty"`
	Destination *Point                   `json:"destination,omitempty"`
	Target      *models.Target           `json:"target,omitempty"`
	Constraints *models.RouteConstraints `json:"constraints,omitempty"`
}

// ProtocolVersion identifies the session wire protocol. Bumped on any
// incompatible frame change.
const ProtocolVersion = 1

// HelloAck confirms session establishment and echoes the assigned IDs.
type HelloAck struct {
	Type            string    `json:"type"`
	SessionID       string    `json:"session_id"`
	PlanID          string    `json:"plan_id"`
	ProtocolVersion int       `json:"protocol_version"`
	ServerTime      time.Time `json:"server_time"`
}

// Heartbeat keeps an idle session alive. SentAt is the client clock,
// echoed back so the client can estimate round-trip time.
type Heartbeat struct {
	Type   string    `json:"type"`
	SentAt time.Time `json:"sent_at,omitempty"`
}

// HeartbeatAck answers a heartbeat, echoing the client timestamp.
type HeartbeatAck struct {
	Type   string    `json:"type"`
	SentAt time.Time `json:"sent_at,omitempty"`
}

// LocationUpdate reports the walker's current position.
type LocationUpdate struct {
	Type string  `json:"type"`
	Lat  float64 `json:"lat" validate:"latitude"`
	Lng  float64 `json:"lng" validate:"longitude"`
}

// RouteUpdate pushes a freshly computed route to the client.
type RouteUpdate struct {
	Type       string              `json:"type"`
	PlanID     string              `json:"plan_id"`
	Reason     string              `json:"reason"`
	ComputedAt time.Time           `json:"computed_at"`
	Route      *models.RouteResult `json:"route"`
}

// Warning notifies the client of a route condition without replacing the
// route itself.
type Warning struct {
	Type      string    `json:"type"`
	PlanID    string    `json:"plan_id"`
	Code      string    `json:"code"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorMessage reports a protocol or computation failure to the client.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Point is a [lat, lng] coordinate on the wire.
type Point struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// Recompute reasons carried on route updates and metrics.
const (
	ReasonFirstUpdate        = "first_update"
	ReasonMoved              = "moved"
	ReasonRestrictionsChange = "restrictions_changed"
)

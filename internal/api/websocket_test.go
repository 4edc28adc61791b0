// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/callejero-app/callejero/internal/session"
)

func dialModeCalle(t *testing.T) *websocket.Conn {
	t.Helper()

	_, router := newTestHandler(t)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/routing/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("setting read deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decoding frame %q: %v", data, err)
	}
}

func writeFrame(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("encoding frame: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("writing frame: %v", err)
	}
}

func TestModeCalleSessionFlow(t *testing.T) {
	conn := dialModeCalle(t)

	writeFrame(t, conn, session.Hello{
		Type:        session.TypeHello,
		PlanID:      "plan-ws",
		Destination: &session.Point{Lat: 37.4008, Lng: -5.9900},
	})

	var ack session.HelloAck
	readFrame(t, conn, &ack)
	if ack.Type != session.TypeHelloAck {
		t.Fatalf("first frame type = %q, want hello_ack", ack.Type)
	}
	if ack.PlanID != "plan-ws" || ack.SessionID == "" {
		t.Errorf("ack = %+v, want plan-ws and a session id", ack)
	}
	if ack.ProtocolVersion != session.ProtocolVersion {
		t.Errorf("protocol_version = %d, want %d", ack.ProtocolVersion, session.ProtocolVersion)
	}

	writeFrame(t, conn, session.Heartbeat{Type: session.TypeHeartbeat})
	var hbAck session.HeartbeatAck
	readFrame(t, conn, &hbAck)
	if hbAck.Type != session.TypeHeartbeatAck {
		t.Errorf("heartbeat reply type = %q, want heartbeat_ack", hbAck.Type)
	}

	writeFrame(t, conn, session.LocationUpdate{
		Type: session.TypeLocationUpdate,
		Lat:  37.3862,
		Lng:  -5.9926,
	})
	var update session.RouteUpdate
	readFrame(t, conn, &update)
	if update.Type != session.TypeRouteUpdate {
		t.Fatalf("location reply type = %q, want route_update", update.Type)
	}
	if update.Reason != session.ReasonFirstUpdate {
		t.Errorf("reason = %q, want %q", update.Reason, session.ReasonFirstUpdate)
	}
	if update.Route == nil || len(update.Route.Polyline) < 2 {
		t.Errorf("route = %+v, want a polyline", update.Route)
	}
}

func TestModeCalleRejectsNonHelloFirstFrame(t *testing.T) {
	conn := dialModeCalle(t)

	writeFrame(t, conn, session.Heartbeat{Type: session.TypeHeartbeat})

	var errFrame session.ErrorMessage
	readFrame(t, conn, &errFrame)
	if errFrame.Type != session.TypeError || errFrame.Code != "PROTOCOL_ERROR" {
		t.Errorf("frame = %+v, want a PROTOCOL_ERROR", errFrame)
	}
}

func TestModeCalleHelloWithoutDestination(t *testing.T) {
	conn := dialModeCalle(t)

	writeFrame(t, conn, session.Hello{Type: session.TypeHello})

	var errFrame session.ErrorMessage
	readFrame(t, conn, &errFrame)
	if errFrame.Type != session.TypeError || errFrame.Code != "INVALID_QUERY" {
		t.Errorf("frame = %+v, want INVALID_QUERY", errFrame)
	}
}

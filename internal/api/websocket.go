// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/callejero-app/callejero/internal/logging"
	"github.com/callejero-app/callejero/internal/session"
)

// Connection timing, matching the usual gorilla pump pattern: pings go out
// well inside the pong deadline.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 16
)

// helloTimeout bounds how long a fresh connection may idle before sending
// its hello frame.
const helloTimeout = 10 * time.Second

// wsConn pairs a websocket connection with its outbound queue.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte
}

// ModeCalle answers GET /api/v1/routing/ws: the streaming navigation
// endpoint. The first client frame must be a hello; afterwards the client
// streams heartbeats and location updates and receives route updates and
// warnings.
func (h *Handler) ModeCalle(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &wsConn{conn: conn, send: make(chan []byte, sendBufferSize)}
	done := make(chan struct{})
	go c.writePump(done)
	defer func() {
		close(done)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)

	sess, ok := h.establishSession(c)
	if !ok {
		return
	}
	h.registry.Add(sess)
	defer h.registry.Remove(sess.ID())

	h.serveSession(r, c, sess)
}

// establishSession reads and answers the hello frame.
func (h *Handler) establishSession(c *wsConn) (*session.Session, bool) {
	if err := c.conn.SetReadDeadline(time.Now().Add(helloTimeout)); err != nil {
		return nil, false
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, false
	}

	var hello session.Hello
	if err := json.Unmarshal(data, &hello); err != nil || hello.Type != session.TypeHello {
		c.sendError("PROTOCOL_ERROR", "first frame must be a hello")
		return nil, false
	}
	if apiErr := validateRequest(&hello); apiErr != nil {
		c.sendError(apiErr.Code, apiErr.Message)
		return nil, false
	}

	sess, ack, err := session.New(h.engine, hello, session.Config{
		UpdatesPerSecond:        h.cfg.Session.UpdatesPerSecond,
		UpdateBurst:             h.cfg.Session.UpdateBurst,
		MovementThresholdMeters: h.cfg.Session.MovementThresholdMeters,
	})
	if err != nil {
		if errors.Is(err, session.ErrNoDestination) {
			c.sendError("INVALID_QUERY", "hello must carry a destination or target")
		} else {
			c.sendError("INTERNAL_ERROR", "failed to open session")
		}
		return nil, false
	}

	c.sendJSON(ack)
	return sess, true
}

// serveSession runs the read loop until the client disconnects.
func (h *Handler) serveSession(r *http.Request, c *wsConn, sess *session.Session) {
	resetDeadline := func() error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
	if err := resetDeadline(); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error { return resetDeadline() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug().Err(err).Str("session_id", sess.ID()).Msg("Websocket closed unexpectedly")
			}
			return
		}
		if err := resetDeadline(); err != nil {
			return
		}

		var envelope session.Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.sendError("PROTOCOL_ERROR", "frame is not valid JSON")
			continue
		}

		switch envelope.Type {
		case session.TypeHeartbeat:
			var hb session.Heartbeat
			if err := json.Unmarshal(data, &hb); err != nil {
				c.sendError("PROTOCOL_ERROR", "malformed heartbeat")
				continue
			}
			ack, err := sess.Heartbeat(hb.SentAt)
			if err != nil {
				return
			}
			c.sendJSON(ack)

		case session.TypeLocationUpdate:
			var update session.LocationUpdate
			if err := json.Unmarshal(data, &update); err != nil {
				c.sendError("PROTOCOL_ERROR", "malformed location update")
				continue
			}
			if apiErr := validateRequest(&update); apiErr != nil {
				c.sendError(apiErr.Code, apiErr.Message)
				continue
			}
			h.handleLocation(r, c, sess, update)

		default:
			c.sendError("PROTOCOL_ERROR", "unknown frame type")
		}
	}
}

func (h *Handler) handleLocation(r *http.Request, c *wsConn, sess *session.Session, update session.LocationUpdate) {
	routeUpdate, warnings, err := sess.HandleLocation(r.Context(), update.Lat, update.Lng)
	if err != nil {
		if errors.Is(err, session.ErrSessionClosed) {
			return
		}
		logging.Error().Err(err).Str("session_id", sess.ID()).Msg("Location update failed")
		c.sendError("INTERNAL_ERROR", "route computation failed")
		return
	}
	if routeUpdate == nil {
		// Quiescent update, nothing to push.
		return
	}

	h.registry.RememberRoute(routeUpdate.PlanID, routeUpdate.Route, routeUpdate.ComputedAt)
	c.sendJSON(routeUpdate)
	for _, warning := range warnings {
		c.sendJSON(warning)
	}
}

// checkOrigin enforces the configured CORS origins on upgrade requests.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// sendJSON queues a frame, dropping it if the client cannot keep up.
func (c *wsConn) sendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal websocket frame")
		return
	}
	select {
	case c.send <- data:
	default:
		logging.Warn().Msg("Websocket send buffer full, dropping frame")
	}
}

func (c *wsConn) sendError(code, message string) {
	c.sendJSON(session.ErrorMessage{Type: session.TypeError, Code: code, Message: message})
}

// writePump serializes all writes to the connection and keeps pings going.
func (c *wsConn) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

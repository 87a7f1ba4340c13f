package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"

	"github.com/fyrsmithlabs/craftd/internal/events"
	"github.com/fyrsmithlabs/craftd/internal/project"
)

// sseHeartbeat keeps proxies from timing out idle streams.
const sseHeartbeat = 30 * time.Second

// handleEvents streams a project's progress via Server-Sent Events,
// bridged from the project's NATS subject. The first event is a state
// snapshot, since NATS does not replay earlier progress. The stream
// closes when the project reaches a terminal status or the client
// disconnects; a project that is already terminal gets the snapshot
// and an immediate close.
//
//	GET /api/projects/{id}/events
//
//	event: state
//	data: {"project_id":"ab12","status":"coding",...}
//	event: progress
//	data: {"type":"progress","project_id":"ab12","stage":"coding",...}
func (s *Server) handleEvents(c echo.Context) error {
	if s.nc == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event stream not configured")
	}
	id := c.Param("id")
	p, err := s.orch.GetProjectState(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	msgChan := make(chan *nats.Msg, 16)
	sub, err := s.nc.ChanSubscribe(events.SubjectAll(id), msgChan)
	if err != nil {
		return err
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()

	snap := p.Snapshot()
	if data, err := json.Marshal(snap); err == nil {
		fmt.Fprintf(c.Response(), "event: state\n")
		fmt.Fprintf(c.Response(), "data: %s\n\n", string(data))
		c.Response().Flush()
	}
	if snap.Status == project.StatusCompleted || snap.Status == project.StatusFailed {
		return nil
	}

	for {
		select {
		case msg := <-msgChan:
			// Subject layout: projects.{id}.events.{type}
			parts := strings.Split(msg.Subject, ".")
			if len(parts) < 4 {
				continue
			}
			eventType := parts[3]

			fmt.Fprintf(c.Response(), "event: %s\n", eventType)
			fmt.Fprintf(c.Response(), "data: %s\n\n", string(msg.Data))
			c.Response().Flush()

			if terminalEvent(msg.Data) {
				return nil
			}

		case <-ticker.C:
			fmt.Fprintf(c.Response(), ": heartbeat\n\n")
			c.Response().Flush()

		case <-c.Request().Context().Done():
			return nil
		}
	}
}

// terminalEvent reports whether an event payload announces a terminal
// pipeline stage. Parsing failures keep the stream open, a malformed
// event should not cut off a live subscriber.
func terminalEvent(data []byte) bool {
	var e events.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return false
	}
	return e.Stage == string(project.StatusCompleted) || e.Stage == string(project.StatusFailed)
}

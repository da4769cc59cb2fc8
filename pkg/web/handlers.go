package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/walle-robot/go-walle/pkg/hub"
)

// handleStatus returns the current telemetry snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.Status == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "status source not configured",
		})
	}
	return c.JSON(s.Status())
}

// handleEvents returns the recent event buffer.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	return c.JSON(s.events)
}

// handleFaces returns the known-face roster.
func (s *Server) handleFaces(c *fiber.Ctx) error {
	if s.Persons == nil {
		return c.JSON([]string{})
	}
	return c.JSON(s.Persons())
}

// handleStatusWS streams snapshots, seeding the client with the current
// one.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	if s.Status != nil {
		c.WriteJSON(s.Status())
	}
	hub.NewClient(s.statusHub, c).Run()
}

// handleEventsWS streams events, replaying the buffer first.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	s.eventsMu.RLock()
	backlog := make([]Event, len(s.events))
	copy(backlog, s.events)
	s.eventsMu.RUnlock()
	for _, ev := range backlog {
		c.WriteJSON(ev)
	}
	hub.NewClient(s.eventHub, c).Run()
}

// Package web serves the robot's telemetry dashboard: a small fiber app
// exposing the engine state, recent events, and the face roster over
// REST, with live updates pushed through websocket hubs. Read-only; the
// dashboard observes the robot, it does not drive it.
package web

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/walle-robot/go-walle/internal/log"
	"github.com/walle-robot/go-walle/pkg/hub"
)

const maxEvents = 500

// Event is one dashboard log line.
type Event struct {
	Time    string `json:"time"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Server is the dashboard server.
type Server struct {
	app  *fiber.App
	addr string

	// Status returns the current telemetry snapshot; wired to the
	// engine's Snap. Persons returns the known-face roster. Either may
	// be nil.
	Status  func() any
	Persons func() []string

	eventsMu sync.RWMutex
	events   []Event

	statusHub *hub.Hub
	eventHub  *hub.Hub
}

// NewServer builds the dashboard app on the given listen address.
func NewServer(addr string) *Server {
	s := &Server{
		addr:      addr,
		events:    make([]Event, 0, maxEvents),
		statusHub: hub.New("status"),
		eventHub:  hub.New("events"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "walle dashboard",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())
	app.Static("/", "./web")

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/events", s.handleEvents)
	api.Get("/faces", s.handleFaces)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Start runs the hubs and serves until Shutdown. Blocking.
func (s *Server) Start() error {
	log.Info("dashboard listening", "addr", s.addr)
	go s.statusHub.Run()
	go s.eventHub.Run()
	return s.app.Listen(s.addr)
}

// StartAsync serves in the background; listen errors are logged, not
// fatal. The robot works without its dashboard.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Warn("dashboard server stopped", "error", err)
		}
	}()
}

// PublishStatus pushes a fresh snapshot to websocket subscribers.
func (s *Server) PublishStatus(snapshot any) {
	if err := s.statusHub.BroadcastJSON(snapshot); err != nil {
		log.Debug("status broadcast failed", "error", err)
	}
}

// AddEvent records a dashboard event and pushes it to subscribers.
func (s *Server) AddEvent(eventType, message string) {
	ev := Event{
		Time:    time.Now().Format("15:04:05"),
		Type:    eventType,
		Message: message,
	}

	s.eventsMu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > maxEvents {
		s.events = s.events[1:]
	}
	s.eventsMu.Unlock()

	if err := s.eventHub.BroadcastJSON(ev); err != nil {
		log.Debug("event broadcast failed", "error", err)
	}
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

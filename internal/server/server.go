// Package server exposes the HTTP surface: the A2A agent endpoint, the raw
// webhook, admin endpoints and observability routes. Transports here are
// thin adapters; all command logic lives behind the bot router.
package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/devtrack-agent/internal/bot"
	"github.com/p-blackswan/devtrack-agent/internal/digest"
	"github.com/p-blackswan/devtrack-agent/internal/health"
	"github.com/p-blackswan/devtrack-agent/internal/metrics"
	"github.com/p-blackswan/devtrack-agent/internal/requestid"
	"github.com/p-blackswan/devtrack-agent/internal/store"
	"github.com/p-blackswan/devtrack-agent/internal/task"
)

// Server is the HTTP application.
type Server struct {
	app    *fiber.App
	router *bot.Router
	tasks  *task.Engine
	digest *digest.Generator
	logger zerolog.Logger
	addr   string
}

// New creates and configures the HTTP server.
func New(addr string, router *bot.Router, tasks *task.Engine, dg *digest.Generator, checker *health.Checker, m *metrics.Metrics, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          errorHandler(logger),
	})

	s := &Server{
		app:    app,
		router: router,
		tasks:  tasks,
		digest: dg,
		logger: logger.With().Str("component", "server").Logger(),
		addr:   addr,
	}

	app.Use(recover.New())
	app.Use(s.requestLogger())

	app.Get("/", s.handleRoot)
	app.Post("/a2a/agent/devTrackerAgent", s.handleAgent)
	app.Post("/webhook/telex", s.handleWebhook)
	app.Get("/progress", s.handleProgress)
	app.Get("/admin/summaries", s.handleSummaries)
	app.Post("/admin/summary/run", s.handleSummaryRun(m))

	app.Get("/health", health.LivenessHandler())
	if checker != nil {
		app.Get("/ready", checker.ReadinessHandler())
	}
	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	return s
}

// Start begins serving. Blocks until Shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.addr).Msg("HTTP server starting")
	return s.app.Listen(s.addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func errorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}
		logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.Status(code).JSON(fiber.Map{"output": "Internal server error"})
	}
}

func (s *Server) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, reqID := requestid.New(c.UserContext())
		c.SetUserContext(ctx)
		c.Set("X-Request-ID", reqID)

		start := time.Now()
		err := c.Next()
		s.logger.Info().
			Str("request_id", reqID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("duration", time.Since(start)).
			Msg("request")
		return err
	}
}

func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.JSON(bot.Reply{Output: bot.HelpReply})
}

type agentRequest struct {
	Input    string       `json:"input"`
	Metadata bot.Metadata `json:"metadata"`
}

// handleAgent serves the A2A endpoint that Telex workflows call.
func (s *Server) handleAgent(c *fiber.Ctx) error {
	var req agentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
	}
	s.logger.Info().Str("channel", req.Metadata.ChannelID).Msg("A2A request received")

	reply, err := s.router.HandleMessage(c.UserContext(), req.Input, req.Metadata)
	if err != nil {
		return err
	}
	return c.JSON(reply)
}

// telexWebhook mirrors the incoming message shapes Telex uses.
type telexWebhook struct {
	Input string `json:"input"`
	Text  string `json:"text"`
	Body  struct {
		Text string `json:"text"`
	} `json:"body"`
	Metadata  *bot.Metadata `json:"metadata"`
	ChannelID string        `json:"channelId"`
	UserID    string        `json:"userId"`
	From      struct {
		ID string `json:"id"`
	} `json:"from"`
}

// handleWebhook mirrors the A2A behavior for raw webhook deliveries.
func (s *Server) handleWebhook(c *fiber.Ctx) error {
	var incoming telexWebhook
	if err := c.BodyParser(&incoming); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
	}

	text := incoming.Input
	if text == "" {
		text = incoming.Text
	}
	if text == "" {
		text = incoming.Body.Text
	}

	md := bot.Metadata{ChannelID: incoming.ChannelID, UserID: incoming.UserID}
	if md.ChannelID == "" {
		md.ChannelID = incoming.From.ID
	}
	if incoming.Metadata != nil {
		md = *incoming.Metadata
	}

	reply, err := s.router.HandleMessage(c.UserContext(), text, md)
	if err != nil {
		return err
	}
	return c.JSON(reply)
}

func (s *Server) handleProgress(c *fiber.Ctx) error {
	sc := store.Scope{
		ChannelID: c.Query("channelId"),
		UserID:    c.Query("userId"),
	}
	chart, err := s.tasks.ProgressChart(sc)
	if err != nil {
		return err
	}
	return c.JSON(chart)
}

func (s *Server) handleSummaries(c *fiber.Ctx) error {
	out, err := s.digest.RecentSummaries(20)
	if err != nil {
		return err
	}
	return c.SendString(out)
}

func (s *Server) handleSummaryRun(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		summary, err := s.digest.Run()
		if err != nil {
			m.ObserveDigestRun("manual", "error")
			return err
		}
		m.ObserveDigestRun("manual", "ok")
		return c.JSON(bot.Reply{Output: summary})
	}
}

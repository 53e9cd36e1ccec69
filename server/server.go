package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"canter/config"
	"canter/feeds"
	"canter/models"
	"canter/ratelimit"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

type ServerConfig struct {

	// The feed assembly service backing the endpoints
	Feeds *feeds.Service

	// Counter used for per-client rate limiting of the GET endpoints
	Limiter ratelimit.Counter

	// Application config (rate limit budget, CORS origins)
	Config *config.Config

	// Health reports whether the content store is reachable
	Health func(ctx context.Context) error
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type seenAckRequest struct {
	Items []models.SeenItemRef `json:"items"`
}

// Returns a fiber.App instance to be used as the HTTP server for the
// canter feed service
func Server(cfg *ServerConfig) *fiber.App {

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		// start timer
		start := time.Now()

		// next routes
		err := c.Next()

		// stop timer
		stop := time.Now()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": stop.Sub(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Config.Server.AllowOrigins,
		AllowHeaders: "Cache-Control,X-Viewer-ID",
	}))

	limited := rateLimitMiddleware(cfg)

	app.Get("/feed/home", limited, feedHandler(cfg, feeds.KindHome))
	app.Post("/feed/home", seenAckHandler(cfg))
	app.Get("/explore/feed", limited, feedHandler(cfg, feeds.KindExplore))
	app.Post("/explore/feed", seenAckHandler(cfg))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := cfg.Health(c.Context()); err != nil {
			log.WithFields(log.Fields{"error": err}).Error("Health check failed")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"ok": false})
		}
		return c.JSON(fiber.Map{"ok": true})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return app
}

// feedHandler serves one page of the requested feed kind.
func feedHandler(cfg *ServerConfig, kind feeds.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		viewerID, err := viewerFromRequest(c)
		if err != nil {
			feedRequests.WithLabelValues(string(kind), "unauthenticated").Inc()
			return renderError(c, err)
		}

		cursor := c.Query("cursor", "")
		limit, err := parseLimit(c.Query("limit", ""))
		if err != nil {
			feedRequests.WithLabelValues(string(kind), "invalid").Inc()
			return renderError(c, err)
		}

		var page *models.FeedPage
		switch kind {
		case feeds.KindHome:
			page, err = cfg.Feeds.GetHomeFeed(c.Context(), viewerID, cursor, limit)
		default:
			page, err = cfg.Feeds.GetExploreFeed(c.Context(), viewerID, cursor, limit)
		}
		if err != nil {
			feedRequests.WithLabelValues(string(kind), "error").Inc()
			return renderError(c, err)
		}

		feedRequests.WithLabelValues(string(kind), "ok").Inc()
		feedDuration.Observe(time.Since(start).Seconds())
		return c.JSON(page)
	}
}

// seenAckHandler records the items a client acknowledges having seen.
func seenAckHandler(cfg *ServerConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		viewerID, err := viewerFromRequest(c)
		if err != nil {
			return renderError(c, err)
		}

		var req seenAckRequest
		if err := c.BodyParser(&req); err != nil {
			return renderError(c, fmt.Errorf("%w: malformed body", feeds.ErrInvalidArgument))
		}

		if err := cfg.Feeds.RecordSeenItems(c.Context(), viewerID, req.Items); err != nil {
			return renderError(c, err)
		}

		return c.JSON(fiber.Map{"ok": true})
	}
}

// rateLimitMiddleware enforces the fixed-window budget per client
// identity. Counter failures fail open: losing rate limiting beats
// dropping every feed request.
func rateLimitMiddleware(cfg *ServerConfig) fiber.Handler {
	limit := int64(cfg.Config.RateLimit.Requests)
	windowSize := time.Duration(cfg.Config.RateLimit.WindowSeconds) * time.Second

	return func(c *fiber.Ctx) error {
		key := clientKey(c)

		count, reset, err := cfg.Limiter.Increment(c.Context(), key, windowSize)
		if err != nil {
			log.WithFields(log.Fields{
				"key":   key,
				"error": err,
			}).Warn("Rate limit counter failed, allowing request")
			return c.Next()
		}

		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if count > limit {
			rateLimited.Inc()
			retryAfter := int64(time.Until(reset).Seconds()) + 1
			c.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			return c.Status(fiber.StatusTooManyRequests).JSON(errorResponse{
				Error: errorBody{
					Kind:    "rate_limited",
					Message: "request budget exhausted, retry later",
				},
			})
		}

		return c.Next()
	}
}

// viewerFromRequest reads the gateway-authenticated viewer identity.
func viewerFromRequest(c *fiber.Ctx) (int64, error) {
	header := c.Get("X-Viewer-ID")
	if header == "" {
		return 0, errUnauthenticated
	}
	viewerID, err := strconv.ParseInt(header, 10, 64)
	if err != nil || viewerID <= 0 {
		return 0, errUnauthenticated
	}
	return viewerID, nil
}

// clientKey derives the rate-limit identity from the first forwarded
// hop, falling back to the peer address.
func clientKey(c *fiber.Ctx) string {
	if forwarded := c.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return c.IP()
}

var errUnauthenticated = errors.New("unauthenticated")

// renderError maps error kinds to HTTP statuses. Internal failures get
// a generic message: no SQL, no stack traces.
func renderError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errUnauthenticated):
		return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{
			Error: errorBody{Kind: "unauthenticated", Message: "viewer identity required"},
		})
	case errors.Is(err, feeds.ErrInvalidArgument):
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{
			Error: errorBody{Kind: "invalid_argument", Message: err.Error()},
		})
	case errors.Is(err, feeds.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{
			Error: errorBody{Kind: "not_found", Message: err.Error()},
		})
	default:
		log.WithFields(log.Fields{"error": err}).Error("Feed request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{
			Error: errorBody{Kind: "internal", Message: "internal error"},
		})
	}
}

// parseLimit parses the limit query parameter. Absent means "use the
// configured default"; present but non-numeric or non-positive is
// rejected.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", feeds.ErrInvalidArgument)
	}
	return limit, nil
}

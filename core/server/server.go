package server

import (
	"filemirror/core/logger"
	"filemirror/core/middleware/auth"
	"filemirror/core/middleware/rayid"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// New builds the Fiber status app. The status callback is invoked per
// request and its result rendered as JSON; it must be safe for concurrent
// use.
func New(cfg Config, log *zap.Logger, status func() any) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true, // We log our own startup message
	})

	app.Use(rayid.New())

	app.Use(func(c *fiber.Ctx) error {
		l := logger.WithRayID(log, c)
		l.Debug("Request started",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
		)
		err := c.Next()
		if err != nil {
			l.Error("Request error", zap.Error(err))
		}
		return err
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use(auth.New(auth.Config{ApiKey: cfg.ApiKey}))

	app.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(status())
	})

	return app
}

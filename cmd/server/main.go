package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/remodelai/estimate-client/internal/api"
	"github.com/remodelai/estimate-client/internal/cache"
	"github.com/remodelai/estimate-client/internal/config"
	"github.com/remodelai/estimate-client/internal/gateway"
	"github.com/remodelai/estimate-client/internal/session"
)

func main() {
	// .env is optional; real env always wins.
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	// One cache per process, wall clock injected here and nowhere else.
	store := cache.New(cfg.Cache.TTL, time.Now)

	token := func() string { return cfg.Backend.APIToken }
	backend := gateway.New(cfg.Backend.BaseURL, &http.Client{}, token, store, logger)

	orch := session.New(backend,
		session.WithLocalFallback(),
		session.WithLogger(logger),
	)

	monitor := session.NewHealthMonitor(backend, cfg.Backend.HealthCheckInterval, logger)
	defer monitor.Stop()

	app := fiber.New(fiber.Config{
		AppName:      "Remodel Estimate Client",
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	api.SetupRoutes(app, orch, monitor)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.WithField("addr", addr).Info("Estimate client starting")
	if err := app.Listen(addr); err != nil {
		logger.WithError(err).Fatal("Failed to start server")
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}

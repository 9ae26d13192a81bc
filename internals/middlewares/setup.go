package middlewares

import (
	"github.com/gofiber/fiber/v2"

	loggerMiddleware "playhost_backend/internals/middlewares/logger"
)

// SetupMiddlewares attaches the shared middleware stack in order:
// recovery first so the logger still sees panicking requests.
func SetupMiddlewares(app *fiber.App) {
	app.Use(RecoveryMiddleware())
	app.Use(loggerMiddleware.LoggerMiddleware())
	app.Use(CorsMiddleware())
	app.Use(GlobalRateLimiter())
}

// file: internals/features/payments/route/payment_routes.go
package route

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	paymentController "playhost_backend/internals/features/payments/controller"
	"playhost_backend/internals/features/payments/service"
	"playhost_backend/internals/middlewares"
)

// PaymentRoutes mounts the buyer-facing payment endpoints.
// Base path at the caller: /api
func PaymentRoutes(r fiber.Router, db *gorm.DB, svc *service.SettlementService) {
	h := paymentController.NewPaymentController(db, svc)

	payments := r.Group("/payments")
	payments.Post("/", middlewares.CheckoutRateLimiter(), h.CreatePayment) // POST /api/payments
	payments.Get("/:id", h.GetPayment)        // GET  /api/payments/:id
	payments.Post("/:id/check", h.CheckPayment) // POST /api/payments/:id/check?mode=manual|silent
	payments.Get("/:id/qr.png", h.GetQRImage) // GET  /api/payments/:id/qr.png
}

// WebhookRoutes mounts gateway callback endpoints. These sit outside /api:
// gateways are configured with the bare paths.
func WebhookRoutes(app *fiber.App, db *gorm.DB, svc *service.SettlementService, bakongSecret, midtransServerKey string) {
	h := paymentController.NewWebhookController(db, svc, bakongSecret, midtransServerKey)

	app.Post("/webhooks/bakong", h.BakongWebhook)
	app.Post("/webhooks/midtrans", h.MidtransWebhook)
}

// GatewayEventRoutes mounts the operator-facing event log. Base path: /api
func GatewayEventRoutes(r fiber.Router, db *gorm.DB) {
	h := paymentController.NewGatewayEventController(db)

	events := r.Group("/payment-gateway-events")
	events.Get("/", h.ListEvents)
	events.Get("/:id", h.GetByID)
}

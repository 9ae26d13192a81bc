// file: internals/route/index.go
package routes

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	orderRoute "playhost_backend/internals/features/orders/route"
	paymentRoute "playhost_backend/internals/features/payments/route"
	"playhost_backend/internals/features/payments/service"
)

var startTime time.Time

func SetupRoutes(app *fiber.App, db *gorm.DB, svc *service.SettlementService) {
	startTime = time.Now()

	BaseRoutes(app, db)

	// ===================== STOREFRONT API =====================
	api := app.Group("/api")

	log.Println("[INFO] Setting up OrderRoutes...")
	orderRoute.OrderRoutes(api, db)

	log.Println("[INFO] Setting up PaymentRoutes...")
	paymentRoute.PaymentRoutes(api, db, svc)

	log.Println("[INFO] Setting up GatewayEventRoutes...")
	paymentRoute.GatewayEventRoutes(api, db)

	// ===================== GATEWAY CALLBACKS =====================
	log.Println("[INFO] Setting up WebhookRoutes...")
	paymentRoute.WebhookRoutes(app, db, svc,
		os.Getenv("BAKONG_WEBHOOK_SECRET"),
		os.Getenv("MIDTRANS_SERVER_KEY"),
	)
}

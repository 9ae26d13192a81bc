// file: internals/features/orders/route/order_routes.go
package route

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	orderController "playhost_backend/internals/features/orders/controller"
)

// OrderRoutes mounts storefront order and invoice reads. Base path: /api
func OrderRoutes(r fiber.Router, db *gorm.DB) {
	h := orderController.NewOrderController(db)

	orders := r.Group("/orders")
	orders.Post("/", h.CreateOrder) // POST /api/orders
	orders.Get("/:id", h.GetOrder)  // GET  /api/orders/:id

	r.Get("/invoices/:id", h.GetInvoice) // GET /api/invoices/:id
}

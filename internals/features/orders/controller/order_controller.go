// file: internals/features/orders/controller/order_controller.go
package controller

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	dto "playhost_backend/internals/features/orders/dto"
	model "playhost_backend/internals/features/orders/model"
	ordersvc "playhost_backend/internals/features/orders/service"
	helper "playhost_backend/internals/helpers"
)

var validate = validator.New()

type OrderController struct {
	DB *gorm.DB
}

func NewOrderController(db *gorm.DB) *OrderController {
	return &OrderController{DB: db}
}

/* =========================================================
   POST /api/orders: checkout glue, order + first invoice
========================================================= */

func (h *OrderController) CreateOrder(c *fiber.Ctx) error {
	var req dto.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json: "+err.Error())
	}
	if err := validate.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}

	order, invoice, err := ordersvc.CreateOrder(c.UserContext(), h.DB, ordersvc.CreateOrderInput{
		Game:          req.Game,
		Plan:          req.Plan,
		Location:      req.Location,
		CustomerEmail: req.CustomerEmail,
		TermDays:      req.TermDays,
		Price:         req.Price,
		Currency:      req.Currency,
	})
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return helper.SuccessWithCode(c, fiber.StatusCreated, "order created", fiber.Map{
		"order":   dto.FromOrder(order),
		"invoice": dto.FromInvoice(invoice),
	})
}

/* =========================================================
   GET /api/orders/:id
========================================================= */

func (h *OrderController) GetOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var order model.Order
	if err := h.DB.WithContext(c.UserContext()).
		First(&order, "order_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	var invoices []model.Invoice
	if err := h.DB.WithContext(c.UserContext()).
		Where("invoice_order_id = ?", id).
		Order("invoice_created_at DESC").
		Find(&invoices).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	out := make([]*dto.InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		out = append(out, dto.FromInvoice(&invoices[i]))
	}

	return helper.Success(c, "ok", fiber.Map{
		"order":    dto.FromOrder(&order),
		"invoices": out,
	})
}

/* =========================================================
   GET /api/invoices/:id
========================================================= */

func (h *OrderController) GetInvoice(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var inv model.Invoice
	if err := h.DB.WithContext(c.UserContext()).
		First(&inv, "invoice_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "invoice not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return helper.Success(c, "ok", dto.FromInvoice(&inv))
}
